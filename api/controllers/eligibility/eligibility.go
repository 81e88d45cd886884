package eligibility

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rafaelquintero/sitepay-backend/api/middleware"
	"github.com/rafaelquintero/sitepay-backend/api/responses"
	"github.com/rafaelquintero/sitepay-backend/api/validators"
	internaleligibility "github.com/rafaelquintero/sitepay-backend/internal/eligibility"
	"github.com/rafaelquintero/sitepay-backend/pkg/enums"
	pkgerrors "github.com/rafaelquintero/sitepay-backend/pkg/errors"
	"github.com/rafaelquintero/sitepay-backend/pkg/logger"
)

type blockRequest struct {
	ReasonCode  string `json:"reason_code" validate:"required"`
	Explanation string `json:"explanation" validate:"required,min=1"`
}

type unblockRequest struct {
	Reason string `json:"reason" validate:"required,min=1"`
}

type markPaidRequest struct {
	Explanation string `json:"explanation" validate:"required,min=1"`
}

// Get returns the payment eligibility record, its display indicator and the
// recent eligibility trail for a milestone.
func Get(svc internaleligibility.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		milestoneID, err := parseUUIDParam(r, "milestoneID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.Get(r.Context(), milestoneID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, view)
	}
}

// Block places a payment hold on a milestone.
func Block(svc internaleligibility.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		milestoneID, err := parseUUIDParam(r, "milestoneID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body blockRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		reasonCode, err := enums.ParseBlockReason(body.ReasonCode)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid reason code"))
			return
		}

		record, err := svc.Block(r.Context(), internaleligibility.BlockInput{
			MilestoneID: milestoneID,
			ReasonCode:  reasonCode,
			Explanation: strings.TrimSpace(body.Explanation),
			ActorUserID: middleware.UserIDFromContext(r.Context()),
			ActorRole:   middleware.RoleFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, record)
	}
}

// Unblock lifts a payment hold. Owner only.
func Unblock(svc internaleligibility.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		milestoneID, err := parseUUIDParam(r, "milestoneID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body unblockRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.Unblock(r.Context(), internaleligibility.UnblockInput{
			MilestoneID: milestoneID,
			Reason:      strings.TrimSpace(body.Reason),
			ActorUserID: middleware.UserIDFromContext(r.Context()),
			ActorRole:   middleware.RoleFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, record)
	}
}

// MarkPaid records an out-of-band settlement for an eligible milestone.
func MarkPaid(svc internaleligibility.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		milestoneID, err := parseUUIDParam(r, "milestoneID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body markPaidRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.MarkPaid(r.Context(), internaleligibility.MarkPaidInput{
			MilestoneID: milestoneID,
			Explanation: strings.TrimSpace(body.Explanation),
			ActorUserID: middleware.UserIDFromContext(r.Context()),
			ActorRole:   middleware.RoleFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, record)
	}
}

func parseUUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "missing path parameter").WithDetails(map[string]any{"field": name})
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid identifier").WithDetails(map[string]any{"field": name})
	}
	return id, nil
}
