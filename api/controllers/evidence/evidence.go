package evidence

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rafaelquintero/sitepay-backend/api/middleware"
	"github.com/rafaelquintero/sitepay-backend/api/responses"
	"github.com/rafaelquintero/sitepay-backend/api/validators"
	internalevidence "github.com/rafaelquintero/sitepay-backend/internal/evidence"
	pkgerrors "github.com/rafaelquintero/sitepay-backend/pkg/errors"
	"github.com/rafaelquintero/sitepay-backend/pkg/logger"
)

type submitRequest struct {
	ProgressPercent decimal.Decimal `json:"progress_percent" validate:"required"`
	Remarks         *string         `json:"remarks,omitempty"`
	Attachments     json.RawMessage `json:"attachments,omitempty"`
}

type reviewRequest struct {
	Decision string  `json:"decision" validate:"required,oneof=approve reject"`
	Note     *string `json:"note,omitempty"`
}

// Submit records a vendor completion claim against a milestone.
func Submit(svc internalevidence.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		milestoneID, err := parseUUIDParam(r, "milestoneID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body submitRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.Submit(r.Context(), internalevidence.SubmitInput{
			MilestoneID:     milestoneID,
			ActorUserID:     middleware.UserIDFromContext(r.Context()),
			ActorRole:       middleware.RoleFromContext(r.Context()),
			ProgressPercent: body.ProgressPercent,
			Remarks:         body.Remarks,
			Attachments:     body.Attachments,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, record)
	}
}

// Review applies the one-shot approve or reject decision to a submission.
func Review(svc internalevidence.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		evidenceID, err := parseUUIDParam(r, "evidenceID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body reviewRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.Review(r.Context(), internalevidence.ReviewInput{
			EvidenceID:  evidenceID,
			Decision:    internalevidence.Decision(body.Decision),
			Note:        body.Note,
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

// List returns every evidence record attached to a milestone, newest first.
func List(svc internalevidence.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		milestoneID, err := parseUUIDParam(r, "milestoneID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		records, err := svc.ListByMilestone(r.Context(), milestoneID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"evidence": records})
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
