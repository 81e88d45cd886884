package milestones

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rafaelquintero/sitepay-backend/api/middleware"
	"github.com/rafaelquintero/sitepay-backend/api/responses"
	"github.com/rafaelquintero/sitepay-backend/api/validators"
	internalmilestones "github.com/rafaelquintero/sitepay-backend/internal/milestones"
	"github.com/rafaelquintero/sitepay-backend/pkg/enums"
	pkgerrors "github.com/rafaelquintero/sitepay-backend/pkg/errors"
	"github.com/rafaelquintero/sitepay-backend/pkg/logger"
	"github.com/rafaelquintero/sitepay-backend/pkg/pagination"
)

type createRequest struct {
	Title            string          `json:"title" validate:"required,min=1,max=200"`
	Description      *string         `json:"description,omitempty"`
	Value            decimal.Decimal `json:"value" validate:"required"`
	AdvancePercent   decimal.Decimal `json:"advance_percent"`
	IsExtra          bool            `json:"is_extra"`
	PlannedStartDate *time.Time      `json:"planned_start_date,omitempty"`
	PlannedEndDate   *time.Time      `json:"planned_end_date,omitempty"`
}

type transitionRequest struct {
	ToState string  `json:"to_state" validate:"required"`
	Reason  *string `json:"reason,omitempty"`
}

// Create registers a milestone under a project.
func Create(svc internalmilestones.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID, err := parseUUIDParam(r, "projectID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		milestone, err := svc.Create(r.Context(), internalmilestones.CreateInput{
			ProjectID:        projectID,
			Title:            strings.TrimSpace(body.Title),
			Description:      body.Description,
			Value:            body.Value,
			AdvancePercent:   body.AdvancePercent,
			IsExtra:          body.IsExtra,
			PlannedStartDate: body.PlannedStartDate,
			PlannedEndDate:   body.PlannedEndDate,
			ActorUserID:      middleware.UserIDFromContext(r.Context()),
			ActorRole:        middleware.RoleFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, milestone)
	}
}

// List returns a cursor page of a project's milestones.
func List(svc internalmilestones.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID, err := parseUUIDParam(r, "projectID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cursor := strings.TrimSpace(r.URL.Query().Get("cursor"))

		list, err := svc.ListByProject(r.Context(), projectID, pagination.Params{Limit: limit, Cursor: cursor})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, list)
	}
}

// Get returns one milestone by id.
func Get(svc internalmilestones.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		milestoneID, err := parseUUIDParam(r, "milestoneID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		milestone, err := svc.Get(r.Context(), milestoneID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, milestone)
	}
}

// Transition applies one lifecycle edge to a milestone.
func Transition(svc internalmilestones.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		milestoneID, err := parseUUIDParam(r, "milestoneID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body transitionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		toState, err := enums.ParseMilestoneState(body.ToState)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid target state"))
			return
		}

		result, err := svc.Transition(r.Context(), internalmilestones.TransitionInput{
			MilestoneID: milestoneID,
			ToState:     toState,
			ActorUserID: middleware.UserIDFromContext(r.Context()),
			ActorRole:   middleware.RoleFromContext(r.Context()),
			Reason:      body.Reason,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// History returns the full ordered transition trail for a milestone.
func History(svc internalmilestones.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		milestoneID, err := parseUUIDParam(r, "milestoneID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		history, err := svc.History(r.Context(), milestoneID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"transitions": history})
	}
}

// ValidNext lists the states the calling role may move the milestone to.
func ValidNext(svc internalmilestones.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		milestoneID, err := parseUUIDParam(r, "milestoneID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		states, err := svc.ValidNext(r.Context(), milestoneID, middleware.RoleFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"valid_next_states": states})
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
