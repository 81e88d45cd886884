package auditlog

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rafaelquintero/sitepay-backend/api/responses"
	"github.com/rafaelquintero/sitepay-backend/api/validators"
	internalaudit "github.com/rafaelquintero/sitepay-backend/internal/audit"
	pkgerrors "github.com/rafaelquintero/sitepay-backend/pkg/errors"
	"github.com/rafaelquintero/sitepay-backend/pkg/logger"
	"github.com/rafaelquintero/sitepay-backend/pkg/pagination"
)

// List returns a filtered cursor page of a project's audit trail.
func List(svc internalaudit.Service, logg *logger.Logger) http.HandlerFunc {
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

		filters, err := buildFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.List(r.Context(), projectID, pagination.Params{Limit: limit, Cursor: cursor}, filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, list)
	}
}

// Export streams the full filtered trail as a CSV attachment.
func Export(svc internalaudit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID, err := parseUUIDParam(r, "projectID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filters, err := buildFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="audit-trail.csv"`)

		if err := svc.ExportCSV(r.Context(), w, projectID, filters); err != nil {
			// Headers may already be on the wire; log rather than re-encode.
			if logg != nil {
				logg.Error(r.Context(), "audit.export.failed", err)
			}
		}
	}
}

func buildFilters(r *http.Request) (internalaudit.ListFilters, error) {
	filters := internalaudit.ListFilters{
		EntityType: strings.TrimSpace(r.URL.Query().Get("entity_type")),
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("entity_id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return filters, pkgerrors.New(pkgerrors.CodeValidation, "invalid identifier").WithDetails(map[string]any{"field": "entity_id"})
		}
		filters.EntityID = id
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("actor_user_id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return filters, pkgerrors.New(pkgerrors.CodeValidation, "invalid identifier").WithDetails(map[string]any{"field": "actor_user_id"})
		}
		filters.ActorUserID = id
	}
	if from, err := parseTimeQuery(r, "from"); err != nil {
		return filters, err
	} else if from != nil {
		filters.From = from
	}
	if to, err := parseTimeQuery(r, "to"); err != nil {
		return filters, err
	} else if to != nil {
		filters.To = to
	}

	return filters, nil
}

func parseTimeQuery(r *http.Request, key string) (*time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	value, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "timestamp must be RFC3339").WithDetails(map[string]any{"field": key})
	}
	return &value, nil
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
