package audit

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/rafaelquintero/sitepay-backend/pkg/pagination"
)

var exportHeader = []string{
	"id", "project_id", "created_at", "actor_user_id", "actor_role",
	"action", "entity_type", "entity_id", "reason",
}

// ExportCSV streams the full audit trail for a project as a flat CSV dump,
// paging through the repository so arbitrarily large trails never load at once.
func (s *service) ExportCSV(ctx context.Context, w io.Writer, projectID uuid.UUID, filters ListFilters) error {
	if projectID == uuid.Nil {
		return fmt.Errorf("project id is required")
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(exportHeader); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}

	cursor := ""
	for {
		entries, next, err := s.repo.ListByProject(ctx, projectID, pagination.Params{Limit: pagination.MaxLimit, Cursor: cursor}, filters)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			reason := ""
			if entry.Reason != nil {
				reason = *entry.Reason
			}
			record := []string{
				entry.ID.String(),
				entry.ProjectID.String(),
				entry.CreatedAt.UTC().Format(time.RFC3339),
				entry.ActorUserID.String(),
				string(entry.ActorRole),
				string(entry.Action),
				entry.EntityType,
				entry.EntityID.String(),
				reason,
			}
			if err := writer.Write(record); err != nil {
				return fmt.Errorf("writing csv row: %w", err)
			}
		}
		if next == "" {
			break
		}
		cursor = next
	}

	writer.Flush()
	return writer.Error()
}
