package milestones

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/rafaelquintero/sitepay-backend/pkg/db/models"
	"github.com/rafaelquintero/sitepay-backend/pkg/enums"
	"github.com/rafaelquintero/sitepay-backend/pkg/pagination"
)

func setupMilestonesTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	projects := `
CREATE TABLE IF NOT EXISTS projects (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  description TEXT,
  owner_user_id TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	milestones := `
CREATE TABLE IF NOT EXISTS milestones (
  id TEXT PRIMARY KEY,
  project_id TEXT NOT NULL,
  title TEXT NOT NULL,
  description TEXT,
  value TEXT NOT NULL,
  advance_percent TEXT NOT NULL,
  is_extra INTEGER NOT NULL DEFAULT 0,
  state TEXT NOT NULL,
  planned_start_date DATETIME,
  planned_end_date DATETIME,
  started_at DATETIME,
  submitted_at DATETIME,
  verified_at DATETIME,
  closed_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	transitions := `
CREATE TABLE IF NOT EXISTS milestone_transitions (
  id TEXT PRIMARY KEY,
  milestone_id TEXT NOT NULL,
  from_state TEXT,
  to_state TEXT NOT NULL,
  actor_user_id TEXT NOT NULL,
  actor_role TEXT NOT NULL,
  reason TEXT,
  created_at DATETIME
);`
	for _, stmt := range []string{projects, milestones, transitions} {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func seedMilestone(t *testing.T, repo Repository, projectID uuid.UUID, createdAt time.Time) models.Milestone {
	t.Helper()

	milestone := models.Milestone{
		ID:             uuid.New(),
		ProjectID:      projectID,
		Title:          "Foundation pour",
		Value:          decimal.NewFromInt(1000),
		AdvancePercent: decimal.NewFromInt(20),
		State:          enums.MilestoneStateDraft,
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}
	require.NoError(t, repo.Create(context.Background(), &milestone))
	return milestone
}

func TestRepositoryCreateAndFind(t *testing.T) {
	db := setupMilestonesTestDB(t)
	repo := NewRepository(db)

	projectID := uuid.New()
	created := seedMilestone(t, repo, projectID, time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC))

	found, err := repo.FindByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, enums.MilestoneStateDraft, found.State)
	assert.True(t, found.Value.Equal(decimal.NewFromInt(1000)))

	_, err = repo.FindByID(context.Background(), uuid.New())
	assert.Equal(t, gorm.ErrRecordNotFound, err)
}

func TestRepositorySavePersistsStateChange(t *testing.T) {
	db := setupMilestonesTestDB(t)
	repo := NewRepository(db)

	milestone := seedMilestone(t, repo, uuid.New(), time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC))

	now := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	milestone.State = enums.MilestoneStateInProgress
	milestone.StartedAt = &now
	require.NoError(t, repo.Save(context.Background(), &milestone))

	found, err := repo.FindByID(context.Background(), milestone.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.MilestoneStateInProgress, found.State)
	require.NotNil(t, found.StartedAt)
}

func TestRepositoryListByProjectPaginates(t *testing.T) {
	db := setupMilestonesTestDB(t)
	repo := NewRepository(db)

	projectID := uuid.New()
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		seedMilestone(t, repo, projectID, base.Add(time.Duration(i)*time.Hour))
	}
	seedMilestone(t, repo, uuid.New(), base) // other project

	page, next, err := repo.ListByProject(context.Background(), projectID, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.NotEmpty(t, next)
	assert.True(t, page[0].CreatedAt.After(page[1].CreatedAt))

	rest, next2, err := repo.ListByProject(context.Background(), projectID, pagination.Params{Limit: 2, Cursor: next})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Empty(t, next2)
}

func TestRepositoryTransitionTrailIsOrdered(t *testing.T) {
	db := setupMilestonesTestDB(t)
	repo := NewRepository(db)

	milestone := seedMilestone(t, repo, uuid.New(), time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC))
	actorID := uuid.New()
	base := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)

	draft := enums.MilestoneStateDraft
	inProgress := enums.MilestoneStateInProgress
	steps := []models.MilestoneTransition{
		{ID: uuid.New(), MilestoneID: milestone.ID, FromState: &draft, ToState: enums.MilestoneStateInProgress, ActorUserID: actorID, ActorRole: enums.ActorRoleVendor, CreatedAt: base},
		{ID: uuid.New(), MilestoneID: milestone.ID, FromState: &inProgress, ToState: enums.MilestoneStateSubmitted, ActorUserID: actorID, ActorRole: enums.ActorRoleVendor, CreatedAt: base.Add(time.Minute)},
	}
	for i := range steps {
		require.NoError(t, repo.AppendTransition(context.Background(), &steps[i]))
	}

	trail, err := repo.ListTransitions(context.Background(), milestone.ID)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, enums.MilestoneStateInProgress, trail[0].ToState)
	assert.Equal(t, enums.MilestoneStateSubmitted, trail[1].ToState)
	require.NotNil(t, trail[1].FromState)
	assert.Equal(t, enums.MilestoneStateInProgress, *trail[1].FromState)
}
