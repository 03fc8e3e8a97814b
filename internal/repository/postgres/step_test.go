package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/usabilitystudio/runtime/internal/domain"
)

func setupStepRepo(t *testing.T) (*sessionFixtures, *StepRepository, *TestDB, func()) {
	t.Helper()
	testDB := SetupTestDB(t)
	sqlxDB := sqlx.NewDb(testDB.DB, "postgres")
	f := &sessionFixtures{
		studies:  NewStudyRepository(sqlxDB),
		tasks:    NewTaskRepository(sqlxDB),
		personas: NewPersonaRepository(sqlxDB),
		sessions: NewSessionRepository(sqlxDB),
	}
	return f, NewStepRepository(sqlxDB), testDB, func() { testDB.Cleanup(t) }
}

func newStep(sessionID uuid.UUID, n int) *domain.Step {
	return &domain.Step{
		ID:             uuid.New(),
		SessionID:      sessionID,
		StepNumber:     n,
		PageURL:        "https://example.com/checkout",
		ActionType:     domain.ActionClick,
		ActionSelector: "#submit",
		EmotionalState: domain.EmotionNeutral,
		ViewportW:      1280,
		ViewportH:      720,
		CreatedAt:      time.Now().UTC(),
	}
}

func TestStepRepository_CreateEnforcesUniqueStepNumber(t *testing.T) {
	f, repo, testDB, cleanup := setupStepRepo(t)
	defer cleanup()
	defer testDB.TruncateTables(t)

	ctx := context.Background()
	session := f.newSession(t, ctx)
	require.NoError(t, f.sessions.Create(ctx, session))

	step1 := newStep(session.ID, 1)
	require.NoError(t, repo.Create(ctx, step1))

	dupe := newStep(session.ID, 1)
	err := repo.Create(ctx, dupe)
	require.Error(t, err)
}

func TestStepRepository_ListBySession_Ordered(t *testing.T) {
	f, repo, testDB, cleanup := setupStepRepo(t)
	defer cleanup()
	defer testDB.TruncateTables(t)

	ctx := context.Background()
	session := f.newSession(t, ctx)
	require.NoError(t, f.sessions.Create(ctx, session))

	require.NoError(t, repo.Create(ctx, newStep(session.ID, 2)))
	require.NoError(t, repo.Create(ctx, newStep(session.ID, 1)))
	require.NoError(t, repo.Create(ctx, newStep(session.ID, 3)))

	steps, err := repo.ListBySession(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, steps, 3)
	assert.Equal(t, 1, steps[0].StepNumber)
	assert.Equal(t, 2, steps[1].StepNumber)
	assert.Equal(t, 3, steps[2].StepNumber)
}
