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

func setupScheduleRepo(t *testing.T) (*ScheduleRepository, *TestDB, func()) {
	t.Helper()
	testDB := SetupTestDB(t)
	sqlxDB := sqlx.NewDb(testDB.DB, "postgres")
	return NewScheduleRepository(sqlxDB), testDB, func() { testDB.Cleanup(t) }
}

func TestScheduleRepository_ListDue(t *testing.T) {
	repo, testDB, cleanup := setupScheduleRepo(t)
	defer cleanup()
	defer testDB.TruncateTables(t)

	ctx := context.Background()
	now := time.Now().UTC()

	due := domain.NewSchedule("due", "https://example.com", "", "@every 24h", []string{"task"}, nil)
	past := now.Add(-time.Hour)
	due.NextRunAt = &past
	require.NoError(t, repo.Create(ctx, due))

	notDue := domain.NewSchedule("not due", "https://example.com", "", "@every 24h", []string{"task"}, nil)
	future := now.Add(time.Hour)
	notDue.NextRunAt = &future
	require.NoError(t, repo.Create(ctx, notDue))

	paused := domain.NewSchedule("paused", "https://example.com", "", "@every 24h", []string{"task"}, nil)
	paused.NextRunAt = &past
	paused.Quarantine()
	require.NoError(t, repo.Create(ctx, paused))

	results, err := repo.ListDue(ctx, now)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, due.ID, results[0].ID)
}

func TestScheduleRepository_MarkRun(t *testing.T) {
	repo, testDB, cleanup := setupScheduleRepo(t)
	defer cleanup()
	defer testDB.TruncateTables(t)

	ctx := context.Background()
	s := domain.NewSchedule("markrun", "https://example.com", "", "@every 24h", []string{"task"}, nil)
	require.NoError(t, repo.Create(ctx, s))

	ran := time.Now().UTC()
	next := ran.Add(24 * time.Hour)
	studyID := uuid.New()
	require.NoError(t, repo.MarkRun(ctx, s.ID, ran, next, studyID))

	got, err := repo.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.RunCount)
	require.NotNil(t, got.LastRunAt)
	require.NotNil(t, got.NextRunAt)
	require.NotNil(t, got.LastStudyID)
	assert.Equal(t, studyID, *got.LastStudyID)
}

func TestScheduleRepository_Quarantine(t *testing.T) {
	repo, testDB, cleanup := setupScheduleRepo(t)
	defer cleanup()
	defer testDB.TruncateTables(t)

	ctx := context.Background()
	s := domain.NewSchedule("quarantine", "https://example.com", "", "not a valid cron", []string{"task"}, nil)
	require.NoError(t, repo.Create(ctx, s))

	require.NoError(t, repo.Quarantine(ctx, s.ID))

	got, err := repo.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ScheduleStatusPaused, got.Status)
}
