package postgres

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/usabilitystudio/runtime/internal/domain"
)

func setupTaskRepo(t *testing.T) (*StudyRepository, *TaskRepository, *TestDB, func()) {
	t.Helper()
	testDB := SetupTestDB(t)
	sqlxDB := sqlx.NewDb(testDB.DB, "postgres")
	return NewStudyRepository(sqlxDB), NewTaskRepository(sqlxDB), testDB, func() { testDB.Cleanup(t) }
}

func TestTaskRepository_CreateListByStudy(t *testing.T) {
	studies, repo, testDB, cleanup := setupTaskRepo(t)
	defer cleanup()
	defer testDB.TruncateTables(t)

	ctx := context.Background()
	study := domain.NewStudy("https://example.com", "")
	require.NoError(t, studies.Create(ctx, study))

	second := domain.NewTask(study.ID, "complete checkout", 1)
	first := domain.NewTask(study.ID, "find the pricing page", 0)
	require.NoError(t, repo.Create(ctx, second))
	require.NoError(t, repo.Create(ctx, first))

	tasks, err := repo.ListByStudy(ctx, study.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, first.ID, tasks[0].ID)
	assert.Equal(t, second.ID, tasks[1].ID)
}

func TestTaskRepository_GetByID_NotFound(t *testing.T) {
	_, repo, testDB, cleanup := setupTaskRepo(t)
	defer cleanup()
	defer testDB.TruncateTables(t)

	_, err := repo.GetByID(context.Background(), domain.NewTask(domain.NewStudy("u", "").ID, "x", 0).ID)
	assert.Error(t, err)
}
