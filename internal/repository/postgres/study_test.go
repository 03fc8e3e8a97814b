package postgres

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/usabilitystudio/runtime/internal/domain"
)

func setupStudyRepo(t *testing.T) (*StudyRepository, *TestDB, func()) {
	t.Helper()
	testDB := SetupTestDB(t)
	sqlxDB := sqlx.NewDb(testDB.DB, "postgres")
	repo := NewStudyRepository(sqlxDB)
	return repo, testDB, func() { testDB.Cleanup(t) }
}

func TestStudyRepository_CreateAndGet(t *testing.T) {
	repo, testDB, cleanup := setupStudyRepo(t)
	defer cleanup()
	defer testDB.TruncateTables(t)

	ctx := context.Background()
	study := domain.NewStudy("https://example.com", "/checkout")

	require.NoError(t, repo.Create(ctx, study))

	got, err := repo.GetByID(ctx, study.ID)
	require.NoError(t, err)
	assert.Equal(t, study.URL, got.URL)
	assert.Equal(t, study.StartingPath, got.StartingPath)
	assert.Equal(t, domain.StudyStatusSetup, got.Status)
}

func TestStudyRepository_GetByID_NotFound(t *testing.T) {
	repo, testDB, cleanup := setupStudyRepo(t)
	defer cleanup()
	defer testDB.TruncateTables(t)

	_, err := repo.GetByID(context.Background(), domain.NewStudy("https://example.com", "").ID)
	assert.Error(t, err)
}

func TestStudyRepository_UpdateStatus(t *testing.T) {
	repo, testDB, cleanup := setupStudyRepo(t)
	defer cleanup()
	defer testDB.TruncateTables(t)

	ctx := context.Background()
	study := domain.NewStudy("https://example.com", "")
	require.NoError(t, repo.Create(ctx, study))

	require.NoError(t, repo.UpdateStatus(ctx, study.ID, domain.StudyStatusRunning))

	got, err := repo.GetByID(ctx, study.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StudyStatusRunning, got.Status)
}

func TestStudyRepository_Delete(t *testing.T) {
	repo, testDB, cleanup := setupStudyRepo(t)
	defer cleanup()
	defer testDB.TruncateTables(t)

	ctx := context.Background()
	study := domain.NewStudy("https://example.com", "")
	require.NoError(t, repo.Create(ctx, study))
	require.NoError(t, repo.Delete(ctx, study.ID))

	_, err := repo.GetByID(ctx, study.ID)
	assert.Error(t, err)
}

func TestStudyRepository_List(t *testing.T) {
	repo, testDB, cleanup := setupStudyRepo(t)
	defer cleanup()
	defer testDB.TruncateTables(t)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, domain.NewStudy("https://example.com", "")))
	}

	studies, total, err := repo.List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, studies, 3)
}
