package postgres

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/usabilitystudio/runtime/internal/domain"
)

func setupPersonaRepo(t *testing.T) (*StudyRepository, *PersonaRepository, *TestDB, func()) {
	t.Helper()
	testDB := SetupTestDB(t)
	sqlxDB := sqlx.NewDb(testDB.DB, "postgres")
	return NewStudyRepository(sqlxDB), NewPersonaRepository(sqlxDB), testDB, func() { testDB.Cleanup(t) }
}

func TestPersonaRepository_CreateAndGet(t *testing.T) {
	studies, repo, testDB, cleanup := setupPersonaRepo(t)
	defer cleanup()
	defer testDB.TruncateTables(t)

	ctx := context.Background()
	study := domain.NewStudy("https://example.com", "")
	require.NoError(t, studies.Create(ctx, study))

	profile := domain.PersonaProfile{
		Name:             "Impatient Morgan",
		TechLiteracy:     3,
		Patience:         2,
		ReadingSpeed:     5,
		Trust:            4,
		Goals:            []string{"buy the cheapest plan"},
		DevicePreference: domain.DevicePreferenceMobile,
	}
	persona := domain.NewPersona(study.ID, profile, "claude-3-5-sonnet")
	require.NoError(t, repo.Create(ctx, persona))

	got, err := repo.GetByID(ctx, persona.ID)
	require.NoError(t, err)
	assert.Equal(t, "Impatient Morgan", got.Profile["name"])
	assert.Equal(t, persona.ModelChoice, got.ModelChoice)
}

func TestPersonaRepository_ListByStudy(t *testing.T) {
	studies, repo, testDB, cleanup := setupPersonaRepo(t)
	defer cleanup()
	defer testDB.TruncateTables(t)

	ctx := context.Background()
	study := domain.NewStudy("https://example.com", "")
	require.NoError(t, studies.Create(ctx, study))

	for i := 0; i < 3; i++ {
		p := domain.NewPersona(study.ID, domain.PersonaProfile{Name: "persona", DevicePreference: domain.DevicePreferenceDesktop}, "claude-3-5-sonnet")
		require.NoError(t, repo.Create(ctx, p))
	}

	personas, err := repo.ListByStudy(ctx, study.ID)
	require.NoError(t, err)
	assert.Len(t, personas, 3)
}
