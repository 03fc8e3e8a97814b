package postgres

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/usabilitystudio/runtime/internal/domain"
)

func setupIssueRepo(t *testing.T) (*sessionFixtures, *IssueRepository, *TestDB, func()) {
	t.Helper()
	testDB := SetupTestDB(t)
	sqlxDB := sqlx.NewDb(testDB.DB, "postgres")
	f := &sessionFixtures{
		studies:  NewStudyRepository(sqlxDB),
		tasks:    NewTaskRepository(sqlxDB),
		personas: NewPersonaRepository(sqlxDB),
		sessions: NewSessionRepository(sqlxDB),
	}
	return f, NewIssueRepository(sqlxDB), testDB, func() { testDB.Cleanup(t) }
}

func TestIssueRepository_CreateAndGet(t *testing.T) {
	f, repo, testDB, cleanup := setupIssueRepo(t)
	defer cleanup()
	defer testDB.TruncateTables(t)

	ctx := context.Background()
	session := f.newSession(t, ctx)
	require.NoError(t, f.sessions.Create(ctx, session))

	issue := domain.NewIssue(session.StudyID, session.ID, "submit button does not respond on mobile safari", domain.SeverityCritical, domain.IssueTypeUX)
	issue.PageURL = "https://example.com/checkout"
	require.NoError(t, repo.Create(ctx, issue))

	got, err := repo.GetByID(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SeverityCritical, got.Severity)
	assert.Equal(t, 1, got.TimesSeen)
}

func TestIssueRepository_ListByStudy_OrderedByPriority(t *testing.T) {
	f, repo, testDB, cleanup := setupIssueRepo(t)
	defer cleanup()
	defer testDB.TruncateTables(t)

	ctx := context.Background()
	session := f.newSession(t, ctx)
	require.NoError(t, f.sessions.Create(ctx, session))

	low := domain.NewIssue(session.StudyID, session.ID, "minor copy nit", domain.SeverityMinor, domain.IssueTypeUX)
	low.PriorityScore = 10
	high := domain.NewIssue(session.StudyID, session.ID, "checkout totally broken", domain.SeverityCritical, domain.IssueTypeUX)
	high.PriorityScore = 90
	require.NoError(t, repo.Create(ctx, low))
	require.NoError(t, repo.Create(ctx, high))

	issues, err := repo.ListByStudy(ctx, session.StudyID)
	require.NoError(t, err)
	require.Len(t, issues, 2)
	assert.Equal(t, high.ID, issues[0].ID)
	assert.Equal(t, low.ID, issues[1].ID)
}

func TestIssueRepository_UpdatePriorityScore(t *testing.T) {
	f, repo, testDB, cleanup := setupIssueRepo(t)
	defer cleanup()
	defer testDB.TruncateTables(t)

	ctx := context.Background()
	session := f.newSession(t, ctx)
	require.NoError(t, f.sessions.Create(ctx, session))

	issue := domain.NewIssue(session.StudyID, session.ID, "confusing nav", domain.SeverityMajor, domain.IssueTypeUX)
	require.NoError(t, repo.Create(ctx, issue))

	require.NoError(t, repo.UpdatePriorityScore(ctx, issue.ID, 42.5))

	got, err := repo.GetByID(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, 42.5, got.PriorityScore)
}

func TestIssueRepository_ListByURLExcludingStudy(t *testing.T) {
	f, repo, testDB, cleanup := setupIssueRepo(t)
	defer cleanup()
	defer testDB.TruncateTables(t)

	ctx := context.Background()
	session := f.newSession(t, ctx)
	require.NoError(t, f.sessions.Create(ctx, session))

	url := "https://example.com/checkout"
	require.NoError(t, f.studies.Update(ctx, &domain.Study{
		ID: session.StudyID, URL: url, Status: domain.StudyStatusSetup,
		Timestamps: domain.Timestamps{CreatedAt: session.CreatedAt, UpdatedAt: session.CreatedAt},
	}))

	priorIssue := domain.NewIssue(session.StudyID, session.ID, "old regression", domain.SeverityMajor, domain.IssueTypeUX)
	priorIssue.PageURL = url
	require.NoError(t, repo.Create(ctx, priorIssue))

	otherStudy := domain.NewStudy(url, "")
	require.NoError(t, f.studies.Create(ctx, otherStudy))

	prior, err := repo.ListByURLExcludingStudy(ctx, url, otherStudy.ID)
	require.NoError(t, err)
	require.Len(t, prior, 1)
	assert.Equal(t, priorIssue.ID, prior[0].ID)
}
