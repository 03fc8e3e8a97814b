package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/usabilitystudio/runtime/internal/domain"
)

// IssueRepository persists domain.Issue rows.
type IssueRepository struct {
	db *sqlx.DB
}

// NewIssueRepository creates a new issue repository.
func NewIssueRepository(db *sqlx.DB) *IssueRepository {
	return &IssueRepository{db: db}
}

type issueRow struct {
	ID             uuid.UUID  `db:"id"`
	StudyID        uuid.UUID  `db:"study_id"`
	SessionID      uuid.UUID  `db:"session_id"`
	StepID         *uuid.UUID `db:"step_id"`
	Element        string     `db:"element"`
	Description    string     `db:"description"`
	Severity       string     `db:"severity"`
	IssueType      string     `db:"issue_type"`
	Heuristic      string     `db:"heuristic"`
	WCAGCriterion  string     `db:"wcag_criterion"`
	Recommendation string     `db:"recommendation"`
	PageURL        string     `db:"page_url"`
	TimesSeen      int        `db:"times_seen"`
	IsRegression   bool       `db:"is_regression"`
	PriorityScore  float64    `db:"priority_score"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
}

func (r *issueRow) toDomain() *domain.Issue {
	return &domain.Issue{
		ID:             r.ID,
		StudyID:        r.StudyID,
		SessionID:      r.SessionID,
		StepID:         r.StepID,
		Element:        r.Element,
		Description:    r.Description,
		Severity:       domain.Severity(r.Severity),
		IssueType:      domain.IssueType(r.IssueType),
		Heuristic:      r.Heuristic,
		WCAGCriterion:  r.WCAGCriterion,
		Recommendation: r.Recommendation,
		PageURL:        r.PageURL,
		TimesSeen:      r.TimesSeen,
		IsRegression:   r.IsRegression,
		PriorityScore:  r.PriorityScore,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

// Create inserts a new issue.
func (r *IssueRepository) Create(ctx context.Context, i *domain.Issue) error {
	query := `
		INSERT INTO issues (
			id, study_id, session_id, step_id, element, description, severity, issue_type,
			heuristic, wcag_criterion, recommendation, page_url, times_seen, is_regression,
			priority_score, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err := r.db.ExecContext(ctx, query,
		i.ID, i.StudyID, i.SessionID, i.StepID, i.Element, i.Description, string(i.Severity), string(i.IssueType),
		i.Heuristic, i.WCAGCriterion, i.Recommendation, i.PageURL, i.TimesSeen, i.IsRegression,
		i.PriorityScore, i.CreatedAt, i.UpdatedAt,
	)
	return err
}

// GetByID retrieves an issue by ID.
func (r *IssueRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Issue, error) {
	query := `
		SELECT id, study_id, session_id, step_id, element, description, severity, issue_type,
		       heuristic, wcag_criterion, recommendation, page_url, times_seen, is_regression,
		       priority_score, created_at, updated_at
		FROM issues WHERE id = $1
	`
	var row issueRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound("issue", id.String())
		}
		return nil, err
	}
	return row.toDomain(), nil
}

// ListByStudy returns every issue raised by a study, highest priority_score
// first and oldest first among ties — input order for the Prioritizer (§4.6).
func (r *IssueRepository) ListByStudy(ctx context.Context, studyID uuid.UUID) ([]*domain.Issue, error) {
	query := `
		SELECT id, study_id, session_id, step_id, element, description, severity, issue_type,
		       heuristic, wcag_criterion, recommendation, page_url, times_seen, is_regression,
		       priority_score, created_at, updated_at
		FROM issues WHERE study_id = $1
		ORDER BY priority_score DESC, created_at ASC
	`
	var rows []issueRow
	if err := r.db.SelectContext(ctx, &rows, query, studyID); err != nil {
		return nil, err
	}
	issues := make([]*domain.Issue, len(rows))
	for i, row := range rows {
		issues[i] = row.toDomain()
	}
	return issues, nil
}

// ListByURLExcludingStudy returns prior issues raised against the same URL by
// studies other than studyID, used by the Analyzer's regression-linking pass
// (§9 Open Question #1: a grouping-key match against a prior study's issue
// marks is_regression and increments times_seen).
func (r *IssueRepository) ListByURLExcludingStudy(ctx context.Context, url string, excludeStudyID uuid.UUID) ([]*domain.Issue, error) {
	query := `
		SELECT i.id, i.study_id, i.session_id, i.step_id, i.element, i.description, i.severity, i.issue_type,
		       i.heuristic, i.wcag_criterion, i.recommendation, i.page_url, i.times_seen, i.is_regression,
		       i.priority_score, i.created_at, i.updated_at
		FROM issues i
		JOIN studies s ON s.id = i.study_id
		WHERE s.url = $1 AND i.study_id != $2
		ORDER BY i.created_at DESC
	`
	var rows []issueRow
	if err := r.db.SelectContext(ctx, &rows, query, url, excludeStudyID); err != nil {
		return nil, err
	}
	issues := make([]*domain.Issue, len(rows))
	for i, row := range rows {
		issues[i] = row.toDomain()
	}
	return issues, nil
}

// Update persists mutable fields of an issue: dedup bookkeeping (times_seen,
// is_regression) and the Prioritizer's priority_score.
func (r *IssueRepository) Update(ctx context.Context, i *domain.Issue) error {
	query := `
		UPDATE issues
		SET times_seen = $2, is_regression = $3, priority_score = $4, updated_at = $5
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, i.ID, i.TimesSeen, i.IsRegression, i.PriorityScore, time.Now().UTC())
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFound("issue", i.ID.String())
	}
	return nil
}

// UpdatePriorityScore persists just the priority_score column, used by the
// Prioritizer's final scoring pass over a study's issue set (§4.6).
func (r *IssueRepository) UpdatePriorityScore(ctx context.Context, id uuid.UUID, score float64) error {
	query := `UPDATE issues SET priority_score = $2, updated_at = $3 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, score, time.Now().UTC())
	return err
}
