package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/usabilitystudio/runtime/internal/domain"
)

// StudyRepository persists domain.Study rows.
type StudyRepository struct {
	db *sqlx.DB
}

// NewStudyRepository creates a new study repository.
func NewStudyRepository(db *sqlx.DB) *StudyRepository {
	return &StudyRepository{db: db}
}

type studyRow struct {
	ID               uuid.UUID  `db:"id"`
	URL              string     `db:"url"`
	StartingPath     string     `db:"starting_path"`
	Status           string     `db:"status"`
	StartedAt        *time.Time `db:"started_at"`
	DurationSeconds  *float64   `db:"duration_seconds"`
	OverallScore     *int       `db:"overall_score"`
	ExecutiveSummary string     `db:"executive_summary"`
	CostBreakdown    []byte     `db:"cost_breakdown"`
	Error            string     `db:"error"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
	DeletedAt        *time.Time `db:"deleted_at"`
}

func (r *studyRow) toDomain() (*domain.Study, error) {
	s := &domain.Study{
		ID:               r.ID,
		URL:              r.URL,
		StartingPath:     r.StartingPath,
		Status:           domain.StudyStatus(r.Status),
		StartedAt:        r.StartedAt,
		DurationSeconds:  r.DurationSeconds,
		OverallScore:     r.OverallScore,
		ExecutiveSummary: r.ExecutiveSummary,
		Error:            r.Error,
		Timestamps: domain.Timestamps{
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt,
			DeletedAt: r.DeletedAt,
		},
	}
	if r.CostBreakdown != nil {
		var cb domain.JSONB
		if err := json.Unmarshal(r.CostBreakdown, &cb); err != nil {
			return nil, err
		}
		s.CostBreakdown = cb
	}
	return s, nil
}

// Create inserts a new study.
func (r *StudyRepository) Create(ctx context.Context, s *domain.Study) error {
	var costBreakdown interface{}
	if s.CostBreakdown != nil {
		data, err := json.Marshal(s.CostBreakdown)
		if err != nil {
			return err
		}
		costBreakdown = data
	}

	query := `
		INSERT INTO studies (
			id, url, starting_path, status, started_at, duration_seconds,
			overall_score, executive_summary, cost_breakdown, error, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.ExecContext(ctx, query,
		s.ID, s.URL, s.StartingPath, string(s.Status), s.StartedAt, s.DurationSeconds,
		s.OverallScore, s.ExecutiveSummary, costBreakdown, s.Error, s.CreatedAt, s.UpdatedAt,
	)
	return err
}

// GetByID retrieves a study by ID.
func (r *StudyRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Study, error) {
	query := `
		SELECT id, url, starting_path, status, started_at, duration_seconds,
		       overall_score, executive_summary, cost_breakdown, error,
		       created_at, updated_at, deleted_at
		FROM studies
		WHERE id = $1 AND deleted_at IS NULL
	`
	var row studyRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrStudyNotFound(id.String())
		}
		return nil, err
	}
	return row.toDomain()
}

// Update persists mutable fields of an existing study (status, score,
// summary, cost breakdown, timing). Studies are otherwise mutated only by
// the Orchestrator, per §3.
func (r *StudyRepository) Update(ctx context.Context, s *domain.Study) error {
	var costBreakdown interface{}
	if s.CostBreakdown != nil {
		data, err := json.Marshal(s.CostBreakdown)
		if err != nil {
			return err
		}
		costBreakdown = data
	}

	query := `
		UPDATE studies
		SET status = $2, started_at = $3, duration_seconds = $4, overall_score = $5,
		    executive_summary = $6, cost_breakdown = $7, error = $8, updated_at = $9
		WHERE id = $1 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query,
		s.ID, string(s.Status), s.StartedAt, s.DurationSeconds, s.OverallScore,
		s.ExecutiveSummary, costBreakdown, s.Error, time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrStudyNotFound(s.ID.String())
	}
	return nil
}

// UpdateStatus transitions only the status column, used by the Orchestrator
// between phases (§4.1).
func (r *StudyRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.StudyStatus) error {
	query := `UPDATE studies SET status = $2, updated_at = $3 WHERE id = $1 AND deleted_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, id, string(status), time.Now().UTC())
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrStudyNotFound(id.String())
	}
	return nil
}

// Delete soft-deletes a study by stamping deleted_at. Its Tasks/Personas/
// Sessions/Issues/Insights rows are left in place: the schema's ON DELETE
// CASCADE foreign keys (§3 Ownership) act only when a studies row is
// removed outright.
func (r *StudyRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE studies SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrStudyNotFound(id.String())
	}
	return nil
}

// List returns a page of non-deleted studies of any status, newest first,
// plus their total count, used by admin/ops tooling.
func (r *StudyRepository) List(ctx context.Context, limit, offset int) ([]*domain.Study, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM studies WHERE deleted_at IS NULL`); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, url, starting_path, status, started_at, duration_seconds,
		       overall_score, executive_summary, cost_breakdown, error,
		       created_at, updated_at, deleted_at
		FROM studies
		WHERE deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	var rows []studyRow
	if err := r.db.SelectContext(ctx, &rows, query, limit, offset); err != nil {
		return nil, 0, err
	}
	studies := make([]*domain.Study, len(rows))
	for i, row := range rows {
		s, err := row.toDomain()
		if err != nil {
			return nil, 0, err
		}
		studies[i] = s
	}
	return studies, total, nil
}
