package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/usabilitystudio/runtime/internal/domain"
)

// InsightRepository persists domain.Insight and domain.ScoreHistory rows.
type InsightRepository struct {
	db *sqlx.DB
}

// NewInsightRepository creates a new insight repository.
func NewInsightRepository(db *sqlx.DB) *InsightRepository {
	return &InsightRepository{db: db}
}

type insightRow struct {
	ID               uuid.UUID `db:"id"`
	StudyID          uuid.UUID `db:"study_id"`
	Type             string    `db:"type"`
	Title            string    `db:"title"`
	Description      string    `db:"description"`
	Severity         *string   `db:"severity"`
	Impact           string    `db:"impact"`
	Effort           string    `db:"effort"`
	PersonasAffected []byte    `db:"personas_affected"`
	Evidence         []byte    `db:"evidence"`
	Rank             *int      `db:"rank"`
	CreatedAt        time.Time `db:"created_at"`
}

func (r *insightRow) toDomain() (*domain.Insight, error) {
	in := &domain.Insight{
		ID:          r.ID,
		StudyID:     r.StudyID,
		Type:        domain.InsightType(r.Type),
		Title:       r.Title,
		Description: r.Description,
		Impact:      r.Impact,
		Effort:      r.Effort,
		Rank:        r.Rank,
		CreatedAt:   r.CreatedAt,
	}
	if r.Severity != nil {
		sev := domain.Severity(*r.Severity)
		in.Severity = &sev
	}
	if r.PersonasAffected != nil {
		var pa domain.JSONB
		if err := json.Unmarshal(r.PersonasAffected, &pa); err != nil {
			return nil, err
		}
		in.PersonasAffected = pa
	}
	if r.Evidence != nil {
		var ev domain.JSONB
		if err := json.Unmarshal(r.Evidence, &ev); err != nil {
			return nil, err
		}
		in.Evidence = ev
	}
	return in, nil
}

// ReplaceAllForStudy deletes every existing insight owned by studyID and
// inserts the given set in a single transaction, implementing the §3
// contract that a fresh Synthesizer run replaces all prior insights.
func (r *InsightRepository) ReplaceAllForStudy(ctx context.Context, studyID uuid.UUID, insights []*domain.Insight) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM insights WHERE study_id = $1`, studyID); err != nil {
		_ = tx.Rollback()
		return err
	}

	for _, in := range insights {
		var personasAffected, evidence interface{}
		if in.PersonasAffected != nil {
			data, err := json.Marshal(in.PersonasAffected)
			if err != nil {
				_ = tx.Rollback()
				return err
			}
			personasAffected = data
		}
		if in.Evidence != nil {
			data, err := json.Marshal(in.Evidence)
			if err != nil {
				_ = tx.Rollback()
				return err
			}
			evidence = data
		}
		var severity *string
		if in.Severity != nil {
			s := string(*in.Severity)
			severity = &s
		}

		query := `
			INSERT INTO insights (
				id, study_id, type, title, description, severity, impact, effort,
				personas_affected, evidence, rank, created_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`
		if _, err := tx.ExecContext(ctx, query,
			in.ID, in.StudyID, string(in.Type), in.Title, in.Description, severity, in.Impact, in.Effort,
			personasAffected, evidence, in.Rank, in.CreatedAt,
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// ListByStudy returns every insight owned by a study, ranked order first.
func (r *InsightRepository) ListByStudy(ctx context.Context, studyID uuid.UUID) ([]*domain.Insight, error) {
	query := `
		SELECT id, study_id, type, title, description, severity, impact, effort,
		       personas_affected, evidence, rank, created_at
		FROM insights WHERE study_id = $1
		ORDER BY rank ASC NULLS LAST, created_at ASC
	`
	var rows []insightRow
	if err := r.db.SelectContext(ctx, &rows, query, studyID); err != nil {
		return nil, err
	}
	insights := make([]*domain.Insight, len(rows))
	for i, row := range rows {
		in, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		insights[i] = in
	}
	return insights, nil
}

type scoreHistoryRow struct {
	ID           uuid.UUID `db:"id"`
	StudyID      uuid.UUID `db:"study_id"`
	OverallScore int       `db:"overall_score"`
	IssuesCount  int       `db:"issues_count"`
	RecordedAt   time.Time `db:"recorded_at"`
}

func (r *scoreHistoryRow) toDomain() *domain.ScoreHistory {
	return &domain.ScoreHistory{
		ID:           r.ID,
		StudyID:      r.StudyID,
		OverallScore: r.OverallScore,
		IssuesCount:  r.IssuesCount,
		RecordedAt:   r.RecordedAt,
	}
}

// CreateScoreHistory inserts a new score history row, recorded by the
// synthesis step (§4.1 step 10) right after overall_score is persisted.
func (r *InsightRepository) CreateScoreHistory(ctx context.Context, sh *domain.ScoreHistory) error {
	query := `
		INSERT INTO score_history (id, study_id, overall_score, issues_count, recorded_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.ExecContext(ctx, query, sh.ID, sh.StudyID, sh.OverallScore, sh.IssuesCount, sh.RecordedAt)
	return err
}

// ListScoreHistoryByStudy returns a study's score trend across reruns.
func (r *InsightRepository) ListScoreHistoryByStudy(ctx context.Context, studyID uuid.UUID) ([]*domain.ScoreHistory, error) {
	query := `
		SELECT id, study_id, overall_score, issues_count, recorded_at
		FROM score_history WHERE study_id = $1
		ORDER BY recorded_at ASC
	`
	var rows []scoreHistoryRow
	if err := r.db.SelectContext(ctx, &rows, query, studyID); err != nil {
		return nil, err
	}
	out := make([]*domain.ScoreHistory, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}
