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

// SessionRepository persists domain.Session rows.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new session repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

type sessionRow struct {
	ID            uuid.UUID `db:"id"`
	StudyID       uuid.UUID `db:"study_id"`
	PersonaID     uuid.UUID `db:"persona_id"`
	TaskID        uuid.UUID `db:"task_id"`
	Status        string    `db:"status"`
	TotalSteps    int       `db:"total_steps"`
	TaskCompleted bool      `db:"task_completed"`
	Summary       string    `db:"summary"`
	EmotionalArc  []byte    `db:"emotional_arc"`
	UXScore       *int      `db:"ux_score"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (r *sessionRow) toDomain() (*domain.Session, error) {
	s := &domain.Session{
		ID:            r.ID,
		StudyID:       r.StudyID,
		PersonaID:     r.PersonaID,
		TaskID:        r.TaskID,
		Status:        domain.SessionStatus(r.Status),
		TotalSteps:    r.TotalSteps,
		TaskCompleted: r.TaskCompleted,
		Summary:       r.Summary,
		UXScore:       r.UXScore,
		Timestamps: domain.Timestamps{
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt,
		},
	}
	if r.EmotionalArc != nil {
		var arc domain.JSONB
		if err := json.Unmarshal(r.EmotionalArc, &arc); err != nil {
			return nil, err
		}
		s.EmotionalArc = arc
	}
	return s, nil
}

// Create inserts a new session.
func (r *SessionRepository) Create(ctx context.Context, s *domain.Session) error {
	query := `
		INSERT INTO sessions (
			id, study_id, persona_id, task_id, status, total_steps,
			task_completed, summary, emotional_arc, ux_score, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.ExecContext(ctx, query,
		s.ID, s.StudyID, s.PersonaID, s.TaskID, string(s.Status), s.TotalSteps,
		s.TaskCompleted, s.Summary, nil, s.UXScore, s.CreatedAt, s.UpdatedAt,
	)
	return err
}

// GetByID retrieves a session by ID.
func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	query := `
		SELECT id, study_id, persona_id, task_id, status, total_steps,
		       task_completed, summary, emotional_arc, ux_score, created_at, updated_at
		FROM sessions WHERE id = $1
	`
	var row sessionRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSessionNotFound(id.String())
		}
		return nil, err
	}
	return row.toDomain()
}

// GetByPersonaAndTask finds an existing session for a (persona, task) pair,
// used by the Orchestrator's reuse-or-create fan-out step (§4.1 step 4).
func (r *SessionRepository) GetByPersonaAndTask(ctx context.Context, personaID, taskID uuid.UUID) (*domain.Session, error) {
	query := `
		SELECT id, study_id, persona_id, task_id, status, total_steps,
		       task_completed, summary, emotional_arc, ux_score, created_at, updated_at
		FROM sessions WHERE persona_id = $1 AND task_id = $2
	`
	var row sessionRow
	if err := r.db.GetContext(ctx, &row, query, personaID, taskID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return row.toDomain()
}

// ListByStudy returns every session owned by a study.
func (r *SessionRepository) ListByStudy(ctx context.Context, studyID uuid.UUID) ([]*domain.Session, error) {
	query := `
		SELECT id, study_id, persona_id, task_id, status, total_steps,
		       task_completed, summary, emotional_arc, ux_score, created_at, updated_at
		FROM sessions WHERE study_id = $1
		ORDER BY created_at ASC
	`
	var rows []sessionRow
	if err := r.db.SelectContext(ctx, &rows, query, studyID); err != nil {
		return nil, err
	}
	sessions := make([]*domain.Session, len(rows))
	for i, row := range rows {
		s, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		sessions[i] = s
	}
	return sessions, nil
}

// Update persists a session's mutable fields (status, progress, summary,
// score). Invariant: total_steps must equal the count of the session's Steps
// at every terminal transition (§8 property #1) — enforced by callers in
// internal/recorder, which increments total_steps alongside each Step insert.
func (r *SessionRepository) Update(ctx context.Context, s *domain.Session) error {
	var emotionalArc interface{}
	if s.EmotionalArc != nil {
		data, err := json.Marshal(s.EmotionalArc)
		if err != nil {
			return err
		}
		emotionalArc = data
	}

	query := `
		UPDATE sessions
		SET status = $2, total_steps = $3, task_completed = $4, summary = $5,
		    emotional_arc = $6, ux_score = $7, updated_at = $8
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query,
		s.ID, string(s.Status), s.TotalSteps, s.TaskCompleted, s.Summary,
		emotionalArc, s.UXScore, time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrSessionNotFound(s.ID.String())
	}
	return nil
}

// IncrementTotalSteps atomically bumps total_steps by one, used by the Step
// Recorder after each committed Step insert so the invariant in §8 property
// #1 holds without a read-modify-write race across concurrent sessions.
func (r *SessionRepository) IncrementTotalSteps(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE sessions SET total_steps = total_steps + 1, updated_at = $2 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	return err
}

// CountGaveUp counts sessions in a study that ended gave_up, used by the
// Prioritizer's "caused give-up" signal (§4.6).
func (r *SessionRepository) CountGaveUp(ctx context.Context, studyID uuid.UUID) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM sessions WHERE study_id = $1 AND status = $2`
	err := r.db.GetContext(ctx, &count, query, studyID, string(domain.SessionStatusGaveUp))
	return count, err
}
