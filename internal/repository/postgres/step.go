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

// StepRepository persists domain.Step rows. Steps are append-only; the
// unique constraint on (session_id, step_number) gives the Step Recorder
// its at-most-once insertion guarantee (§4.3).
type StepRepository struct {
	db *sqlx.DB
}

// NewStepRepository creates a new step repository.
func NewStepRepository(db *sqlx.DB) *StepRepository {
	return &StepRepository{db: db}
}

type stepRow struct {
	ID             uuid.UUID `db:"id"`
	SessionID      uuid.UUID `db:"session_id"`
	StepNumber     int       `db:"step_number"`
	PageURL        string    `db:"page_url"`
	PageTitle      string    `db:"page_title"`
	ScreenshotRef  string    `db:"screenshot_ref"`
	ThinkAloud     string    `db:"think_aloud"`
	ActionType     string    `db:"action_type"`
	ActionSelector string    `db:"action_selector"`
	ActionValue    string    `db:"action_value"`
	Confidence     float64   `db:"confidence"`
	TaskProgress   int       `db:"task_progress"`
	EmotionalState string    `db:"emotional_state"`
	ClickX         *int      `db:"click_x"`
	ClickY         *int      `db:"click_y"`
	ViewportW      int       `db:"viewport_w"`
	ViewportH      int       `db:"viewport_h"`
	ScrollY        *int      `db:"scroll_y"`
	MaxScrollY     *int      `db:"max_scroll_y"`
	LoadTimeMs     *int      `db:"load_time_ms"`
	FirstPaintMs   *int      `db:"first_paint_ms"`
	CreatedAt      time.Time `db:"created_at"`
}

func (r *stepRow) toDomain() *domain.Step {
	return &domain.Step{
		ID:             r.ID,
		SessionID:      r.SessionID,
		StepNumber:     r.StepNumber,
		PageURL:        r.PageURL,
		PageTitle:      r.PageTitle,
		ScreenshotRef:  r.ScreenshotRef,
		ThinkAloud:     r.ThinkAloud,
		ActionType:     domain.ActionType(r.ActionType),
		ActionSelector: r.ActionSelector,
		ActionValue:    r.ActionValue,
		Confidence:     r.Confidence,
		TaskProgress:   r.TaskProgress,
		EmotionalState: domain.EmotionalState(r.EmotionalState),
		ClickX:         r.ClickX,
		ClickY:         r.ClickY,
		ViewportW:      r.ViewportW,
		ViewportH:      r.ViewportH,
		ScrollY:        r.ScrollY,
		MaxScrollY:     r.MaxScrollY,
		LoadTimeMs:     r.LoadTimeMs,
		FirstPaintMs:   r.FirstPaintMs,
		CreatedAt:      r.CreatedAt,
	}
}

// Create inserts a new step. Returns a conflict domain.AppError
// (ErrCodeConflict) if (session_id, step_number) already exists — the
// at-most-once insertion guarantee §4.3 relies on.
func (r *StepRepository) Create(ctx context.Context, s *domain.Step) error {
	query := `
		INSERT INTO steps (
			id, session_id, step_number, page_url, page_title, screenshot_ref, think_aloud,
			action_type, action_selector, action_value, confidence, task_progress, emotional_state,
			click_x, click_y, viewport_w, viewport_h, scroll_y, max_scroll_y,
			load_time_ms, first_paint_ms, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
	`
	_, err := r.db.ExecContext(ctx, query,
		s.ID, s.SessionID, s.StepNumber, s.PageURL, s.PageTitle, s.ScreenshotRef, s.ThinkAloud,
		string(s.ActionType), s.ActionSelector, s.ActionValue, s.Confidence, s.TaskProgress, string(s.EmotionalState),
		s.ClickX, s.ClickY, s.ViewportW, s.ViewportH, s.ScrollY, s.MaxScrollY,
		s.LoadTimeMs, s.FirstPaintMs, s.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict("step already recorded for this session at this step_number")
		}
		return err
	}
	return nil
}

// ListBySession returns every step of a session in increasing step_number
// order, satisfying §8 property #2 (contiguous 1..total_steps sequence).
func (r *StepRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*domain.Step, error) {
	query := `
		SELECT id, session_id, step_number, page_url, page_title, screenshot_ref, think_aloud,
		       action_type, action_selector, action_value, confidence, task_progress, emotional_state,
		       click_x, click_y, viewport_w, viewport_h, scroll_y, max_scroll_y,
		       load_time_ms, first_paint_ms, created_at
		FROM steps WHERE session_id = $1
		ORDER BY step_number ASC
	`
	var rows []stepRow
	if err := r.db.SelectContext(ctx, &rows, query, sessionID); err != nil {
		return nil, err
	}
	steps := make([]*domain.Step, len(rows))
	for i, row := range rows {
		steps[i] = row.toDomain()
	}
	return steps, nil
}

// GetByStepNumber retrieves a single step by its (session_id, step_number) key.
func (r *StepRepository) GetByStepNumber(ctx context.Context, sessionID uuid.UUID, stepNumber int) (*domain.Step, error) {
	query := `
		SELECT id, session_id, step_number, page_url, page_title, screenshot_ref, think_aloud,
		       action_type, action_selector, action_value, confidence, task_progress, emotional_state,
		       click_x, click_y, viewport_w, viewport_h, scroll_y, max_scroll_y,
		       load_time_ms, first_paint_ms, created_at
		FROM steps WHERE session_id = $1 AND step_number = $2
	`
	var row stepRow
	if err := r.db.GetContext(ctx, &row, query, sessionID, stepNumber); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound("step", stepNumber)
		}
		return nil, err
	}
	return row.toDomain(), nil
}
