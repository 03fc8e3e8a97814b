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

// ScheduleRepository persists domain.Schedule rows that drive
// check_schedules_task (§4.7).
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository creates a new schedule repository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

type scheduleRow struct {
	ID               uuid.UUID  `db:"id"`
	Name             string     `db:"name"`
	URL              string     `db:"url"`
	StartingPath     string     `db:"starting_path"`
	TaskDescriptions []byte     `db:"task_descriptions"`
	PersonaProfiles  []byte     `db:"persona_profiles"`
	CronExpression   string     `db:"cron_expression"`
	Status           string     `db:"status"`
	LastRunAt        *time.Time `db:"last_run_at"`
	NextRunAt        *time.Time `db:"next_run_at"`
	LastStudyID      *uuid.UUID `db:"last_study_id"`
	RunCount         int        `db:"run_count"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
	DeletedAt        *time.Time `db:"deleted_at"`
}

func (r *scheduleRow) toDomain() (*domain.Schedule, error) {
	s := &domain.Schedule{
		ID:             r.ID,
		Name:           r.Name,
		URL:            r.URL,
		StartingPath:   r.StartingPath,
		CronExpression: r.CronExpression,
		Status:         domain.ScheduleStatus(r.Status),
		LastRunAt:      r.LastRunAt,
		NextRunAt:      r.NextRunAt,
		LastStudyID:    r.LastStudyID,
		RunCount:       r.RunCount,
		Timestamps: domain.Timestamps{
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt,
			DeletedAt: r.DeletedAt,
		},
	}
	if r.TaskDescriptions != nil {
		if err := json.Unmarshal(r.TaskDescriptions, &s.TaskDescriptions); err != nil {
			return nil, err
		}
	}
	if r.PersonaProfiles != nil {
		if err := json.Unmarshal(r.PersonaProfiles, &s.PersonaProfiles); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Create inserts a new schedule.
func (r *ScheduleRepository) Create(ctx context.Context, s *domain.Schedule) error {
	tasks, err := json.Marshal(s.TaskDescriptions)
	if err != nil {
		return err
	}
	personas, err := json.Marshal(s.PersonaProfiles)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO schedules (
			id, name, url, starting_path, task_descriptions, persona_profiles,
			cron_expression, status, last_run_at, next_run_at, last_study_id,
			run_count, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err = r.db.ExecContext(ctx, query,
		s.ID, s.Name, s.URL, s.StartingPath, tasks, personas,
		s.CronExpression, string(s.Status), s.LastRunAt, s.NextRunAt, s.LastStudyID,
		s.RunCount, s.CreatedAt, s.UpdatedAt,
	)
	return err
}

// GetByID retrieves a schedule by ID.
func (r *ScheduleRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Schedule, error) {
	query := `
		SELECT id, name, url, starting_path, task_descriptions, persona_profiles,
		       cron_expression, status, last_run_at, next_run_at, last_study_id,
		       run_count, created_at, updated_at, deleted_at
		FROM schedules WHERE id = $1 AND deleted_at IS NULL
	`
	var row scheduleRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound("schedule", id.String())
		}
		return nil, err
	}
	return row.toDomain()
}

// ListDue returns every active schedule whose next_run_at has passed,
// the working set for check_schedules_task's polling pass (§4.7).
func (r *ScheduleRepository) ListDue(ctx context.Context, now time.Time) ([]*domain.Schedule, error) {
	query := `
		SELECT id, name, url, starting_path, task_descriptions, persona_profiles,
		       cron_expression, status, last_run_at, next_run_at, last_study_id,
		       run_count, created_at, updated_at, deleted_at
		FROM schedules
		WHERE deleted_at IS NULL AND status = $1 AND next_run_at IS NOT NULL AND next_run_at <= $2
		ORDER BY next_run_at ASC
	`
	var rows []scheduleRow
	if err := r.db.SelectContext(ctx, &rows, query, string(domain.ScheduleStatusActive), now); err != nil {
		return nil, err
	}
	schedules := make([]*domain.Schedule, len(rows))
	for i, row := range rows {
		s, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		schedules[i] = s
	}
	return schedules, nil
}

// ListAll returns every non-deleted schedule, oldest first.
func (r *ScheduleRepository) ListAll(ctx context.Context) ([]*domain.Schedule, error) {
	query := `
		SELECT id, name, url, starting_path, task_descriptions, persona_profiles,
		       cron_expression, status, last_run_at, next_run_at, last_study_id,
		       run_count, created_at, updated_at, deleted_at
		FROM schedules WHERE deleted_at IS NULL
		ORDER BY created_at ASC
	`
	var rows []scheduleRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, err
	}
	schedules := make([]*domain.Schedule, len(rows))
	for i, row := range rows {
		s, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		schedules[i] = s
	}
	return schedules, nil
}

// MarkRun stamps last_run_at to now, advances next_run_at to the given
// time, records the study created for this run, and increments run_count —
// called by check_schedules_task's ValidateAndAdvanceSchedule activity once
// that study's rows exist, before run_study_task is started for it (§4.7).
func (r *ScheduleRepository) MarkRun(ctx context.Context, id uuid.UUID, ranAt, nextRunAt time.Time, studyID uuid.UUID) error {
	query := `
		UPDATE schedules
		SET last_run_at = $2, next_run_at = $3, last_study_id = $4, run_count = run_count + 1, updated_at = $2
		WHERE id = $1 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, id, ranAt, nextRunAt, studyID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFound("schedule", id.String())
	}
	return nil
}

// Quarantine transitions a schedule to paused after its cron expression
// failed to parse (§4.7).
func (r *ScheduleRepository) Quarantine(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE schedules SET status = $2, updated_at = $3 WHERE id = $1 AND deleted_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, id, string(domain.ScheduleStatusPaused), time.Now().UTC())
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFound("schedule", id.String())
	}
	return nil
}

// Delete soft-deletes a schedule.
func (r *ScheduleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE schedules SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFound("schedule", id.String())
	}
	return nil
}
