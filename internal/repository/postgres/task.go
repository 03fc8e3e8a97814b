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

// TaskRepository persists domain.Task rows. Tasks are immutable after
// study creation (§3), so this repository exposes only create and read.
type TaskRepository struct {
	db *sqlx.DB
}

// NewTaskRepository creates a new task repository.
func NewTaskRepository(db *sqlx.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

type taskRow struct {
	ID          uuid.UUID `db:"id"`
	StudyID     uuid.UUID `db:"study_id"`
	Description string    `db:"description"`
	OrderIndex  int       `db:"order_index"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r *taskRow) toDomain() *domain.Task {
	return &domain.Task{
		ID:          r.ID,
		StudyID:     r.StudyID,
		Description: r.Description,
		OrderIndex:  r.OrderIndex,
		Timestamps: domain.Timestamps{
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt,
		},
	}
}

// Create inserts a new task.
func (r *TaskRepository) Create(ctx context.Context, t *domain.Task) error {
	query := `
		INSERT INTO tasks (id, study_id, description, order_index, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query, t.ID, t.StudyID, t.Description, t.OrderIndex, t.CreatedAt, t.UpdatedAt)
	return err
}

// GetByID retrieves a task by ID.
func (r *TaskRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	query := `SELECT id, study_id, description, order_index, created_at, updated_at FROM tasks WHERE id = $1`
	var row taskRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound("task", id.String())
		}
		return nil, err
	}
	return row.toDomain(), nil
}

// ListByStudy returns every task owned by a study, ordered by order_index.
func (r *TaskRepository) ListByStudy(ctx context.Context, studyID uuid.UUID) ([]*domain.Task, error) {
	query := `
		SELECT id, study_id, description, order_index, created_at, updated_at
		FROM tasks
		WHERE study_id = $1
		ORDER BY order_index ASC
	`
	var rows []taskRow
	if err := r.db.SelectContext(ctx, &rows, query, studyID); err != nil {
		return nil, err
	}
	tasks := make([]*domain.Task, len(rows))
	for i, row := range rows {
		tasks[i] = row.toDomain()
	}
	return tasks, nil
}
