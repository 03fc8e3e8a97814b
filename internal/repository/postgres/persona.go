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

// PersonaRepository persists domain.Persona rows. Personas are immutable
// after study setup (§3), so this repository exposes only create and read.
type PersonaRepository struct {
	db *sqlx.DB
}

// NewPersonaRepository creates a new persona repository.
func NewPersonaRepository(db *sqlx.DB) *PersonaRepository {
	return &PersonaRepository{db: db}
}

type personaRow struct {
	ID          uuid.UUID  `db:"id"`
	StudyID     uuid.UUID  `db:"study_id"`
	TemplateID  *uuid.UUID `db:"template_id"`
	Profile     []byte     `db:"profile"`
	ModelChoice string     `db:"model_choice"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}

func (r *personaRow) toDomain() (*domain.Persona, error) {
	p := &domain.Persona{
		ID:          r.ID,
		StudyID:     r.StudyID,
		TemplateID:  r.TemplateID,
		ModelChoice: r.ModelChoice,
		Timestamps: domain.Timestamps{
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt,
		},
	}
	if r.Profile != nil {
		var profile domain.JSONB
		if err := json.Unmarshal(r.Profile, &profile); err != nil {
			return nil, err
		}
		p.Profile = profile
	}
	return p, nil
}

// Create inserts a new persona.
func (r *PersonaRepository) Create(ctx context.Context, p *domain.Persona) error {
	var profile interface{}
	if p.Profile != nil {
		data, err := json.Marshal(p.Profile)
		if err != nil {
			return err
		}
		profile = data
	}

	query := `
		INSERT INTO personas (id, study_id, template_id, profile, model_choice, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query, p.ID, p.StudyID, p.TemplateID, profile, p.ModelChoice, p.CreatedAt, p.UpdatedAt)
	return err
}

// GetByID retrieves a persona by ID.
func (r *PersonaRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Persona, error) {
	query := `
		SELECT id, study_id, template_id, profile, model_choice, created_at, updated_at
		FROM personas WHERE id = $1
	`
	var row personaRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound("persona", id.String())
		}
		return nil, err
	}
	return row.toDomain()
}

// ListByStudy returns every persona owned by a study.
func (r *PersonaRepository) ListByStudy(ctx context.Context, studyID uuid.UUID) ([]*domain.Persona, error) {
	query := `
		SELECT id, study_id, template_id, profile, model_choice, created_at, updated_at
		FROM personas WHERE study_id = $1
		ORDER BY created_at ASC
	`
	var rows []personaRow
	if err := r.db.SelectContext(ctx, &rows, query, studyID); err != nil {
		return nil, err
	}
	personas := make([]*domain.Persona, len(rows))
	for i, row := range rows {
		p, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		personas[i] = p
	}
	return personas, nil
}
