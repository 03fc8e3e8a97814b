package domain

import (
	"time"

	"github.com/google/uuid"
)

// Study is the top-level unit of work: one usability study of one site.
// It exclusively owns its Tasks, Personas, Sessions, Issues, and Insights;
// deleting a study cascades. Mutated only by the Orchestrator.
type Study struct {
	ID               uuid.UUID `json:"id" db:"id"`
	URL              string    `json:"url" db:"url"`
	StartingPath     string    `json:"starting_path" db:"starting_path"`
	Status           StudyStatus `json:"status" db:"status"`
	StartedAt        *time.Time `json:"started_at,omitempty" db:"started_at"`
	DurationSeconds  *float64  `json:"duration_seconds,omitempty" db:"duration_seconds"`
	OverallScore     *int      `json:"overall_score,omitempty" db:"overall_score"`
	ExecutiveSummary string    `json:"executive_summary,omitempty" db:"executive_summary"`
	CostBreakdown    JSONB     `json:"cost_breakdown,omitempty" db:"cost_breakdown"`
	Error            string    `json:"error,omitempty" db:"error"`

	Timestamps
}

// NewStudy constructs a Study in its initial "setup" status.
func NewStudy(url, startingPath string) *Study {
	s := &Study{
		ID:           uuid.New(),
		URL:          url,
		StartingPath: startingPath,
		Status:       StudyStatusSetup,
	}
	s.SetTimestamps()
	return s
}

// TransitionTo validates and applies a status transition, per the monotone
// lifecycle invariant in §3 of the data model.
func (s *Study) TransitionTo(next StudyStatus) error {
	if !s.Status.CanTransitionTo(next) {
		return ErrInvalidStatusTransition("study", string(s.Status), string(next))
	}
	s.Status = next
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// Task is one instruction given to every persona in a study. Immutable
// after study creation.
type Task struct {
	ID          uuid.UUID `json:"id" db:"id"`
	StudyID     uuid.UUID `json:"study_id" db:"study_id"`
	Description string    `json:"description" db:"description"`
	OrderIndex  int       `json:"order_index" db:"order_index"`

	Timestamps
}

// NewTask constructs a Task owned by the given study.
func NewTask(studyID uuid.UUID, description string, orderIndex int) *Task {
	t := &Task{
		ID:          uuid.New(),
		StudyID:     studyID,
		Description: description,
		OrderIndex:  orderIndex,
	}
	t.SetTimestamps()
	return t
}

// PersonaProfile is the semi-structured persona description the navigator
// and LLM prompts consume. Stored as JSONB.
type PersonaProfile struct {
	Name                string            `json:"name"`
	Emoji               string            `json:"emoji,omitempty"`
	TechLiteracy        int               `json:"tech_literacy"`
	Patience            int               `json:"patience"`
	ReadingSpeed        int               `json:"reading_speed"`
	Trust               int               `json:"trust"`
	Goals               []string          `json:"goals,omitempty"`
	Frustrations        []string          `json:"frustrations,omitempty"`
	AccessibilityNeeds  []string          `json:"accessibility_needs,omitempty"`
	DevicePreference    DevicePreference  `json:"device_preference"`
}

// ToJSONB marshals the profile into the domain.JSONB shape used for storage.
func (p PersonaProfile) ToJSONB() JSONB {
	return JSONB{
		"name":                p.Name,
		"emoji":               p.Emoji,
		"tech_literacy":       p.TechLiteracy,
		"patience":            p.Patience,
		"reading_speed":       p.ReadingSpeed,
		"trust":               p.Trust,
		"goals":               p.Goals,
		"frustrations":        p.Frustrations,
		"accessibility_needs": p.AccessibilityNeeds,
		"device_preference":   string(p.DevicePreference),
	}
}

// Persona is one simulated user attempting tasks in a study. Created at
// study setup and immutable thereafter.
type Persona struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	StudyID     uuid.UUID  `json:"study_id" db:"study_id"`
	TemplateID  *uuid.UUID `json:"template_id,omitempty" db:"template_id"`
	Profile     JSONB      `json:"profile" db:"profile"`
	ModelChoice string     `json:"model_choice" db:"model_choice"`

	Timestamps
}

// NewPersona constructs a Persona owned by the given study.
func NewPersona(studyID uuid.UUID, profile PersonaProfile, modelChoice string) *Persona {
	p := &Persona{
		ID:          uuid.New(),
		StudyID:     studyID,
		Profile:     profile.ToJSONB(),
		ModelChoice: modelChoice,
	}
	p.SetTimestamps()
	return p
}
