package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Session is one persona attempting one task in one browser context. There
// is exactly one session per (persona, task) pair. It exclusively owns its
// Steps; Persona/Task back-references are non-owning.
type Session struct {
	ID            uuid.UUID     `json:"id" db:"id"`
	StudyID       uuid.UUID     `json:"study_id" db:"study_id"`
	PersonaID     uuid.UUID     `json:"persona_id" db:"persona_id"`
	TaskID        uuid.UUID     `json:"task_id" db:"task_id"`
	Status        SessionStatus `json:"status" db:"status"`
	TotalSteps    int           `json:"total_steps" db:"total_steps"`
	TaskCompleted bool          `json:"task_completed" db:"task_completed"`
	Summary       string        `json:"summary,omitempty" db:"summary"`
	EmotionalArc  JSONB         `json:"emotional_arc,omitempty" db:"emotional_arc"`
	UXScore       *int          `json:"ux_score,omitempty" db:"ux_score"`

	Timestamps
}

// NewSession constructs a Session in "pending" status for the given persona/task pair.
func NewSession(studyID, personaID, taskID uuid.UUID) *Session {
	s := &Session{
		ID:        uuid.New(),
		StudyID:   studyID,
		PersonaID: personaID,
		TaskID:    taskID,
		Status:    SessionStatusPending,
	}
	s.SetTimestamps()
	return s
}

// Step is one decide->act->observe iteration within a session. Append-only;
// step_number is strictly increasing and unique within the session.
type Step struct {
	ID             uuid.UUID `json:"id" db:"id"`
	SessionID      uuid.UUID `json:"session_id" db:"session_id"`
	StepNumber     int       `json:"step_number" db:"step_number"`
	PageURL        string    `json:"page_url" db:"page_url"`
	PageTitle      string    `json:"page_title,omitempty" db:"page_title"`
	ScreenshotRef  string    `json:"screenshot_ref,omitempty" db:"screenshot_ref"`
	ThinkAloud     string    `json:"think_aloud,omitempty" db:"think_aloud"`

	ActionType     ActionType `json:"action_type" db:"action_type"`
	ActionSelector string     `json:"action_selector,omitempty" db:"action_selector"`
	ActionValue    string     `json:"action_value,omitempty" db:"action_value"`

	Confidence     float64        `json:"confidence" db:"confidence"`
	TaskProgress   int            `json:"task_progress" db:"task_progress"`
	EmotionalState EmotionalState `json:"emotional_state" db:"emotional_state"`

	ClickX *int `json:"click_x,omitempty" db:"click_x"`
	ClickY *int `json:"click_y,omitempty" db:"click_y"`

	ViewportW int `json:"viewport_w" db:"viewport_w"`
	ViewportH int `json:"viewport_h" db:"viewport_h"`

	ScrollY    *int `json:"scroll_y,omitempty" db:"scroll_y"`
	MaxScrollY *int `json:"max_scroll_y,omitempty" db:"max_scroll_y"`

	LoadTimeMs   *int `json:"load_time_ms,omitempty" db:"load_time_ms"`
	FirstPaintMs *int `json:"first_paint_ms,omitempty" db:"first_paint_ms"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Action is the tagged-variant decision payload the Navigator acts on. It is
// the in-memory counterpart of Step's flattened ActionType/Selector/Value
// columns, used between the decision step and the step-recorder insert.
type Action struct {
	Type        ActionType `json:"type"`
	Selector    string     `json:"selector,omitempty"`
	Value       string     `json:"value,omitempty"`
	Description string     `json:"description,omitempty"`
}

// Validate checks that the action carries the fields its variant requires,
// per §9's "per-variant required fields" dynamic-dispatch contract.
func (a Action) Validate() error {
	if !a.Type.IsValid() {
		return ErrLLMSchema(fmt.Sprintf("unknown action type %q", a.Type), nil)
	}
	switch a.Type {
	case ActionClick, ActionScroll:
		if a.Selector == "" {
			return ErrLLMSchema(fmt.Sprintf("action %q requires a selector", a.Type), nil)
		}
	case ActionFill, ActionSelect:
		if a.Selector == "" || a.Value == "" {
			return ErrLLMSchema(fmt.Sprintf("action %q requires a selector and a value", a.Type), nil)
		}
	case ActionGoto:
		if a.Value == "" {
			return ErrLLMSchema("action \"goto\" requires a value (the destination URL)", nil)
		}
	}
	return nil
}

// PeakFrustrationPage scans an ordered (page_url, emotional_state) arc and
// returns the URL with the longest consecutive run of frustration-family
// states, per §4.2 "Emotional arc".
func PeakFrustrationPage(arc []EmotionalArcEntry) string {
	var (
		bestURL string
		bestRun int
		curURL  string
		curRun  int
	)
	for _, e := range arc {
		if e.EmotionalState.IsFrustrationFamily() {
			if e.PageURL == curURL {
				curRun++
			} else {
				curURL, curRun = e.PageURL, 1
			}
			if curRun > bestRun {
				bestRun, bestURL = curRun, curURL
			}
		} else {
			curURL, curRun = "", 0
		}
	}
	return bestURL
}

// EmotionalArcEntry is one point in a session's emotional arc timeline.
type EmotionalArcEntry struct {
	StepNumber     int            `json:"step_number"`
	PageURL        string         `json:"page_url"`
	EmotionalState EmotionalState `json:"emotional_state"`
}

// IssueKey computes the normalized grouping key used both by the Analyzer's
// within-session dedup and the Prioritizer's cross-session aggregation.
// full=true uses the Prioritizer's 3-part key (page_url|element|description);
// false uses the Analyzer's 2-part key (element:description).
func IssueKey(pageURL, element, description string, full bool) string {
	el := truncateLower(element, 50)
	if full {
		return fmt.Sprintf("%s|%s|%s", strings.ToLower(strings.TrimSpace(pageURL)), el, truncateLower(description, 80))
	}
	return fmt.Sprintf("%s:%s", el, truncateLower(description, 50))
}

func truncateLower(s string, n int) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) > n {
		s = s[:n]
	}
	return s
}
