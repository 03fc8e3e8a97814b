package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common types used across domain models

// StudyStatus represents the current lifecycle state of a study.
type StudyStatus string

const (
	StudyStatusSetup     StudyStatus = "setup"
	StudyStatusRunning   StudyStatus = "running"
	StudyStatusAnalyzing StudyStatus = "analyzing"
	StudyStatusComplete  StudyStatus = "complete"
	StudyStatusFailed    StudyStatus = "failed"
)

// studyStatusOrder gives the non-terminal happy-path statuses their position
// in the monotone lifecycle. "failed" has no position: it is reachable from
// any non-terminal status and is never a predecessor of anything.
var studyStatusOrder = map[StudyStatus]int{
	StudyStatusSetup:     0,
	StudyStatusRunning:   1,
	StudyStatusAnalyzing: 2,
	StudyStatusComplete:  3,
}

func (s StudyStatus) IsTerminal() bool {
	return s == StudyStatusComplete || s == StudyStatusFailed
}

func (s StudyStatus) IsValid() bool {
	switch s {
	case StudyStatusSetup, StudyStatusRunning, StudyStatusAnalyzing, StudyStatusComplete, StudyStatusFailed:
		return true
	}
	return false
}

// CanTransitionTo enforces the status machine: setup -> running -> analyzing
// -> complete, with "failed" reachable from any non-terminal status. No
// backward edges and no transitions out of a terminal status.
func (s StudyStatus) CanTransitionTo(next StudyStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if next == StudyStatusFailed {
		return true
	}
	from, ok := studyStatusOrder[s]
	if !ok {
		return false
	}
	to, ok := studyStatusOrder[next]
	if !ok {
		return false
	}
	return to == from+1
}

// SessionStatus represents the current lifecycle state of a session.
type SessionStatus string

const (
	SessionStatusPending  SessionStatus = "pending"
	SessionStatusRunning  SessionStatus = "running"
	SessionStatusComplete SessionStatus = "complete"
	SessionStatusFailed   SessionStatus = "failed"
	SessionStatusGaveUp   SessionStatus = "gave_up"
)

func (s SessionStatus) IsTerminal() bool {
	switch s {
	case SessionStatusComplete, SessionStatusFailed, SessionStatusGaveUp:
		return true
	}
	return false
}

func (s SessionStatus) IsValid() bool {
	switch s {
	case SessionStatusPending, SessionStatusRunning, SessionStatusComplete, SessionStatusFailed, SessionStatusGaveUp:
		return true
	}
	return false
}

// DevicePreference is a persona's preferred device class for a session.
type DevicePreference string

const (
	DevicePreferenceDesktop DevicePreference = "desktop"
	DevicePreferenceMobile  DevicePreference = "mobile"
	DevicePreferenceTablet  DevicePreference = "tablet"
)

func (d DevicePreference) IsValid() bool {
	switch d {
	case DevicePreferenceDesktop, DevicePreferenceMobile, DevicePreferenceTablet:
		return true
	}
	return false
}

// ActionType is the tagged variant of a navigator decision's chosen action.
type ActionType string

const (
	ActionClick  ActionType = "click"
	ActionFill   ActionType = "fill"
	ActionSelect ActionType = "select"
	ActionScroll ActionType = "scroll"
	ActionWait   ActionType = "wait"
	ActionGoto   ActionType = "goto"
	ActionBack   ActionType = "back"
	ActionSubmit ActionType = "submit"
	ActionGiveUp ActionType = "give_up"
	ActionDone   ActionType = "done"
)

func (a ActionType) IsValid() bool {
	switch a {
	case ActionClick, ActionFill, ActionSelect, ActionScroll, ActionWait,
		ActionGoto, ActionBack, ActionSubmit, ActionGiveUp, ActionDone:
		return true
	}
	return false
}

// IsTerminal reports whether the action ends the session's navigation loop.
func (a ActionType) IsTerminal() bool {
	return a == ActionGiveUp || a == ActionDone
}

// EmotionalState is the persona's self-reported affect at a given step.
type EmotionalState string

const (
	EmotionCurious    EmotionalState = "curious"
	EmotionConfident  EmotionalState = "confident"
	EmotionConfused   EmotionalState = "confused"
	EmotionFrustrated EmotionalState = "frustrated"
	EmotionAnxious    EmotionalState = "anxious"
	EmotionSatisfied  EmotionalState = "satisfied"
	EmotionNeutral    EmotionalState = "neutral"
)

func (e EmotionalState) IsValid() bool {
	switch e {
	case EmotionCurious, EmotionConfident, EmotionConfused, EmotionFrustrated,
		EmotionAnxious, EmotionSatisfied, EmotionNeutral:
		return true
	}
	return false
}

// IsFrustrationFamily groups the states that count toward a "frustration peak" page.
func (e EmotionalState) IsFrustrationFamily() bool {
	switch e {
	case EmotionFrustrated, EmotionAnxious, EmotionConfused:
		return true
	}
	return false
}

// Severity ranks an Issue. Lower rank is more severe.
type Severity string

const (
	SeverityCritical    Severity = "critical"
	SeverityMajor       Severity = "major"
	SeverityMinor       Severity = "minor"
	SeverityEnhancement Severity = "enhancement"
)

var severityRank = map[Severity]int{
	SeverityCritical:    0,
	SeverityMajor:       1,
	SeverityMinor:       2,
	SeverityEnhancement: 3,
}

// SeverityBaseScore mirrors the prioritizer's fixed base-score table.
var SeverityBaseScore = map[Severity]int{
	SeverityCritical:    40,
	SeverityMajor:       25,
	SeverityMinor:       10,
	SeverityEnhancement: 5,
}

func (s Severity) IsValid() bool {
	_, ok := severityRank[s]
	return ok
}

// Rank returns the severity's ordering rank; unknown severities sort last.
func (s Severity) Rank() int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return len(severityRank)
}

// MoreSevereThan reports whether s outranks other (lower rank wins).
func (s Severity) MoreSevereThan(other Severity) bool {
	return s.Rank() < other.Rank()
}

// IssueType categorizes an Issue by the kind of problem observed.
type IssueType string

const (
	IssueTypeUX            IssueType = "ux"
	IssueTypeAccessibility IssueType = "accessibility"
	IssueTypeError         IssueType = "error"
	IssueTypePerformance   IssueType = "performance"
)

func (t IssueType) IsValid() bool {
	switch t {
	case IssueTypeUX, IssueTypeAccessibility, IssueTypeError, IssueTypePerformance:
		return true
	}
	return false
}

// InsightType categorizes a synthesized cross-session Insight.
type InsightType string

const (
	InsightUniversal       InsightType = "universal"
	InsightPersonaSpecific InsightType = "persona_specific"
	InsightComparative     InsightType = "comparative"
	InsightRecommendation  InsightType = "recommendation"
)

func (t InsightType) IsValid() bool {
	switch t {
	case InsightUniversal, InsightPersonaSpecific, InsightComparative, InsightRecommendation:
		return true
	}
	return false
}

// BrowserMode selects where a session's browser context is hosted.
type BrowserMode string

const (
	BrowserModeLocal BrowserMode = "local"
	BrowserModeCloud BrowserMode = "cloud"
)

func (m BrowserMode) IsValid() bool {
	return m == BrowserModeLocal || m == BrowserModeCloud
}

// Timestamps provides common time fields
type Timestamps struct {
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// SetTimestamps sets CreatedAt and UpdatedAt to current time
func (t *Timestamps) SetTimestamps() {
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
}

// JSONB is a wrapper for JSON data stored in PostgreSQL JSONB columns
type JSONB map[string]any

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value any) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, j)
}

// NullUUID wraps uuid.UUID for nullable UUID fields
type NullUUID struct {
	UUID  uuid.UUID
	Valid bool
}

func (n NullUUID) Value() (driver.Value, error) {
	if !n.Valid {
		return nil, nil
	}
	return n.UUID.String(), nil
}

func (n *NullUUID) Scan(value any) error {
	if value == nil {
		n.UUID, n.Valid = uuid.Nil, false
		return nil
	}
	n.Valid = true
	switch v := value.(type) {
	case string:
		var err error
		n.UUID, err = uuid.Parse(v)
		return err
	case []byte:
		var err error
		n.UUID, err = uuid.Parse(string(v))
		return err
	}
	return errors.New("unsupported type for NullUUID")
}
