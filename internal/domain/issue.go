package domain

import (
	"time"

	"github.com/google/uuid"
)

// Issue is a usability problem observed during navigation (inline detection)
// or analysis (vision pass). Created during either phase, scored by the
// Prioritizer.
type Issue struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	StudyID        uuid.UUID  `json:"study_id" db:"study_id"`
	SessionID      uuid.UUID  `json:"session_id" db:"session_id"`
	StepID         *uuid.UUID `json:"step_id,omitempty" db:"step_id"`
	Element        string     `json:"element,omitempty" db:"element"`
	Description    string     `json:"description" db:"description"`
	Severity       Severity   `json:"severity" db:"severity"`
	IssueType      IssueType  `json:"issue_type" db:"issue_type"`
	Heuristic      string     `json:"heuristic,omitempty" db:"heuristic"`
	WCAGCriterion  string     `json:"wcag_criterion,omitempty" db:"wcag_criterion"`
	Recommendation string     `json:"recommendation,omitempty" db:"recommendation"`
	PageURL        string     `json:"page_url,omitempty" db:"page_url"`
	TimesSeen      int        `json:"times_seen" db:"times_seen"`
	IsRegression   bool       `json:"is_regression" db:"is_regression"`
	PriorityScore  float64    `json:"priority_score" db:"priority_score"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// NewIssue constructs an Issue with times_seen initialized to 1, per §3.
func NewIssue(studyID, sessionID uuid.UUID, description string, severity Severity, issueType IssueType) *Issue {
	now := time.Now().UTC()
	return &Issue{
		ID:          uuid.New(),
		StudyID:     studyID,
		SessionID:   sessionID,
		Description: description,
		Severity:    severity,
		IssueType:   issueType,
		TimesSeen:   1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// GroupKey is this issue's Prioritizer aggregation key (§4.6):
// lower(page_url) + "|" + lower(element[:50]) + "|" + lower(description[:80]).
func (i *Issue) GroupKey() string {
	return IssueKey(i.PageURL, i.Element, i.Description, true)
}

// DedupKey is this issue's within-session Analyzer dedup key (§4.6):
// lower(element[:50]) + ":" + lower(description[:50]).
func (i *Issue) DedupKey() string {
	return IssueKey("", i.Element, i.Description, false)
}
