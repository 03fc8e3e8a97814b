package domain

import (
	"time"

	"github.com/google/uuid"
)

// Insight is a cross-session finding produced by the Synthesizer. A fresh
// Synthesizer run replaces all prior insights for the study.
type Insight struct {
	ID               uuid.UUID   `json:"id" db:"id"`
	StudyID          uuid.UUID   `json:"study_id" db:"study_id"`
	Type             InsightType `json:"type" db:"type"`
	Title            string      `json:"title" db:"title"`
	Description      string      `json:"description" db:"description"`
	Severity         *Severity   `json:"severity,omitempty" db:"severity"`
	Impact           string      `json:"impact,omitempty" db:"impact"`
	Effort           string      `json:"effort,omitempty" db:"effort"`
	PersonasAffected JSONB       `json:"personas_affected,omitempty" db:"personas_affected"`
	Evidence         JSONB       `json:"evidence,omitempty" db:"evidence"`
	Rank             *int        `json:"rank,omitempty" db:"rank"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// NewInsight constructs an Insight owned by the given study.
func NewInsight(studyID uuid.UUID, insightType InsightType, title, description string) *Insight {
	return &Insight{
		ID:          uuid.New(),
		StudyID:     studyID,
		Type:        insightType,
		Title:       title,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
}

// ScoreHistory is a per-study historical UX score row, persisted by the
// synthesis step right after overall_score is written, before the
// cost_breakdown step. Supplemented from the
// original Python source's score_history_service.py (see DESIGN.md).
type ScoreHistory struct {
	ID           uuid.UUID `json:"id" db:"id"`
	StudyID      uuid.UUID `json:"study_id" db:"study_id"`
	OverallScore int       `json:"overall_score" db:"overall_score"`
	IssuesCount  int       `json:"issues_count" db:"issues_count"`
	RecordedAt   time.Time `json:"recorded_at" db:"recorded_at"`
}

// NewScoreHistory constructs a ScoreHistory row for the given study.
func NewScoreHistory(studyID uuid.UUID, overallScore, issuesCount int) *ScoreHistory {
	return &ScoreHistory{
		ID:           uuid.New(),
		StudyID:      studyID,
		OverallScore: overallScore,
		IssuesCount:  issuesCount,
		RecordedAt:   time.Now().UTC(),
	}
}
