package domain

import (
	"testing"

	"github.com/google/uuid"
)

func TestNewInsight(t *testing.T) {
	i := NewInsight(uuid.New(), InsightUniversal, "Checkout friction", "Most personas stalled at payment")
	if i.Type != InsightUniversal {
		t.Errorf("NewInsight() type = %v, want universal", i.Type)
	}
	if i.CreatedAt.IsZero() {
		t.Error("NewInsight() should set CreatedAt")
	}
}

func TestNewScoreHistory(t *testing.T) {
	sh := NewScoreHistory(uuid.New(), 82, 5)
	if sh.OverallScore != 82 || sh.IssuesCount != 5 {
		t.Errorf("NewScoreHistory() = %+v, want score=82 issues=5", sh)
	}
}
