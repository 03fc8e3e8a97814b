package domain

import (
	"testing"

	"github.com/google/uuid"
)

func TestNewIssue(t *testing.T) {
	i := NewIssue(uuid.New(), uuid.New(), "button is unreadable", SeverityMajor, IssueTypeAccessibility)
	if i.TimesSeen != 1 {
		t.Errorf("NewIssue() TimesSeen = %d, want 1", i.TimesSeen)
	}
	if i.IsRegression {
		t.Error("NewIssue() should not default to a regression")
	}
}

func TestIssue_GroupKey(t *testing.T) {
	i := &Issue{PageURL: "/checkout", Element: "Submit", Description: "unresponsive button"}
	if got, want := i.GroupKey(), IssueKey("/checkout", "Submit", "unresponsive button", true); got != want {
		t.Errorf("GroupKey() = %q, want %q", got, want)
	}
}

func TestIssue_DedupKey(t *testing.T) {
	i := &Issue{Element: "Submit", Description: "unresponsive button"}
	if got, want := i.DedupKey(), IssueKey("", "Submit", "unresponsive button", false); got != want {
		t.Errorf("DedupKey() = %q, want %q", got, want)
	}
}
