package domain

import (
	"testing"

	"github.com/google/uuid"
)

func TestAction_Validate(t *testing.T) {
	tests := []struct {
		name    string
		action  Action
		wantErr bool
	}{
		{"valid click", Action{Type: ActionClick, Selector: "#submit"}, false},
		{"click without selector", Action{Type: ActionClick}, true},
		{"valid fill", Action{Type: ActionFill, Selector: "#email", Value: "a@b.com"}, false},
		{"fill without value", Action{Type: ActionFill, Selector: "#email"}, true},
		{"valid goto", Action{Type: ActionGoto, Value: "https://example.com"}, false},
		{"goto without value", Action{Type: ActionGoto}, true},
		{"valid done", Action{Type: ActionDone}, false},
		{"valid give_up", Action{Type: ActionGiveUp}, false},
		{"unknown action type", Action{Type: ActionType("hover")}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.action.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPeakFrustrationPage(t *testing.T) {
	arc := []EmotionalArcEntry{
		{StepNumber: 1, PageURL: "/home", EmotionalState: EmotionCurious},
		{StepNumber: 2, PageURL: "/checkout", EmotionalState: EmotionFrustrated},
		{StepNumber: 3, PageURL: "/checkout", EmotionalState: EmotionAnxious},
		{StepNumber: 4, PageURL: "/checkout", EmotionalState: EmotionConfused},
		{StepNumber: 5, PageURL: "/confirm", EmotionalState: EmotionSatisfied},
		{StepNumber: 6, PageURL: "/confirm", EmotionalState: EmotionFrustrated},
	}
	if got := PeakFrustrationPage(arc); got != "/checkout" {
		t.Errorf("PeakFrustrationPage() = %q, want %q", got, "/checkout")
	}
}

func TestPeakFrustrationPage_NoFrustration(t *testing.T) {
	arc := []EmotionalArcEntry{
		{StepNumber: 1, PageURL: "/home", EmotionalState: EmotionCurious},
		{StepNumber: 2, PageURL: "/home", EmotionalState: EmotionSatisfied},
	}
	if got := PeakFrustrationPage(arc); got != "" {
		t.Errorf("PeakFrustrationPage() = %q, want empty", got)
	}
}

func TestIssueKey(t *testing.T) {
	full := IssueKey("/Checkout?step=2", "Submit Button", "the submit button does not respond to clicks reliably on mobile safari", true)
	want := "/checkout?step=2|submit button|the submit button does not respond to clicks reliably on mobile safari"
	if full != want {
		t.Errorf("IssueKey(full) = %q, want %q", full, want)
	}

	dedup := IssueKey("", "Submit Button", "the submit button does not respond to clicks reliably", false)
	wantDedup := "submit button:the submit button does not respond to clicks relia"
	if dedup != wantDedup {
		t.Errorf("IssueKey(dedup) = %q, want %q", dedup, wantDedup)
	}
}

func TestNewSession(t *testing.T) {
	s := NewSession(uuid.New(), uuid.New(), uuid.New())
	if s.Status != SessionStatusPending {
		t.Errorf("NewSession() status = %v, want pending", s.Status)
	}
}
