package domain

import (
	"testing"

	"github.com/google/uuid"
)

func TestStudyStatus_IsValid(t *testing.T) {
	tests := []struct {
		status StudyStatus
		valid  bool
	}{
		{StudyStatusSetup, true},
		{StudyStatusRunning, true},
		{StudyStatusAnalyzing, true},
		{StudyStatusComplete, true},
		{StudyStatusFailed, true},
		{StudyStatus("invalid"), false},
		{StudyStatus(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsValid(); got != tt.valid {
				t.Errorf("StudyStatus(%q).IsValid() = %v, want %v", tt.status, got, tt.valid)
			}
		})
	}
}

func TestStudyStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status   StudyStatus
		terminal bool
	}{
		{StudyStatusSetup, false},
		{StudyStatusRunning, false},
		{StudyStatusAnalyzing, false},
		{StudyStatusComplete, true},
		{StudyStatusFailed, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsTerminal(); got != tt.terminal {
				t.Errorf("StudyStatus(%q).IsTerminal() = %v, want %v", tt.status, got, tt.terminal)
			}
		})
	}
}

func TestStudyStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name string
		from StudyStatus
		to   StudyStatus
		want bool
	}{
		{"setup to running", StudyStatusSetup, StudyStatusRunning, true},
		{"running to analyzing", StudyStatusRunning, StudyStatusAnalyzing, true},
		{"analyzing to complete", StudyStatusAnalyzing, StudyStatusComplete, true},
		{"setup to analyzing skips a step", StudyStatusSetup, StudyStatusAnalyzing, false},
		{"running to setup is backward", StudyStatusRunning, StudyStatusSetup, false},
		{"setup to failed", StudyStatusSetup, StudyStatusFailed, true},
		{"running to failed", StudyStatusRunning, StudyStatusFailed, true},
		{"complete to failed is terminal", StudyStatusComplete, StudyStatusFailed, false},
		{"failed to running is terminal", StudyStatusFailed, StudyStatusRunning, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("%s.CanTransitionTo(%s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestSessionStatus_IsValid(t *testing.T) {
	tests := []struct {
		status SessionStatus
		valid  bool
	}{
		{SessionStatusPending, true},
		{SessionStatusRunning, true},
		{SessionStatusComplete, true},
		{SessionStatusFailed, true},
		{SessionStatusGaveUp, true},
		{SessionStatus("invalid"), false},
		{SessionStatus(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsValid(); got != tt.valid {
				t.Errorf("SessionStatus(%q).IsValid() = %v, want %v", tt.status, got, tt.valid)
			}
		})
	}
}

func TestSessionStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status   SessionStatus
		terminal bool
	}{
		{SessionStatusPending, false},
		{SessionStatusRunning, false},
		{SessionStatusComplete, true},
		{SessionStatusFailed, true},
		{SessionStatusGaveUp, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsTerminal(); got != tt.terminal {
				t.Errorf("SessionStatus(%q).IsTerminal() = %v, want %v", tt.status, got, tt.terminal)
			}
		})
	}
}

func TestActionType_IsValid(t *testing.T) {
	tests := []struct {
		action ActionType
		valid  bool
	}{
		{ActionClick, true},
		{ActionFill, true},
		{ActionSelect, true},
		{ActionScroll, true},
		{ActionWait, true},
		{ActionGoto, true},
		{ActionBack, true},
		{ActionSubmit, true},
		{ActionGiveUp, true},
		{ActionDone, true},
		{ActionType("hover"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			if got := tt.action.IsValid(); got != tt.valid {
				t.Errorf("ActionType(%q).IsValid() = %v, want %v", tt.action, got, tt.valid)
			}
		})
	}
}

func TestActionType_IsTerminal(t *testing.T) {
	if !ActionGiveUp.IsTerminal() {
		t.Error("ActionGiveUp should be terminal")
	}
	if !ActionDone.IsTerminal() {
		t.Error("ActionDone should be terminal")
	}
	if ActionClick.IsTerminal() {
		t.Error("ActionClick should not be terminal")
	}
}

func TestSeverity_Rank(t *testing.T) {
	if !SeverityCritical.MoreSevereThan(SeverityMajor) {
		t.Error("critical should be more severe than major")
	}
	if !SeverityMajor.MoreSevereThan(SeverityMinor) {
		t.Error("major should be more severe than minor")
	}
	if !SeverityMinor.MoreSevereThan(SeverityEnhancement) {
		t.Error("minor should be more severe than enhancement")
	}
	if SeverityEnhancement.MoreSevereThan(SeverityCritical) {
		t.Error("enhancement should not be more severe than critical")
	}
}

func TestSeverityBaseScore(t *testing.T) {
	tests := []struct {
		severity Severity
		want     int
	}{
		{SeverityCritical, 40},
		{SeverityMajor, 25},
		{SeverityMinor, 10},
		{SeverityEnhancement, 5},
	}
	for _, tt := range tests {
		t.Run(string(tt.severity), func(t *testing.T) {
			if got := SeverityBaseScore[tt.severity]; got != tt.want {
				t.Errorf("SeverityBaseScore[%q] = %v, want %v", tt.severity, got, tt.want)
			}
		})
	}
}

func TestEmotionalState_IsFrustrationFamily(t *testing.T) {
	tests := []struct {
		state EmotionalState
		want  bool
	}{
		{EmotionFrustrated, true},
		{EmotionAnxious, true},
		{EmotionConfused, true},
		{EmotionConfident, false},
		{EmotionSatisfied, false},
		{EmotionNeutral, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsFrustrationFamily(); got != tt.want {
				t.Errorf("EmotionalState(%q).IsFrustrationFamily() = %v, want %v", tt.state, got, tt.want)
			}
		})
	}
}

func TestBrowserMode_IsValid(t *testing.T) {
	if !BrowserModeLocal.IsValid() || !BrowserModeCloud.IsValid() {
		t.Error("local and cloud should be valid browser modes")
	}
	if BrowserMode("remote").IsValid() {
		t.Error("remote should not be a valid browser mode")
	}
}

func TestJSONB_Value(t *testing.T) {
	t.Run("nil JSONB", func(t *testing.T) {
		var j JSONB
		val, err := j.Value()
		if err != nil {
			t.Errorf("Value() error = %v", err)
		}
		if val != nil {
			t.Errorf("Value() = %v, want nil", val)
		}
	})

	t.Run("non-nil JSONB", func(t *testing.T) {
		j := JSONB{"key": "value", "num": 42}
		val, err := j.Value()
		if err != nil {
			t.Errorf("Value() error = %v", err)
		}
		if val == nil {
			t.Error("Value() should not be nil")
		}
	})
}

func TestJSONB_Scan(t *testing.T) {
	t.Run("nil value", func(t *testing.T) {
		var j JSONB
		err := j.Scan(nil)
		if err != nil {
			t.Errorf("Scan(nil) error = %v", err)
		}
		if j != nil {
			t.Errorf("Scan(nil) should result in nil JSONB")
		}
	})

	t.Run("valid JSON bytes", func(t *testing.T) {
		var j JSONB
		err := j.Scan([]byte(`{"key": "value"}`))
		if err != nil {
			t.Errorf("Scan() error = %v", err)
		}
		if j["key"] != "value" {
			t.Errorf("Scan() key = %v, want 'value'", j["key"])
		}
	})

	t.Run("invalid type", func(t *testing.T) {
		var j JSONB
		err := j.Scan(123)
		if err == nil {
			t.Error("Scan(int) should return error")
		}
	})

	t.Run("invalid JSON", func(t *testing.T) {
		var j JSONB
		err := j.Scan([]byte(`{invalid json}`))
		if err == nil {
			t.Error("Scan(invalid JSON) should return error")
		}
	})
}

func TestNullUUID_Value(t *testing.T) {
	t.Run("invalid NullUUID", func(t *testing.T) {
		n := NullUUID{Valid: false}
		val, err := n.Value()
		if err != nil {
			t.Errorf("Value() error = %v", err)
		}
		if val != nil {
			t.Errorf("Value() = %v, want nil", val)
		}
	})

	t.Run("valid NullUUID", func(t *testing.T) {
		id := uuid.New()
		n := NullUUID{UUID: id, Valid: true}
		val, err := n.Value()
		if err != nil {
			t.Errorf("Value() error = %v", err)
		}
		if val != id.String() {
			t.Errorf("Value() = %v, want %v", val, id.String())
		}
	})
}

func TestNullUUID_Scan(t *testing.T) {
	t.Run("nil value", func(t *testing.T) {
		var n NullUUID
		err := n.Scan(nil)
		if err != nil {
			t.Errorf("Scan(nil) error = %v", err)
		}
		if n.Valid {
			t.Error("Scan(nil) should set Valid to false")
		}
	})

	t.Run("string value", func(t *testing.T) {
		id := uuid.New()
		var n NullUUID
		err := n.Scan(id.String())
		if err != nil {
			t.Errorf("Scan(string) error = %v", err)
		}
		if !n.Valid {
			t.Error("Scan(string) should set Valid to true")
		}
		if n.UUID != id {
			t.Errorf("Scan(string) UUID = %v, want %v", n.UUID, id)
		}
	})

	t.Run("bytes value", func(t *testing.T) {
		id := uuid.New()
		var n NullUUID
		err := n.Scan([]byte(id.String()))
		if err != nil {
			t.Errorf("Scan([]byte) error = %v", err)
		}
		if !n.Valid {
			t.Error("Scan([]byte) should set Valid to true")
		}
		if n.UUID != id {
			t.Errorf("Scan([]byte) UUID = %v, want %v", n.UUID, id)
		}
	})

	t.Run("invalid type", func(t *testing.T) {
		var n NullUUID
		err := n.Scan(123)
		if err == nil {
			t.Error("Scan(int) should return error")
		}
	})

	t.Run("invalid UUID string", func(t *testing.T) {
		var n NullUUID
		err := n.Scan("not-a-uuid")
		if err == nil {
			t.Error("Scan(invalid UUID) should return error")
		}
	})
}
