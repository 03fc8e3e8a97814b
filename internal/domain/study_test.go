package domain

import "testing"

func TestNewStudy(t *testing.T) {
	s := NewStudy("https://example.com", "/")
	if s.Status != StudyStatusSetup {
		t.Errorf("NewStudy() status = %v, want %v", s.Status, StudyStatusSetup)
	}
	if s.ID.String() == "" {
		t.Error("NewStudy() should assign an ID")
	}
	if s.CreatedAt.IsZero() {
		t.Error("NewStudy() should set CreatedAt")
	}
}

func TestStudy_TransitionTo(t *testing.T) {
	s := NewStudy("https://example.com", "/")

	if err := s.TransitionTo(StudyStatusRunning); err != nil {
		t.Fatalf("setup -> running should be valid: %v", err)
	}
	if s.Status != StudyStatusRunning {
		t.Errorf("Status = %v, want running", s.Status)
	}

	if err := s.TransitionTo(StudyStatusSetup); err == nil {
		t.Error("running -> setup should be rejected (backward edge)")
	}

	if err := s.TransitionTo(StudyStatusAnalyzing); err != nil {
		t.Fatalf("running -> analyzing should be valid: %v", err)
	}
	if err := s.TransitionTo(StudyStatusComplete); err != nil {
		t.Fatalf("analyzing -> complete should be valid: %v", err)
	}
	if err := s.TransitionTo(StudyStatusFailed); err == nil {
		t.Error("complete -> failed should be rejected (already terminal)")
	}
}

func TestStudy_TransitionTo_Failed(t *testing.T) {
	s := NewStudy("https://example.com", "/")
	if err := s.TransitionTo(StudyStatusFailed); err != nil {
		t.Fatalf("setup -> failed should be valid: %v", err)
	}
	if !s.Status.IsTerminal() {
		t.Error("failed should be terminal")
	}
}

func TestPersonaProfile_ToJSONB(t *testing.T) {
	p := PersonaProfile{
		Name:             "Busy Parent",
		TechLiteracy:     4,
		Patience:         3,
		ReadingSpeed:     6,
		Trust:            5,
		Goals:            []string{"find the checkout quickly"},
		DevicePreference: DevicePreferenceMobile,
	}
	j := p.ToJSONB()
	if j["name"] != "Busy Parent" {
		t.Errorf("ToJSONB()[name] = %v, want %q", j["name"], "Busy Parent")
	}
	if j["device_preference"] != "mobile" {
		t.Errorf("ToJSONB()[device_preference] = %v, want %q", j["device_preference"], "mobile")
	}
}
