package domain

import (
	"testing"
	"time"
)

func TestSchedule_IsDue(t *testing.T) {
	s := NewSchedule("weekly check", "https://example.com", "/", "0 * * * *", []string{"find the pricing page"}, nil)
	now := time.Now().UTC()

	past := now.Add(-time.Minute)
	s.NextRunAt = &past
	if !s.IsDue(now) {
		t.Error("schedule with past next_run_at should be due")
	}

	future := now.Add(time.Hour)
	s.NextRunAt = &future
	if s.IsDue(now) {
		t.Error("schedule with future next_run_at should not be due")
	}

	s.NextRunAt = &past
	s.Status = ScheduleStatusPaused
	if s.IsDue(now) {
		t.Error("paused schedule should never be due")
	}
}

func TestSchedule_Quarantine(t *testing.T) {
	s := NewSchedule("bad cron", "https://example.com", "/", "not a cron expression", []string{"task"}, nil)
	s.Quarantine()
	if s.Status != ScheduleStatusPaused {
		t.Errorf("Quarantine() status = %v, want paused", s.Status)
	}
}
