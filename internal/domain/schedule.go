package domain

import (
	"time"

	"github.com/google/uuid"
)

// ScheduleStatus is the lifecycle state of a recurring study Schedule.
type ScheduleStatus string

const (
	ScheduleStatusActive ScheduleStatus = "active"
	ScheduleStatusPaused ScheduleStatus = "paused"
)

func (s ScheduleStatus) IsValid() bool {
	return s == ScheduleStatusActive || s == ScheduleStatusPaused
}

// Schedule drives check_schedules_task (§4.7): a user-supplied cron
// expression that periodically builds a fresh Study from the schedule's own
// task list and persona roster and enqueues run_study_task for it. Invalid
// cron expressions quarantine the schedule to "paused".
type Schedule struct {
	ID                 uuid.UUID        `json:"id" db:"id"`
	Name               string           `json:"name" db:"name"`
	URL                string           `json:"url" db:"url"`
	StartingPath       string           `json:"starting_path" db:"starting_path"`
	TaskDescriptions   []string         `json:"task_descriptions" db:"-"`
	PersonaProfiles    []PersonaProfile `json:"persona_profiles" db:"-"`
	CronExpression     string           `json:"cron_expression" db:"cron_expression"`
	Status             ScheduleStatus   `json:"status" db:"status"`
	LastRunAt          *time.Time       `json:"last_run_at,omitempty" db:"last_run_at"`
	NextRunAt          *time.Time       `json:"next_run_at,omitempty" db:"next_run_at"`
	LastStudyID        *uuid.UUID       `json:"last_study_id,omitempty" db:"-"`
	RunCount           int              `json:"run_count" db:"run_count"`

	Timestamps
}

// NewSchedule constructs a Schedule in "active" status from the task
// descriptions and persona profiles every firing should reuse.
func NewSchedule(name, url, startingPath, cronExpression string, tasks []string, personas []PersonaProfile) *Schedule {
	s := &Schedule{
		ID:               uuid.New(),
		Name:             name,
		URL:              url,
		StartingPath:     startingPath,
		TaskDescriptions: tasks,
		PersonaProfiles:  personas,
		CronExpression:   cronExpression,
		Status:           ScheduleStatusActive,
	}
	s.SetTimestamps()
	return s
}

// IsDue reports whether the schedule should fire: active and its next_run_at
// threshold has already passed.
func (s *Schedule) IsDue(now time.Time) bool {
	return s.Status == ScheduleStatusActive && s.NextRunAt != nil && !s.NextRunAt.After(now)
}

// Quarantine pauses a schedule whose cron expression failed to parse, per §4.7.
func (s *Schedule) Quarantine() {
	s.Status = ScheduleStatusPaused
	s.UpdatedAt = time.Now().UTC()
}
