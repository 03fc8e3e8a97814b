package workflows

import (
	"github.com/google/uuid"
)

// Activity names for check_schedules_task (§4.7).
const (
	ListDueSchedulesActivityName           = "ListDueSchedulesActivity"
	ValidateAndAdvanceScheduleActivityName = "ValidateAndAdvanceScheduleActivity"
)

// CheckSchedulesOutput reports how many due schedules were processed and
// how many enqueued a study versus were quarantined.
type CheckSchedulesOutput struct {
	Considered  int
	Enqueued    int
	Quarantined int
}

// ListDueSchedulesOutput is step 1 of check_schedules_task: every schedule
// whose next_run_at has passed.
type ListDueSchedulesOutput struct {
	ScheduleIDs []uuid.UUID
}

// ValidateAndAdvanceScheduleInput is the per-schedule unit of work: parse
// the schedule's own cron expression, quarantine it on failure, otherwise
// build a fresh study from its task/persona roster and advance its
// next_run_at.
type ValidateAndAdvanceScheduleInput struct {
	ScheduleID uuid.UUID
}

// ValidateAndAdvanceScheduleOutput reports whether the schedule produced a
// new study to enqueue.
type ValidateAndAdvanceScheduleOutput struct {
	Quarantined bool
	StudyID     uuid.UUID
}
