package schedule

import (
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/worker"

	"github.com/usabilitystudio/runtime/internal/workflows"
)

// RegisterActivities registers the check_schedules_task activities with the
// Temporal worker under the names workflows.CheckSchedulesWorkflow calls
// them by.
func RegisterActivities(w worker.Worker, a *Activity) {
	w.RegisterActivityWithOptions(a.ListDueSchedules, activity.RegisterOptions{
		Name: workflows.ListDueSchedulesActivityName,
	})
	w.RegisterActivityWithOptions(a.ValidateAndAdvanceSchedule, activity.RegisterOptions{
		Name: workflows.ValidateAndAdvanceScheduleActivityName,
	})
}
