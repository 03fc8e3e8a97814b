package jobqueue

import (
	"context"

	"go.temporal.io/sdk/client"

	itemporal "github.com/usabilitystudio/runtime/internal/temporal"
	"github.com/usabilitystudio/runtime/internal/workflows"
)

// checkSchedulesWorkflowID is fixed rather than per-run: Temporal's cron
// scheduling reuses one workflow ID across firings, starting a fresh run
// each time the previous one closes (§4.7, "fires every 60s").
const checkSchedulesWorkflowID = "check-schedules-cron"

// checkSchedulesCronSpec is a standard 5-field cron expression, same
// ParseStandard dialect as a user schedule's own cron_expression.
const checkSchedulesCronSpec = "* * * * *"

// EnsureSchedulerRunning starts CheckSchedulesWorkflow as a Temporal cron
// workflow if it isn't already running. Safe to call on every scheduler
// process boot: StartWorkflow against an existing cron workflow ID is a
// no-op other than returning the existing execution's handle.
func EnsureSchedulerRunning(ctx context.Context, c *itemporal.Client) (client.WorkflowRun, error) {
	options := client.StartWorkflowOptions{
		ID:           checkSchedulesWorkflowID,
		TaskQueue:    c.TaskQueue(),
		CronSchedule: checkSchedulesCronSpec,
	}
	return c.ExecuteWorkflow(ctx, options, workflows.CheckSchedulesWorkflow)
}
