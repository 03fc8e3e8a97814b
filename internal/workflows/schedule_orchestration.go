package workflows

import (
	"time"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// CheckSchedulesWorkflow is check_schedules_task (§4.7). Temporal's own
// cron support (CronSchedule on the StartWorkflowOptions this workflow is
// started with) fires it every 60s, so the workflow body itself is just one
// polling pass: list due schedules, validate-and-advance each one, and hand
// every schedule that produced a study off to its own independent
// RunStudyWorkflow. Started children are abandoned rather than awaited —
// the point of this workflow is to enqueue, not to babysit runs it starts.
func CheckSchedulesWorkflow(ctx workflow.Context) (*CheckSchedulesOutput, error) {
	logger := workflow.GetLogger(ctx)

	due, err := executeListDueSchedules(ctx)
	if err != nil {
		return nil, err
	}
	output := &CheckSchedulesOutput{Considered: len(due.ScheduleIDs)}
	if len(due.ScheduleIDs) == 0 {
		return output, nil
	}

	for _, scheduleID := range due.ScheduleIDs {
		advanced, err := executeValidateAndAdvanceSchedule(ctx, ValidateAndAdvanceScheduleInput{ScheduleID: scheduleID})
		if err != nil {
			logger.Error("validating schedule", "schedule_id", scheduleID.String(), "error", err)
			continue
		}
		if advanced.Quarantined {
			output.Quarantined++
			continue
		}

		childOptions := workflow.ChildWorkflowOptions{
			WorkflowID:        "study-" + advanced.StudyID.String(),
			ParentClosePolicy: enumspb.PARENT_CLOSE_POLICY_ABANDON,
		}
		childCtx := workflow.WithChildOptions(ctx, childOptions)
		future := workflow.ExecuteChildWorkflow(childCtx, RunStudyWorkflow, RunStudyInput{StudyID: advanced.StudyID})
		if err := future.GetChildWorkflowExecution().Get(childCtx, nil); err != nil {
			logger.Error("starting run_study_task", "study_id", advanced.StudyID.String(), "error", err)
			continue
		}
		output.Enqueued++
	}

	logger.Info("check_schedules_task pass complete",
		"considered", output.Considered, "enqueued", output.Enqueued, "quarantined", output.Quarantined)
	return output, nil
}

func executeListDueSchedules(ctx workflow.Context) (*ListDueSchedulesOutput, error) {
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: time.Second, BackoffCoefficient: 2.0,
			MaximumInterval: 10 * time.Second, MaximumAttempts: 3,
		},
	})
	var output ListDueSchedulesOutput
	err := workflow.ExecuteActivity(ctx, ListDueSchedulesActivityName, struct{}{}).Get(ctx, &output)
	return &output, err
}

func executeValidateAndAdvanceSchedule(ctx workflow.Context, input ValidateAndAdvanceScheduleInput) (*ValidateAndAdvanceScheduleOutput, error) {
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: time.Second, BackoffCoefficient: 2.0,
			MaximumInterval: 10 * time.Second, MaximumAttempts: 3,
		},
	})
	var output ValidateAndAdvanceScheduleOutput
	err := workflow.ExecuteActivity(ctx, ValidateAndAdvanceScheduleActivityName, input).Get(ctx, &output)
	return &output, err
}
