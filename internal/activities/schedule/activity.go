// Package schedule implements the Temporal activities backing
// workflows.CheckSchedulesWorkflow: loading due schedules, validating each
// one's own cron expression, building the study a firing schedule enqueues,
// and advancing next_run_at — all the I/O the cron tick needs that the
// workflow body itself can't perform directly.
package schedule

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.temporal.io/sdk/activity"
	"go.uber.org/zap"

	"github.com/usabilitystudio/runtime/internal/domain"
	"github.com/usabilitystudio/runtime/internal/repository/postgres"
	"github.com/usabilitystudio/runtime/internal/workflows"
)

// Activity backs check_schedules_task (§4.7).
type Activity struct {
	repos  *postgres.Repositories
	logger *zap.Logger
}

// NewActivity constructs a schedule Activity.
func NewActivity(repos *postgres.Repositories, logger *zap.Logger) *Activity {
	return &Activity{repos: repos, logger: logger}
}

// ListDueSchedules returns every active schedule whose next_run_at has
// passed, the working set for this polling pass.
func (a *Activity) ListDueSchedules(ctx context.Context, _ struct{}) (*workflows.ListDueSchedulesOutput, error) {
	due, err := a.repos.Schedules.ListDue(ctx, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	out := &workflows.ListDueSchedulesOutput{}
	for _, s := range due {
		out.ScheduleIDs = append(out.ScheduleIDs, s.ID)
	}
	return out, nil
}

// ValidateAndAdvanceSchedule parses one schedule's cron expression,
// quarantining it to "paused" on a parse error, otherwise building a fresh
// study from the schedule's task descriptions and persona roster and
// advancing last_run_at/next_run_at/run_count (§4.7's idempotency
// requirement is satisfied by this single update happening before the
// caller ever starts RunStudyWorkflow for the new study).
func (a *Activity) ValidateAndAdvanceSchedule(ctx context.Context, input workflows.ValidateAndAdvanceScheduleInput) (*workflows.ValidateAndAdvanceScheduleOutput, error) {
	logger := activity.GetLogger(ctx)

	sched, err := a.repos.Schedules.GetByID(ctx, input.ScheduleID)
	if err != nil {
		return nil, err
	}

	schedule, err := cron.ParseStandard(sched.CronExpression)
	if err != nil {
		logger.Warn("quarantining schedule with invalid cron expression",
			"schedule_id", sched.ID.String(), "cron_expression", sched.CronExpression, "error", err)
		if qerr := a.repos.Schedules.Quarantine(ctx, sched.ID); qerr != nil {
			return nil, qerr
		}
		return &workflows.ValidateAndAdvanceScheduleOutput{Quarantined: true}, nil
	}

	now := time.Now().UTC()
	study := domain.NewStudy(sched.URL, sched.StartingPath)
	if err := a.repos.Studies.Create(ctx, study); err != nil {
		return nil, err
	}
	for i, description := range sched.TaskDescriptions {
		task := domain.NewTask(study.ID, description, i)
		if err := a.repos.Tasks.Create(ctx, task); err != nil {
			return nil, err
		}
	}
	for _, profile := range sched.PersonaProfiles {
		persona := domain.NewPersona(study.ID, profile, "")
		if err := a.repos.Personas.Create(ctx, persona); err != nil {
			return nil, err
		}
	}

	next := schedule.Next(now)
	if err := a.repos.Schedules.MarkRun(ctx, sched.ID, now, next, study.ID); err != nil {
		return nil, err
	}

	logger.Info("schedule fired", "schedule_id", sched.ID.String(), "study_id", study.ID.String(), "next_run_at", next)
	return &workflows.ValidateAndAdvanceScheduleOutput{StudyID: study.ID}, nil
}
