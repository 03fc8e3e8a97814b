package study

import (
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/worker"

	"github.com/usabilitystudio/runtime/internal/workflows"
)

// RegisterActivities registers every study-orchestration activity with the
// Temporal worker under the names workflows.RunStudyWorkflow calls them by.
func RegisterActivities(w worker.Worker, a *Activity) {
	w.RegisterActivityWithOptions(a.LoadStudy, activity.RegisterOptions{
		Name: workflows.LoadStudyActivityName,
	})
	w.RegisterActivityWithOptions(a.ClearLiveState, activity.RegisterOptions{
		Name: workflows.ClearLiveStateActivityName,
	})
	w.RegisterActivityWithOptions(a.TransitionStudyStatus, activity.RegisterOptions{
		Name: workflows.TransitionStudyStatusActivityName,
	})
	w.RegisterActivityWithOptions(a.BuildSessions, activity.RegisterOptions{
		Name: workflows.BuildSessionsActivityName,
	})
	w.RegisterActivityWithOptions(a.RunSession, activity.RegisterOptions{
		Name: workflows.RunSessionActivityName,
	})
	w.RegisterActivityWithOptions(a.AnalyzeSession, activity.RegisterOptions{
		Name: workflows.AnalyzeSessionActivityName,
	})
	w.RegisterActivityWithOptions(a.PrioritizeIssues, activity.RegisterOptions{
		Name: workflows.PrioritizeIssuesActivityName,
	})
	w.RegisterActivityWithOptions(a.SynthesizeStudy, activity.RegisterOptions{
		Name: workflows.SynthesizeStudyActivityName,
	})
	w.RegisterActivityWithOptions(a.PersistCostBreakdown, activity.RegisterOptions{
		Name: workflows.PersistCostBreakdownActivityName,
	})
	w.RegisterActivityWithOptions(a.PublishStudyProgress, activity.RegisterOptions{
		Name: workflows.PublishStudyProgressActivityName,
	})
}
