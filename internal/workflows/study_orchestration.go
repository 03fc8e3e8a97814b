package workflows

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/usabilitystudio/runtime/internal/domain"
)

// RunStudyWorkflow drives one study from enqueue to a terminal state per
// §4.1's twelve-step algorithm. It is idempotent: a study already in
// "complete" or "failed" is a no-op. Any failure in steps 2-4 or 7-12
// transitions the study to "failed" and rethrows, so the queue's retry
// policy governs redelivery; a step 1 load failure is returned without a
// status change. A Navigator failure in step 6 is contained to that one
// session and never aborts the study.
func RunStudyWorkflow(ctx workflow.Context, input RunStudyInput) (*RunStudyOutput, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("starting study orchestration", "study_id", input.StudyID.String())

	output := &RunStudyOutput{StudyID: input.StudyID}

	// Step 1: load.
	loaded, err := executeLoadStudy(ctx, input.StudyID)
	if err != nil {
		return nil, fmt.Errorf("loading study: %w", err)
	}
	if loaded.Study.Status.IsTerminal() {
		logger.Info("study already terminal, no-op", "status", string(loaded.Study.Status))
		output.Status = loaded.Study.Status
		output.OverallScore = loaded.Study.OverallScore
		return output, nil
	}

	fail := func(phase string, causeErr error) (*RunStudyOutput, error) {
		logger.Error("study orchestration failed", "phase", phase, "error", causeErr)
		_, _ = executeTransitionStudyStatus(ctx, TransitionStudyStatusInput{
			StudyID:  input.StudyID,
			Next:     domain.StudyStatusFailed,
			ErrorMsg: causeErr.Error(),
			Event:    &StudyProgressEvent{Kind: "study:error", Phase: phase},
		})
		return nil, fmt.Errorf("%s: %w", phase, causeErr)
	}

	// Step 2: clear prior live-state.
	if err := executeClearLiveState(ctx, input.StudyID); err != nil {
		return fail("clearing live state", err)
	}

	// Step 3: setup -> running.
	if _, err := executeTransitionStudyStatus(ctx, TransitionStudyStatusInput{
		StudyID:    input.StudyID,
		Next:       domain.StudyStatusRunning,
		StampStart: true,
		Event:      &StudyProgressEvent{Kind: "study:progress", Percent: 0, Phase: "launching"},
	}); err != nil {
		return fail("transitioning to running", err)
	}

	// Step 4: build sessions.
	sessions, err := executeBuildSessions(ctx, BuildSessionsInput{
		StudyID:  input.StudyID,
		Tasks:    loaded.Tasks,
		Personas: loaded.Personas,
	})
	if err != nil {
		return fail("building sessions", err)
	}

	// Step 5: choose concurrency width and browser mode. No per-study
	// browser-mode preference exists in the data model this study was
	// loaded from, so resolution collapses to override-or-availability.
	width := loaded.MaxConcurrentSessions
	if width <= 0 || width > len(sessions.Sessions) {
		width = len(sessions.Sessions)
	}
	mode := domain.BrowserModeLocal
	if loaded.CloudAvailable {
		mode = domain.BrowserModeCloud
	}
	if input.BrowserModeOverride != nil {
		mode = *input.BrowserModeOverride
	}

	// Step 6: bounded-concurrency session fan-out. Workflow code can't
	// perform I/O directly, and raw goroutines/channels aren't
	// deterministic across replay, so the semaphore is built from
	// workflow.Go goroutines and workflow.Channel per the SDK's documented
	// bounded-fan-out pattern.
	results := runSessionsBounded(ctx, input, loaded.Study, sessions.Sessions, mode, width)

	var completed, gaveUp, failed int
	for _, r := range results {
		switch r.Status {
		case domain.SessionStatusComplete:
			completed++
		case domain.SessionStatusGaveUp:
			gaveUp++
		case domain.SessionStatusFailed:
			failed++
		}
	}
	logger.Info("navigation phase complete",
		"completed", completed, "gave_up", gaveUp, "failed", failed)

	// Step 7: running -> analyzing.
	if _, err := executeTransitionStudyStatus(ctx, TransitionStudyStatusInput{
		StudyID: input.StudyID,
		Next:    domain.StudyStatusAnalyzing,
		Event:   &StudyProgressEvent{Kind: "study:analyzing", Phase: "deep_analysis", Percent: 85},
	}); err != nil {
		return fail("transitioning to analyzing", err)
	}

	// Step 8: analyze every completed or gave-up session.
	var issuesFound int
	for _, r := range results {
		if r.Status != domain.SessionStatusComplete && r.Status != domain.SessionStatusGaveUp {
			continue
		}
		analyzed, err := executeAnalyzeSession(ctx, AnalyzeSessionInput{StudyID: input.StudyID, SessionID: r.SessionID})
		if err != nil {
			return fail("analyzing session "+r.SessionID.String(), err)
		}
		issuesFound += analyzed.IssuesFound
	}

	// Step 9: prioritize.
	prioritized, err := executePrioritizeIssues(ctx, PrioritizeIssuesInput{StudyID: input.StudyID})
	if err != nil {
		return fail("prioritizing issues", err)
	}

	if err := executePublishStudyProgress(ctx, PublishStudyProgressInput{
		StudyID: input.StudyID, Percent: 95, Phase: "synthesizing",
	}); err != nil {
		logger.Warn("publishing synthesis progress", "error", err)
	}

	// Step 10: synthesize.
	synthesized, err := executeSynthesizeStudy(ctx, SynthesizeStudyInput{StudyID: input.StudyID})
	if err != nil {
		return fail("synthesizing study", err)
	}

	// Step 11: cost breakdown.
	if err := executePersistCostBreakdown(ctx, PersistCostBreakdownInput{StudyID: input.StudyID}); err != nil {
		return fail("persisting cost breakdown", err)
	}

	// Step 12: analyzing -> complete.
	score := synthesized.OverallScore
	if _, err := executeTransitionStudyStatus(ctx, TransitionStudyStatusInput{
		StudyID: input.StudyID,
		Next:    domain.StudyStatusComplete,
		Event: &StudyProgressEvent{
			Kind: "study:complete", Phase: "complete", Percent: 100,
			Score: &score, IssuesCount: prioritized.IssuesCount,
		},
	}); err != nil {
		return fail("transitioning to complete", err)
	}

	output.Status = domain.StudyStatusComplete
	output.OverallScore = &score
	output.IssuesCount = prioritized.IssuesCount
	logger.Info("study orchestration complete", "score", score, "issues", prioritized.IssuesCount)
	return output, nil
}

// runSessionsBounded runs every session plan under a semaphore of the given
// width, publishing the 5-85% linear-interpolation progress band as each
// session drains. A session's own failure never aborts its siblings.
func runSessionsBounded(ctx workflow.Context, input RunStudyInput, study *domain.Study, plans []SessionPlan, mode domain.BrowserMode, width int) []RunSessionOutput {
	results := make([]RunSessionOutput, len(plans))
	if len(plans) == 0 {
		return results
	}
	if width <= 0 {
		width = 1
	}

	sem := workflow.NewBufferedChannel(ctx, width)
	for i := 0; i < width; i++ {
		sem.Send(ctx, struct{}{})
	}
	done := workflow.NewChannel(ctx)

	for idx, plan := range plans {
		idx, plan := idx, plan
		workflow.Go(ctx, func(gctx workflow.Context) {
			var tok struct{}
			sem.Receive(gctx, &tok)
			defer sem.Send(gctx, tok)

			results[idx] = executeRunSession(gctx, RunSessionInput{
				StudyID:      input.StudyID,
				StudyURL:     study.URL,
				StartingPath: study.StartingPath,
				Session:      plan.Session,
				Persona:      plan.Persona,
				Task:         plan.Task,
				BrowserMode:  mode,
			})
			done.Send(gctx, struct{}{})
		})
	}

	for completed := 1; completed <= len(plans); completed++ {
		var tok struct{}
		done.Receive(ctx, &tok)
		percent := studyNavigationPercent(completed, len(plans))
		if err := executePublishStudyProgress(ctx, PublishStudyProgressInput{
			StudyID: input.StudyID, Percent: percent, Phase: "navigating",
		}); err != nil {
			workflow.GetLogger(ctx).Warn("publishing navigation progress", "error", err)
		}
	}

	return results
}

// studyNavigationPercent implements §4.1's progress formula for the
// navigation band: 5-85%, linear over completed sessions.
func studyNavigationPercent(completed, total int) int {
	if total <= 0 {
		return 85
	}
	span := 85.0 - 5.0
	pct := 5.0 + span*float64(completed)/float64(total)
	if pct > 85 {
		pct = 85
	}
	return int(pct)
}

func executeLoadStudy(ctx workflow.Context, studyID uuid.UUID) (*LoadStudyOutput, error) {
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
		},
	})
	var output LoadStudyOutput
	err := workflow.ExecuteActivity(ctx, LoadStudyActivityName, studyID).Get(ctx, &output)
	return &output, err
}

func executeClearLiveState(ctx workflow.Context, studyID uuid.UUID) error {
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: time.Second, BackoffCoefficient: 2.0,
			MaximumInterval: 10 * time.Second, MaximumAttempts: 3,
		},
	})
	return workflow.ExecuteActivity(ctx, ClearLiveStateActivityName, ClearLiveStateInput{StudyID: studyID}).Get(ctx, nil)
}

func executeTransitionStudyStatus(ctx workflow.Context, input TransitionStudyStatusInput) (struct{}, error) {
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: time.Second, BackoffCoefficient: 2.0,
			MaximumInterval: 10 * time.Second, MaximumAttempts: 3,
		},
	})
	var out struct{}
	err := workflow.ExecuteActivity(ctx, TransitionStudyStatusActivityName, input).Get(ctx, &out)
	return out, err
}

func executeBuildSessions(ctx workflow.Context, input BuildSessionsInput) (*BuildSessionsOutput, error) {
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: time.Second, BackoffCoefficient: 2.0,
			MaximumInterval: 30 * time.Second, MaximumAttempts: 3,
		},
	})
	var output BuildSessionsOutput
	err := workflow.ExecuteActivity(ctx, BuildSessionsActivityName, input).Get(ctx, &output)
	return &output, err
}

// executeRunSession runs one session to completion. Its own retry policy is
// deliberately a single attempt: the Navigator already retries individual
// actions internally (§4.2), and a whole-session redo would replay browser
// side effects the first attempt already committed, so a session failure
// here surfaces directly as a "failed" status rather than a workflow retry.
func executeRunSession(ctx workflow.Context, input RunSessionInput) RunSessionOutput {
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 11 * time.Minute,
		HeartbeatTimeout:    30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: time.Second, BackoffCoefficient: 2.0,
			MaximumInterval: time.Minute, MaximumAttempts: 1,
		},
	})
	var output RunSessionOutput
	if err := workflow.ExecuteActivity(ctx, RunSessionActivityName, input).Get(ctx, &output); err != nil {
		workflow.GetLogger(ctx).Error("session failed", "session_id", input.Session.ID.String(), "error", err)
		output.SessionID = input.Session.ID
		output.Status = domain.SessionStatusFailed
		output.Error = err.Error()
	}
	return output
}

func executeAnalyzeSession(ctx workflow.Context, input AnalyzeSessionInput) (*AnalyzeSessionOutput, error) {
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		HeartbeatTimeout:    30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: time.Second, BackoffCoefficient: 2.0,
			MaximumInterval: 30 * time.Second, MaximumAttempts: 3,
		},
	})
	var output AnalyzeSessionOutput
	err := workflow.ExecuteActivity(ctx, AnalyzeSessionActivityName, input).Get(ctx, &output)
	return &output, err
}

func executePrioritizeIssues(ctx workflow.Context, input PrioritizeIssuesInput) (*PrioritizeIssuesOutput, error) {
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: time.Second, BackoffCoefficient: 2.0,
			MaximumInterval: 30 * time.Second, MaximumAttempts: 3,
		},
	})
	var output PrioritizeIssuesOutput
	err := workflow.ExecuteActivity(ctx, PrioritizeIssuesActivityName, input).Get(ctx, &output)
	return &output, err
}

func executeSynthesizeStudy(ctx workflow.Context, input SynthesizeStudyInput) (*SynthesizeStudyOutput, error) {
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 3 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: time.Second, BackoffCoefficient: 2.0,
			MaximumInterval: 30 * time.Second, MaximumAttempts: 2,
		},
	})
	var output SynthesizeStudyOutput
	err := workflow.ExecuteActivity(ctx, SynthesizeStudyActivityName, input).Get(ctx, &output)
	return &output, err
}

func executePersistCostBreakdown(ctx workflow.Context, input PersistCostBreakdownInput) error {
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: time.Second, BackoffCoefficient: 2.0,
			MaximumInterval: 10 * time.Second, MaximumAttempts: 3,
		},
	})
	return workflow.ExecuteActivity(ctx, PersistCostBreakdownActivityName, input).Get(ctx, nil)
}

func executePublishStudyProgress(ctx workflow.Context, input PublishStudyProgressInput) error {
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 15 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: time.Second, BackoffCoefficient: 2.0,
			MaximumInterval: 5 * time.Second, MaximumAttempts: 2,
		},
	})
	return workflow.ExecuteActivity(ctx, PublishStudyProgressActivityName, input).Get(ctx, nil)
}
