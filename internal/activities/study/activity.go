// Package study implements the Temporal activities backing
// workflows.RunStudyWorkflow: every piece of I/O the study orchestrator
// needs (postgres, redis, the browser pool, the LLM client, the analysis
// pipeline) lives here, never in the workflow itself.
package study

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"
	"go.uber.org/zap"

	"github.com/usabilitystudio/runtime/internal/analysis"
	"github.com/usabilitystudio/runtime/internal/browser"
	"github.com/usabilitystudio/runtime/internal/domain"
	"github.com/usabilitystudio/runtime/internal/llm"
	"github.com/usabilitystudio/runtime/internal/navigator"
	"github.com/usabilitystudio/runtime/internal/repository/postgres"
	"github.com/usabilitystudio/runtime/internal/repository/redis"
	"github.com/usabilitystudio/runtime/internal/workflows"
)

// Activity wraps every dependency the study orchestration workflow's
// activities call into.
type Activity struct {
	repos       *postgres.Repositories
	live        *redis.LiveStateStore
	bus         *redis.ProgressBus
	pool        *browser.Pool
	navigator   *navigator.Navigator
	analyzer    *analysis.Analyzer
	prioritizer *analysis.Prioritizer
	synthesizer *analysis.Synthesizer
	cost        *llm.CostTracker
	logger      *zap.Logger

	maxConcurrentSessions int
	cloudAvailable        bool
}

// Config holds the orchestrator-level runtime knobs LoadStudy hands the
// workflow, since workflow code can't read environment/config directly.
type Config struct {
	MaxConcurrentSessions int
	CloudAvailable        bool
}

// NewActivity builds a study Activity from its already-constructed
// dependencies (repositories, live-state store, progress bus, browser
// pool, navigator, analysis pipeline, cost tracker).
func NewActivity(
	repos *postgres.Repositories,
	live *redis.LiveStateStore,
	bus *redis.ProgressBus,
	pool *browser.Pool,
	nav *navigator.Navigator,
	analyzer *analysis.Analyzer,
	prioritizer *analysis.Prioritizer,
	synthesizer *analysis.Synthesizer,
	cost *llm.CostTracker,
	cfg Config,
	logger *zap.Logger,
) *Activity {
	if logger == nil {
		logger, _ = zap.NewDevelopment()
	}
	return &Activity{
		repos:                 repos,
		live:                  live,
		bus:                   bus,
		pool:                  pool,
		navigator:             nav,
		analyzer:              analyzer,
		prioritizer:           prioritizer,
		synthesizer:           synthesizer,
		cost:                  cost,
		logger:                logger,
		maxConcurrentSessions: cfg.MaxConcurrentSessions,
		cloudAvailable:        cfg.CloudAvailable,
	}
}

// LoadStudy is step 1: load the study with its tasks and personas.
func (a *Activity) LoadStudy(ctx context.Context, studyID uuid.UUID) (*workflows.LoadStudyOutput, error) {
	study, err := a.repos.Studies.GetByID(ctx, studyID)
	if err != nil {
		return nil, fmt.Errorf("loading study: %w", err)
	}
	tasks, err := a.repos.Tasks.ListByStudy(ctx, studyID)
	if err != nil {
		return nil, fmt.Errorf("loading tasks: %w", err)
	}
	personas, err := a.repos.Personas.ListByStudy(ctx, studyID)
	if err != nil {
		return nil, fmt.Errorf("loading personas: %w", err)
	}
	return &workflows.LoadStudyOutput{
		Study:                 study,
		Tasks:                 tasks,
		Personas:              personas,
		MaxConcurrentSessions: a.maxConcurrentSessions,
		CloudAvailable:        a.cloudAvailable,
	}, nil
}

// ClearLiveState is step 2.
func (a *Activity) ClearLiveState(ctx context.Context, input workflows.ClearLiveStateInput) error {
	return a.live.ClearStudy(ctx, input.StudyID)
}

// TransitionStudyStatus drives steps 3, 7, 12, and the failure path: apply
// the status transition, stamp started_at/error as requested, persist, and
// publish the matching event after the write commits, mirroring the Step
// Recorder's persist-then-publish order (§4.3) at the study level.
func (a *Activity) TransitionStudyStatus(ctx context.Context, input workflows.TransitionStudyStatusInput) error {
	study, err := a.repos.Studies.GetByID(ctx, input.StudyID)
	if err != nil {
		return fmt.Errorf("loading study: %w", err)
	}
	if err := study.TransitionTo(input.Next); err != nil {
		return fmt.Errorf("transitioning study status: %w", err)
	}
	if input.StampStart {
		now := time.Now().UTC()
		study.StartedAt = &now
	}
	if input.ErrorMsg != "" {
		study.Error = input.ErrorMsg
	}
	if err := a.repos.Studies.Update(ctx, study); err != nil {
		return fmt.Errorf("persisting study status: %w", err)
	}

	if input.Event == nil {
		return nil
	}
	payload := map[string]interface{}{"phase": input.Event.Phase, "percent": input.Event.Percent}
	if input.Event.Score != nil {
		payload["score"] = *input.Event.Score
		payload["issues_count"] = input.Event.IssuesCount
	}
	if input.ErrorMsg != "" {
		payload["error"] = input.ErrorMsg
	}
	if err := a.bus.Publish(ctx, redis.Event{
		Kind:    redis.EventKind(input.Event.Kind),
		StudyID: input.StudyID,
		Payload: payload,
	}); err != nil {
		a.warnf("publishing %s event: %v", input.Event.Kind, err)
	}
	return nil
}

// PublishStudyProgress publishes a bare study:progress event, used for the
// 5-85% navigation band that drains between status transitions.
func (a *Activity) PublishStudyProgress(ctx context.Context, input workflows.PublishStudyProgressInput) error {
	return a.bus.Publish(ctx, redis.Event{
		Kind:    redis.EventStudyProgress,
		StudyID: input.StudyID,
		Payload: map[string]interface{}{"phase": input.Phase, "percent": input.Percent},
	})
}

// BuildSessions is step 4: one session per (persona, task) pair, reusing a
// pending or failed session from a prior attempt rather than duplicating it.
func (a *Activity) BuildSessions(ctx context.Context, input workflows.BuildSessionsInput) (*workflows.BuildSessionsOutput, error) {
	var plans []workflows.SessionPlan
	for _, persona := range input.Personas {
		for _, task := range input.Tasks {
			session, err := a.repos.Sessions.GetByPersonaAndTask(ctx, persona.ID, task.ID)
			if err != nil {
				session = domain.NewSession(input.StudyID, persona.ID, task.ID)
				if err := a.repos.Sessions.Create(ctx, session); err != nil {
					return nil, fmt.Errorf("creating session for persona %s task %s: %w", persona.ID, task.ID, err)
				}
			} else if session.Status == domain.SessionStatusFailed {
				session.Status = domain.SessionStatusPending
				if err := a.repos.Sessions.Update(ctx, session); err != nil {
					return nil, fmt.Errorf("resetting failed session %s: %w", session.ID, err)
				}
			}
			plans = append(plans, workflows.SessionPlan{Session: session, Persona: persona, Task: task})
		}
	}
	return &workflows.BuildSessionsOutput{Sessions: plans}, nil
}

// RunSession is step 6's per-session unit of work: acquire a browser lease,
// run the Navigator loop, persist the outcome, and release the lease on
// every exit path.
func (a *Activity) RunSession(ctx context.Context, input workflows.RunSessionInput) (*workflows.RunSessionOutput, error) {
	logger := activity.GetLogger(ctx)
	session := input.Session
	session.Status = domain.SessionStatusRunning
	if err := a.repos.Sessions.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("marking session running: %w", err)
	}

	mode := browser.ModeLocal
	if input.BrowserMode == domain.BrowserModeCloud {
		mode = browser.ModeCloud
	}
	lease, err := a.pool.Acquire(ctx, mode, session.ID.String())
	if err != nil {
		session.Status = domain.SessionStatusFailed
		_ = a.repos.Sessions.Update(ctx, session)
		return nil, fmt.Errorf("acquiring browser lease: %w", err)
	}
	defer lease.Release()

	profile, err := personaProfileFromPersona(input.Persona)
	if err != nil {
		session.Status = domain.SessionStatusFailed
		_ = a.repos.Sessions.Update(ctx, session)
		return nil, fmt.Errorf("decoding persona profile: %w", err)
	}

	heartbeatDone := make(chan struct{})
	hbCtx, cancel := context.WithCancel(ctx)
	go a.heartbeatLoop(hbCtx, heartbeatDone, session.ID)
	startURL := input.StudyURL + input.StartingPath
	result := a.navigator.NavigateSession(ctx, input.StudyID, session.ID, profile, input.Task.Description, startURL, lease)
	cancel()
	<-heartbeatDone

	session.TotalSteps = result.TotalSteps
	session.TaskCompleted = result.TaskCompleted
	session.Summary = result.Summary
	session.EmotionalArc = emotionalArcToJSONB(result.EmotionalArc)
	switch {
	case result.TaskCompleted:
		session.Status = domain.SessionStatusComplete
	case result.GaveUp:
		session.Status = domain.SessionStatusGaveUp
	case result.Error != nil:
		session.Status = domain.SessionStatusFailed
	default:
		session.Status = domain.SessionStatusComplete
	}
	if err := a.repos.Sessions.Update(ctx, session); err != nil {
		logger.Error("persisting session result", "session_id", session.ID.String(), "error", err)
	}

	// Publish only after the terminal status commits, same persist-then-publish
	// order the Step Recorder uses for session:step (§4.3), then drop the
	// session's live-state entry now that the bus has told subscribers it's done.
	payload := map[string]interface{}{
		"status":         session.Status,
		"task_completed": result.TaskCompleted,
		"gave_up":        result.GaveUp,
	}
	if result.Error != nil {
		payload["error"] = result.Error.Error()
	}
	if err := a.bus.Publish(ctx, redis.Event{
		Kind:      redis.EventSessionComplete,
		StudyID:   input.StudyID,
		SessionID: session.ID.String(),
		Payload:   payload,
	}); err != nil {
		a.warnf("publishing session:complete event: %v", err)
	}
	if err := a.live.RemoveSession(ctx, input.StudyID, session.ID); err != nil {
		a.warnf("removing session %s from live state: %v", session.ID, err)
	}

	output := &workflows.RunSessionOutput{
		SessionID:     session.ID,
		Status:        session.Status,
		TaskCompleted: result.TaskCompleted,
		GaveUp:        result.GaveUp,
	}
	if result.Error != nil {
		output.Error = result.Error.Error()
	}
	return output, nil
}

func (a *Activity) heartbeatLoop(ctx context.Context, done chan struct{}, sessionID uuid.UUID) {
	defer close(done)
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			activity.RecordHeartbeat(ctx, map[string]interface{}{"session_id": sessionID.String()})
		}
	}
}

// AnalyzeSession is step 8's per-session unit of work.
func (a *Activity) AnalyzeSession(ctx context.Context, input workflows.AnalyzeSessionInput) (*workflows.AnalyzeSessionOutput, error) {
	session, err := a.repos.Sessions.GetByID(ctx, input.SessionID)
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	persona, err := a.repos.Personas.GetByID(ctx, session.PersonaID)
	if err != nil {
		return nil, fmt.Errorf("loading persona: %w", err)
	}
	steps, err := a.repos.Steps.ListBySession(ctx, input.SessionID)
	if err != nil {
		return nil, fmt.Errorf("loading steps: %w", err)
	}
	profile, err := personaProfileFromPersona(persona)
	if err != nil {
		return nil, fmt.Errorf("decoding persona profile: %w", err)
	}

	result, err := a.analyzer.AnalyzeSession(ctx, input.StudyID, input.SessionID, steps, profile.Name)
	if err != nil {
		return nil, fmt.Errorf("analyzing session: %w", err)
	}
	activity.RecordHeartbeat(ctx, map[string]interface{}{"session_id": input.SessionID.String(), "issues_found": len(result.DeduplicatedIssues)})
	return &workflows.AnalyzeSessionOutput{IssuesFound: len(result.DeduplicatedIssues)}, nil
}

// PrioritizeIssues is step 9.
func (a *Activity) PrioritizeIssues(ctx context.Context, input workflows.PrioritizeIssuesInput) (*workflows.PrioritizeIssuesOutput, error) {
	ranked, err := a.prioritizer.PrioritizeStudyIssues(ctx, input.StudyID)
	if err != nil {
		return nil, fmt.Errorf("prioritizing issues: %w", err)
	}
	return &workflows.PrioritizeIssuesOutput{IssuesCount: len(ranked)}, nil
}

// SynthesizeStudy is step 10.
func (a *Activity) SynthesizeStudy(ctx context.Context, input workflows.SynthesizeStudyInput) (*workflows.SynthesizeStudyOutput, error) {
	study, err := a.repos.Studies.GetByID(ctx, input.StudyID)
	if err != nil {
		return nil, fmt.Errorf("loading study: %w", err)
	}
	tasks, err := a.repos.Tasks.ListByStudy(ctx, input.StudyID)
	if err != nil {
		return nil, fmt.Errorf("loading tasks: %w", err)
	}
	taskDescriptions := make([]string, len(tasks))
	for i, t := range tasks {
		taskDescriptions[i] = t.Description
	}

	sessions, err := a.repos.Sessions.ListByStudy(ctx, input.StudyID)
	if err != nil {
		return nil, fmt.Errorf("loading sessions: %w", err)
	}
	summaries := make([]string, 0, len(sessions))
	for _, s := range sessions {
		if s.Summary != "" {
			summaries = append(summaries, s.Summary)
		}
	}

	issues, err := a.repos.Issues.ListByStudy(ctx, input.StudyID)
	if err != nil {
		return nil, fmt.Errorf("loading issues: %w", err)
	}
	issueValues := make([]domain.Issue, len(issues))
	for i, iss := range issues {
		issueValues[i] = *iss
	}

	outcome, usage, err := a.synthesizer.Synthesize(ctx, input.StudyID, study.URL, taskDescriptions, summaries, issueValues)
	if err != nil {
		return nil, fmt.Errorf("synthesizing study: %w", err)
	}
	if usage != nil {
		a.cost.RecordStudyUsage(ctx, input.StudyID, usage.InputTokens, usage.OutputTokens)
	}

	if err := a.repos.Insights.ReplaceAllForStudy(ctx, input.StudyID, outcome.Insights); err != nil {
		return nil, fmt.Errorf("persisting insights: %w", err)
	}

	study.OverallScore = &outcome.OverallScore
	for _, ins := range outcome.Insights {
		if ins.Type == domain.InsightUniversal && ins.Title == "Executive summary" {
			study.ExecutiveSummary = ins.Description
		}
	}
	if err := a.repos.Studies.Update(ctx, study); err != nil {
		return nil, fmt.Errorf("persisting overall score: %w", err)
	}

	if err := a.repos.Insights.CreateScoreHistory(ctx, domain.NewScoreHistory(input.StudyID, outcome.OverallScore, len(issues))); err != nil {
		a.warnf("persisting score history: %v", err)
	}

	return &workflows.SynthesizeStudyOutput{OverallScore: outcome.OverallScore}, nil
}

// PersistCostBreakdown is step 11.
func (a *Activity) PersistCostBreakdown(ctx context.Context, input workflows.PersistCostBreakdownInput) error {
	breakdown, err := a.cost.StudyCostBreakdown(ctx, input.StudyID)
	if err != nil {
		return fmt.Errorf("computing cost breakdown: %w", err)
	}
	study, err := a.repos.Studies.GetByID(ctx, input.StudyID)
	if err != nil {
		return fmt.Errorf("loading study: %w", err)
	}
	study.CostBreakdown = breakdown
	return a.repos.Studies.Update(ctx, study)
}

func (a *Activity) warnf(format string, args ...interface{}) {
	if a.logger != nil {
		a.logger.Sugar().Warnf(format, args...)
	}
}

// personaProfileFromPersona round-trips a Persona's stored JSONB profile
// back into the structured PersonaProfile the Navigator and LLM prompts
// consume.
func personaProfileFromPersona(p *domain.Persona) (domain.PersonaProfile, error) {
	raw, err := json.Marshal(p.Profile)
	if err != nil {
		return domain.PersonaProfile{}, err
	}
	var profile domain.PersonaProfile
	if err := json.Unmarshal(raw, &profile); err != nil {
		return domain.PersonaProfile{}, err
	}
	return profile, nil
}

func emotionalArcToJSONB(arc []domain.EmotionalArcEntry) domain.JSONB {
	raw, err := json.Marshal(arc)
	if err != nil {
		return nil
	}
	var out []interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return domain.JSONB{"entries": out}
}
