// Package navigator drives one browser context through the decide->act->observe
// loop of §4.2, turning an LLM-generated persona loose on a task until it
// completes, gives up, or is stopped by a blocker, a step budget, or a
// session timeout.
package navigator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/usabilitystudio/runtime/internal/browser"
	"github.com/usabilitystudio/runtime/internal/domain"
	"github.com/usabilitystudio/runtime/internal/llm"
	"github.com/usabilitystudio/runtime/internal/recorder"
)

// Config holds the Navigator's tunables, all defaulted per §4.2/§4.1.
type Config struct {
	MaxStepsPerSession int
	PerActionTimeout   time.Duration
	ActionRetries      int
	SessionTimeout     time.Duration
	StuckDiffEpsilon   float64
}

// DefaultConfig returns the spec's stated defaults.
func DefaultConfig() Config {
	return Config{
		MaxStepsPerSession: 30,
		PerActionTimeout:   15 * time.Second,
		ActionRetries:      1,
		SessionTimeout:     600 * time.Second,
		StuckDiffEpsilon:   0.02,
	}
}

// Recorder is the subset of recorder.StepRecorder the Navigator depends on.
type Recorder interface {
	RecordStep(ctx context.Context, studyID, sessionID uuid.UUID, stepNumber int, decision recorder.Decision, obs recorder.Observation, screenshotBytes []byte) (uuid.UUID, error)
}

// NavigationResult is §4.2's public return value.
type NavigationResult struct {
	TaskCompleted bool
	GaveUp        bool
	GaveUpReason  string
	TotalSteps    int
	Summary       string
	EmotionalArc  []domain.EmotionalArcEntry
	Error         error
}

// Navigator drives one session's browser context to completion.
type Navigator struct {
	llmClient llm.Client
	recorder  Recorder
	cfg       Config
	logger    *zap.Logger
}

// New builds a Navigator. cfg's zero value is replaced by DefaultConfig.
func New(llmClient llm.Client, rec Recorder, cfg Config, logger *zap.Logger) *Navigator {
	d := DefaultConfig()
	if cfg.MaxStepsPerSession <= 0 {
		cfg.MaxStepsPerSession = d.MaxStepsPerSession
	}
	if cfg.PerActionTimeout <= 0 {
		cfg.PerActionTimeout = d.PerActionTimeout
	}
	if cfg.SessionTimeout <= 0 {
		cfg.SessionTimeout = d.SessionTimeout
	}
	if cfg.StuckDiffEpsilon <= 0 {
		cfg.StuckDiffEpsilon = d.StuckDiffEpsilon
	}
	return &Navigator{llmClient: llmClient, recorder: rec, cfg: cfg, logger: logger}
}

// NavigateSession runs the full decide->act->observe loop for one session,
// per §4.2's state machine: INIT -> LOADING -> DECIDING -> ACTING ->
// OBSERVING -> (DECIDING | TERMINAL). The states aren't reified as a value
// here; each one is simply the code region below with that name in its
// comment, since nothing outside this function ever needs to inspect the
// current state mid-loop.
func (n *Navigator) NavigateSession(ctx context.Context, studyID, sessionID uuid.UUID, persona domain.PersonaProfile, task, startURL string, lease *browser.Lease) NavigationResult {
	ctx, cancel := context.WithTimeout(ctx, n.cfg.SessionTimeout)
	defer cancel()

	var (
		arc          []domain.EmotionalArcEntry
		priorSteps   []string
		lastShot     []byte
		nearZeroRuns int
	)

	// LOADING
	if err := lease.Driver.Goto(startURL, n.cfg.PerActionTimeout); err != nil {
		return NavigationResult{Error: fmt.Errorf("initial navigation to %s: %w", startURL, err)}
	}
	n.dismissConsent(lease)

	for step := 1; step <= n.cfg.MaxStepsPerSession; step++ {
		select {
		case <-ctx.Done():
			return n.finish(true, "timed out", step-1, priorSteps, arc)
		default:
		}

		// OBSERVING
		obs, shot, err := n.observe(lease)
		if err != nil {
			return NavigationResult{Error: fmt.Errorf("observing step %d: %w", step, err), TotalSteps: step - 1}
		}

		diffScore := computeDiff(lastShot, shot)
		stuck := false
		if diffScore >= 0 && diffScore < n.cfg.StuckDiffEpsilon {
			nearZeroRuns++
		} else {
			nearZeroRuns = 0
		}
		if nearZeroRuns >= 3 {
			stuck = true
		}
		lastShot = shot

		// DECIDING
		decision, _, err := n.llmClient.NavigateDecision(ctx, llm.NavigateDecisionRequest{
			Persona:           persona,
			Task:              task,
			PriorStepsSummary: joinRecent(priorSteps, 5),
			CurrentURL:        obs.PageURL,
			PageTitle:         obs.PageTitle,
			ViewportW:         obs.ViewportW,
			ViewportH:         obs.ViewportH,
			ScrollY:           derefInt(obs.ScrollY),
			MaxScrollY:        derefInt(obs.MaxScrollY),
			DOMOutline:        domOutline(lease),
			Screenshot:        shot,
			StuckSignal:       stuck,
		})
		if err != nil {
			return NavigationResult{Error: fmt.Errorf("deciding step %d: %w", step, err), TotalSteps: step - 1}
		}

		action, err := decision.Action.ToDomain()
		if err != nil {
			return NavigationResult{Error: fmt.Errorf("invalid decision at step %d: %w", step, err), TotalSteps: step - 1}
		}

		// ACTING
		var actErr error
		if !action.Type.IsTerminal() {
			actErr = n.dispatchWithRetry(lease, action)
		}

		rec := recorder.FromLLMDecision(*decision, action)
		if _, err := n.recorder.RecordStep(ctx, studyID, sessionID, step, rec, obs, shot); err != nil {
			n.warnf("recording step %d: %v", step, err)
		}
		priorSteps = append(priorSteps, fmt.Sprintf("[%d] %s %s -> %s", step, action.Type, action.Selector, decision.ThinkAloud))
		arc = append(arc, domain.EmotionalArcEntry{StepNumber: step, PageURL: obs.PageURL, EmotionalState: domain.EmotionalState(decision.EmotionalState)})

		if actErr != nil {
			return NavigationResult{Error: fmt.Errorf("action failed at step %d: %w", step, actErr), TotalSteps: step, EmotionalArc: arc}
		}

		if blockers := browser.DetectBlockers(lease.Driver.Page(), startURL); len(blockers) > 0 {
			n.recordGiveUp(ctx, studyID, sessionID, step+1, blockers[0], obs)
			return n.finish(true, string(blockers[0].Kind)+": "+blockers[0].Detail, step, priorSteps, arc)
		}

		// TERMINAL: DONE
		if action.Type == domain.ActionDone || decision.TaskProgress >= 100 {
			return NavigationResult{TaskCompleted: true, TotalSteps: step, Summary: summarize(priorSteps), EmotionalArc: arc}
		}
		// TERMINAL: GAVE_UP
		if action.Type == domain.ActionGiveUp {
			return n.finish(true, "persona gave up", step, priorSteps, arc)
		}
	}

	return n.finish(true, "exhausted", n.cfg.MaxStepsPerSession, priorSteps, arc)
}

func (n *Navigator) finish(gaveUp bool, reason string, totalSteps int, priorSteps []string, arc []domain.EmotionalArcEntry) NavigationResult {
	return NavigationResult{
		GaveUp:       gaveUp,
		GaveUpReason: reason,
		TotalSteps:   totalSteps,
		Summary:      summarize(priorSteps),
		EmotionalArc: arc,
	}
}

func (n *Navigator) recordGiveUp(ctx context.Context, studyID, sessionID uuid.UUID, step int, b browser.Blocker, obs recorder.Observation) {
	decision := recorder.Decision{
		ThinkAloud:     fmt.Sprintf("blocked: %s", b.Detail),
		EmotionalState: domain.EmotionFrustrated,
		Action:         domain.Action{Type: domain.ActionGiveUp, Description: string(b.Kind)},
		Confidence:     1,
		TaskProgress:   0,
	}
	if _, err := n.recorder.RecordStep(ctx, studyID, sessionID, step, decision, obs, nil); err != nil {
		n.warnf("recording blocker give_up step: %v", err)
	}
}

func (n *Navigator) dismissConsent(lease *browser.Lease) {
	browser.DismissCookieConsent(lease.Driver.Page())
}

func joinRecent(steps []string, n int) string {
	if len(steps) == 0 {
		return ""
	}
	if len(steps) > n {
		steps = steps[len(steps)-n:]
	}
	out := ""
	for _, s := range steps {
		out += s + "\n"
	}
	return out
}

func summarize(steps []string) string {
	if len(steps) == 0 {
		return "no steps taken"
	}
	return fmt.Sprintf("%d steps taken; last: %s", len(steps), steps[len(steps)-1])
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func (n *Navigator) warnf(format string, args ...interface{}) {
	if n.logger != nil {
		n.logger.Sugar().Warnf(format, args...)
	}
}
