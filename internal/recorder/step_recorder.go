// Package recorder implements the Step Recorder (§4.3): the sole writer of
// Step rows, responsible for the at-most-once insertion guarantee and for
// keeping the Live State Store and Progress Bus (§4.5) consistent with what
// actually committed to durable storage.
package recorder

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/usabilitystudio/runtime/internal/domain"
	"github.com/usabilitystudio/runtime/internal/llm"
	"github.com/usabilitystudio/runtime/internal/repository/redis"
	"github.com/usabilitystudio/runtime/internal/storage"
)

// Observation is what the Navigator captured about the page before deciding
// an action (§4.2 step 1), plus the action's resulting interaction geometry
// once it has been dispatched (§4.2 step 3).
type Observation struct {
	PageURL      string
	PageTitle    string
	ViewportW    int
	ViewportH    int
	ScrollY      *int
	MaxScrollY   *int
	LoadTimeMs   *int
	FirstPaintMs *int
	ClickX       *int
	ClickY       *int
}

// Decision is the validated, domain-typed form of the LLM's navigate_decision
// output (llm.Decision, after DecisionAction.ToDomain has run).
type Decision struct {
	ThinkAloud     string
	EmotionalState domain.EmotionalState
	Action         domain.Action
	Confidence     float64
	TaskProgress   int
}

// StepRepository is the subset of postgres.StepRepository the recorder needs.
type StepRepository interface {
	Create(ctx context.Context, s *domain.Step) error
}

// SessionRepository is the subset of postgres.SessionRepository the recorder needs.
type SessionRepository interface {
	IncrementTotalSteps(ctx context.Context, id uuid.UUID) error
}

// StepRecorder is the exclusive writer of Step rows. Every Navigator shares
// one instance; there is no per-session state here (§5's "no other global
// mutables" applies in reverse: the recorder itself holds none).
type StepRecorder struct {
	steps    StepRepository
	sessions SessionRepository
	blobs    storage.BlobStore
	live     *redis.LiveStateStore
	bus      *redis.ProgressBus
	logger   *zap.Logger
}

// New builds a StepRecorder from its four collaborators, per §4.3's
// dependency list: durable store, blob store, live-state store, bus.
func New(steps StepRepository, sessions SessionRepository, blobs storage.BlobStore, live *redis.LiveStateStore, bus *redis.ProgressBus, logger *zap.Logger) *StepRecorder {
	return &StepRecorder{steps: steps, sessions: sessions, blobs: blobs, live: live, bus: bus, logger: logger}
}

func screenshotPath(studyID, sessionID uuid.UUID, stepNumber int) string {
	return fmt.Sprintf("studies/%s/sessions/%s/steps/step_%03d.png", studyID, sessionID, stepNumber)
}

// RecordStep persists one step and fans it out, in the exact order §4.3
// requires: (1) screenshot to blob storage, (2) Step row, (3) live-state
// upsert, (4) best-effort event publish. A conflict on step (2) — the step
// was already recorded, e.g. after an activity retry — is treated as success
// rather than as an error, since the insert is idempotent by construction;
// the id returned in that case is the one generated for this attempt, not
// the id of the row already stored.
func (r *StepRecorder) RecordStep(ctx context.Context, studyID, sessionID uuid.UUID, stepNumber int, decision Decision, obs Observation, screenshotBytes []byte) (uuid.UUID, error) {
	ref := screenshotPath(studyID, sessionID, stepNumber)
	if len(screenshotBytes) > 0 {
		if err := r.blobs.Put(ctx, ref, screenshotBytes); err != nil {
			return uuid.Nil, fmt.Errorf("persisting screenshot: %w", err)
		}
	}

	step := &domain.Step{
		ID:             uuid.New(),
		SessionID:      sessionID,
		StepNumber:     stepNumber,
		PageURL:        obs.PageURL,
		PageTitle:      obs.PageTitle,
		ScreenshotRef:  ref,
		ThinkAloud:     decision.ThinkAloud,
		ActionType:     decision.Action.Type,
		ActionSelector: decision.Action.Selector,
		ActionValue:    decision.Action.Value,
		Confidence:     decision.Confidence,
		TaskProgress:   decision.TaskProgress,
		EmotionalState: decision.EmotionalState,
		ClickX:         obs.ClickX,
		ClickY:         obs.ClickY,
		ViewportW:      obs.ViewportW,
		ViewportH:      obs.ViewportH,
		ScrollY:        obs.ScrollY,
		MaxScrollY:     obs.MaxScrollY,
		LoadTimeMs:     obs.LoadTimeMs,
		FirstPaintMs:   obs.FirstPaintMs,
	}

	if err := r.steps.Create(ctx, step); err != nil {
		if domain.GetErrorCode(err) == domain.ErrCodeConflict {
			if r.logger != nil {
				r.logger.Warn("step already recorded, treating as at-most-once duplicate",
					zap.String("session_id", sessionID.String()), zap.Int("step_number", stepNumber))
			}
			return step.ID, nil
		}
		return uuid.Nil, fmt.Errorf("inserting step: %w", err)
	}

	if err := r.sessions.IncrementTotalSteps(ctx, sessionID); err != nil && r.logger != nil {
		r.logger.Error("incrementing session total_steps", zap.Error(err), zap.String("session_id", sessionID.String()))
	}

	if r.live != nil {
		stepNum := stepNumber
		active := true
		progress := decision.TaskProgress
		_, err := r.live.Upsert(ctx, studyID, sessionID, redis.LiveState{
			SessionID:      sessionID.String(),
			StepNumber:     &stepNum,
			EmotionalState: string(decision.EmotionalState),
			BrowserActive:  &active,
			Action:         string(decision.Action.Type),
			ThinkAloud:     decision.ThinkAloud,
			ScreenshotURL:  r.blobs.FullPath(ref),
			TaskProgress:   &progress,
		})
		if err != nil && r.logger != nil {
			r.logger.Warn("upserting live state", zap.Error(err), zap.String("session_id", sessionID.String()))
		}
	}

	// Publish is best-effort and happens only after the insert above commits,
	// so subscribers never observe a ghost step; a publish failure is
	// recovered by the subscriber's next snapshot read.
	if r.bus != nil {
		err := r.bus.Publish(ctx, redis.Event{
			Kind:      redis.EventSessionStep,
			StudyID:   studyID,
			SessionID: sessionID.String(),
			Payload:   stepEventPayload(step),
		})
		if err != nil && r.logger != nil {
			r.logger.Warn("publishing session:step event", zap.Error(err), zap.String("session_id", sessionID.String()))
		}
	}

	return step.ID, nil
}

func stepEventPayload(s *domain.Step) map[string]any {
	return map[string]any{
		"step_id":         s.ID,
		"step_number":     s.StepNumber,
		"page_url":        s.PageURL,
		"think_aloud":     s.ThinkAloud,
		"action_type":     s.ActionType,
		"emotional_state": s.EmotionalState,
		"task_progress":   s.TaskProgress,
		"confidence":      s.Confidence,
	}
}

// FromLLMDecision converts a validated llm.Decision plus its domain action
// into the recorder's Decision shape, used by the Navigator after
// DecisionAction.ToDomain succeeds.
func FromLLMDecision(d llm.Decision, action domain.Action) Decision {
	return Decision{
		ThinkAloud:     d.ThinkAloud,
		EmotionalState: domain.EmotionalState(d.EmotionalState),
		Action:         action,
		Confidence:     d.Confidence,
		TaskProgress:   d.TaskProgress,
	}
}
