package workflows

import (
	"github.com/google/uuid"

	"github.com/usabilitystudio/runtime/internal/domain"
)

// Activity names for the study orchestration workflow - must match the
// names each activity is registered under.
const (
	LoadStudyActivityName             = "LoadStudyActivity"
	ClearLiveStateActivityName        = "ClearLiveStateActivity"
	TransitionStudyStatusActivityName = "TransitionStudyStatusActivity"
	BuildSessionsActivityName         = "BuildSessionsActivity"
	RunSessionActivityName            = "RunSessionActivity"
	AnalyzeSessionActivityName        = "AnalyzeSessionActivity"
	PrioritizeIssuesActivityName      = "PrioritizeIssuesActivity"
	SynthesizeStudyActivityName       = "SynthesizeStudyActivity"
	PersistCostBreakdownActivityName  = "PersistCostBreakdownActivity"
	PublishStudyProgressActivityName  = "PublishStudyProgressActivity"
)

// RunStudyInput is RunStudy's public contract (§4.1): drive a study from
// its current status to a terminal one.
type RunStudyInput struct {
	StudyID             uuid.UUID
	BrowserModeOverride *domain.BrowserMode
}

// RunStudyOutput is returned once the study reaches complete or failed.
type RunStudyOutput struct {
	StudyID      uuid.UUID
	Status       domain.StudyStatus
	OverallScore *int
	IssuesCount  int
	Error        string
}

// LoadStudyOutput is step 1's result: the study plus its tasks and
// personas, and the static runtime knobs the workflow needs to plan
// concurrency and browser mode without performing I/O itself.
type LoadStudyOutput struct {
	Study                 *domain.Study
	Tasks                 []*domain.Task
	Personas              []*domain.Persona
	MaxConcurrentSessions int
	CloudAvailable        bool
}

// ClearLiveStateInput is step 2's input.
type ClearLiveStateInput struct {
	StudyID uuid.UUID
}

// StudyProgressEvent describes the progress-bus event a status transition
// should publish in the same activity that persists it, mirroring Step
// Recorder's persist-then-publish ordering (§4.3) at the study level.
type StudyProgressEvent struct {
	Kind        string
	Percent     int
	Phase       string
	Score       *int
	IssuesCount int
}

// TransitionStudyStatusInput drives steps 3, 7, 12, and the failure path:
// move the study to a new status, optionally stamp started_at/error, and
// publish the matching event.
type TransitionStudyStatusInput struct {
	StudyID    uuid.UUID
	Next       domain.StudyStatus
	StampStart bool
	ErrorMsg   string
	Event      *StudyProgressEvent
}

// BuildSessionsInput is step 4's input: the Cartesian product to cover.
type BuildSessionsInput struct {
	StudyID  uuid.UUID
	Tasks    []*domain.Task
	Personas []*domain.Persona
}

// SessionPlan binds one persisted session to the persona/task pair that
// owns it.
type SessionPlan struct {
	Session *domain.Session
	Persona *domain.Persona
	Task    *domain.Task
}

// BuildSessionsOutput is step 4's result: one plan per session to run,
// whether newly created or reused from a prior failed/pending attempt.
type BuildSessionsOutput struct {
	Sessions []SessionPlan
}

// RunSessionInput is step 6's per-session unit of work.
type RunSessionInput struct {
	StudyID      uuid.UUID
	StudyURL     string
	StartingPath string
	Session      *domain.Session
	Persona      *domain.Persona
	Task         *domain.Task
	BrowserMode  domain.BrowserMode
}

// RunSessionOutput is step 6's per-session result.
type RunSessionOutput struct {
	SessionID     uuid.UUID
	Status        domain.SessionStatus
	TaskCompleted bool
	GaveUp        bool
	Error         string
}

// AnalyzeSessionInput is step 8's per-session unit of work.
type AnalyzeSessionInput struct {
	StudyID   uuid.UUID
	SessionID uuid.UUID
}

// AnalyzeSessionOutput is step 8's per-session result.
type AnalyzeSessionOutput struct {
	IssuesFound int
}

// PrioritizeIssuesInput is step 9's input.
type PrioritizeIssuesInput struct {
	StudyID uuid.UUID
}

// PrioritizeIssuesOutput is step 9's result.
type PrioritizeIssuesOutput struct {
	IssuesCount int
}

// SynthesizeStudyInput is step 10's input.
type SynthesizeStudyInput struct {
	StudyID uuid.UUID
}

// SynthesizeStudyOutput is step 10's result.
type SynthesizeStudyOutput struct {
	OverallScore int
}

// PersistCostBreakdownInput is step 11's input.
type PersistCostBreakdownInput struct {
	StudyID uuid.UUID
}

// PublishStudyProgressInput republishes a bare study:progress event.
// Navigation's 5-85% band is interpolated across completed sessions as the
// bounded fan-out in step 6 drains, which doesn't fit any single status
// transition, so it gets its own lightweight activity.
type PublishStudyProgressInput struct {
	StudyID uuid.UUID
	Percent int
	Phase   string
}
