// Package jobqueue is the queue-dispatched entrypoint for run_study_task
// (§4.7): translating a bare study ID into a Temporal workflow start, with
// the queue-layer timeout the spec requires on top of whatever per-session
// timeouts run inside the study itself.
package jobqueue

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"

	"github.com/usabilitystudio/runtime/internal/config"
	"github.com/usabilitystudio/runtime/internal/domain"
	itemporal "github.com/usabilitystudio/runtime/internal/temporal"
	"github.com/usabilitystudio/runtime/internal/workflows"
)

// Dispatcher starts RunStudyWorkflow executions on the configured task
// queue, one per run_study_task job.
type Dispatcher struct {
	client *itemporal.Client
	cfg    config.StudyConfig
}

// NewDispatcher constructs a Dispatcher over an already-connected Temporal
// client.
func NewDispatcher(c *itemporal.Client, cfg config.StudyConfig) *Dispatcher {
	return &Dispatcher{client: c, cfg: cfg}
}

// DispatchRunStudy starts run_study_task for studyID: a RunStudyWorkflow
// execution, workflow-ID-keyed so a redelivered job targeting the same
// study lands on the same workflow rather than starting a duplicate run.
// STUDY_TIMEOUT_SECONDS bounds the whole execution at the queue layer, in
// addition to whatever per-session timeout the Navigator enforces inside.
func (d *Dispatcher) DispatchRunStudy(ctx context.Context, studyID uuid.UUID, browserModeOverride *domain.BrowserMode) (client.WorkflowRun, error) {
	options := client.StartWorkflowOptions{
		ID:                       fmt.Sprintf("study-%s", studyID),
		TaskQueue:                d.client.TaskQueue(),
		WorkflowExecutionTimeout: d.cfg.Timeout(),
		WorkflowIDReusePolicy:    enumspb.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
	}
	return d.client.ExecuteWorkflow(ctx, options, workflows.RunStudyWorkflow, workflows.RunStudyInput{
		StudyID:             studyID,
		BrowserModeOverride: browserModeOverride,
	})
}
