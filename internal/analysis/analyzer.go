// Package analysis implements §4.6's Analyzer/Prioritizer/Synthesizer
// pipeline: a per-URL vision pass over a completed session, cross-session
// priority scoring, and a single whole-study synthesis call.
package analysis

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/usabilitystudio/runtime/internal/domain"
	"github.com/usabilitystudio/runtime/internal/llm"
	"github.com/usabilitystudio/runtime/internal/storage"
)

// IssueWriter is the narrow persistence surface the Analyzer needs.
type IssueWriter interface {
	Create(ctx context.Context, i *domain.Issue) error
}

// AnalysisResult mirrors original_source's AnalysisResult dataclass: every
// issue surfaced across the session's distinct pages, and the
// within-session deduplicated set that actually gets persisted.
type AnalysisResult struct {
	SessionID          uuid.UUID
	AllIssues          []*domain.Issue
	DeduplicatedIssues []*domain.Issue
}

// Analyzer runs the per-URL vision pass described in §4.6.
type Analyzer struct {
	llm    llm.Client
	blobs  storage.BlobStore
	issues IssueWriter
	logger *zap.Logger
}

// NewAnalyzer builds an Analyzer.
func NewAnalyzer(llmClient llm.Client, blobs storage.BlobStore, issues IssueWriter, logger *zap.Logger) *Analyzer {
	return &Analyzer{llm: llmClient, blobs: blobs, issues: issues, logger: logger}
}

// AnalyzeSession analyzes only the distinct page URLs seen in steps,
// skipping repeats. A page whose vision call or screenshot fetch fails is
// logged and skipped, not fatal to the rest of the session.
func (a *Analyzer) AnalyzeSession(ctx context.Context, studyID, sessionID uuid.UUID, steps []*domain.Step, personaContext string) (*AnalysisResult, error) {
	result := &AnalysisResult{SessionID: sessionID}
	seen := make(map[string]bool)

	for _, step := range steps {
		if step.PageURL == "" || seen[step.PageURL] {
			continue
		}
		seen[step.PageURL] = true

		if step.ScreenshotRef == "" {
			continue
		}
		shot, err := a.blobs.Get(ctx, step.ScreenshotRef)
		if err != nil {
			a.warnf("fetching screenshot for step %d: %v", step.StepNumber, err)
			continue
		}

		analyzed, _, err := a.llm.AnalyzeScreenshot(ctx, llm.AnalyzeScreenshotRequest{
			PageURL:        step.PageURL,
			PersonaContext: personaContext,
			Screenshot:     shot,
		})
		if err != nil {
			a.warnf("analyzing %s (step %d): %v", step.PageURL, step.StepNumber, err)
			continue
		}

		for _, ux := range analyzed.Issues {
			issue := domain.NewIssue(studyID, sessionID, ux.Description, domain.Severity(ux.Severity), domain.IssueType(ux.IssueType))
			issue.Element = ux.Element
			issue.PageURL = step.PageURL
			issue.StepID = &step.ID
			result.AllIssues = append(result.AllIssues, issue)
		}
	}

	result.DeduplicatedIssues = dedupeBySeverity(result.AllIssues)
	for _, issue := range result.DeduplicatedIssues {
		if err := a.issues.Create(ctx, issue); err != nil {
			a.warnf("persisting issue for session %s: %v", sessionID, err)
		}
	}

	return result, nil
}

// dedupeBySeverity groups issues by Issue.DedupKey (§4.6's within-session
// element+description key), keeping the highest-severity variant per group.
func dedupeBySeverity(issues []*domain.Issue) []*domain.Issue {
	if len(issues) == 0 {
		return nil
	}
	byKey := make(map[string]*domain.Issue, len(issues))
	order := make([]string, 0, len(issues))
	for _, issue := range issues {
		key := issue.DedupKey()
		existing, ok := byKey[key]
		if !ok {
			byKey[key] = issue
			order = append(order, key)
			continue
		}
		if issue.Severity.MoreSevereThan(existing.Severity) {
			byKey[key] = issue
		}
	}
	out := make([]*domain.Issue, 0, len(order))
	for _, key := range order {
		out = append(out, byKey[key])
	}
	return out
}

func (a *Analyzer) warnf(format string, args ...interface{}) {
	if a.logger != nil {
		a.logger.Sugar().Warnf(format, args...)
	}
}
