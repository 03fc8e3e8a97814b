package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/usabilitystudio/runtime/internal/domain"
	"github.com/usabilitystudio/runtime/internal/llm"
)

// SynthesisOutcome bundles the overall score with the Insight rows derived
// from it, ready for InsightRepository.ReplaceAllForStudy.
type SynthesisOutcome struct {
	OverallScore int
	Insights     []*domain.Insight
}

// Synthesizer runs §4.6's single whole-study synthesis call.
type Synthesizer struct {
	llm    llm.Client
	logger *zap.Logger

	// retryDelay is the backoff unit between synthesis attempts (multiplied
	// by the attempt number). Exposed only so tests can zero it out.
	retryDelay time.Duration
}

// NewSynthesizer builds a Synthesizer.
func NewSynthesizer(llmClient llm.Client, logger *zap.Logger) *Synthesizer {
	return &Synthesizer{llm: llmClient, logger: logger, retryDelay: time.Second}
}

// Synthesize is pure over its inputs and stateless; it retries transient
// failures up to 3x, per §4.6. llm.Client.SynthesizeStudy already applies
// its own backoff internally (completeWithBackoff); this loop implements the
// Synthesizer's own retry contract at the layer the spec names it, since the
// two concerns (HTTP-transient retry vs. "the synthesis step itself is
// allowed 3 attempts") are distinct per spec.md.
func (s *Synthesizer) Synthesize(ctx context.Context, studyID uuid.UUID, studyURL string, tasks []string, sessionSummaries []string, allIssues []domain.Issue) (*SynthesisOutcome, *llm.Usage, error) {
	var (
		synthesis *llm.StudySynthesis
		usage     *llm.Usage
		lastErr   error
	)
	for attempt := 0; attempt < 3; attempt++ {
		synthesis, usage, lastErr = s.llm.SynthesizeStudy(ctx, llm.SynthesizeStudyRequest{
			StudyURL:         studyURL,
			Tasks:            tasks,
			SessionSummaries: sessionSummaries,
			AllIssues:        allIssues,
		})
		if lastErr == nil {
			break
		}
		if domain.GetErrorCode(lastErr) != domain.ErrCodeLLMTransient {
			return nil, usage, lastErr
		}
		s.warnf("synthesis attempt %d failed transiently: %v", attempt+1, lastErr)
		select {
		case <-ctx.Done():
			return nil, usage, ctx.Err()
		case <-time.After(time.Duration(attempt+1) * s.retryDelay):
		}
	}
	if lastErr != nil {
		return nil, usage, fmt.Errorf("synthesis failed after 3 attempts: %w", lastErr)
	}

	return &SynthesisOutcome{
		OverallScore: clampScore(synthesis.OverallUXScore),
		Insights:     insightsFromSynthesis(studyID, synthesis),
	}, usage, nil
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func insightsFromSynthesis(studyID uuid.UUID, s *llm.StudySynthesis) []*domain.Insight {
	var out []*domain.Insight

	if s.ExecutiveSummary != "" {
		out = append(out, domain.NewInsight(studyID, domain.InsightUniversal, "Executive summary", s.ExecutiveSummary))
	}
	for i, u := range s.UniversalIssues {
		out = append(out, domain.NewInsight(studyID, domain.InsightUniversal, fmt.Sprintf("Universal issue %d", i+1), u))
	}
	for _, f := range s.PersonaSpecificFindings {
		insight := domain.NewInsight(studyID, domain.InsightPersonaSpecific, f.PersonaName, f.Finding)
		insight.PersonasAffected = domain.JSONB{"persona_name": f.PersonaName}
		out = append(out, insight)
	}
	for i, r := range s.Recommendations {
		insight := domain.NewInsight(studyID, domain.InsightRecommendation, r.Title, r.Description)
		insight.Impact = r.Impact
		rank := i + 1
		insight.Rank = &rank
		out = append(out, insight)
	}

	return out
}

func (s *Synthesizer) warnf(format string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Sugar().Warnf(format, args...)
	}
}
