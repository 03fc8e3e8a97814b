package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/usabilitystudio/runtime/internal/domain"
	"github.com/usabilitystudio/runtime/internal/llm"
)

type fakeSynthesisLLM struct {
	llm.Client
	synthesis *llm.StudySynthesis
	errs      []error // one per call, in order; nil means success
	calls     int
}

func (f *fakeSynthesisLLM) SynthesizeStudy(ctx context.Context, req llm.SynthesizeStudyRequest) (*llm.StudySynthesis, *llm.Usage, error) {
	idx := f.calls
	f.calls++
	if idx < len(f.errs) && f.errs[idx] != nil {
		return nil, nil, f.errs[idx]
	}
	return f.synthesis, &llm.Usage{InputTokens: 10, OutputTokens: 20}, nil
}

func TestSynthesize_BuildsInsightsFromSynthesis(t *testing.T) {
	studyID := uuid.New()
	fakeLLM := &fakeSynthesisLLM{synthesis: &llm.StudySynthesis{
		OverallUXScore:   150, // out of range on purpose, must clamp to 100
		ExecutiveSummary: "Users struggled with checkout.",
		UniversalIssues:  []string{"Low contrast on primary CTAs"},
		PersonaSpecificFindings: []llm.PersonaFinding{
			{PersonaName: "Busy Parent", Finding: "Abandoned cart at shipping step"},
		},
		Recommendations: []llm.SynthesisRecommendation{
			{Title: "Simplify checkout", Description: "Cut form fields from 12 to 5", Impact: "high"},
		},
	}}

	s := NewSynthesizer(fakeLLM, nil)
	outcome, usage, err := s.Synthesize(context.Background(), studyID, "https://example.com", []string{"buy a shirt"}, []string{"session 1 summary"}, nil)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if outcome.OverallScore != 100 {
		t.Errorf("OverallScore = %d, want clamped to 100", outcome.OverallScore)
	}
	if usage.InputTokens != 10 {
		t.Errorf("usage not propagated: %+v", usage)
	}
	// summary + 1 universal + 1 persona-specific + 1 recommendation = 4
	if len(outcome.Insights) != 4 {
		t.Fatalf("Insights = %d, want 4", len(outcome.Insights))
	}
	var sawRecommendation bool
	for _, ins := range outcome.Insights {
		if ins.Type == domain.InsightRecommendation {
			sawRecommendation = true
			if ins.Rank == nil || *ins.Rank != 1 {
				t.Errorf("recommendation rank = %v, want 1", ins.Rank)
			}
		}
	}
	if !sawRecommendation {
		t.Error("expected a recommendation insight")
	}
}

func TestSynthesize_RetriesTransientThenSucceeds(t *testing.T) {
	fakeLLM := &fakeSynthesisLLM{
		synthesis: &llm.StudySynthesis{OverallUXScore: 70},
		errs:      []error{domain.ErrLLMTransient(errors.New("rate limited")), nil},
	}
	s := NewSynthesizer(fakeLLM, nil)
	s.retryDelay = 0 // test override, see synthesizer.go
	outcome, _, err := s.Synthesize(context.Background(), uuid.New(), "https://example.com", nil, nil, nil)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if fakeLLM.calls != 2 {
		t.Errorf("calls = %d, want 2 (1 transient failure + 1 success)", fakeLLM.calls)
	}
	if outcome.OverallScore != 70 {
		t.Errorf("OverallScore = %d, want 70", outcome.OverallScore)
	}
}

func TestSynthesize_NonTransientErrorDoesNotRetry(t *testing.T) {
	fakeLLM := &fakeSynthesisLLM{
		errs: []error{domain.ErrLLMSchema("bad json", nil)},
	}
	s := NewSynthesizer(fakeLLM, nil)
	_, _, err := s.Synthesize(context.Background(), uuid.New(), "https://example.com", nil, nil, nil)
	if err == nil {
		t.Fatal("expected a non-transient error to propagate immediately")
	}
	if fakeLLM.calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry on a non-transient error)", fakeLLM.calls)
	}
}
