// Package llm provides the study runtime's LLM capability contract and a
// Claude-backed implementation, grounded on the teacher's internal/llm client:
// rate limiting, circuit breaking, response caching, and cost metrics carry
// over unchanged; the request/response shapes and prompt construction are new.
package llm

import (
	"context"
	"sync"
	"time"

	"github.com/usabilitystudio/runtime/internal/domain"
)

// Client is the capability set an LLM vendor must satisfy per spec.md §6:
// {plan_study, generate_persona, navigate_decision, analyze_screenshot,
// synthesize_study, generate_fix_suggestion}. Every operation returns a
// schema-validated structured value plus token usage for cost accounting.
type Client interface {
	// PlanStudy generates a task list and persona roster for a bare URL and
	// an optional free-text study goal.
	PlanStudy(ctx context.Context, url, startingPath, goal string) (*StudyPlan, *Usage, error)

	// GeneratePersona generates one additional persona profile, optionally
	// steered by a free-text hint (e.g. "a screen-reader user").
	GeneratePersona(ctx context.Context, url, hint string) (*PersonaGeneration, *Usage, error)

	// NavigateDecision is the Navigator's decide step (§4.2 step 2). It must
	// accept a screenshot and return a decision parseable by the tolerant
	// JSON pipeline.
	NavigateDecision(ctx context.Context, req NavigateDecisionRequest) (*Decision, *Usage, error)

	// AnalyzeScreenshot is the Analyzer's per-URL vision pass (§4.6).
	AnalyzeScreenshot(ctx context.Context, req AnalyzeScreenshotRequest) (*AnalysisResult, *Usage, error)

	// SynthesizeStudy is the single whole-study synthesis call (§4.6
	// Synthesizer). Pure over its inputs; the caller retries transient
	// failures up to 3x.
	SynthesizeStudy(ctx context.Context, req SynthesizeStudyRequest) (*StudySynthesis, *Usage, error)

	// GenerateFixSuggestion proposes a remediation for one prioritized issue.
	GenerateFixSuggestion(ctx context.Context, issue domain.Issue, pageURL string) (*FixSuggestion, *Usage, error)

	// Metrics exposes accumulated usage/cost/cache/circuit-breaker counters
	// for the health endpoint and the Orchestrator's cost breakdown (§4.1
	// step 11).
	Metrics() Metrics

	// Healthy reports whether the circuit breaker currently admits requests.
	Healthy() bool
}

// NavigateDecisionRequest bundles the decide step's inputs (§4.2 step 2).
type NavigateDecisionRequest struct {
	Persona            domain.PersonaProfile
	Task               string
	PriorStepsSummary   string
	CurrentURL          string
	PageTitle           string
	ViewportW, ViewportH int
	ScrollY, MaxScrollY int
	DOMOutline          string
	Screenshot          []byte
	StuckSignal         bool
}

// AnalyzeScreenshotRequest bundles the Analyzer's per-URL vision pass inputs.
type AnalyzeScreenshotRequest struct {
	PageURL        string
	PersonaContext string
	Screenshot     []byte
}

// SynthesizeStudyRequest bundles the Synthesizer's whole-study inputs.
type SynthesizeStudyRequest struct {
	StudyURL        string
	Tasks           []string
	SessionSummaries []string
	AllIssues       []domain.Issue
}

// Usage contains token usage information for one LLM call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Metrics tracks API usage across a Client's lifetime, grounded verbatim on
// the teacher's claude.go Metrics struct.
type Metrics struct {
	TotalRequests   int64
	SuccessRequests int64
	FailedRequests  int64
	TotalTokensIn   int64
	TotalTokensOut  int64
	TotalCost       float64
	TotalLatencyMs  int64
	CacheHits       int64
	CacheMisses     int64
	CircuitBreaks   int64
	FallbacksUsed   int64
}

// LRUCache implements a thread-safe LRU cache with TTL, kept verbatim from
// the teacher's claude.go — generic over raw response bytes, so it needs no
// changes to serve this domain's cache keys.
type LRUCache struct {
	maxSize int
	ttl     time.Duration
	data    map[string]*cacheEntry
	order   []string
	mu      sync.RWMutex
}

type cacheEntry struct {
	response  []byte
	expiresAt time.Time
	key       string
}

// NewLRUCache creates a new LRU cache.
func NewLRUCache(maxSize int, ttl time.Duration) *LRUCache {
	return &LRUCache{
		maxSize: maxSize,
		ttl:     ttl,
		data:    make(map[string]*cacheEntry),
		order:   make([]string, 0, maxSize),
	}
}

// Get retrieves from cache.
func (c *LRUCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.data[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		c.removeEntry(key)
		return nil, false
	}
	c.moveToEnd(key)
	return entry.response, true
}

// Set stores in cache with LRU eviction.
func (c *LRUCache) Set(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.data[key]; exists {
		c.data[key] = &cacheEntry{response: value, expiresAt: time.Now().Add(c.ttl), key: key}
		c.moveToEnd(key)
		return
	}

	for len(c.data) >= c.maxSize && len(c.order) > 0 {
		oldest := c.order[0]
		c.removeEntry(oldest)
	}

	c.data[key] = &cacheEntry{response: value, expiresAt: time.Now().Add(c.ttl), key: key}
	c.order = append(c.order, key)
}

func (c *LRUCache) removeEntry(key string) {
	delete(c.data, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

func (c *LRUCache) moveToEnd(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			c.order = append(c.order, key)
			break
		}
	}
}

// Size returns current cache size.
func (c *LRUCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}
