package llm

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/usabilitystudio/runtime/internal/domain"
	"github.com/usabilitystudio/runtime/internal/resilience"
)

// ErrCircuitOpen is returned when the circuit breaker is open and no cached
// fallback is available, kept verbatim from the teacher's claude.go.
var ErrCircuitOpen = errors.New("circuit breaker is open - too many recent failures")

// ClaudeClient implements Client against the Anthropic Messages API. Its
// resilience machinery (rate limiter, circuit breaker, LRU cache, cost
// metrics) is grounded verbatim on the teacher's internal/llm/claude.go; the
// request shape gains vision content blocks and the six domain methods in
// navigate.go are new, one per capability named in spec.md §6.
type ClaudeClient struct {
	apiKey     string
	baseURL    string
	model      string
	maxTokens  int
	httpClient *http.Client

	rateLimiter    *rate.Limiter
	circuitBreaker *resilience.CircuitBreaker

	cache    *LRUCache
	cacheTTL time.Duration

	costTracker *CostTracker

	counters        metricsCounters
	fallbackEnabled bool
}

type metricsCounters struct {
	totalRequests   int64
	successRequests int64
	failedRequests  int64
	totalTokensIn   int64
	totalTokensOut  int64
	totalCostMicros int64 // accumulated cost in millionths of a dollar, for atomic addition
	totalLatencyMs  int64
	cacheHits       int64
	cacheMisses     int64
	circuitBreaks   int64
	fallbacksUsed   int64
}

// Config configures a ClaudeClient, grounded verbatim on the teacher's.
type Config struct {
	APIKey       string
	BaseURL      string
	Model        string
	MaxTokens    int
	Timeout      time.Duration
	RateLimitRPM int
	CacheTTL     time.Duration
	CacheSize    int
	MaxRetries   int

	CircuitBreakerEnabled  bool
	CircuitBreakerTimeout  time.Duration
	CircuitBreakerInterval time.Duration
	CircuitBreakerMinReqs  int

	FallbackEnabled bool
}

// DefaultConfig returns default configuration, kept verbatim from the teacher.
func DefaultConfig() Config {
	return Config{
		BaseURL:                "https://api.anthropic.com",
		Model:                  "claude-sonnet-4-20250514",
		MaxTokens:              8192,
		Timeout:                120 * time.Second,
		RateLimitRPM:           50,
		CacheTTL:               24 * time.Hour,
		CacheSize:              1000,
		MaxRetries:             3,
		CircuitBreakerEnabled:  true,
		CircuitBreakerTimeout:  30 * time.Second,
		CircuitBreakerInterval: 60 * time.Second,
		CircuitBreakerMinReqs:  5,
		FallbackEnabled:        true,
	}
}

// NewClaudeClient creates a new Claude API client. costTracker may be nil;
// when set, every completion's usage is recorded against the current day's
// global total (RecordUsage). No method takes a study ID, so per-study usage
// is recorded by callers through CostTracker.RecordStudyUsage.
func NewClaudeClient(cfg Config, costTracker *CostTracker) (*ClaudeClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	defaults := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaults.Model
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = defaults.MaxTokens
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.RateLimitRPM == 0 {
		cfg.RateLimitRPM = defaults.RateLimitRPM
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = defaults.CacheTTL
	}
	if cfg.CacheSize == 0 {
		cfg.CacheSize = defaults.CacheSize
	}
	if cfg.CircuitBreakerTimeout == 0 {
		cfg.CircuitBreakerTimeout = defaults.CircuitBreakerTimeout
	}
	if cfg.CircuitBreakerInterval == 0 {
		cfg.CircuitBreakerInterval = defaults.CircuitBreakerInterval
	}
	if cfg.CircuitBreakerMinReqs == 0 {
		cfg.CircuitBreakerMinReqs = defaults.CircuitBreakerMinReqs
	}

	limiter := rate.NewLimiter(rate.Limit(float64(cfg.RateLimitRPM)/60.0), 5)

	client := &ClaudeClient{
		apiKey:          cfg.APIKey,
		baseURL:         cfg.BaseURL,
		model:           cfg.Model,
		maxTokens:       cfg.MaxTokens,
		httpClient:      &http.Client{Timeout: cfg.Timeout},
		rateLimiter:     limiter,
		cache:           NewLRUCache(cfg.CacheSize, cfg.CacheTTL),
		cacheTTL:        cfg.CacheTTL,
		costTracker:     costTracker,
		fallbackEnabled: cfg.FallbackEnabled,
	}

	if cfg.CircuitBreakerEnabled {
		minReqs := uint32(cfg.CircuitBreakerMinReqs)
		cbConfig := resilience.CircuitBreakerConfig{
			Name:        "claude-api",
			MaxRequests: 3,
			Interval:    cfg.CircuitBreakerInterval,
			Timeout:     cfg.CircuitBreakerTimeout,
			ReadyToTrip: func(counts resilience.Counts) bool {
				if counts.Requests < minReqs {
					return false
				}
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return failureRatio >= 0.6
			},
			OnStateChange: func(name string, from, to resilience.CircuitBreakerState) {
				atomic.AddInt64(&client.counters.circuitBreaks, 1)
			},
			IsSuccessful: func(err error) bool { return err == nil },
		}
		client.circuitBreaker = resilience.NewCircuitBreaker(cbConfig)
	}

	return client, nil
}

// Request represents an Anthropic Messages API request.
type Request struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
}

// Message is one turn of the conversation. Content is a list of parts so a
// single user turn can carry both a screenshot and its accompanying text,
// which §6 requires for navigate_decision/analyze_screenshot.
type Message struct {
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

// ContentPart is one block of a message: either text or a base64 image.
type ContentPart struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *ImageSource `json:"source,omitempty"`
}

// ImageSource is an inline base64-encoded image block per Anthropic's vision format.
type ImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

func textMessage(role, text string) Message {
	return Message{Role: role, Content: []ContentPart{{Type: "text", Text: text}}}
}

func visionMessage(role, text string, screenshot []byte) Message {
	return Message{
		Role: role,
		Content: []ContentPart{
			{Type: "image", Source: &ImageSource{Type: "base64", MediaType: "image/png", Data: base64.StdEncoding.EncodeToString(screenshot)}},
			{Type: "text", Text: text},
		},
	}
}

// Response represents an Anthropic Messages API response.
type Response struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Role       string         `json:"role"`
	Content    []ContentBlock `json:"content"`
	Model      string         `json:"model"`
	StopReason string         `json:"stop_reason"`
	Usage      Usage          `json:"usage"`
}

// ContentBlock is one block of a response (always text for our prompts).
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// completeOnce sends a single request, honoring cache, circuit breaker, and
// rate limit, grounded on the teacher's CompleteWithOptions.
func (c *ClaudeClient) completeOnce(ctx context.Context, systemPrompt string, messages []Message, temperature float64, useCache bool) (string, *Usage, error) {
	atomic.AddInt64(&c.counters.totalRequests, 1)

	cacheKey := c.cacheKey(systemPrompt, messages)
	if useCache {
		if cached, ok := c.cache.Get(cacheKey); ok {
			atomic.AddInt64(&c.counters.cacheHits, 1)
			return string(cached), nil, nil
		}
	}
	atomic.AddInt64(&c.counters.cacheMisses, 1)

	if c.circuitBreaker != nil && c.circuitBreaker.State() == resilience.StateOpen {
		if c.fallbackEnabled {
			if cached, ok := c.cache.Get(cacheKey); ok {
				atomic.AddInt64(&c.counters.fallbacksUsed, 1)
				return string(cached), nil, nil
			}
		}
		atomic.AddInt64(&c.counters.failedRequests, 1)
		return "", nil, ErrCircuitOpen
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		atomic.AddInt64(&c.counters.failedRequests, 1)
		return "", nil, fmt.Errorf("rate limit: %w", err)
	}

	start := time.Now()
	req := Request{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		System:      systemPrompt,
		Messages:    messages,
		Temperature: temperature,
	}

	var resp *Response
	var err error
	if c.circuitBreaker != nil {
		result, cbErr := c.circuitBreaker.ExecuteWithContext(ctx, func(ctx context.Context) (interface{}, error) {
			return c.doRequest(ctx, req)
		})
		if cbErr != nil {
			if errors.Is(cbErr, resilience.ErrCircuitOpen) || errors.Is(cbErr, resilience.ErrTooManyRequests) {
				if c.fallbackEnabled {
					if cached, ok := c.cache.Get(cacheKey); ok {
						atomic.AddInt64(&c.counters.fallbacksUsed, 1)
						return string(cached), nil, nil
					}
				}
				atomic.AddInt64(&c.counters.failedRequests, 1)
				return "", nil, ErrCircuitOpen
			}
			err = cbErr
		} else if result != nil {
			resp = result.(*Response)
		}
	} else {
		resp, err = c.doRequest(ctx, req)
	}

	if err != nil {
		atomic.AddInt64(&c.counters.failedRequests, 1)
		if c.fallbackEnabled {
			if cached, ok := c.cache.Get(cacheKey); ok {
				atomic.AddInt64(&c.counters.fallbacksUsed, 1)
				return string(cached), nil, nil
			}
		}
		return "", nil, err
	}

	atomic.AddInt64(&c.counters.successRequests, 1)
	atomic.AddInt64(&c.counters.totalTokensIn, int64(resp.Usage.InputTokens))
	atomic.AddInt64(&c.counters.totalTokensOut, int64(resp.Usage.OutputTokens))
	atomic.AddInt64(&c.counters.totalLatencyMs, time.Since(start).Milliseconds())
	atomic.AddInt64(&c.counters.totalCostMicros, int64(calculateCost(resp.Usage)*1_000_000))
	if c.costTracker != nil {
		c.costTracker.RecordUsage(ctx, resp.Usage.InputTokens, resp.Usage.OutputTokens, false)
	}

	if len(resp.Content) == 0 {
		return "", &resp.Usage, fmt.Errorf("empty response from claude")
	}
	text := resp.Content[0].Text

	if useCache {
		c.cache.Set(cacheKey, []byte(text))
	}
	return text, &resp.Usage, nil
}

// completeWithBackoff retries completeOnce up to 3 times on transient
// failures with linear backoff, grounded on the teacher's CompleteJSON retry
// loop (it wrapped retries and JSON extraction together; here the two
// concerns are split so schema-repair (§9) can apply its own single-retry
// policy on top).
func (c *ClaudeClient) completeWithBackoff(ctx context.Context, systemPrompt string, messages []Message, temperature float64, useCache bool) (string, *Usage, error) {
	var lastErr error
	total := &Usage{}
	for attempt := 0; attempt < 3; attempt++ {
		if ctx.Err() != nil {
			return "", total, ctx.Err()
		}
		text, usage, err := c.completeOnce(ctx, systemPrompt, messages, temperature, useCache && attempt == 0)
		if usage != nil {
			total.InputTokens += usage.InputTokens
			total.OutputTokens += usage.OutputTokens
		}
		if err == nil {
			return text, total, nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return "", total, ctx.Err()
		case <-time.After(time.Duration(attempt+1) * time.Second):
		}
	}
	return "", total, fmt.Errorf("failed after 3 attempts: %w", lastErr)
}

const jsonInstruction = "\n\nIMPORTANT: Return ONLY valid JSON matching the requested shape. No markdown, no code blocks, no explanations outside the JSON."

// completeStructured implements §9's full tolerant-parsing contract: a
// transient-failure retry loop (completeWithBackoff), tolerant JSON
// extraction (ExtractJSON), and — on schema failure — exactly one
// repair-oriented retry before surfacing domain.ErrLLMSchema.
func (c *ClaudeClient) completeStructured(ctx context.Context, systemPrompt string, messages []Message, temperature float64, useCache bool, target interface{}) (*Usage, error) {
	text, usage, err := c.completeWithBackoff(ctx, systemPrompt+jsonInstruction, messages, temperature, useCache)
	if err != nil {
		return usage, domain.ErrLLMTransient(err)
	}

	if perr := parseInto(text, target); perr == nil {
		return usage, nil
	} else {
		repairPrompt := systemPrompt + jsonInstruction +
			fmt.Sprintf("\n\nYour previous response could not be parsed (%v). Previous response was:\n%s\n\nReturn corrected, strictly valid JSON only.", perr, truncateString(text, 1000))
		text2, usage2, err2 := c.completeWithBackoff(ctx, repairPrompt, messages, temperature, false)
		if usage2 != nil {
			usage.InputTokens += usage2.InputTokens
			usage.OutputTokens += usage2.OutputTokens
		}
		if err2 != nil {
			return usage, domain.ErrLLMSchema("repair attempt failed transiently", err2)
		}
		if perr2 := parseInto(text2, target); perr2 != nil {
			return usage, domain.ErrLLMSchema("failed validation after one repair attempt", perr2)
		}
		return usage, nil
	}
}

func parseInto(text string, target interface{}) error {
	jsonStr := ExtractJSON(text)
	if jsonStr == "" {
		return fmt.Errorf("no JSON found in response: %s", truncateString(text, 200))
	}
	if err := json.Unmarshal([]byte(jsonStr), target); err != nil {
		return fmt.Errorf("invalid JSON: %w (response: %s)", err, truncateString(jsonStr, 200))
	}
	return nil
}

// doRequest performs the HTTP request with proper context handling, kept
// verbatim from the teacher's claude.go.
func (c *ClaudeClient) doRequest(ctx context.Context, req Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, truncateString(string(respBody), 500))
	}

	var apiResp Response
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	return &apiResp, nil
}

// calculateCost calculates the cost of a request: Claude Sonnet pricing,
// $3 per million input tokens, $15 per million output tokens.
func calculateCost(usage Usage) float64 {
	inputCost := float64(usage.InputTokens) / 1_000_000 * 3.00
	outputCost := float64(usage.OutputTokens) / 1_000_000 * 15.00
	return inputCost + outputCost
}

// cacheKey generates a cache key from the system prompt and the text parts
// of the conversation. Messages carrying an image part are never cached by
// the caller (screenshots are unique per step), so image bytes never reach
// this key.
func (c *ClaudeClient) cacheKey(systemPrompt string, messages []Message) string {
	var sb strings.Builder
	sb.WriteString(systemPrompt)
	for _, m := range messages {
		sb.WriteByte(0)
		sb.WriteString(m.Role)
		for _, part := range m.Content {
			sb.WriteByte(0)
			sb.WriteString(part.Text)
		}
	}
	hash := sha256.Sum256([]byte(sb.String()))
	return c.model + "_" + hex.EncodeToString(hash[:16])
}

// Metrics returns current metrics (thread-safe snapshot).
func (c *ClaudeClient) Metrics() Metrics {
	return Metrics{
		TotalRequests:   atomic.LoadInt64(&c.counters.totalRequests),
		SuccessRequests: atomic.LoadInt64(&c.counters.successRequests),
		FailedRequests:  atomic.LoadInt64(&c.counters.failedRequests),
		TotalTokensIn:   atomic.LoadInt64(&c.counters.totalTokensIn),
		TotalTokensOut:  atomic.LoadInt64(&c.counters.totalTokensOut),
		TotalCost:       float64(atomic.LoadInt64(&c.counters.totalCostMicros)) / 1_000_000,
		TotalLatencyMs:  atomic.LoadInt64(&c.counters.totalLatencyMs),
		CacheHits:       atomic.LoadInt64(&c.counters.cacheHits),
		CacheMisses:     atomic.LoadInt64(&c.counters.cacheMisses),
		CircuitBreaks:   atomic.LoadInt64(&c.counters.circuitBreaks),
		FallbacksUsed:   atomic.LoadInt64(&c.counters.fallbacksUsed),
	}
}

// Healthy returns true if the client can accept requests.
func (c *ClaudeClient) Healthy() bool {
	if c.circuitBreaker == nil {
		return true
	}
	return c.circuitBreaker.State() != resilience.StateOpen
}
