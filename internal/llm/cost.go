package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/usabilitystudio/runtime/internal/domain"
)

// CostTracker accumulates LLM spend per study and per day, grounded on the
// teacher's token_cache.go CostTracker (its semantic/embedding PromptCache
// sibling in that file had no home in this domain and was dropped — see
// DESIGN.md). It backs §4.1 step 11: "Compute cost breakdown from the
// CostTracker; persist."
type CostTracker struct {
	config CostConfig
	redis  *redis.Client
	logger *zap.Logger
	mu     sync.Mutex

	dailyCosts map[string]*DailyCost
}

// CostConfig holds cost tracking configuration.
type CostConfig struct {
	InputTokenCost  float64
	OutputTokenCost float64
	DailyBudget     float64
	AlertThreshold  float64
}

// DefaultCostConfig mirrors Claude Sonnet pricing, kept verbatim from the teacher.
func DefaultCostConfig() CostConfig {
	return CostConfig{
		InputTokenCost:  3.0,
		OutputTokenCost: 15.0,
		DailyBudget:     100.0,
		AlertThreshold:  0.8,
	}
}

// DailyCost tracks aggregate cost over a period (a day, a month, or a study).
type DailyCost struct {
	Key          string  `json:"key"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	TotalCost    float64 `json:"total_cost"`
	Requests     int64   `json:"requests"`
	CacheHits    int64   `json:"cache_hits"`
}

// NewCostTracker creates a new cost tracker. redis may be nil, in which case
// tracking is in-process only (the process-wide singleton acceptable per §9
// "Global state").
func NewCostTracker(config CostConfig, redisClient *redis.Client, logger *zap.Logger) *CostTracker {
	return &CostTracker{
		config:     config,
		redis:      redisClient,
		logger:     logger,
		dailyCosts: make(map[string]*DailyCost),
	}
}

// RecordUsage records token usage and cost against today's global total.
func (ct *CostTracker) RecordUsage(ctx context.Context, inputTokens, outputTokens int, cached bool) {
	ct.record(ctx, "day:"+time.Now().UTC().Format("2006-01-02"), inputTokens, outputTokens, cached)
}

// RecordStudyUsage records token usage and cost against a specific study's
// running total. Its only caller is the SynthesizeStudy activity, with the
// synthesis call's usage; navigation and analysis calls are not recorded per
// study, so a study's breakdown covers synthesis tokens only.
func (ct *CostTracker) RecordStudyUsage(ctx context.Context, studyID uuid.UUID, inputTokens, outputTokens int) {
	ct.record(ctx, "study:"+studyID.String(), inputTokens, outputTokens, false)
}

func (ct *CostTracker) record(ctx context.Context, key string, inputTokens, outputTokens int, cached bool) {
	ct.mu.Lock()
	daily, ok := ct.dailyCosts[key]
	if !ok {
		daily = &DailyCost{Key: key}
		ct.dailyCosts[key] = daily
	}

	daily.Requests++
	if cached {
		daily.CacheHits++
	} else {
		daily.InputTokens += int64(inputTokens)
		daily.OutputTokens += int64(outputTokens)
		inputCost := float64(inputTokens) / 1_000_000 * ct.config.InputTokenCost
		outputCost := float64(outputTokens) / 1_000_000 * ct.config.OutputTokenCost
		daily.TotalCost += inputCost + outputCost
	}
	snapshot := *daily
	ct.mu.Unlock()

	if ct.config.DailyBudget > 0 && snapshot.TotalCost >= ct.config.DailyBudget*ct.config.AlertThreshold && ct.logger != nil {
		ct.logger.Warn("approaching daily LLM budget",
			zap.String("key", key),
			zap.Float64("current_cost", snapshot.TotalCost),
			zap.Float64("budget", ct.config.DailyBudget),
		)
	}

	if ct.redis != nil {
		data, _ := json.Marshal(snapshot)
		ct.redis.Set(ctx, "llmcost:"+key, data, 30*24*time.Hour)
	}
}

// GetCost returns accumulated cost for an arbitrary key ("day:...", "study:...").
func (ct *CostTracker) GetCost(ctx context.Context, key string) (*DailyCost, error) {
	ct.mu.Lock()
	if daily, ok := ct.dailyCosts[key]; ok {
		snapshot := *daily
		ct.mu.Unlock()
		return &snapshot, nil
	}
	ct.mu.Unlock()

	if ct.redis != nil {
		data, err := ct.redis.Get(ctx, "llmcost:"+key).Bytes()
		if err == nil {
			var daily DailyCost
			if err := json.Unmarshal(data, &daily); err == nil {
				return &daily, nil
			}
		}
	}
	return nil, fmt.Errorf("no cost data for %s", key)
}

// StudyCostBreakdown returns a study's running LLM cost as the domain.JSONB
// shape the Orchestrator persists onto Study.CostBreakdown (§4.1 step 11).
func (ct *CostTracker) StudyCostBreakdown(ctx context.Context, studyID uuid.UUID) (domain.JSONB, error) {
	cost, err := ct.GetCost(ctx, "study:"+studyID.String())
	if err != nil {
		return domain.JSONB{
			"input_tokens":  0,
			"output_tokens": 0,
			"total_cost":    0.0,
			"requests":      0,
		}, nil
	}
	return domain.JSONB{
		"input_tokens":  cost.InputTokens,
		"output_tokens": cost.OutputTokens,
		"total_cost":    cost.TotalCost,
		"requests":      cost.Requests,
	}, nil
}

// IsOverBudget checks whether today's global spend has exceeded DailyBudget.
func (ct *CostTracker) IsOverBudget(ctx context.Context) bool {
	if ct.config.DailyBudget <= 0 {
		return false
	}
	cost, err := ct.GetCost(ctx, "day:"+time.Now().UTC().Format("2006-01-02"))
	if err != nil {
		return false
	}
	return cost.TotalCost >= ct.config.DailyBudget
}
