package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// LiveState is one session's entry in a study's keyed live-state map (§4.5).
type LiveState struct {
	SessionID      string  `json:"session_id"`
	PersonaName    string  `json:"persona_name,omitempty"`
	StepNumber     *int    `json:"step_number,omitempty"`
	EmotionalState string  `json:"emotional_state,omitempty"`
	LiveViewURL    string  `json:"live_view_url,omitempty"`
	BrowserActive  *bool   `json:"browser_active,omitempty"`
	Action         string  `json:"action,omitempty"`
	ThinkAloud     string  `json:"think_aloud,omitempty"`
	ScreenshotURL  string  `json:"screenshot_url,omitempty"`
	TaskProgress   *int    `json:"task_progress,omitempty"`
}

func liveStateKey(studyID uuid.UUID) string {
	return fmt.Sprintf("livestate:%s", studyID.String())
}

// LiveStateStore is the keyed-map live-state backend of §4.5, implemented
// over Redis hashes (one hash per study, one field per session).
type LiveStateStore struct {
	client *redis.Client
	logger *zap.Logger
	ttl    time.Duration
}

// NewLiveStateStore creates a live-state store using the given TTL
// (LIVE_STATE_TTL_SECONDS, default 21600s per §6).
func NewLiveStateStore(client *redis.Client, logger *zap.Logger, ttl time.Duration) *LiveStateStore {
	return &LiveStateStore{client: client, logger: logger, ttl: ttl}
}

// Upsert merges partial_updates into the existing live-state entry for
// (study_id, session_id) and returns the merged result. live_view_url is
// write-once-non-empty: an empty incoming value never clears a previously
// stored one. All other fields are last-writer-wins over non-nil values.
func (s *LiveStateStore) Upsert(ctx context.Context, studyID uuid.UUID, sessionID uuid.UUID, partial LiveState) (*LiveState, error) {
	key := liveStateKey(studyID)
	field := sessionID.String()

	current, err := s.get(ctx, key, field)
	if err != nil {
		return nil, err
	}

	merged := mergeLiveState(current, partial)
	merged.SessionID = field

	data, err := json.Marshal(merged)
	if err != nil {
		return nil, err
	}

	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, field, data)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	return merged, nil
}

func (s *LiveStateStore) get(ctx context.Context, key, field string) (*LiveState, error) {
	data, err := s.client.HGet(ctx, key, field).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var ls LiveState
	if err := json.Unmarshal(data, &ls); err != nil {
		s.logger.Warn("discarding corrupt live-state entry", zap.String("key", key), zap.String("field", field), zap.Error(err))
		return nil, nil
	}
	return &ls, nil
}

func mergeLiveState(current *LiveState, partial LiveState) *LiveState {
	if current == nil {
		current = &LiveState{}
	}
	merged := *current

	if partial.PersonaName != "" {
		merged.PersonaName = partial.PersonaName
	}
	if partial.StepNumber != nil {
		merged.StepNumber = partial.StepNumber
	}
	if partial.EmotionalState != "" {
		merged.EmotionalState = partial.EmotionalState
	}
	if partial.LiveViewURL != "" {
		merged.LiveViewURL = partial.LiveViewURL
	}
	if partial.BrowserActive != nil {
		merged.BrowserActive = partial.BrowserActive
	}
	if partial.Action != "" {
		merged.Action = partial.Action
	}
	if partial.ThinkAloud != "" {
		merged.ThinkAloud = partial.ThinkAloud
	}
	if partial.ScreenshotURL != "" {
		merged.ScreenshotURL = partial.ScreenshotURL
	}
	if partial.TaskProgress != nil {
		merged.TaskProgress = partial.TaskProgress
	}
	return &merged
}

// GetStudySnapshot returns the current per-session live-state map for a
// study, used both by the Progress Bus's snapshot-on-subscribe frame and by
// any reconnecting client. Corrupt entries are skipped with a warning rather
// than failing the whole snapshot.
func (s *LiveStateStore) GetStudySnapshot(ctx context.Context, studyID uuid.UUID) (map[string]*LiveState, error) {
	key := liveStateKey(studyID)
	raw, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}

	snapshot := make(map[string]*LiveState, len(raw))
	for field, data := range raw {
		var ls LiveState
		if err := json.Unmarshal([]byte(data), &ls); err != nil {
			s.logger.Warn("discarding corrupt live-state entry in snapshot", zap.String("key", key), zap.String("field", field), zap.Error(err))
			continue
		}
		snapshot[field] = &ls
	}
	return snapshot, nil
}

// ClearStudy deletes a study's entire keyed live-state map, invoked by the
// Orchestrator at the start of every new run so reruns do not leak prior
// state (§4.1 step 2, §4.5).
func (s *LiveStateStore) ClearStudy(ctx context.Context, studyID uuid.UUID) error {
	return s.client.Del(ctx, liveStateKey(studyID)).Err()
}

// RemoveSession deletes a single session's field from the study's live-state
// map, used once a session reaches a terminal status and its final
// session:complete event has been published.
func (s *LiveStateStore) RemoveSession(ctx context.Context, studyID, sessionID uuid.UUID) error {
	return s.client.HDel(ctx, liveStateKey(studyID), sessionID.String()).Err()
}
