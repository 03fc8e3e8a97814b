package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// EventKind enumerates the Progress Bus frame kinds of §4.5.
type EventKind string

const (
	EventStudyProgress   EventKind = "study:progress"
	EventStudyAnalyzing  EventKind = "study:analyzing"
	EventStudyComplete   EventKind = "study:complete"
	EventStudyError      EventKind = "study:error"
	EventSessionStep     EventKind = "session:step"
	EventSessionComplete EventKind = "session:complete"
	eventSnapshot        EventKind = "snapshot"
)

// Event is one frame published on a study's progress channel.
type Event struct {
	Kind      EventKind `json:"kind"`
	StudyID   uuid.UUID `json:"study_id"`
	SessionID string    `json:"session_id,omitempty"`
	Payload   any       `json:"payload,omitempty"`
}

// maxScreencastSubscriptions bounds server memory per client (§4.5).
const maxScreencastSubscriptions = 5

func studyChannel(studyID uuid.UUID) string {
	return fmt.Sprintf("study:%s", studyID.String())
}

func screencastChannel(sessionID uuid.UUID) string {
	return fmt.Sprintf("screencast:%s", sessionID.String())
}

// ProgressBus is the single fan-out channel per study described in §4.5,
// plus the binary screencast side-channel, built on plain Redis pub/sub:
// per-channel ordering per publisher holds, and delivery is at-most-once —
// a frame published while a subscriber is not connected never reaches it.
type ProgressBus struct {
	client     *redis.Client
	liveStates *LiveStateStore
}

// NewProgressBus constructs a ProgressBus backed by the given Redis client
// and live-state store (used to build the snapshot-on-subscribe frame).
func NewProgressBus(client *redis.Client, liveStates *LiveStateStore) *ProgressBus {
	return &ProgressBus{client: client, liveStates: liveStates}
}

// Publish emits an event frame on a study's channel.
func (b *ProgressBus) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, studyChannel(event.StudyID), data).Err()
}

// Subscription wraps a redis.PubSub with the snapshot-on-subscribe frame
// already queued, per §4.5's "server immediately sends a snapshot frame...
// then forwards live events" contract.
type Subscription struct {
	pubsub   *redis.PubSub
	snapshot Event
}

// Subscribe opens a subscription to a study's progress channel and captures
// a live-state snapshot to hand the caller first. Callers must send the
// snapshot to their client before forwarding anything from Channel().
func (b *ProgressBus) Subscribe(ctx context.Context, studyID uuid.UUID) (*Subscription, error) {
	pubsub := b.client.Subscribe(ctx, studyChannel(studyID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribing to study channel: %w", err)
	}

	snapshotMap, err := b.liveStates.GetStudySnapshot(ctx, studyID)
	if err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	return &Subscription{
		pubsub: pubsub,
		snapshot: Event{
			Kind:    eventSnapshot,
			StudyID: studyID,
			Payload: snapshotMap,
		},
	}, nil
}

// Snapshot returns the frame that MUST be delivered to the client before any
// frame read from Channel().
func (s *Subscription) Snapshot() Event {
	return s.snapshot
}

// Channel returns the live event stream for this subscription.
func (s *Subscription) Channel() <-chan *redis.Message {
	return s.pubsub.Channel()
}

// Unsubscribe closes the underlying pub/sub connection.
func (s *Subscription) Unsubscribe() error {
	return s.pubsub.Close()
}

// PublishScreencastFrame publishes a raw JPEG frame on a session's binary
// screencast channel, prefixed by the 36-byte ASCII session_id per §4.5.
func (b *ProgressBus) PublishScreencastFrame(ctx context.Context, sessionID uuid.UUID, jpeg []byte) error {
	prefix := []byte(sessionID.String())
	frame := make([]byte, 0, len(prefix)+len(jpeg))
	frame = append(frame, prefix...)
	frame = append(frame, jpeg...)
	return b.client.Publish(ctx, screencastChannel(sessionID), frame).Err()
}

// ScreencastSubscription bounds a client to at most maxScreencastSubscriptions
// concurrent session screencasts (§4.5).
type ScreencastSubscription struct {
	pubsubs map[uuid.UUID]*redis.PubSub
}

// NewScreencastSubscription constructs an empty screencast subscription set.
func NewScreencastSubscription() *ScreencastSubscription {
	return &ScreencastSubscription{pubsubs: make(map[uuid.UUID]*redis.PubSub)}
}

// Add subscribes to a session's screencast channel. Returns an error if the
// client has already reached the 5-session cap.
func (b *ProgressBus) Add(ctx context.Context, sub *ScreencastSubscription, sessionID uuid.UUID) error {
	if _, exists := sub.pubsubs[sessionID]; exists {
		return nil
	}
	if len(sub.pubsubs) >= maxScreencastSubscriptions {
		return fmt.Errorf("screencast subscription cap reached (max %d sessions per client)", maxScreencastSubscriptions)
	}
	sub.pubsubs[sessionID] = b.client.Subscribe(ctx, screencastChannel(sessionID))
	return nil
}

// Remove unsubscribes from a session's screencast channel.
func (sub *ScreencastSubscription) Remove(sessionID uuid.UUID) error {
	pubsub, exists := sub.pubsubs[sessionID]
	if !exists {
		return nil
	}
	delete(sub.pubsubs, sessionID)
	return pubsub.Close()
}

// Channels returns the live frame channels for every currently subscribed session.
func (sub *ScreencastSubscription) Channels() map[uuid.UUID]<-chan *redis.Message {
	out := make(map[uuid.UUID]<-chan *redis.Message, len(sub.pubsubs))
	for id, pubsub := range sub.pubsubs {
		out[id] = pubsub.Channel()
	}
	return out
}

// Close unsubscribes from every session in the set.
func (sub *ScreencastSubscription) Close() error {
	var firstErr error
	for id, pubsub := range sub.pubsubs {
		if err := pubsub.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(sub.pubsubs, id)
	}
	return firstErr
}
