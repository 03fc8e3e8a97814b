package recorder

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"go.uber.org/zap"

	"github.com/usabilitystudio/runtime/internal/domain"
	"github.com/usabilitystudio/runtime/internal/repository/redis"
)

// fakeStepRepo records steps in memory and reproduces the unique
// (session_id, step_number) conflict the real postgres repository enforces.
type fakeStepRepo struct {
	mu    sync.Mutex
	steps map[string]*domain.Step
}

func newFakeStepRepo() *fakeStepRepo {
	return &fakeStepRepo{steps: make(map[string]*domain.Step)}
}

func (f *fakeStepRepo) Create(ctx context.Context, s *domain.Step) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := fmt.Sprintf("%s#%d", s.SessionID, s.StepNumber)
	if _, ok := f.steps[k]; ok {
		return domain.ErrConflict("step already recorded for this session at this step_number")
	}
	f.steps[k] = s
	return nil
}

func (f *fakeStepRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.steps)
}

type fakeSessionRepo struct {
	mu         sync.Mutex
	increments int
}

func (f *fakeSessionRepo) IncrementTotalSteps(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.increments++
	return nil
}

type fakeBlobStore struct {
	mu   sync.Mutex
	objs map[string][]byte
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objs: make(map[string][]byte)}
}

func (f *fakeBlobStore) Put(ctx context.Context, path string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objs[path] = data
	return nil
}

func (f *fakeBlobStore) Get(ctx context.Context, path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.objs[path], nil
}

func (f *fakeBlobStore) Exists(ctx context.Context, path string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objs[path]
	return ok, nil
}

func (f *fakeBlobStore) FullPath(path string) string {
	return "s3://fake-bucket/" + path
}

func setupTestRedis(t *testing.T) (*goredis.Client, func()) {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}

	connStr, err := container.ConnectionString(ctx)
	if err != nil {
		terminateContainer(ctx, container)
		t.Fatalf("failed to get redis connection string: %v", err)
	}

	opts, err := goredis.ParseURL(connStr)
	if err != nil {
		terminateContainer(ctx, container)
		t.Fatalf("failed to parse redis connection string: %v", err)
	}

	client := goredis.NewClient(opts)
	for i := 0; i < 30; i++ {
		if err := client.Ping(ctx).Err(); err == nil {
			break
		}
		time.Sleep(200 * time.Millisecond)
	}

	return client, func() {
		_ = client.Close()
		terminateContainer(ctx, container)
	}
}

func terminateContainer(ctx context.Context, c testcontainers.Container) {
	_ = c.Terminate(ctx)
}

func TestStepRecorder_RecordStep_OrderAndContent(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	logger := zap.NewNop()
	live := redis.NewLiveStateStore(client, logger, time.Hour)
	bus := redis.NewProgressBus(client, live)

	steps := newFakeStepRepo()
	sessions := &fakeSessionRepo{}
	blobs := newFakeBlobStore()

	rec := New(steps, sessions, blobs, live, bus, logger)

	studyID := uuid.New()
	sessionID := uuid.New()

	decision := Decision{
		ThinkAloud:     "I see a search box, let me use it",
		EmotionalState: domain.EmotionCurious,
		Action:         domain.Action{Type: domain.ActionClick, Selector: "#search"},
		Confidence:     0.9,
		TaskProgress:   20,
	}
	obs := Observation{PageURL: "https://example.com", PageTitle: "Example", ViewportW: 1280, ViewportH: 800}

	stepID, err := rec.RecordStep(context.Background(), studyID, sessionID, 1, decision, obs, []byte("fake-png-bytes"))
	if err != nil {
		t.Fatalf("RecordStep: %v", err)
	}
	if stepID == uuid.Nil {
		t.Fatal("expected non-nil step id")
	}

	if steps.count() != 1 {
		t.Errorf("steps recorded = %d, want 1", steps.count())
	}
	if sessions.increments != 1 {
		t.Errorf("session increments = %d, want 1", sessions.increments)
	}

	ref := screenshotPath(studyID, sessionID, 1)
	if got, _ := blobs.Exists(context.Background(), ref); !got {
		t.Error("expected screenshot to be persisted before the step row was inserted")
	}

	snapshot, err := live.GetStudySnapshot(context.Background(), studyID)
	if err != nil {
		t.Fatalf("GetStudySnapshot: %v", err)
	}
	state, ok := snapshot[sessionID.String()]
	if !ok {
		t.Fatal("expected live state for session")
	}
	if state.StepNumber == nil || *state.StepNumber != 1 {
		t.Errorf("live state step number = %v, want 1", state.StepNumber)
	}
}

func TestStepRecorder_RecordStep_DuplicateIsIdempotent(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	logger := zap.NewNop()
	live := redis.NewLiveStateStore(client, logger, time.Hour)
	bus := redis.NewProgressBus(client, live)

	steps := newFakeStepRepo()
	sessions := &fakeSessionRepo{}
	blobs := newFakeBlobStore()
	rec := New(steps, sessions, blobs, live, bus, logger)

	studyID, sessionID := uuid.New(), uuid.New()
	decision := Decision{Action: domain.Action{Type: domain.ActionDone}, TaskProgress: 100}
	obs := Observation{PageURL: "https://example.com"}

	first, err := rec.RecordStep(context.Background(), studyID, sessionID, 1, decision, obs, nil)
	if err != nil {
		t.Fatalf("first RecordStep: %v", err)
	}
	second, err := rec.RecordStep(context.Background(), studyID, sessionID, 1, decision, obs, nil)
	if err != nil {
		t.Fatalf("duplicate RecordStep should not error: %v", err)
	}
	if first == uuid.Nil || second == uuid.Nil {
		t.Fatal("expected non-nil ids from both calls")
	}
	if steps.count() != 1 {
		t.Errorf("steps recorded after duplicate = %d, want 1 (at-most-once)", steps.count())
	}
}
