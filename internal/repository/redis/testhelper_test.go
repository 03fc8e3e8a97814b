package redis

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"go.uber.org/zap"
)

// setupTestRedis starts a disposable redis:7-alpine container and returns a
// connected client, mirroring the postgres package's testcontainers-based
// harness (internal/repository/postgres/testhelper_test.go).
func setupTestRedis(t *testing.T) (*goredis.Client, func()) {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}

	connStr, err := container.ConnectionString(ctx)
	if err != nil {
		terminate(ctx, container)
		t.Fatalf("failed to get redis connection string: %v", err)
	}

	opts, err := goredis.ParseURL(connStr)
	if err != nil {
		terminate(ctx, container)
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
		terminate(ctx, container)
	}
}

func terminate(ctx context.Context, c testcontainers.Container) {
	_ = c.Terminate(ctx)
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}
