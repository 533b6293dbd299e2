//go:build integration

package digestcache

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"go.uber.org/zap"
)

func startRedis(t *testing.T, ctx context.Context) string {
	t.Helper()
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("start redis: %v", err)
	}
	testcontainers.CleanupContainer(t, container)

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("redis endpoint: %v", err)
	}
	return "redis://" + endpoint
}

func TestCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	url := startRedis(t, ctx)

	c, err := New(ctx, url, time.Minute, zap.NewNop())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer c.Close()

	key := "public/images/a.png|42|1700000000000000000"
	if _, ok := c.Get(ctx, key); ok {
		t.Fatal("expected miss on empty cache")
	}
	c.Set(ctx, key, "abc123")
	d, ok := c.Get(ctx, key)
	if !ok || d != "abc123" {
		t.Errorf("got %q, %v; want abc123, true", d, ok)
	}
	if _, ok := c.Get(ctx, "public/images/a.png|43|1700000000000000000"); ok {
		t.Error("a different size must miss")
	}
}
