package cache

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"
)

type snapshot struct {
	Count int    `json:"count"`
	Label string `json:"label"`
}

func TestRedisStatsCacheRoundTrip(t *testing.T) {
	addr := os.Getenv("SHOPPOS_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set SHOPPOS_TEST_REDIS_ADDR to run redis integration test")
	}

	ctx := context.Background()
	c := NewRedisStatsCache(addr, os.Getenv("SHOPPOS_TEST_REDIS_PASSWORD"), 0)
	t.Cleanup(func() { _ = c.Close() })
	if err := c.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}

	key := fmt.Sprintf("stats:test:%d", time.Now().UnixNano())
	if err := c.Set(ctx, key, snapshot{Count: 3, Label: "day"}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	var got snapshot
	ok, err := c.Get(ctx, key, &got)
	if err != nil || !ok {
		t.Fatalf("expected cache hit, got ok=%v err=%v", ok, err)
	}
	if got.Count != 3 || got.Label != "day" {
		t.Fatalf("unexpected cached value: %+v", got)
	}

	if err := c.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	ok, err = c.Get(ctx, key, &got)
	if err != nil || ok {
		t.Fatalf("expected cache miss after delete, got ok=%v err=%v", ok, err)
	}
}

func TestNoopStatsCacheNeverHits(t *testing.T) {
	var c StatsCache = NoopStatsCache{}
	if err := c.Set(context.Background(), "k", snapshot{Count: 1}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	var got snapshot
	ok, err := c.Get(context.Background(), "k", &got)
	if err != nil || ok {
		t.Fatalf("expected noop miss, got ok=%v err=%v", ok, err)
	}
}
