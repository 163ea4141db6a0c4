package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

type snapshot struct {
	Phase   string `json:"phase"`
	Members int    `json:"members"`
}

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client), mr
}

func TestRedisCacheRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	var got snapshot
	found, err := c.GetJSON(ctx, GroupContextKey(1), &got)
	if err != nil || found {
		t.Fatalf("expected miss, got found=%v err=%v", found, err)
	}

	want := snapshot{Phase: "negotiation", Members: 4}
	if err := c.SetJSON(ctx, GroupContextKey(1), want, time.Minute); err != nil {
		t.Fatalf("SetJSON: %v", err)
	}
	found, err = c.GetJSON(ctx, GroupContextKey(1), &got)
	if err != nil || !found {
		t.Fatalf("expected hit, got found=%v err=%v", found, err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestRedisCacheExpires(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	if err := c.SetJSON(ctx, "k", snapshot{Phase: "initial"}, time.Minute); err != nil {
		t.Fatalf("SetJSON: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	var got snapshot
	if found, _ := c.GetJSON(ctx, "k", &got); found {
		t.Fatalf("entry should have expired")
	}
}

func TestInvalidateGroup(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	_ = c.SetJSON(ctx, GroupContextKey(9), snapshot{}, time.Minute)
	_ = c.SetJSON(ctx, GroupPipelineKey(9), snapshot{}, time.Minute)
	_ = c.SetJSON(ctx, GroupContextKey(10), snapshot{}, time.Minute)

	if err := InvalidateGroup(ctx, c, 9); err != nil {
		t.Fatalf("InvalidateGroup: %v", err)
	}
	if mr.Exists(GroupContextKey(9)) || mr.Exists(GroupPipelineKey(9)) {
		t.Fatalf("group 9 keys survived invalidation")
	}
	if !mr.Exists(GroupContextKey(10)) {
		t.Fatalf("group 10 key was removed")
	}
}

func TestCorruptEntryIsAMiss(t *testing.T) {
	c, mr := newTestCache(t)
	if err := mr.Set("bad", "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	var got snapshot
	found, err := c.GetJSON(context.Background(), "bad", &got)
	if err != nil || found {
		t.Fatalf("expected miss, got found=%v err=%v", found, err)
	}
	if mr.Exists("bad") {
		t.Fatalf("corrupt entry not removed")
	}
}

func TestNoopCache(t *testing.T) {
	var c Cache = NoopCache{}
	ctx := context.Background()
	if err := c.SetJSON(ctx, "k", 1, time.Minute); err != nil {
		t.Fatalf("SetJSON: %v", err)
	}
	var v int
	if found, err := c.GetJSON(ctx, "k", &v); found || err != nil {
		t.Fatalf("noop cache returned a hit")
	}
}
