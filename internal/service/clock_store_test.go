package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stemsi/simulado/internal/config"
)

func TestSessionClockStoreFirstOpenWins(t *testing.T) {
	rdb := newFakeRedis()
	store := NewSessionClockStore(rdb, 24*time.Hour)
	ctx := context.Background()

	first := time.UnixMilli(1_714_568_400_000)
	got, err := store.Resolve(ctx, 10, 3, first)
	if err != nil || !got.Equal(first) {
		t.Fatalf("first Resolve = %v, %v", got, err)
	}

	got, err = store.For(3).ResolveStart(ctx, 10, first.Add(5*time.Minute))
	if err != nil || !got.Equal(first) {
		t.Fatalf("reopen Resolve = %v, %v; want %v", got, err, first)
	}

	key := config.CacheKey.SessionStartKey(10, 3)
	if rdb.ttls[key] != 24*time.Hour {
		t.Fatalf("ttl = %v", rdb.ttls[key])
	}

	// Another student starts their own clock.
	later := first.Add(time.Hour)
	if got, _ := store.Resolve(ctx, 10, 4, later); !got.Equal(later) {
		t.Fatalf("other user start = %v", got)
	}
}

func TestSessionClockStoreErrors(t *testing.T) {
	rdb := newFakeRedis()
	rdb.err = errors.New("connection refused")
	store := NewSessionClockStore(rdb, time.Hour)

	now := time.Now()
	got, err := store.Resolve(context.Background(), 1, 1, now)
	if err == nil {
		t.Fatal("expected error")
	}
	if !got.Equal(now) {
		t.Fatalf("fallback = %v, want now", got)
	}

	rdb.err = nil
	rdb.data[config.CacheKey.SessionStartKey(2, 1)] = "yesterday"
	if _, err := store.Resolve(context.Background(), 2, 1, now); err == nil {
		t.Fatal("expected parse error")
	}
}
