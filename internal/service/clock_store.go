package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/simulado/internal/config"
	"github.com/stemsi/simulado/internal/exam"
)

type startKV interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// SessionClockStore remembers when each student first opened a simulado, so
// reopening it keeps the clock running from there instead of from zero.
type SessionClockStore struct {
	rdb startKV
	ttl time.Duration
}

// NewSessionClockStore creates a SessionClockStore. rdb is normally a *redis.Client.
func NewSessionClockStore(rdb startKV, ttl time.Duration) *SessionClockStore {
	return &SessionClockStore{rdb: rdb, ttl: ttl}
}

// Resolve stores now as the start instant unless one is already recorded,
// and returns whichever instant wins.
func (s *SessionClockStore) Resolve(ctx context.Context, sessionID, userID int, now time.Time) (time.Time, error) {
	key := config.CacheKey.SessionStartKey(sessionID, userID)

	stored, err := s.rdb.SetNX(ctx, key, now.UnixMilli(), s.ttl).Result()
	if err != nil {
		return now, fmt.Errorf("store session start: %w", err)
	}
	if stored {
		return now, nil
	}

	val, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		// Expired between SETNX and GET.
		return now, nil
	}
	if err != nil {
		return now, fmt.Errorf("redis error getting start time: %w", err)
	}
	ms, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return now, fmt.Errorf("invalid start time format in cache: %w", err)
	}
	return time.UnixMilli(ms), nil
}

// For binds the store to a student so it satisfies exam.StartStore.
func (s *SessionClockStore) For(userID int) exam.StartStore {
	return userClock{store: s, userID: userID}
}

type userClock struct {
	store  *SessionClockStore
	userID int
}

func (u userClock) ResolveStart(ctx context.Context, sessionID int, now time.Time) (time.Time, error) {
	return u.store.Resolve(ctx, sessionID, u.userID, now)
}
