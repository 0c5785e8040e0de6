package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/simulado/internal/model"
)

// fakeRedis covers the handful of commands the service layer uses.
type fakeRedis struct {
	mu    sync.Mutex
	data  map[string]string
	ttls  map[string]time.Duration
	lists map[string][]string
	err   error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}, lists: map[string][]string{}}
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value interface{}, exp time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewBoolResult(false, f.err)
	}
	if _, ok := f.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.data[key] = fmt.Sprint(value)
	f.ttls[key] = exp
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) RPush(_ context.Context, key string, values ...interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	for _, v := range values {
		switch b := v.(type) {
		case []byte:
			f.lists[key] = append(f.lists[key], string(b))
		default:
			f.lists[key] = append(f.lists[key], fmt.Sprint(v))
		}
	}
	return redis.NewIntResult(int64(len(f.lists[key])), nil)
}

func (f *fakeRedis) list(key string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lists[key]...)
}

type fakeGateway struct {
	mu       sync.Mutex
	bundles  map[int]*model.SessionBundle
	loadErr  error
	saveErr  error
	loads    int
	tokens   []string
	finalize []model.FinalizeRequest
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{bundles: map[int]*model.SessionBundle{}}
}

func (g *fakeGateway) add(sessionID int, questionIDs ...int) {
	b := &model.SessionBundle{Session: model.Session{ID: sessionID}}
	for _, id := range questionIDs {
		b.Questions = append(b.Questions, model.Question{
			ID: id, Area: "linguagens", Choices: []string{"a", "b", "c", "d", "e"},
		})
	}
	g.mu.Lock()
	g.bundles[sessionID] = b
	g.mu.Unlock()
}

// scoped records which principal the gateway was built for.
type scopedGateway struct {
	*fakeGateway
}

func (g *fakeGateway) For(p model.Principal) scopedGateway {
	g.mu.Lock()
	g.tokens = append(g.tokens, p.Token)
	g.mu.Unlock()
	return scopedGateway{g}
}

func (g *fakeGateway) LoadSession(_ context.Context, id int) (*model.SessionBundle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.loads++
	if g.loadErr != nil {
		return nil, g.loadErr
	}
	b, ok := g.bundles[id]
	if !ok {
		return nil, fmt.Errorf("simulado %d not found", id)
	}
	cp := *b
	return &cp, nil
}

func (g *fakeGateway) SaveAnswer(context.Context, model.SaveAnswerRequest) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.saveErr
}

func (g *fakeGateway) FinalizeSession(_ context.Context, req model.FinalizeRequest) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.finalize = append(g.finalize, req)
	return nil
}

func (g *fakeGateway) set(fn func(*fakeGateway)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn(g)
}

func (g *fakeGateway) loadCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.loads
}
