package exam

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/stemsi/simulado/internal/model"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

var errSessionFinalized = errors.New("invalid payload (status 400): Simulado já foi finalizado")

type fakeGateway struct {
	mu          sync.Mutex
	bundle      *model.SessionBundle
	loadErr     error
	saveErr     error
	finalizeErr error
	loads       int
	saves       []model.SaveAnswerRequest
	finalizes   []model.FinalizeRequest

	// saveDelay and saveGate hold saves back; with rejectAfterFinalize a
	// save that lands after FinalizeSession fails like the remote API's.
	saveDelay           time.Duration
	saveGate            chan struct{}
	rejectAfterFinalize bool
}

func newFakeGateway(sessionID int, questionIDs ...int) *fakeGateway {
	b := &model.SessionBundle{Session: model.Session{ID: sessionID}}
	for _, id := range questionIDs {
		b.Questions = append(b.Questions, model.Question{
			ID:         id,
			Area:       "matematica",
			Discipline: "Matemática",
			Prompt:     fmt.Sprintf("<p>Questão %d</p>", id),
			Choices:    []string{"a", "b", "c", "d", "e"},
		})
	}
	return &fakeGateway{bundle: b}
}

func (g *fakeGateway) LoadSession(_ context.Context, sessionID int) (*model.SessionBundle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.loads++
	if g.loadErr != nil {
		return nil, g.loadErr
	}
	b := *g.bundle
	return &b, nil
}

func (g *fakeGateway) SaveAnswer(ctx context.Context, req model.SaveAnswerRequest) error {
	g.mu.Lock()
	delay, gate := g.saveDelay, g.saveGate
	g.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if delay > 0 {
		time.Sleep(delay)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.rejectAfterFinalize && len(g.finalizes) > 0 {
		return errSessionFinalized
	}
	g.saves = append(g.saves, req)
	return g.saveErr
}

func (g *fakeGateway) FinalizeSession(_ context.Context, req model.FinalizeRequest) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.finalizes = append(g.finalizes, req)
	return g.finalizeErr
}

func (g *fakeGateway) set(fn func(g *fakeGateway)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn(g)
}

func (g *fakeGateway) savedRequests() []model.SaveAnswerRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]model.SaveAnswerRequest(nil), g.saves...)
}

func (g *fakeGateway) finalizeRequests() []model.FinalizeRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]model.FinalizeRequest(nil), g.finalizes...)
}

type recordingSink struct {
	mu       sync.Mutex
	failures []SaveFailure
}

func (s *recordingSink) AnswerSaveFailed(_ context.Context, f SaveFailure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, f)
}

func (s *recordingSink) all() []SaveFailure {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SaveFailure(nil), s.failures...)
}

// userMessageError mimics the gateway's error carrying a server message.
type userMessageError struct {
	msg string
}

func (e userMessageError) Error() string       { return "remote: " + e.msg }
func (e userMessageError) UserMessage() string { return e.msg }
