package exam

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/stemsi/simulado/internal/model"
)

var (
	ErrUnknownQuestion = errors.New("question is not part of this simulado")
	ErrStoreClosed     = errors.New("answer store is closed")
)

// AnswerSaver persists a single answer remotely.
type AnswerSaver interface {
	SaveAnswer(ctx context.Context, req model.SaveAnswerRequest) error
}

// AnswerStore maps question IDs to the selected label and pushes every change
// to the remote API without waiting for it. The map is the client's cache;
// nothing read back from the server is merged into it.
//
// Set rejects labels outside A–E and questions outside the loaded set with an
// error and leaves the map untouched; both are caller bugs, not user input.
type AnswerStore struct {
	sessionID int
	saver     AnswerSaver
	sink      FailureSink
	elapsed   func() int
	known     map[int]struct{}

	mu      sync.RWMutex
	answers map[int]model.ChoiceLabel
	closed  bool

	ctx      context.Context
	cancel   context.CancelFunc
	inflight sync.WaitGroup
}

func NewAnswerStore(sessionID int, questionIDs []int, saver AnswerSaver, sink FailureSink, elapsed func() int) *AnswerStore {
	known := make(map[int]struct{}, len(questionIDs))
	for _, id := range questionIDs {
		known[id] = struct{}{}
	}
	if elapsed == nil {
		elapsed = func() int { return 0 }
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &AnswerStore{
		sessionID: sessionID,
		saver:     saver,
		sink:      sink,
		elapsed:   elapsed,
		known:     known,
		answers:   make(map[int]model.ChoiceLabel),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Set records choice for the question, replacing any earlier one, and starts
// the remote save in the background.
func (s *AnswerStore) Set(questionID int, choice model.ChoiceLabel) error {
	if !choice.Valid() {
		return model.ErrInvalidChoice
	}
	if _, ok := s.known[questionID]; !ok {
		return ErrUnknownQuestion
	}

	req := model.SaveAnswerRequest{
		SessionID:      s.sessionID,
		QuestionID:     questionID,
		Choice:         choice,
		ElapsedSeconds: s.elapsed(),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStoreClosed
	}
	s.answers[questionID] = choice
	s.inflight.Add(1)
	s.mu.Unlock()

	go s.persist(req)
	return nil
}

func (s *AnswerStore) persist(req model.SaveAnswerRequest) {
	defer s.inflight.Done()

	err := s.saver.SaveAnswer(s.ctx, req)
	if err == nil {
		return
	}
	// Abandoned by Close: the session is gone, nobody wants the failure.
	if s.ctx.Err() != nil {
		return
	}
	if s.sink != nil {
		s.sink.AnswerSaveFailed(context.WithoutCancel(s.ctx), SaveFailure{
			SessionID:      req.SessionID,
			QuestionID:     req.QuestionID,
			Choice:         req.Choice,
			ElapsedSeconds: req.ElapsedSeconds,
			Err:            err,
			At:             time.Now(),
		})
	}
}

// Resend repeats a save synchronously if req still holds the current local
// answer. A superseded answer is not sent and sent is false.
func (s *AnswerStore) Resend(ctx context.Context, req model.SaveAnswerRequest) (sent bool, err error) {
	s.mu.RLock()
	current, ok := s.answers[req.QuestionID]
	closed := s.closed
	s.mu.RUnlock()

	if closed || !ok || current != req.Choice || req.SessionID != s.sessionID {
		return false, nil
	}
	return true, s.saver.SaveAnswer(ctx, req)
}

func (s *AnswerStore) IsAnswered(questionID int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.answers[questionID]
	return ok
}

func (s *AnswerStore) Choice(questionID int) (model.ChoiceLabel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.answers[questionID]
	return c, ok
}

// AnsweredCount is the number of distinct questions answered.
func (s *AnswerStore) AnsweredCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.answers)
}

func (s *AnswerStore) Snapshot() map[int]model.ChoiceLabel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int]model.ChoiceLabel, len(s.answers))
	for k, v := range s.answers {
		out[k] = v
	}
	return out
}

// CompletionPercent is answered/total*100 rounded to the nearest integer.
func (s *AnswerStore) CompletionPercent(total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(s.AnsweredCount()) / float64(total) * 100))
}

// Wait blocks until every save started so far has completed.
func (s *AnswerStore) Wait() {
	s.inflight.Wait()
}

// WaitContext is Wait bounded by ctx. It returns ctx's error if saves are
// still running when ctx ends.
func (s *AnswerStore) WaitContext(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close abandons in-flight saves and rejects further Sets.
func (s *AnswerStore) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.inflight.Wait()
}
