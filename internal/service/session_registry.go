package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/simulado/internal/exam"
	"github.com/stemsi/simulado/internal/model"
)

// RegistryOptions wires the collaborators each controller receives.
type RegistryOptions struct {
	// Gateways builds the remote gateway acting on behalf of a student.
	Gateways func(model.Principal) exam.Gateway
	// Starts is optional; without it the clock restarts on every open.
	Starts func(userID int) exam.StartStore
	Sink   exam.FailureSink
	Clock  exam.Clock
	Tick   time.Duration
	Log    zerolog.Logger
}

type registryEntry struct {
	sessionID int
	ctrl      *exam.Controller
	stopClock context.CancelFunc
}

// SessionRegistry keeps at most one open simulado per student.
type SessionRegistry struct {
	opts RegistryOptions
	log  zerolog.Logger

	mu      sync.Mutex
	byUser  map[int]*registryEntry
	closed  bool
	clocks  sync.WaitGroup
	baseCtx context.Context
	cancel  context.CancelFunc
}

// NewSessionRegistry creates a new SessionRegistry.
func NewSessionRegistry(opts RegistryOptions) *SessionRegistry {
	ctx, cancel := context.WithCancel(context.Background())
	return &SessionRegistry{
		opts:    opts,
		log:     opts.Log.With().Str("component", "session_registry").Logger(),
		byUser:  make(map[int]*registryEntry),
		baseCtx: ctx,
		cancel:  cancel,
	}
}

// Open returns the student's controller for sessionID, loading it first if it
// is new. Opening a different simulado closes the previous one. A failed load
// leaves the controller registered in the error state and returns the error,
// so the caller can render the alert and offer a retry.
func (r *SessionRegistry) Open(ctx context.Context, p model.Principal, sessionID int) (*exam.Controller, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, exam.ErrClosed
	}
	var replaced *registryEntry
	if e, ok := r.byUser[p.UserID]; ok {
		if e.sessionID == sessionID {
			r.mu.Unlock()
			return e.ctrl, nil
		}
		replaced = r.detachLocked(p.UserID)
	}

	ctrl := exam.NewController(sessionID, r.opts.Gateways(p), r.controllerOptions(p))
	clockCtx, stop := context.WithCancel(r.baseCtx)
	r.byUser[p.UserID] = &registryEntry{sessionID: sessionID, ctrl: ctrl, stopClock: stop}
	r.clocks.Add(1)
	r.mu.Unlock()

	if replaced != nil {
		r.closeEntry(p.UserID, replaced)
	}

	go func() {
		defer r.clocks.Done()
		ctrl.RunClock(clockCtx)
	}()

	r.log.Info().Int("user_id", p.UserID).Int("simulado_id", sessionID).Msg("Opening simulado")
	if err := ctrl.Load(ctx); err != nil {
		return ctrl, err
	}
	return ctrl, nil
}

func (r *SessionRegistry) controllerOptions(p model.Principal) exam.Options {
	opts := exam.Options{
		Log:   r.opts.Log.With().Int("user_id", p.UserID).Logger(),
		Clock: r.opts.Clock,
		Tick:  r.opts.Tick,
	}
	if r.opts.Starts != nil {
		opts.Starts = r.opts.Starts(p.UserID)
	}
	if sink := r.opts.Sink; sink != nil {
		userID := p.UserID
		opts.Sink = exam.FailureSinkFunc(func(ctx context.Context, f exam.SaveFailure) {
			f.UserID = userID
			sink.AnswerSaveFailed(ctx, f)
		})
	}
	return opts
}

// Get returns the open controller if it belongs to sessionID.
func (r *SessionRegistry) Get(userID, sessionID int) (*exam.Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byUser[userID]
	if !ok || e.sessionID != sessionID {
		return nil, false
	}
	return e.ctrl, true
}

// Close abandons the student's simulado. It reports whether one was open.
func (r *SessionRegistry) Close(userID, sessionID int) bool {
	r.mu.Lock()
	e, ok := r.byUser[userID]
	if !ok || e.sessionID != sessionID {
		r.mu.Unlock()
		return false
	}
	r.detachLocked(userID)
	r.mu.Unlock()

	r.closeEntry(userID, e)
	return true
}

// Active returns how many simulados are open.
func (r *SessionRegistry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byUser)
}

func (r *SessionRegistry) detachLocked(userID int) *registryEntry {
	e := r.byUser[userID]
	delete(r.byUser, userID)
	return e
}

// closeEntry runs without r.mu: closing waits for in-flight saves.
func (r *SessionRegistry) closeEntry(userID int, e *registryEntry) {
	e.stopClock()
	e.ctrl.Close()
	r.log.Info().Int("user_id", userID).Int("simulado_id", e.sessionID).Msg("Simulado closed")
}

// Shutdown closes every open simulado and waits for their clocks to stop.
func (r *SessionRegistry) Shutdown() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	entries := make(map[int]*registryEntry, len(r.byUser))
	for userID := range r.byUser {
		entries[userID] = r.detachLocked(userID)
	}
	r.mu.Unlock()

	for userID, e := range entries {
		r.closeEntry(userID, e)
	}

	r.cancel()
	r.clocks.Wait()
}
