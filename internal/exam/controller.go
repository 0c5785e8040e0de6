package exam

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/simulado/internal/model"
)

// State is the lifecycle of one exam-taking session on the client.
//
//	Loading ─▶ Active ─▶ Finalizing ─▶ Finalized
//	   │          ▲           │
//	   ▼          └───────────┘ (finalize failed)
//	 Error ─(Retry)─▶ Loading
type State int

const (
	StateLoading State = iota
	StateActive
	StateFinalizing
	StateFinalized
	StateError
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateActive:
		return "active"
	case StateFinalizing:
		return "finalizing"
	case StateFinalized:
		return "finalized"
	case StateError:
		return "error"
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for st := StateLoading; st <= StateError; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown simulado state %q", text)
}

var (
	ErrNotActive          = errors.New("simulado is not active")
	ErrNotLoading         = errors.New("simulado was already loaded")
	ErrNotFailed          = errors.New("simulado did not fail to load")
	ErrAlreadyFinalized   = errors.New("simulado is already finalized")
	ErrFinalizeInProgress = errors.New("simulado finalization is in progress")
	ErrNotConfirmed       = errors.New("finalization was not confirmed")
	ErrNoQuestions        = errors.New("simulado has no questions")
	ErrClosed             = errors.New("simulado controller is closed")
)

// Gateway is everything the controller needs from the remote API.
type Gateway interface {
	AnswerSaver
	LoadSession(ctx context.Context, sessionID int) (*model.SessionBundle, error)
	FinalizeSession(ctx context.Context, req model.FinalizeRequest) error
}

// StartStore resolves the instant a session was first opened, so a reload
// keeps counting from there. now is stored when nothing was recorded yet.
type StartStore interface {
	ResolveStart(ctx context.Context, sessionID int, now time.Time) (time.Time, error)
}

// Confirmer asks the student to acknowledge an irreversible action.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) (bool, error)

func (fn ConfirmFunc) Confirm(ctx context.Context, prompt string) (bool, error) {
	return fn(ctx, prompt)
}

// Confirmed is used when the acknowledgment was already collected upstream,
// e.g. an explicit confirm flag in a request body.
var Confirmed Confirmer = ConfirmFunc(func(context.Context, string) (bool, error) { return true, nil })

// DefaultSaveDrain bounds how long Finalize waits for answer saves that are
// still in flight.
const DefaultSaveDrain = 10 * time.Second

// Options tune a Controller. The zero value is usable.
type Options struct {
	Log       zerolog.Logger
	Sink      FailureSink
	Clock     Clock
	Starts    StartStore
	Tick      time.Duration
	SaveDrain time.Duration
}

// Controller drives one simulado: loading it, answering, navigating and the
// finalize handoff to the results view. All methods are safe for concurrent
// use; no network call runs while the internal lock is held.
type Controller struct {
	sessionID int
	gw        Gateway
	log       zerolog.Logger
	sink      FailureSink
	clock     Clock
	starts    StartStore
	tick      time.Duration
	drain     time.Duration
	events    *broadcaster
	done      chan struct{}

	mu        sync.Mutex
	state     State
	fetching  bool
	closed    bool
	session   model.Session
	questions []model.Question
	timer     *Timer
	answers   *AnswerStore
	nav       *Navigator
	alert     string
	redirect  string
}

func NewController(sessionID int, gw Gateway, opts Options) *Controller {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Tick <= 0 {
		opts.Tick = time.Second
	}
	if opts.SaveDrain <= 0 {
		opts.SaveDrain = DefaultSaveDrain
	}
	log := opts.Log.With().Str("component", "simulado").Int("simulado_id", sessionID).Logger()
	if opts.Sink == nil {
		opts.Sink = NewLogSink(log)
	}
	return &Controller{
		sessionID: sessionID,
		gw:        gw,
		log:       log,
		sink:      opts.Sink,
		clock:     opts.Clock,
		starts:    opts.Starts,
		tick:      opts.Tick,
		drain:     opts.SaveDrain,
		events:    newBroadcaster(),
		done:      make(chan struct{}),
		state:     StateLoading,
	}
}

func (c *Controller) SessionID() int { return c.sessionID }

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Load fetches the session and its questions. On failure the controller
// moves to StateError and stays there until Retry.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state != StateLoading || c.fetching {
		c.mu.Unlock()
		return ErrNotLoading
	}
	c.fetching = true
	c.mu.Unlock()

	bundle, err := c.gw.LoadSession(ctx, c.sessionID)
	if err == nil && !bundle.Session.Finalized && len(bundle.Questions) == 0 {
		err = ErrNoQuestions
	}

	start := c.clock()
	if err == nil && !bundle.Session.Finalized && c.starts != nil {
		resolved, serr := c.starts.ResolveStart(ctx, c.sessionID, start)
		if serr != nil {
			c.log.Warn().Err(serr).Msg("Session start lookup failed, timing from now")
		} else {
			start = resolved
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetching = false

	if c.closed {
		return ErrClosed
	}

	if err != nil {
		c.state = StateError
		c.alert = alertFor(err, model.MsgLoadFailed)
		c.log.Error().Err(err).Msg("Simulado load failed")
		c.publishLocked(EventState)
		return fmt.Errorf("load simulado %d: %w", c.sessionID, err)
	}

	c.session = bundle.Session
	c.alert = ""

	if bundle.Session.Finalized {
		c.state = StateFinalized
		c.redirect = model.ResultPath(c.sessionID)
		c.log.Info().Msg("Simulado already finalized")
		c.publishLocked(EventState)
		return nil
	}

	c.questions = bundle.Questions
	ids := make([]int, len(c.questions))
	for i, q := range c.questions {
		ids[i] = q.ID
	}
	c.timer = NewTimer(c.clock)
	c.timer.StartAt(start)
	c.answers = NewAnswerStore(c.sessionID, ids, c.gw, c.sink, c.timer.ElapsedSeconds)
	c.nav = NewNavigator(c.questions, c.answers)
	c.state = StateActive

	c.log.Info().Int("questions", len(c.questions)).Time("started_at", start).Msg("Simulado loaded")
	c.publishLocked(EventState)
	return nil
}

// Retry reloads a session whose first load failed.
func (c *Controller) Retry(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state != StateError {
		c.mu.Unlock()
		return ErrNotFailed
	}
	c.state = StateLoading
	c.alert = ""
	c.publishLocked(EventState)
	c.mu.Unlock()

	return c.Load(ctx)
}

// Select records choice for questionID.
func (c *Controller) Select(questionID int, choice model.ChoiceLabel) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.activeLocked(); err != nil {
		return err
	}
	return c.selectLocked(questionID, choice)
}

// SelectCurrent records choice for the question under the cursor.
func (c *Controller) SelectCurrent(choice model.ChoiceLabel) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.activeLocked(); err != nil {
		return err
	}
	q, _ := c.nav.Current()
	return c.selectLocked(q.ID, choice)
}

func (c *Controller) activeLocked() error {
	if c.closed {
		return ErrClosed
	}
	if c.state != StateActive {
		return ErrNotActive
	}
	return nil
}

func (c *Controller) selectLocked(questionID int, choice model.ChoiceLabel) error {
	if err := c.answers.Set(questionID, choice); err != nil {
		return err
	}
	c.events.publish(Event{
		Kind:           EventAnswer,
		SessionID:      c.sessionID,
		State:          c.state,
		ElapsedSeconds: c.timer.ElapsedSeconds(),
		Index:          c.nav.Index(),
		QuestionID:     questionID,
		Choice:         choice,
		At:             c.clock(),
	})
	return nil
}

func (c *Controller) Next() error {
	return c.move(func(n *Navigator) bool { return n.Next() })
}

func (c *Controller) Previous() error {
	return c.move(func(n *Navigator) bool { return n.Previous() })
}

// JumpTo moves to a zero-based position; out-of-range targets are ignored.
func (c *Controller) JumpTo(index int) error {
	return c.move(func(n *Navigator) bool { return n.JumpTo(index) })
}

func (c *Controller) move(step func(*Navigator) bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.activeLocked(); err != nil {
		return err
	}
	if step(c.nav) {
		c.publishLocked(EventNavigate)
	}
	return nil
}

// Finalize closes the session once the student confirms. It returns the
// results path to redirect to. A failed attempt leaves the session active
// with every answer intact and may be retried. There is no completion gate:
// a simulado with no answers can be finalized.
//
// Saves still in flight get up to Options.SaveDrain to reach the remote API
// first, since it rejects answers for a finalized session. Their outcome does
// not block the finalization.
func (c *Controller) Finalize(ctx context.Context, confirm Confirmer) (string, error) {
	if err := c.finalizable(); err != nil {
		return "", err
	}

	if confirm == nil {
		return "", ErrNotConfirmed
	}
	ok, err := confirm.Confirm(ctx, model.FinalizePrompt)
	if err != nil {
		return "", fmt.Errorf("confirm finalize: %w", err)
	}
	if !ok {
		return "", ErrNotConfirmed
	}

	c.mu.Lock()
	if err := c.finalizableLocked(); err != nil {
		c.mu.Unlock()
		return "", err
	}
	c.state = StateFinalizing
	c.alert = ""
	total := c.timer.ElapsedSeconds()
	answers := c.answers
	c.publishLocked(EventState)
	c.mu.Unlock()

	c.drainSaves(ctx, answers)

	err = c.gw.FinalizeSession(ctx, model.FinalizeRequest{SessionID: c.sessionID, TotalSeconds: total})

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.state = StateActive
		c.alert = alertFor(err, model.MsgFinalizeFailed)
		c.log.Error().Err(err).Int("tempo_total", total).Msg("Simulado finalize failed")
		c.publishLocked(EventState)
		c.publishLocked(EventAlert)
		return "", fmt.Errorf("finalize simulado %d: %w", c.sessionID, err)
	}

	c.state = StateFinalized
	c.redirect = model.ResultPath(c.sessionID)
	c.session.Finalized = true
	c.session.TotalSeconds = &total
	c.session.FinalizedAt = &model.Timestamp{Time: c.clock()}

	c.log.Info().
		Int("tempo_total", total).
		Int("answered", c.answers.AnsweredCount()).
		Int("questions", len(c.questions)).
		Msg("Simulado finalized")
	c.publishLocked(EventState)
	return c.redirect, nil
}

func (c *Controller) drainSaves(ctx context.Context, answers *AnswerStore) {
	wctx, cancel := context.WithTimeout(ctx, c.drain)
	defer cancel()
	if err := answers.WaitContext(wctx); err != nil {
		c.log.Warn().Err(err).Msg("Finalizing with answer saves still in flight")
	}
}

func (c *Controller) finalizable() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.finalizableLocked()
}

func (c *Controller) finalizableLocked() error {
	if c.closed {
		return ErrClosed
	}
	switch c.state {
	case StateActive:
		return nil
	case StateFinalized:
		return ErrAlreadyFinalized
	case StateFinalizing:
		return ErrFinalizeInProgress
	default:
		return ErrNotActive
	}
}

// Resave repeats a previously failed save, provided the session is still
// active and the answer has not been changed since.
func (c *Controller) Resave(ctx context.Context, req model.SaveAnswerRequest) (bool, error) {
	c.mu.Lock()
	if c.closed || c.state != StateActive {
		c.mu.Unlock()
		return false, nil
	}
	answers := c.answers
	c.mu.Unlock()

	return answers.Resend(ctx, req)
}

// Subscribe streams the controller's events until the returned cancel func
// is called or the controller is closed.
func (c *Controller) Subscribe(buffer int) (<-chan Event, func()) {
	return c.events.subscribe(buffer)
}

// RunClock publishes an EventTick every tick while the timer runs. It returns
// when ctx ends, the controller closes or the session is finalized.
func (c *Controller) RunClock(ctx context.Context) {
	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.Lock()
			st := c.state
			if st == StateActive || st == StateFinalizing {
				c.publishLocked(EventTick)
			}
			c.mu.Unlock()
			if st == StateFinalized {
				return
			}
		}
	}
}

// WaitSaves blocks until every answer save started so far has completed.
func (c *Controller) WaitSaves() {
	c.mu.Lock()
	answers := c.answers
	c.mu.Unlock()
	if answers != nil {
		answers.Wait()
	}
}

// Close abandons in-flight saves and ends all subscriptions. A closed
// controller is never reused.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	answers := c.answers
	close(c.done)
	c.mu.Unlock()

	if answers != nil {
		answers.Close()
	}
	c.events.closeAll()
}

func (c *Controller) publishLocked(kind EventKind) {
	e := Event{
		Kind:      kind,
		SessionID: c.sessionID,
		State:     c.state,
		Alert:     c.alert,
		Redirect:  c.redirect,
		At:        c.clock(),
	}
	if c.timer != nil {
		e.ElapsedSeconds = c.timer.ElapsedSeconds()
		e.Clock = FormatClock(e.ElapsedSeconds)
	}
	if c.nav != nil {
		e.Index = c.nav.Index()
		if q, ok := c.nav.Current(); ok {
			e.QuestionID = q.ID
		}
	}
	c.events.publish(e)
}

// alertFor turns an error into the single line shown to the student.
func alertFor(err error, fallback string) string {
	if errors.Is(err, ErrNoQuestions) {
		return model.MsgNoQuestions
	}
	var um interface{ UserMessage() string }
	if errors.As(err, &um) {
		if msg := um.UserMessage(); msg != "" {
			return msg
		}
		return fallback
	}
	return model.MsgConnectionError
}
