package exam

import (
	"sync"
	"time"

	"github.com/stemsi/simulado/internal/model"
)

// EventKind enumerates what a Controller announces to subscribers.
type EventKind string

const (
	EventTick     EventKind = "tick"
	EventState    EventKind = "state"
	EventAnswer   EventKind = "answer"
	EventNavigate EventKind = "navigate"
	EventAlert    EventKind = "alert"
)

// Event is a single announcement. Only the fields relevant to Kind are set.
type Event struct {
	Kind           EventKind         `json:"event"`
	SessionID      int               `json:"session_id"`
	State          State             `json:"state"`
	ElapsedSeconds int               `json:"elapsed_seconds"`
	Clock          string            `json:"clock,omitempty"`
	Index          int               `json:"index"`
	QuestionID     int               `json:"question_id,omitempty"`
	Choice         model.ChoiceLabel `json:"choice,omitempty"`
	Alert          string            `json:"alert,omitempty"`
	Redirect       string            `json:"redirect,omitempty"`
	At             time.Time         `json:"at"`
}

// broadcaster fans events out without ever blocking the publisher: a slow
// subscriber loses events rather than stalling the session.
type broadcaster struct {
	mu   sync.Mutex
	next int
	subs map[int]chan Event
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[int]chan Event)}
}

func (b *broadcaster) subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

func (b *broadcaster) publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

func (b *broadcaster) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
