package exam

import "github.com/stemsi/simulado/internal/model"

// QuestionStatus is what the side index shows for a question. Whether it is
// the current one is decided by the caller comparing indexes.
type QuestionStatus string

const (
	StatusAnswered   QuestionStatus = "answered"
	StatusUnanswered QuestionStatus = "unanswered"
)

type answeredLookup interface {
	IsAnswered(questionID int) bool
}

// Navigator keeps the cursor over a fixed, ordered question list. The index
// always stays within [0, Len()). Navigator is not safe for concurrent use;
// the Controller serializes access.
type Navigator struct {
	questions []model.Question
	index     int
	answers   answeredLookup
}

func NewNavigator(questions []model.Question, answers answeredLookup) *Navigator {
	return &Navigator{questions: questions, answers: answers}
}

func (n *Navigator) Len() int   { return len(n.questions) }
func (n *Navigator) Index() int { return n.index }

// Current returns the question under the cursor; ok is false for an empty set.
func (n *Navigator) Current() (model.Question, bool) {
	return n.QuestionAt(n.index)
}

func (n *Navigator) QuestionAt(i int) (model.Question, bool) {
	if i < 0 || i >= len(n.questions) {
		return model.Question{}, false
	}
	return n.questions[i], true
}

// Next advances one question; at the last one it does nothing.
func (n *Navigator) Next() bool {
	if n.index+1 >= len(n.questions) {
		return false
	}
	n.index++
	return true
}

// Previous goes back one question; at the first one it does nothing.
func (n *Navigator) Previous() bool {
	if n.index == 0 {
		return false
	}
	n.index--
	return true
}

// JumpTo moves to target when it is in range and reports whether it did.
func (n *Navigator) JumpTo(target int) bool {
	if target < 0 || target >= len(n.questions) {
		return false
	}
	n.index = target
	return true
}

func (n *Navigator) StatusOf(i int) QuestionStatus {
	q, ok := n.QuestionAt(i)
	if !ok || n.answers == nil || !n.answers.IsAnswered(q.ID) {
		return StatusUnanswered
	}
	return StatusAnswered
}

// Statuses returns StatusOf for every position, for the side index.
func (n *Navigator) Statuses() []QuestionStatus {
	out := make([]QuestionStatus, len(n.questions))
	for i := range n.questions {
		out[i] = n.StatusOf(i)
	}
	return out
}
