package gateway

import (
	"errors"
	"fmt"

	"github.com/stemsi/simulado/internal/model"
)

// Error kinds. Every error returned by the gateway matches exactly one of
// them with errors.Is.
var (
	ErrNetwork    = errors.New("remote api unreachable")
	ErrNotFound   = errors.New("remote resource not found")
	ErrValidation = errors.New("invalid payload")
	ErrRemote     = errors.New("remote api error")
)

// Error describes a failed call to the remote API.
type Error struct {
	Kind    error
	Op      string
	Status  int
	Message string // the server's {error} text, if it sent one
	Err     error
}

func (e *Error) Error() string {
	msg := e.Op + ": " + e.Kind.Error()
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// UserMessage is the line shown to the student. Network failures always read
// "Erro de conexão"; other kinds return the server text, which may be empty.
func (e *Error) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Kind == ErrNetwork {
		return model.MsgConnectionError
	}
	return ""
}

// UserMessage extracts the student-facing text from any error, using
// fallback when the gateway has nothing better.
func UserMessage(err error, fallback string) string {
	var ge *Error
	if !errors.As(err, &ge) {
		return fallback
	}
	if msg := ge.UserMessage(); msg != "" {
		return msg
	}
	return fallback
}

// Kind reports which of the gateway error kinds err carries, or nil.
func Kind(err error) error {
	for _, k := range []error{ErrNetwork, ErrNotFound, ErrValidation, ErrRemote} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
