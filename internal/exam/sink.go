package exam

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/simulado/internal/model"
)

// SaveFailure describes an answer save that did not reach the remote API.
type SaveFailure struct {
	UserID         int
	SessionID      int
	QuestionID     int
	Choice         model.ChoiceLabel
	ElapsedSeconds int
	Err            error
	At             time.Time
}

// FailureSink receives answer-save failures. The student never sees them and
// the local answer is kept; the sink is the only place they surface.
type FailureSink interface {
	AnswerSaveFailed(ctx context.Context, f SaveFailure)
}

// FailureSinkFunc adapts a function to FailureSink.
type FailureSinkFunc func(ctx context.Context, f SaveFailure)

func (fn FailureSinkFunc) AnswerSaveFailed(ctx context.Context, f SaveFailure) {
	fn(ctx, f)
}

// LogSink writes failures to the structured log.
type LogSink struct {
	log zerolog.Logger
}

func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: log.With().Str("component", "answer_sink").Logger()}
}

func (s *LogSink) AnswerSaveFailed(_ context.Context, f SaveFailure) {
	s.log.Warn().
		Err(f.Err).
		Int("user_id", f.UserID).
		Int("simulado_id", f.SessionID).
		Int("questao_id", f.QuestionID).
		Str("resposta", string(f.Choice)).
		Int("tempo_resposta", f.ElapsedSeconds).
		Msg("Answer save failed")
}

// MultiSink fans a failure out to every sink in order.
type MultiSink []FailureSink

func (m MultiSink) AnswerSaveFailed(ctx context.Context, f SaveFailure) {
	for _, s := range m {
		if s != nil {
			s.AnswerSaveFailed(ctx, f)
		}
	}
}
