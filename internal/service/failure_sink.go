package service

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/simulado/internal/config"
	"github.com/stemsi/simulado/internal/exam"
	"github.com/stemsi/simulado/internal/model"
)

type queuePusher interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// RedisFailureSink queues swallowed answer saves for the retry worker.
type RedisFailureSink struct {
	rdb   queuePusher
	queue string
	log   zerolog.Logger
}

func NewRedisFailureSink(rdb queuePusher, log zerolog.Logger) *RedisFailureSink {
	return &RedisFailureSink{
		rdb:   rdb,
		queue: config.WorkerKey.FailedAnswerSavesQueue,
		log:   log.With().Str("component", "failure_sink").Logger(),
	}
}

func (s *RedisFailureSink) AnswerSaveFailed(ctx context.Context, f exam.SaveFailure) {
	item := model.FailedSave{
		UserID:         f.UserID,
		SessionID:      f.SessionID,
		QuestionID:     f.QuestionID,
		Choice:         f.Choice,
		ElapsedSeconds: f.ElapsedSeconds,
		Attempts:       1,
		FailedAt:       f.At,
	}
	if f.Err != nil {
		item.LastError = f.Err.Error()
	}

	data, err := json.Marshal(item)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to marshal failed save")
		return
	}
	if err := s.rdb.RPush(ctx, s.queue, data).Err(); err != nil {
		s.log.Error().Err(err).
			Int("simulado_id", f.SessionID).
			Int("questao_id", f.QuestionID).
			Msg("Failed to queue answer save for retry")
	}
}
