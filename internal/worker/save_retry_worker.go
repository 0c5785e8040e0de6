package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/simulado/internal/config"
	"github.com/stemsi/simulado/internal/model"
)

const SaveRetryPollTimeout = 1 * time.Second

// Resaver re-sends an answer if it is still the student's current one.
type Resaver interface {
	Resave(ctx context.Context, req model.SaveAnswerRequest) (bool, error)
}

// ResaverLookup finds the open simulado a failed save belongs to.
type ResaverLookup func(userID, sessionID int) (Resaver, bool)

type retryQueue interface {
	BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
	LPop(ctx context.Context, key string) *redis.StringCmd
	LLen(ctx context.Context, key string) *redis.IntCmd
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

type retryOutcome int

const (
	outcomeSent retryOutcome = iota
	outcomeSkipped
	outcomeRequeued
	outcomeDropped
)

// SaveRetryWorker consumes the failed answer saves queue and re-sends them
// through the simulado that is still open.
type SaveRetryWorker struct {
	rdb         retryQueue
	lookup      ResaverLookup
	queue       string
	maxAttempts int
	backoff     time.Duration
	log         zerolog.Logger
}

// NewSaveRetryWorker creates a new SaveRetryWorker.
func NewSaveRetryWorker(rdb retryQueue, lookup ResaverLookup, maxAttempts int, backoff time.Duration, log zerolog.Logger) *SaveRetryWorker {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &SaveRetryWorker{
		rdb:         rdb,
		lookup:      lookup,
		queue:       config.WorkerKey.FailedAnswerSavesQueue,
		maxAttempts: maxAttempts,
		backoff:     backoff,
		log:         log.With().Str("component", "save_retry_worker").Logger(),
	}
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *SaveRetryWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *SaveRetryWorker) processNext(ctx context.Context) {
	result, err := w.rdb.BLPop(ctx, SaveRetryPollTimeout, w.queue).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}
	if len(result) < 2 {
		return
	}

	if w.handle(ctx, result[1]) == outcomeRequeued {
		select {
		case <-ctx.Done():
		case <-time.After(w.backoff):
		}
	}
}

func (w *SaveRetryWorker) handle(ctx context.Context, raw string) retryOutcome {
	var item model.FailedSave
	if err := json.Unmarshal([]byte(raw), &item); err != nil {
		w.log.Error().Err(err).Msg("Unmarshal error")
		return outcomeDropped
	}

	log := w.log.With().
		Int("user_id", item.UserID).
		Int("simulado_id", item.SessionID).
		Int("questao_id", item.QuestionID).
		Int("attempts", item.Attempts).
		Logger()

	r, ok := w.lookup(item.UserID, item.SessionID)
	if !ok {
		log.Debug().Msg("Simulado no longer open, dropping failed save")
		return outcomeSkipped
	}

	sent, err := r.Resave(ctx, item.Request())
	if err == nil {
		if !sent {
			log.Debug().Msg("Answer changed or session ended, dropping failed save")
			return outcomeSkipped
		}
		log.Info().Msg("Answer save retried")
		return outcomeSent
	}

	item.Attempts++
	item.LastError = err.Error()
	if item.Attempts >= w.maxAttempts {
		log.Warn().Err(err).Msg("Answer save abandoned after retries")
		return outcomeDropped
	}

	data, merr := json.Marshal(item)
	if merr != nil {
		log.Error().Err(merr).Msg("Marshal error")
		return outcomeDropped
	}
	if perr := w.rdb.RPush(ctx, w.queue, data).Err(); perr != nil {
		log.Error().Err(perr).Msg("Requeue error")
		return outcomeDropped
	}
	log.Warn().Err(err).Msg("Answer save retry failed, requeued")
	return outcomeRequeued
}

// drain makes one pass over what is queued at shutdown. Items that fail
// again stay queued for the next start.
func (w *SaveRetryWorker) drain(ctx context.Context) {
	n, err := w.rdb.LLen(ctx, w.queue).Result()
	if err != nil {
		w.log.Error().Err(err).Msg("Drain LLen error")
		return
	}

	drained := 0
	for i := int64(0); i < n; i++ {
		raw, err := w.rdb.LPop(ctx, w.queue).Result()
		if err != nil {
			break
		}
		if w.handle(ctx, raw) == outcomeSent {
			drained++
		}
	}
	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}
