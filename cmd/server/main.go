package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/simulado/internal/config"
	"github.com/stemsi/simulado/internal/database"
	"github.com/stemsi/simulado/internal/exam"
	"github.com/stemsi/simulado/internal/gateway"
	"github.com/stemsi/simulado/internal/handler"
	"github.com/stemsi/simulado/internal/logger"
	"github.com/stemsi/simulado/internal/model"
	"github.com/stemsi/simulado/internal/router"
	"github.com/stemsi/simulado/internal/service"
	"github.com/stemsi/simulado/internal/validator"
	"github.com/stemsi/simulado/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("api", cfg.APIBaseURL).
		Str("log_level", cfg.LogLevel).
		Msg("Starting simulado runner")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg)
	client := gateway.New(gateway.Config{BaseURL: cfg.APIBaseURL, Timeout: cfg.APITimeout}, log)
	clocks := service.NewSessionClockStore(rdb, cfg.SessionClockTTL)

	sessions := service.NewSessionRegistry(service.RegistryOptions{
		Gateways: func(p model.Principal) exam.Gateway { return client.For(p) },
		Starts:   clocks.For,
		Sink: exam.MultiSink{
			exam.NewLogSink(log),
			service.NewRedisFailureSink(rdb, log),
		},
		Tick: cfg.ClockTick,
		Log:  log,
	})

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:     handler.NewAuthHandler(handler.GatewayAuth{Client: client}, log),
		Simulado: handler.NewSimuladoHandler(sessions, log),
		WS:       handler.NewWSHandler(sessions, log, cfg.AllowedOrigins),
		System:   handler.NewSystemHandler(rdb, sessions, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	lookup := func(userID, sessionID int) (worker.Resaver, bool) {
		ctrl, ok := sessions.Get(userID, sessionID)
		if !ok {
			return nil, false
		}
		return ctrl, true
	}
	retryWorker := worker.NewSaveRetryWorker(rdb, lookup, cfg.SaveRetryMaxAttempts, cfg.SaveRetryBackoff, log)

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		retryWorker.Start(workerCtx)
	}()

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(ctx, authService, sessions, handlers, cfg, log)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Drain the retry queue while controllers are still open to resend.
	workerCancel()
	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		log.Warn().Msg("Retry worker did not drain in time")
	}

	// 3. Close every open simulado; in-flight saves are abandoned.
	sessions.Shutdown()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
