// Command stub-api serves a development copy of the remote simulado API from
// YAML fixtures, so the runner and the terminal client can be exercised
// without the real backend.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stemsi/simulado/internal/config"
	"github.com/stemsi/simulado/internal/logger"
	"github.com/stemsi/simulado/internal/service"
	"github.com/stemsi/simulado/internal/stubapi"
)

func main() {
	cfg := config.Load()
	fixtures := flag.String("fixtures", cfg.StubFixtures, "YAML fixture file")
	port := flag.String("port", cfg.StubAPIPort, "listen port")
	flag.Parse()

	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	fx, err := stubapi.LoadFixtures(*fixtures)
	if err != nil {
		log.Fatal().Err(err).Str("path", *fixtures).Msg("Failed to load fixtures")
	}
	log.Info().
		Int("users", len(fx.Users)).
		Int("simulados", len(fx.Simulados)).
		Str("path", *fixtures).
		Msg("Fixtures loaded")

	// Tokens are signed with JWT_SECRET so the runner accepts them as-is.
	stub := stubapi.New(fx, service.NewAuthService(cfg), log)

	srv := &http.Server{
		Addr:              ":" + *port,
		Handler:           stub.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Stub API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Stub API shutdown error")
	}
	log.Info().
		Int("saves", len(stub.Saves())).
		Int("finalizations", len(stub.Finalizations())).
		Msg("Stub API stopped")
}
