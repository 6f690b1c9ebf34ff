package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/pagecap/internal/api/ws"
	"github.com/gosuda/pagecap/internal/capture"
	"github.com/gosuda/pagecap/internal/config"
	"github.com/gosuda/pagecap/internal/delivery"
	"github.com/gosuda/pagecap/internal/server"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
}

func run() error {
	// Optional .env for local development; ignored when absent.
	_ = godotenv.Load()

	// Initialize structured logging from environment.
	logLevel := os.Getenv("PAGECAP_LOG_LEVEL")
	level, parseErr := zerolog.ParseLevel(logLevel)
	if parseErr != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	logFormat := os.Getenv("PAGECAP_LOG_FORMAT")
	if logFormat == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	// Load configuration from environment.
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Capture documents and saved images land under the output directory.
	deliverer := delivery.New(cfg.Output.Dir)

	// The hub pushes directives to frames; the aggregator receives their
	// entries. They reference each other, hence the two-phase Bind.
	hub := ws.NewHub()
	agg := capture.New(capture.Config{Budget: cfg.Capture.Budget}, hub, deliverer)
	hub.Bind(agg)

	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Create HTTP server with all routes wired.
	srv := server.New(ctx, cfg, agg, hub)

	// Start server in background goroutine.
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("starting server")
		if startErr := srv.Start(ctx); startErr != nil {
			log.Error().Err(startErr).Msg("server error")
		}
	}()

	// Block until shutdown signal.
	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Flush any open session to disk before the socket closes.
	if stopErr := agg.Stop(shutdownCtx, false); stopErr != nil {
		log.Error().Err(stopErr).Msg("final session stop failed")
	}

	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		return shutdownErr
	}

	log.Info().Msg("stopped")
	return nil
}
