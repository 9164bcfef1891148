package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/itstheanurag/judgexec/internal/config"
	"github.com/itstheanurag/judgexec/internal/server"
)

const shutdownTimeout = 30 * time.Second

func newLogger(conf config.LogConfig) zerolog.Logger {
	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr}
	if conf.Format == "json" {
		out = os.Stderr
	}
	return zerolog.New(out).Level(conf.Level).With().Timestamp().Str("service", "judgexec").Logger()
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := newLogger(config.LogConfig{Level: zerolog.InfoLevel, Format: "console"})

	conf, err := config.LoadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	logger = newLogger(conf.Log)

	srv, err := server.New(conf, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create server")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	crashed := false
	select {
	case sig := <-stop:
		logger.Info().Str("signal", sig.String()).Msg("shutdown requested")
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("server crashed")
			crashed = true
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	err = srv.Stop(ctx)
	cancel()
	if err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	if crashed || err != nil {
		os.Exit(1)
	}
}
