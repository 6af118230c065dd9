package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"campus-market/internal/config"
	"campus-market/internal/interfaces/router"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load")
	}
	if !cfg.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	srv, err := router.CreateApp(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("app create")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	sqlDB, err := srv.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		cancel()
		log.Fatal().Err(err).Msg("Postgres connection failed")
	}
	log.Info().Msg("Postgres connected")
	if err := srv.Rdb.Ping(ctx).Err(); err != nil {
		cancel()
		log.Fatal().Err(err).Msg("Redis connection failed")
	}
	cancel()
	log.Info().Msg("Redis connected")

	rt := srv.RealtimeServer(cfg.RealtimeAddr)

	errCh := make(chan error, 2)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("API listening")
		errCh <- srv.App.Listen(":" + cfg.Port)
	}()
	go func() {
		log.Info().Str("addr", rt.Addr).Msg("realtime gateway listening")
		if err := rt.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		log.Info().Str("signal", sig.String()).Msg("received signal")
	case err := <-errCh:
		log.Error().Err(err).Msg("server stopped")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := rt.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("realtime shutdown")
	}
	srv.Gateway.Shutdown()
	if err := srv.App.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("api shutdown")
	}
	if sqlDB != nil {
		_ = sqlDB.Close()
	}
	_ = srv.Rdb.Close()
	log.Info().Msg("shutdown complete")
}
