package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/axtrace/chessapi/internal/config"
	"github.com/axtrace/chessapi/internal/engine"
	"github.com/axtrace/chessapi/internal/httpapi"
	"github.com/axtrace/chessapi/internal/logx"
	"github.com/axtrace/chessapi/internal/service"
)

func main() {
	flags := config.NewFlagSet("chessapi")
	cfg, err := config.Load(flags, os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "chessapi:", err)
		os.Exit(2)
	}

	logger := logx.New(logx.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})

	if _, err := os.Stat(cfg.StockfishPath); err != nil {
		logger.Warn().Err(err).Str("path", cfg.StockfishPath).Msg("engine executable not found, requests will report initialization errors")
	}

	session, err := engine.NewSession(engine.Config{
		Path:           cfg.StockfishPath,
		Logger:         logger.With().Str("component", "engine").Logger(),
		Threads:        cfg.EngineThreads,
		HashMB:         cfg.EngineHashMB,
		SkillLevel:     cfg.EngineSkillLevel,
		MoveOverhead:   cfg.EngineMoveOverhead,
		StartupTimeout: cfg.EngineStartupTimeout,
		QuitTimeout:    cfg.EngineQuitTimeout,
		HangGrace:      cfg.EngineHangGrace,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("create engine session")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.EngineEager {
		// A failed eager start is not fatal; the next request retries.
		if err := session.EnsureStarted(ctx); err != nil {
			logger.Error().Err(err).Msg("engine did not start, will retry on first request")
		}
	}

	coordinator := service.NewCoordinator(session, service.Limits{
		DefaultDepth: cfg.DefaultDepth,
		MaxDepth:     cfg.MaxDepth,
		DefaultTime:  cfg.DefaultTime,
		MinTime:      cfg.MinTime,
		MaxTime:      cfg.MaxTime,
		MaxNodes:     cfg.EngineMaxNodes,
	}, logger.With().Str("component", "coordinator").Logger())
	health := service.NewHealthMonitor(session, cfg.HealthPingTimeout, logger.With().Str("component", "health").Logger())

	router, err := httpapi.NewRouter(logger.With().Str("component", "http").Logger(), httpapi.Options{
		APIKey:      cfg.APIKey,
		GzipMinSize: cfg.HTTPGzipMinSize,
	}, coordinator, health)
	if err != nil {
		logger.Fatal().Err(err).Msg("router")
	}

	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("api listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("api server")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Drain HTTP first so no request is mid-conversation when the engine quits.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http server shutdown error")
	}
	session.Stop()

	logger.Info().Msg("shutdown complete")
}
