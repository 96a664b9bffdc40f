package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dyluth/lanes/internal/config"
	"github.com/dyluth/lanes/internal/ideas"
	"github.com/dyluth/lanes/internal/logging"
	"github.com/dyluth/lanes/internal/mutation"
	"github.com/dyluth/lanes/internal/roster"
	"github.com/dyluth/lanes/internal/server"
	"github.com/dyluth/lanes/pkg/board"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration; LANES_CONFIG points at lanes.yml
	configPath := os.Getenv("LANES_CONFIG")
	if configPath == "" {
		configPath = config.DefaultPath
	}
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", configPath, err)
	}

	logger, err := logging.New(cfg.Log, "lanesd", os.Stdout)
	if err != nil {
		return err
	}

	// 2. Connect to the board store
	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("invalid redis.url: %w", err)
	}
	store, err := board.NewClient(redisOpts, cfg.Client.Name)
	if err != nil {
		return fmt.Errorf("failed to create board client: %w", err)
	}
	defer store.Close()
	store.WithLogger(logger)

	ctx := context.Background()
	if err := store.Ping(ctx); err != nil {
		return fmt.Errorf("redis not accessible at %s: %w", cfg.Redis.URL, err)
	}

	// 3. Make sure the default board exists
	created, err := store.ProvisionBoard(ctx, cfg.Scope)
	if err != nil {
		return fmt.Errorf("failed to provision board %s: %w", cfg.Scope, err)
	}
	logger.WithFields(logrus.Fields{
		"event_type": "board_ready",
		"scope":      string(cfg.Scope),
		"created":    created,
	}).Info("Default board ready")

	// 4. Idea generation is optional; the API answers 502 when it is off
	gen, err := ideas.FromConfig(ctx, cfg.Ideas)
	if err != nil {
		logger.WithError(err).Warn("Idea generation disabled")
		gen = ideas.Disabled
	}

	policy := mutation.RetryPolicy{
		MaxAttempts:     cfg.Retry.MaxAttempts,
		InitialInterval: cfg.Retry.InitialInterval,
		MaxInterval:     cfg.Retry.MaxInterval,
	}
	svc := mutation.NewService(store, gen, policy, logger)

	static := roster.Static(cfg.Roster)
	rosterFor := func(scope board.Scope) roster.Provider {
		return roster.Merge(static, roster.NewRedisProvider(store, scope))
	}

	srv := server.New(store, svc, rosterFor, logger)

	// 5. Serve until signalled
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", cfg.Server.Addr).Info("HTTP API listening")
		errCh <- srv.Start(cfg.Server.Addr)
	}()

	select {
	case sig := <-sigCh:
		logger.WithField("signal", sig.String()).Info("Shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown failed: %w", err)
		}
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("lanesd stopped")
	return nil
}
