package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/sidhantk/txnrelay/internal/dispatch"
	"github.com/sidhantk/txnrelay/internal/server"
	"github.com/sidhantk/txnrelay/internal/source"
	"github.com/sidhantk/txnrelay/pkg/api"
	"github.com/sidhantk/txnrelay/pkg/config"
	"github.com/sidhantk/txnrelay/pkg/live"
	"github.com/sidhantk/txnrelay/pkg/logging"
	filestore "github.com/sidhantk/txnrelay/pkg/store/file"
	pgstore "github.com/sidhantk/txnrelay/pkg/store/postgres"
)

func main() {
	logger := logging.Setup(logging.DefaultConfig())

	// Load configuration from environment
	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", nil), nil); err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	var cfg config.Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf", FlatPaths: true}); err != nil {
		logger.Error("failed to unmarshal config", "error", err)
		os.Exit(1)
	}
	cfg.ApplyDefaults()

	logger.Info("configuration loaded",
		"addr", cfg.ListenAddr,
		"store", cfg.Store,
	)

	store, err := newStore(cfg, logger)
	if err != nil {
		logger.Error("failed to open pending store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	session := live.NewSession(logger.With("component", "live"))
	dispatcher := dispatch.New(store, session, logger.With("component", "dispatch"))
	srv := server.New(store, dispatcher, session, server.GrantedPermissions{}, logger.With("component", "http"))

	// Setup context with cancellation on SIGINT/SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
		if err := srv.Shutdown(); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	if cfg.StdinFeed {
		messages := make(chan api.RawMessage, 100)
		go func() {
			if err := source.Stream(ctx, os.Stdin, messages, logger.With("component", "source")); err != nil &&
				!errors.Is(err, context.Canceled) {
				logger.Error("stdin feed failed", "error", err)
			}
		}()
		go func() {
			if err := dispatcher.Run(ctx, messages); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("dispatcher failed", "error", err)
			}
		}()
	}

	if err := srv.Listen(cfg.ListenAddr); err != nil {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("daemon stopped")
}

// newStore opens the configured pending-store backend.
func newStore(cfg config.Config, logger *slog.Logger) (api.PendingStore, error) {
	switch cfg.Store {
	case config.StoreFile:
		return filestore.New(cfg.StorePath, logger.With("component", "store"))
	case config.StorePostgres:
		return pgstore.New(pgstore.Config{
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
		}, logger.With("component", "store"))
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store)
	}
}
