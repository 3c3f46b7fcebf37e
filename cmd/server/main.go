package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bcnelson/facepoke-broker/internal/api"
	"github.com/bcnelson/facepoke-broker/internal/bot"
	"github.com/bcnelson/facepoke-broker/internal/config"
	"github.com/bcnelson/facepoke-broker/internal/inference"
	"github.com/bcnelson/facepoke-broker/internal/logging"
	"github.com/bcnelson/facepoke-broker/internal/service"
	"github.com/bcnelson/facepoke-broker/internal/session"
	"github.com/bcnelson/facepoke-broker/internal/storage/backend"
	"github.com/bcnelson/facepoke-broker/internal/telegram"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("Invalid logging configuration: %v", err)
	}
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	// Initialize storage
	store, err := backend.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer store.Close()

	// Initialize inference client (or file shim for testing)
	var client inference.Client
	if cfg.UseFileShim() {
		logger.Info("using file shim for inference", "path", cfg.Inference.FileShim)
		client = inference.NewFileShim(cfg.Inference.FileShim, logger)
	} else {
		client = inference.New(cfg.Inference.URL, cfg.Inference.Timeout)
	}

	if err := os.MkdirAll(cfg.Inference.ResultsDir, 0o755); err != nil {
		return err
	}

	keys := service.NewKeyService(store, logger)
	policy := service.NewAccessPolicy(cfg.Access.AdminIDs, keys)
	dispatcher := service.NewDispatcher(client, cfg.Inference.ResultsDir, logger)
	sessions := session.NewMachine(policy, dispatcher, session.Options{
		RecheckAccess: cfg.Session.RecheckAccess,
	})

	transport, selfName, err := telegram.New(cfg.Telegram.Token, logger)
	if err != nil {
		return err
	}
	botUsername := cfg.Telegram.BotUsername
	if botUsername == "" {
		botUsername = selfName
	}
	b := bot.New(keys, policy, sessions, transport, logger, botUsername)

	// Create HTTP server
	server := &http.Server{
		Addr: cfg.Server.Addr(),
		Handler: api.NewRouter(keys, logger, api.Options{
			AdminToken:  cfg.Server.AdminToken,
			BotUsername: botUsername,
		}),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.Server.Addr(), "admin_api", cfg.Server.APIEnabled())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("starting telegram bot", "username", botUsername, "admins", len(cfg.Access.AdminIDs))
		return transport.Run(ctx, b)
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")

		// Graceful shutdown with timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
