package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/rewired-gh/sentimentdash/internal/aggregator"
	"github.com/rewired-gh/sentimentdash/internal/api"
	"github.com/rewired-gh/sentimentdash/internal/config"
	"github.com/rewired-gh/sentimentdash/internal/fetcher"
	"github.com/rewired-gh/sentimentdash/internal/logger"
	"github.com/rewired-gh/sentimentdash/internal/metrics"
	"github.com/rewired-gh/sentimentdash/internal/mockdata"
	"github.com/rewired-gh/sentimentdash/internal/sentiment"
	"github.com/rewired-gh/sentimentdash/internal/storage"
	"github.com/rewired-gh/sentimentdash/internal/telegram"
)

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")

func main() {
	flag.Parse()

	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	defer logger.Sync()
	logger.Info("Configuration loaded from %s", *configPath)

	// Cycle history
	store, err := storage.New(cfg.Storage.MaxCycles, cfg.Storage.DBPath)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	m := metrics.New()

	f := fetcher.New(fetcher.Options{
		Timeout:        cfg.Backend.Timeout,
		MaxRetries:     cfg.Backend.MaxRetries,
		RetryDelayBase: cfg.Backend.RetryDelayBase,
		Metrics:        m,
	})
	client := sentiment.NewClient(cfg.Backend.BaseURL, f)

	var notifier aggregator.Notifier
	var telegramClient *telegram.Client
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		notifier = telegramClient
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	agg := aggregator.New(aggregator.Options{
		Source:          client,
		Mock:            mockdata.New(cfg.Mock.Seed),
		Metrics:         m,
		Recorder:        store,
		Notifier:        notifier,
		SendInsights:    cfg.Telegram.SendInsights,
		RefreshInterval: cfg.Backend.RefreshInterval,
		FallbackAfter:   cfg.Backend.FallbackAfter,
		InitialDelay:    cfg.Backend.InitialDelay,
	})

	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if telegramClient != nil {
		telegramClient.ListenForCommands(ctx, agg)
	}

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: api.NewDashboardRouter(agg, store, m),
	}
	go func() {
		logger.Info("Dashboard API listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Dashboard API failed: %v", err)
			cancel()
		}
	}()

	logger.Info("Using sentiment backend %s", cfg.Backend.BaseURL)
	agg.Run(ctx)

	logger.Info("Shutdown signal received, cleaning up...")
	shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Dashboard API shutdown: %v", err)
	}
	logger.Info("Service stopped")
}
