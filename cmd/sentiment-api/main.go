package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/rewired-gh/sentimentdash/internal/api"
	"github.com/rewired-gh/sentimentdash/internal/cache"
	"github.com/rewired-gh/sentimentdash/internal/config"
	"github.com/rewired-gh/sentimentdash/internal/logger"
	"github.com/rewired-gh/sentimentdash/internal/metrics"
	"github.com/rewired-gh/sentimentdash/internal/models"
	"github.com/rewired-gh/sentimentdash/internal/storage"
)

var (
	configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")
	importPath = flag.String("import", "", "JSON file of classified tweets to import before serving")
	importOnly = flag.Bool("import-only", false, "Exit after importing")
)

func main() {
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	defer logger.Sync()

	store, err := storage.New(cfg.Storage.MaxCycles, cfg.Storage.DBPath)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	if *importPath != "" {
		stored, skipped, err := importTweets(store, *importPath)
		if err != nil {
			logger.Fatal("Import failed: %v", err)
		}
		logger.Info("Imported %d tweets from %s (%d invalid skipped)", stored, *importPath, skipped)
	}
	if *importOnly {
		return
	}

	n, err := store.CountTweets()
	if err != nil {
		logger.Fatal("Failed to count tweets: %v", err)
	}
	if n == 0 {
		logger.Warn("No tweets stored; every sentiment route will answer 404")
	}

	respCache := cache.New(cfg.Cache.RedisURL)
	defer respCache.Close()

	backend := api.NewBackend(api.BackendOptions{
		Store:           store,
		Cache:           respCache,
		CacheTTL:        cfg.API.CacheTTL,
		Iterations:      cfg.API.Iterations,
		RateLimitPerMin: cfg.API.RateLimitPerMin,
		Metrics:         metrics.New(),
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv := &http.Server{Addr: cfg.API.Addr, Handler: backend.Router()}
	go func() {
		logger.Info("Sentiment API listening on %s (%d tweets)", cfg.API.Addr, n)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Sentiment API failed: %v", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received, cleaning up...")
	shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Sentiment API shutdown: %v", err)
	}
	logger.Info("Service stopped")
}

// importTweets loads a JSON array of tweets into the store.
func importTweets(store *storage.Storage, path string) (int, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var tweets []models.Tweet
	if err := json.Unmarshal(data, &tweets); err != nil {
		return 0, 0, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return store.ImportTweets(tweets)
}
