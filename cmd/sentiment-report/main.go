package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/rewired-gh/sentimentdash/internal/aggregator"
	"github.com/rewired-gh/sentimentdash/internal/config"
	"github.com/rewired-gh/sentimentdash/internal/fetcher"
	"github.com/rewired-gh/sentimentdash/internal/logger"
	"github.com/rewired-gh/sentimentdash/internal/mockdata"
	"github.com/rewired-gh/sentimentdash/internal/sentiment"
)

var (
	configPath  = flag.String("config", "configs/config.yaml", "Path to configuration file")
	rankings    = flag.Bool("rankings", false, "Also print top users by likes and top tweets by retweets")
	timeout     = flag.Duration("timeout", 2*time.Minute, "Overall deadline for the report")
	backendFlag = flag.String("backend", "", "Override backend.base_url")
)

func main() {
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *backendFlag != "" {
		cfg.Backend.BaseURL = *backendFlag
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	logger.Init(cfg.Logging.Level, "text")
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client := sentiment.NewClient(cfg.Backend.BaseURL, fetcher.New(fetcher.Options{
		Timeout:        cfg.Backend.Timeout,
		MaxRetries:     cfg.Backend.MaxRetries,
		RetryDelayBase: cfg.Backend.RetryDelayBase,
	}))
	agg := aggregator.New(aggregator.Options{
		Source: client,
		Mock:   mockdata.New(cfg.Mock.Seed),
	})

	if err := agg.Refresh(ctx); err != nil {
		log.Fatalf("Refresh failed: %v", err)
	}
	state := agg.Snapshot()

	out := os.Stdout
	printHeader(out, cfg.Backend.BaseURL, state)
	printProvenance(out, state)
	printOverall(out, state)
	printMetrics(out, state.Metrics)
	printInsights(out, state.Insights)

	if *rankings {
		printRankings(ctx, out, client)
	}
}
