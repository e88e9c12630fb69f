package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/rent-ledger/internal/app"
	"github.com/dvloznov/rent-ledger/internal/config"
	"github.com/dvloznov/rent-ledger/internal/logger"
	"github.com/dvloznov/rent-ledger/internal/notionsync"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	var (
		interval = flag.Duration("interval", time.Hour, "Time between seeding runs")
		once     = flag.Bool("once", false, "Run a single pass and exit")
	)
	flag.Parse()

	log := logger.NewWithLevel(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	application, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer application.Close()

	var notion notionsync.NotionService
	if cfg.NotionToken != "" && cfg.NotionRentsDBID != "" {
		client, err := notionsync.NewNotionClient(cfg.NotionToken)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create Notion client")
		}
		notion = client
	}

	w := &worker{app: application, notion: notion, dbID: cfg.NotionRentsDBID, log: log}

	if *once {
		w.run(ctx)
		return
	}

	log.Info().Dur("interval", *interval).Bool("notion_sync", notion != nil).Msg("Starting worker service")

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info().Msg("Shutting down worker service...")
		cancel()
	}()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	w.run(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Worker service exited")
			return
		case <-ticker.C:
			w.run(ctx)
		}
	}
}

type worker struct {
	app    *app.App
	notion notionsync.NotionService
	dbID   string
	log    zerolog.Logger
}

// run seeds every ledger up to now and mirrors the current month to Notion.
func (w *worker) run(ctx context.Context) {
	now := time.Now()

	created, err := w.app.Service.SeedUntil(ctx, now)
	if err != nil {
		w.log.Error().Err(err).Msg("Seeding failed")
		return
	}
	w.log.Info().Int("created", created).Msg("Seeding pass completed")

	if w.notion == nil {
		return
	}
	stats, err := notionsync.SyncMonth(ctx, w.app.Service, w.notion, w.dbID, now.Year(), now.Month(), false)
	if err != nil {
		w.log.Error().Err(err).Msg("Notion sync failed")
		return
	}
	w.log.Info().
		Int("created", stats.Created).
		Int("updated", stats.Updated).
		Int("archived", stats.Archived).
		Int("failed", stats.Failed).
		Msg("Notion sync completed")
}
