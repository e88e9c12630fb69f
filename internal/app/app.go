// Package app wires the rent service from configuration for the binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/dvloznov/rent-ledger/internal/config"
	"github.com/dvloznov/rent-ledger/internal/events"
	"github.com/dvloznov/rent-ledger/internal/ledger"
	"github.com/dvloznov/rent-ledger/internal/lock"
	"github.com/dvloznov/rent-ledger/internal/notify"
	"github.com/dvloznov/rent-ledger/internal/rents"
	"github.com/dvloznov/rent-ledger/internal/store"
	"github.com/dvloznov/rent-ledger/internal/store/gormstore"
	"github.com/dvloznov/rent-ledger/internal/store/inmemory"
)

const lockTTL = 30 * time.Second

// App holds the rent service and the resources behind it.
type App struct {
	Config  *config.Config
	Repo    store.TenantRepository
	DB      *gorm.DB
	Service *rents.Service

	closers []func() error
}

// Build opens the store and the optional collaborators named by cfg.
func Build(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	a := &App{Config: cfg}

	if err := a.openStore(); err != nil {
		return nil, fmt.Errorf("Build: %w", err)
	}

	opts := []rents.Option{
		rents.WithEngine(ledger.NewEngine(ledger.WithVATInclusiveInput(cfg.VATInclusiveInput))),
		rents.WithImportWorkers(cfg.ImportWorkers),
	}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			a.Close()
			return nil, fmt.Errorf("Build: redis ping: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		opts = append(opts, rents.WithLocker(lock.NewRedisLocker(client, "rent-ledger:lock:", lockTTL, log)))
		log.Info().Str("addr", cfg.RedisAddr).Msg("Using Redis tenant locks")
	}

	if cfg.AMQPURL != "" {
		pub, err := events.NewRabbitPublisher(cfg.AMQPURL, cfg.EventsQueue)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("Build: %w", err)
		}
		a.closers = append(a.closers, pub.Close)
		opts = append(opts, rents.WithPublisher(pub))
		log.Info().Str("queue", cfg.EventsQueue).Msg("Publishing rent events to RabbitMQ")
	}

	switch {
	case cfg.DemoMode:
		log.Info().Msg("Demo mode: email status disabled")
	case cfg.EmailerURL != "":
		opts = append(opts, rents.WithEmailStatus(notify.NewHTTPSource(cfg.EmailerURL, nil)))
	}

	a.Service = rents.NewService(a.Repo, log, opts...)
	return a, nil
}

func (a *App) openStore() error {
	if a.Config.DatabaseDriver == config.DriverMemory {
		a.Repo = inmemory.NewStore()
		return nil
	}

	db, err := gormstore.Open(a.Config.DatabaseDriver, a.Config.DatabaseDSN)
	if err != nil {
		return err
	}
	if err := gormstore.Migrate(db); err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("sql handle: %w", err)
	}
	a.closers = append(a.closers, sqlDB.Close)
	a.DB = db
	a.Repo = gormstore.New(db)
	return nil
}

// Close releases every resource in reverse opening order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
