// Package rents manages tenant ledgers: monthly seeding, settlements, bulk imports and dashboards.
package rents

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/dvloznov/rent-ledger/internal/domain"
	"github.com/dvloznov/rent-ledger/internal/events"
	"github.com/dvloznov/rent-ledger/internal/frontdata"
	"github.com/dvloznov/rent-ledger/internal/ledger"
	"github.com/dvloznov/rent-ledger/internal/lock"
	"github.com/dvloznov/rent-ledger/internal/notify"
	"github.com/dvloznov/rent-ledger/internal/store"
)

var (
	// ErrFuturePeriod is returned for months after the current one.
	ErrFuturePeriod = errors.New("cannot retrieve or create rents for future months")
	// ErrInvalidRequest is returned for malformed input outside the ledger's own validation.
	ErrInvalidRequest = errors.New("invalid request")
)

const defaultMaxRetries = 3

// Service coordinates the ledger engine with storage, locking and notifications.
type Service struct {
	store     store.TenantRepository
	emails    notify.StatusSource
	engine    *ledger.Engine
	projector *frontdata.Projector
	locker    lock.Locker
	events    events.Publisher
	clock     frontdata.Clock
	log       zerolog.Logger

	maxRetries    int
	importWorkers int
	seeds         singleflight.Group
}

// Option configures a Service.
type Option func(*Service)

// WithEmailStatus sets the source of email delivery status.
func WithEmailStatus(src notify.StatusSource) Option {
	return func(s *Service) { s.emails = src }
}

// WithEngine replaces the default ledger engine.
func WithEngine(e *ledger.Engine) Option {
	return func(s *Service) { s.engine = e }
}

// WithLocker replaces the in-process per-tenant lock.
func WithLocker(l lock.Locker) Option {
	return func(s *Service) { s.locker = l }
}

// WithPublisher sets where settlement events go.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.events = p }
}

// WithClock sets the time source for the current period.
func WithClock(c frontdata.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithMaxRetries bounds how often a conflicting save is re-applied.
func WithMaxRetries(n int) Option {
	return func(s *Service) { s.maxRetries = n }
}

// WithImportWorkers bounds how many tenants a bulk import processes in parallel.
func WithImportWorkers(n int) Option {
	return func(s *Service) { s.importWorkers = n }
}

// NewService creates a Service.
func NewService(repo store.TenantRepository, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		store:         repo,
		engine:        ledger.NewEngine(),
		locker:        lock.NewKeyedMutex(),
		clock:         frontdata.SystemClock{},
		log:           log,
		maxRetries:    defaultMaxRetries,
		importWorkers: 4,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.events == nil {
		s.events = events.NewLogPublisher(log)
	}
	if s.importWorkers < 1 {
		s.importWorkers = 1
	}
	s.projector = frontdata.NewProjector(s.clock)
	return s
}

// mutateTenant applies fn to a fresh copy of the tenant under the tenant lock and
// saves it when fn reports a change. Conflicting saves are retried from a fresh read.
func (s *Service) mutateTenant(ctx context.Context, tenantID string, fn func(t *domain.Tenant) (bool, error)) (*domain.Tenant, error) {
	unlock, err := s.locker.Lock(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("mutateTenant: lock %s: %w", tenantID, err)
	}
	defer unlock()

	for attempt := 0; ; attempt++ {
		t, err := s.store.GetTenant(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		changed, err := fn(t)
		if err != nil {
			return nil, err
		}
		if !changed {
			return t, nil
		}

		err = s.store.SaveTenant(ctx, t)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, store.ErrConflict) || attempt >= s.maxRetries {
			return nil, fmt.Errorf("mutateTenant: save %s: %w", tenantID, err)
		}
		s.log.Debug().Str("tenant_id", tenantID).Int("attempt", attempt+1).Msg("save conflict, retrying")
	}
}
