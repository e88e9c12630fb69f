package rents

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dvloznov/rent-ledger/internal/domain"
	"github.com/dvloznov/rent-ledger/internal/frontdata"
	"github.com/dvloznov/rent-ledger/internal/ledger"
	"github.com/dvloznov/rent-ledger/internal/notify"
	"github.com/dvloznov/rent-ledger/internal/store"
	"github.com/dvloznov/rent-ledger/internal/term"
)

// MonthRents is the rent board of one month.
type MonthRents struct {
	Overview ledger.Overview      `json:"overview"`
	Rents    []frontdata.RentView `json:"rents"`
}

// RentsByMonth returns the rents of a calendar month, seeding the entries that
// have come due since each tenant's last one.
func (s *Service) RentsByMonth(ctx context.Context, info notify.RequestInfo, year, month int) (*MonthRents, error) {
	if _, err := term.FromYearMonth(year, month); err != nil {
		return nil, fmt.Errorf("RentsByMonth: %w: %w", ErrInvalidRequest, err)
	}

	now := s.clock.Now()
	monthStart := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, now.Location())
	if term.IsFuture(monthStart, now, term.Months) {
		return nil, fmt.Errorf("RentsByMonth: %d-%02d: %w", year, month, ErrFuturePeriod)
	}
	startTerm, endTerm := term.Bounds(monthStart, term.Months)

	// Concurrent requests for the same month share one seeding pass, which
	// outlives the cancellation of whichever caller started it.
	seedCtx := context.WithoutCancel(ctx)
	_, err, _ := s.seeds.Do(startTerm.String(), func() (interface{}, error) {
		monthEnd := monthStart.AddDate(0, 1, 0).Add(-time.Hour)
		return s.SeedUntil(seedCtx, monthEnd)
	})
	if err != nil {
		return nil, fmt.Errorf("RentsByMonth: seed: %w", err)
	}

	var tenants []*domain.Tenant
	var emails notify.Status
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tenants, err = s.store.ListTenants(gctx, store.TenantFilter{StartTerm: startTerm, EndTerm: endTerm})
		return err
	})
	g.Go(func() error {
		emails = notify.BestEffort(gctx, s.log, s.emails, info, startTerm, endTerm)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("RentsByMonth: list tenants: %w", err)
	}

	result := &MonthRents{Rents: []frontdata.RentView{}}
	var entries []ledger.RentEntry
	for _, t := range tenants {
		for _, r := range t.Rents {
			if r.Term < startTerm || r.Term > endTerm {
				continue
			}
			entries = append(entries, r)
			result.Rents = append(result.Rents, s.projector.ToRentData(r, t, emails[t.ID]))
		}
	}
	result.Overview = ledger.BuildOverview(entries)
	return result, nil
}

// SeedUntil creates the missing entries of every tenant up to the period containing until.
// Tenants whose lease cannot be computed are logged and skipped. It returns the
// number of entries created.
func (s *Service) SeedUntil(ctx context.Context, until time.Time) (int, error) {
	tenants, err := s.store.ListTenants(ctx, store.TenantFilter{})
	if err != nil {
		return 0, fmt.Errorf("SeedUntil: list tenants: %w", err)
	}

	created := 0
	for _, t := range tenants {
		if t.BeginDate.After(until) {
			continue
		}
		if _, _, due := seedRange(t.LeaseContract(), until); !due {
			continue
		}

		var added int
		_, err := s.mutateTenant(ctx, t.ID, func(fresh *domain.Tenant) (bool, error) {
			var err error
			added, err = s.catchUp(fresh, until)
			return added > 0, err
		})
		if err != nil {
			if ctx.Err() != nil {
				return created, ctx.Err()
			}
			s.log.Warn().Err(err).Str("tenant_id", t.ID).Msg("failed to seed rents")
			continue
		}
		created += added
	}

	if created > 0 {
		s.log.Info().Int("created", created).Time("until", until).Msg("seeded rents")
	}
	return created, nil
}

// catchUp appends one computed entry per missing period, carrying balances forward.
func (s *Service) catchUp(t *domain.Tenant, until time.Time) (int, error) {
	c := t.LeaseContract()
	freq := c.Frequency.OrDefault()
	next, last, ok := seedRange(c, until)
	if !ok {
		return 0, nil
	}

	var prev *ledger.RentEntry
	if p, ok := c.LastEntry(); ok {
		prev = &p
	}

	added := 0
	for tm := next; tm <= last; {
		entry, err := s.engine.ComputeRent(c, tm.In(c.Begin.Location()), prev)
		if err != nil {
			return 0, fmt.Errorf("catchUp: %s term %s: %w", t.ID, tm, err)
		}
		c.Rents = append(c.Rents, entry)
		prev = &entry
		added++

		if tm, err = term.Next(tm, freq); err != nil {
			return 0, fmt.Errorf("catchUp: %w", err)
		}
	}

	t.ApplyContract(c)
	return added, nil
}

// seedRange returns the first missing term and the last term due by until.
func seedRange(c ledger.Contract, until time.Time) (term.Term, term.Term, bool) {
	if c.Begin.IsZero() || c.End.IsZero() {
		return 0, 0, false
	}
	freq := c.Frequency.OrDefault()

	last := term.Of(until.In(c.Begin.Location()), freq)
	if end := term.Of(c.End, freq); end < last {
		last = end
	}

	next := term.Of(c.Begin, freq)
	if prev, ok := c.LastEntry(); ok {
		n, err := term.Next(prev.Term, freq)
		if err != nil {
			return 0, 0, false
		}
		next = n
	}
	return next, last, next <= last
}
