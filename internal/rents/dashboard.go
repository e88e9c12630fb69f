package rents

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/dvloznov/rent-ledger/internal/domain"
	"github.com/dvloznov/rent-ledger/internal/store"
	"github.com/dvloznov/rent-ledger/internal/term"
)

// Dashboard summarizes the portfolio for the current year.
type Dashboard struct {
	PropertyCount int             `json:"property_count"`
	TenantCount   int             `json:"tenant_count"`
	OccupancyRate float64         `json:"occupancy_rate"`
	YearRevenue   decimal.Decimal `json:"year_revenue"`
	YearPaid      decimal.Decimal `json:"year_paid"`
	BeginOfYear   time.Time       `json:"begin_of_year"`
	EndOfYear     time.Time       `json:"end_of_year"`
	BeginOfMonth  time.Time       `json:"begin_of_month"`
	EndOfMonth    time.Time       `json:"end_of_month"`
}

// Dashboard counts active tenants and occupied properties and sums this year's rents.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	now := s.clock.Now()
	loc := now.Location()
	beginOfYear := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, loc)
	beginOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
	yearStart, yearEnd := term.Bounds(now, term.Years)

	var tenants []*domain.Tenant
	var propertyCount int
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tenants, err = s.store.ListTenants(gctx, store.TenantFilter{StartTerm: yearStart, EndTerm: yearEnd})
		return err
	})
	g.Go(func() error {
		var err error
		propertyCount, err = s.store.CountProperties(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("Dashboard: %w", err)
	}

	d := &Dashboard{
		PropertyCount: propertyCount,
		YearRevenue:   decimal.Zero,
		YearPaid:      decimal.Zero,
		BeginOfYear:   beginOfYear,
		EndOfYear:     beginOfYear.AddDate(1, 0, 0).Add(-time.Nanosecond),
		BeginOfMonth:  beginOfMonth,
		EndOfMonth:    beginOfMonth.AddDate(0, 1, 0).Add(-time.Nanosecond),
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	rented := make(map[string]struct{})
	for _, t := range tenants {
		for _, r := range t.Rents {
			d.YearRevenue = d.YearRevenue.Add(r.TotalAmount)
			d.YearPaid = d.YearPaid.Add(r.Payment)
		}
		// A lease ending today still counts as active.
		if t.LeaseEnd().Before(today) {
			continue
		}
		d.TenantCount++
		for _, p := range t.Properties {
			rented[p.PropertyID] = struct{}{}
		}
	}
	if propertyCount > 0 {
		d.OccupancyRate = float64(len(rented)) / float64(propertyCount)
	}
	return d, nil
}
