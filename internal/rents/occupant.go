package rents

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/dvloznov/rent-ledger/internal/domain"
	"github.com/dvloznov/rent-ledger/internal/frontdata"
	"github.com/dvloznov/rent-ledger/internal/ledger"
	"github.com/dvloznov/rent-ledger/internal/notify"
	"github.com/dvloznov/rent-ledger/internal/store"
	"github.com/dvloznov/rent-ledger/internal/term"
)

// OccupantRents is a tenant with its whole ledger.
type OccupantRents struct {
	Occupant frontdata.OccupantView `json:"occupant"`
	Rents    []frontdata.RentView   `json:"rents"`
}

// RentsOfOccupant returns a tenant and every rent of its ledger.
func (s *Service) RentsOfOccupant(ctx context.Context, tenantID string) (*OccupantRents, error) {
	t, err := s.store.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("RentsOfOccupant: %w", err)
	}

	out := &OccupantRents{
		Occupant: s.projector.ToOccupantData(t),
		Rents:    make([]frontdata.RentView, 0, len(t.Rents)),
	}
	for _, r := range t.Rents {
		out.Rents = append(out.Rents, s.projector.ToRentData(r, t, nil))
	}
	return out, nil
}

// RentOfOccupantByTerm returns one rent of a tenant with its email status.
func (s *Service) RentOfOccupantByTerm(ctx context.Context, info notify.RequestInfo, tenantID string, tm term.Term) (frontdata.RentView, error) {
	var tenants []*domain.Tenant
	var emails notify.Status

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tenants, err = s.store.ListTenants(gctx, store.TenantFilter{TenantID: tenantID, StartTerm: tm})
		return err
	})
	g.Go(func() error {
		emails = notify.BestEffort(gctx, s.log, s.emails, info, tm, 0)
		return nil
	})
	if err := g.Wait(); err != nil {
		return frontdata.RentView{}, fmt.Errorf("RentOfOccupantByTerm: %w", err)
	}

	if len(tenants) == 0 {
		return frontdata.RentView{}, fmt.Errorf("RentOfOccupantByTerm: %s: %w", tenantID, store.ErrNotFound)
	}
	t := tenants[0]
	if len(t.Rents) == 0 {
		return frontdata.RentView{}, fmt.Errorf("RentOfOccupantByTerm: rent %s of %s: %w", tm, tenantID, ledger.ErrTermNotFound)
	}
	return s.projector.ToRentData(t.Rents[0], t, emails[t.ID]), nil
}
