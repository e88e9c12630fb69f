package rents

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/dvloznov/rent-ledger/internal/domain"
	"github.com/dvloznov/rent-ledger/internal/ledger"
	"github.com/dvloznov/rent-ledger/internal/store"
	"github.com/dvloznov/rent-ledger/internal/term"
)

// BulkPayment is one imported payment row.
type BulkPayment struct {
	Row         int                `json:"row"`
	TenantRef   string             `json:"tenant_id"` // tenant ID or reference
	Date        civil.Date         `json:"payment_date"`
	Type        ledger.PaymentType `json:"payment_type"`
	Reference   string             `json:"payment_reference"`
	Amount      decimal.Decimal    `json:"amount"`
	Description string             `json:"description,omitempty"`
}

// ImportItem is the outcome of one imported row.
type ImportItem struct {
	BulkPayment
	TenantID string    `json:"resolved_tenant_id,omitempty"`
	Term     term.Term `json:"term,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// ImportResult splits imported rows by outcome, each ordered by row.
type ImportResult struct {
	Successful []ImportItem `json:"successful"`
	Failed     []ImportItem `json:"failed"`
	Duplicates []ImportItem `json:"duplicates"`
}

type importCollector struct {
	mu     sync.Mutex
	result ImportResult
}

func (c *importCollector) add(kind *[]ImportItem, item ImportItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	*kind = append(*kind, item)
}

// ImportPayments applies each payment to the term containing its date.
// Payments of one tenant are applied in row order; tenants run in parallel.
// Duplicates are flagged and skipped, not fatal.
func (s *Service) ImportPayments(ctx context.Context, payments []BulkPayment) (*ImportResult, error) {
	tenants, err := s.store.ListTenants(ctx, store.TenantFilter{})
	if err != nil {
		return nil, fmt.Errorf("ImportPayments: list tenants: %w", err)
	}
	byID := make(map[string]*domain.Tenant, len(tenants))
	byRef := make(map[string]*domain.Tenant, len(tenants))
	for _, t := range tenants {
		byID[t.ID] = t
		if t.Reference != "" {
			byRef[t.Reference] = t
		}
	}

	col := &importCollector{result: ImportResult{
		Successful: []ImportItem{},
		Failed:     []ImportItem{},
		Duplicates: []ImportItem{},
	}}

	groups := make(map[string][]BulkPayment)
	var order []string
	for _, p := range payments {
		t, ok := byID[p.TenantRef]
		if !ok {
			t, ok = byRef[p.TenantRef]
		}
		if !ok {
			col.add(&col.result.Failed, ImportItem{BulkPayment: p, Error: "tenant not found"})
			continue
		}
		if _, seen := groups[t.ID]; !seen {
			order = append(order, t.ID)
		}
		groups[t.ID] = append(groups[t.ID], p)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.importWorkers)
	for _, tenantID := range order {
		tenant := byID[tenantID]
		rows := groups[tenantID]
		g.Go(func() error {
			for _, p := range rows {
				if err := s.importOne(gctx, tenant, p, col); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("ImportPayments: %w", err)
	}

	res := col.result
	for _, items := range [][]ImportItem{res.Successful, res.Failed, res.Duplicates} {
		sort.Slice(items, func(i, j int) bool { return items[i].Row < items[j].Row })
	}
	s.log.Info().
		Int("successful", len(res.Successful)).
		Int("failed", len(res.Failed)).
		Int("duplicates", len(res.Duplicates)).
		Msg("payments imported")
	return &res, nil
}

// importOne returns an error only when the whole import must stop.
func (s *Service) importOne(ctx context.Context, tenant *domain.Tenant, p BulkPayment, col *importCollector) error {
	item := ImportItem{BulkPayment: p, TenantID: tenant.ID}
	if !p.Date.IsValid() {
		item.Error = "invalid payment date"
		col.add(&col.result.Failed, item)
		return nil
	}

	at := time.Date(p.Date.Year, p.Date.Month, p.Date.Day, 0, 0, 0, 0, tenant.BeginDate.Location())
	item.Term = term.Of(at, tenant.Frequency.OrDefault())

	payment := ledger.Payment{
		Date:        p.Date,
		Amount:      p.Amount,
		Type:        p.Type,
		Reference:   p.Reference,
		Description: p.Description,
	}
	if payment.Type == "" {
		payment.Type = ledger.PaymentCash
	}
	settlement := ledger.Settlement{Payments: []ledger.Payment{payment}}

	duplicate := false
	var entry ledger.RentEntry
	_, err := s.mutateTenant(ctx, tenant.ID, func(t *domain.Tenant) (bool, error) {
		c := t.LeaseContract()
		if tm, dup := ledger.FindDuplicatePayment(c, payment); dup {
			duplicate = true
			item.Error = fmt.Sprintf("already recorded in term %s", tm)
			return false, nil
		}
		var err error
		entry, err = s.payTerm(t, item.Term, settlement)
		return err == nil, err
	})

	switch {
	case err != nil && ctx.Err() != nil:
		return ctx.Err()
	case err != nil:
		item.Error = err.Error()
		col.add(&col.result.Failed, item)
	case duplicate:
		col.add(&col.result.Duplicates, item)
	default:
		col.add(&col.result.Successful, item)
		s.publishSettled(ctx, tenant.ID, entry, settlement, "import")
	}
	return nil
}
