package inmemory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/rent-ledger/internal/domain"
	"github.com/dvloznov/rent-ledger/internal/ledger"
	"github.com/dvloznov/rent-ledger/internal/store"
	"github.com/dvloznov/rent-ledger/internal/term"
)

func newTenant(id, name string) *domain.Tenant {
	return &domain.Tenant{
		ID:        id,
		Name:      name,
		BeginDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		Frequency: term.Months,
		Properties: []ledger.Property{
			{PropertyID: "prop-" + id, Rent: decimal.NewFromInt(500)},
		},
		Rents: []ledger.RentEntry{
			{Term: 2024010100, TotalAmount: decimal.NewFromInt(500)},
			{Term: 2024020100, TotalAmount: decimal.NewFromInt(500)},
			{Term: 2024030100, TotalAmount: decimal.NewFromInt(500)},
		},
	}
}

func TestStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	tenant := newTenant("t1", "Bob")
	if err := s.CreateTenant(ctx, tenant); err != nil {
		t.Fatalf("CreateTenant() error: %v", err)
	}
	if tenant.Version != 1 {
		t.Errorf("Version = %d, want 1", tenant.Version)
	}

	got, err := s.GetTenant(ctx, "t1")
	if err != nil {
		t.Fatalf("GetTenant() error: %v", err)
	}
	if got.Name != "Bob" || len(got.Rents) != 3 {
		t.Errorf("got %+v", got)
	}

	// Mutating the returned copy must not affect the store
	got.Rents[0].Description = "changed"
	again, _ := s.GetTenant(ctx, "t1")
	if again.Rents[0].Description != "" {
		t.Error("store modified through returned tenant")
	}

	if err := s.CreateTenant(ctx, newTenant("t1", "Bob")); !errors.Is(err, store.ErrConflict) {
		t.Errorf("duplicate create error = %v, want ErrConflict", err)
	}
	if _, err := s.GetTenant(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetTenant(missing) error = %v, want ErrNotFound", err)
	}
}

func TestStore_SaveTenantCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	if err := s.CreateTenant(ctx, newTenant("t1", "Bob")); err != nil {
		t.Fatalf("CreateTenant() error: %v", err)
	}

	first, _ := s.GetTenant(ctx, "t1")
	second, _ := s.GetTenant(ctx, "t1")

	first.Rents[0].Description = "first"
	if err := s.SaveTenant(ctx, first); err != nil {
		t.Fatalf("SaveTenant(first) error: %v", err)
	}
	if first.Version != 2 {
		t.Errorf("Version = %d, want 2", first.Version)
	}

	second.Rents[0].Description = "second"
	if err := s.SaveTenant(ctx, second); !errors.Is(err, store.ErrConflict) {
		t.Errorf("stale save error = %v, want ErrConflict", err)
	}

	if err := s.SaveTenant(ctx, newTenant("ghost", "Ghost")); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("save of unknown tenant error = %v, want ErrNotFound", err)
	}
}

func TestStore_ConcurrentSavesLoseNothing(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	if err := s.CreateTenant(ctx, newTenant("t1", "Bob")); err != nil {
		t.Fatalf("CreateTenant() error: %v", err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				tenant, err := s.GetTenant(ctx, "t1")
				if err != nil {
					t.Error(err)
					return
				}
				tenant.Rents[0].Payments = append(tenant.Rents[0].Payments, ledger.Payment{Amount: decimal.NewFromInt(1)})
				err = s.SaveTenant(ctx, tenant)
				if errors.Is(err, store.ErrConflict) {
					continue
				}
				if err != nil {
					t.Error(err)
					return
				}
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
		}()
	}
	wg.Wait()

	tenant, _ := s.GetTenant(ctx, "t1")
	if succeeded != 10 || len(tenant.Rents[0].Payments) != 10 {
		t.Errorf("succeeded=%d payments=%d, want 10", succeeded, len(tenant.Rents[0].Payments))
	}
}

func TestStore_ListTenants(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	for _, tenant := range []*domain.Tenant{newTenant("t1", "Zoe"), newTenant("t2", "Adam"), newTenant("t3", "Mia")} {
		if err := s.CreateTenant(ctx, tenant); err != nil {
			t.Fatalf("CreateTenant() error: %v", err)
		}
	}
	gone := newTenant("t4", "Old")
	gone.EndDate = time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	if err := s.CreateTenant(ctx, gone); err != nil {
		t.Fatalf("CreateTenant() error: %v", err)
	}

	tests := []struct {
		name      string
		filter    store.TenantFilter
		wantIDs   []string
		wantRents int
	}{
		{"all sorted by name", store.TenantFilter{}, []string{"t2", "t3", "t4", "t1"}, 3},
		{"single tenant", store.TenantFilter{TenantID: "t3"}, []string{"t3"}, 3},
		{"term window", store.TenantFilter{StartTerm: 2024020100, EndTerm: 2024022923}, []string{"t2", "t3", "t4", "t1"}, 1},
		{"exact term", store.TenantFilter{TenantID: "t1", StartTerm: 2024030100}, []string{"t1"}, 1},
		{"active only", store.TenantFilter{ActiveAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}, []string{"t2", "t3", "t1"}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListTenants(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListTenants() error: %v", err)
			}
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("got %d tenants, want %d", len(got), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if got[i].ID != id {
					t.Errorf("tenant[%d] = %s, want %s", i, got[i].ID, id)
				}
				if len(got[i].Rents) != tt.wantRents {
					t.Errorf("tenant %s rents = %d, want %d", id, len(got[i].Rents), tt.wantRents)
				}
			}
		})
	}
}

func TestStore_CountProperties(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	a := newTenant("t1", "A")
	b := newTenant("t2", "B")
	b.Properties = append(b.Properties, a.Properties[0])
	s.CreateTenant(ctx, a)
	s.CreateTenant(ctx, b)

	n, err := s.CountProperties(ctx)
	if err != nil {
		t.Fatalf("CountProperties() error: %v", err)
	}
	if n != 2 {
		t.Errorf("CountProperties() = %d, want 2", n)
	}
}
