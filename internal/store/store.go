// Package store defines tenant persistence with optimistic concurrency.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/rent-ledger/internal/domain"
	"github.com/dvloznov/rent-ledger/internal/term"
)

var (
	// ErrNotFound is returned when a tenant does not exist.
	ErrNotFound = errors.New("tenant not found")
	// ErrConflict is returned when a save races another save of the same tenant.
	ErrConflict = errors.New("tenant was modified concurrently")
)

// TenantFilter narrows ListTenants.
type TenantFilter struct {
	// TenantID selects a single tenant.
	TenantID string

	// StartTerm and EndTerm restrict the returned rents to [StartTerm, EndTerm].
	// When only StartTerm is set, rents are restricted to that exact term.
	StartTerm term.Term
	EndTerm   term.Term

	// ActiveAt keeps tenants whose lease covers the given day.
	ActiveAt time.Time
}

// TenantRepository persists tenants and their ledgers.
type TenantRepository interface {
	// ListTenants returns tenants sorted by name.
	ListTenants(ctx context.Context, filter TenantFilter) ([]*domain.Tenant, error)

	// GetTenant returns a tenant with its full ledger.
	GetTenant(ctx context.Context, id string) (*domain.Tenant, error)

	// CreateTenant stores a new tenant at version 1.
	CreateTenant(ctx context.Context, tenant *domain.Tenant) error

	// SaveTenant replaces a tenant when its Version matches the stored one,
	// then increments tenant.Version. A mismatch returns ErrConflict.
	SaveTenant(ctx context.Context, tenant *domain.Tenant) error

	// CountProperties returns the number of distinct leased properties.
	CountProperties(ctx context.Context) (int, error)
}

// FilterRents keeps the rents matching the filter's term window.
func FilterRents(t *domain.Tenant, f TenantFilter) {
	if f.StartTerm == 0 {
		return
	}
	kept := t.Rents[:0]
	for _, r := range t.Rents {
		if f.EndTerm != 0 {
			if r.Term >= f.StartTerm && r.Term <= f.EndTerm {
				kept = append(kept, r)
			}
		} else if r.Term == f.StartTerm {
			kept = append(kept, r)
		}
	}
	t.Rents = kept
}

// Matches reports whether the tenant passes the filter's identity and activity checks.
func Matches(t *domain.Tenant, f TenantFilter) bool {
	if f.TenantID != "" && t.ID != f.TenantID {
		return false
	}
	if !f.ActiveAt.IsZero() && !t.ActiveAt(f.ActiveAt) {
		return false
	}
	return true
}
