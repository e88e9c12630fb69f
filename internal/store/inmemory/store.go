package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dvloznov/rent-ledger/internal/domain"
	"github.com/dvloznov/rent-ledger/internal/store"
)

// Store is an in-memory implementation of TenantRepository.
// It is safe for concurrent use. Data is lost on restart.
type Store struct {
	mu      sync.RWMutex
	tenants map[string]*domain.Tenant
}

// NewStore creates a new in-memory tenant store.
func NewStore() *Store {
	return &Store{
		tenants: make(map[string]*domain.Tenant),
	}
}

// ListTenants implements the TenantRepository interface.
func (s *Store) ListTenants(ctx context.Context, filter store.TenantFilter) ([]*domain.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*domain.Tenant{}
	for _, t := range s.tenants {
		if !store.Matches(t, filter) {
			continue
		}
		// Copies keep callers from editing stored ledgers.
		tenantCopy := t.Clone()
		store.FilterRents(tenantCopy, filter)
		result = append(result, tenantCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Name == result[j].Name {
			return result[i].ID < result[j].ID
		}
		return result[i].Name < result[j].Name
	})
	return result, nil
}

// GetTenant implements the TenantRepository interface.
func (s *Store) GetTenant(ctx context.Context, id string) (*domain.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.tenants[id]
	if !exists {
		return nil, fmt.Errorf("GetTenant: %s: %w", id, store.ErrNotFound)
	}
	return t.Clone(), nil
}

// CreateTenant implements the TenantRepository interface.
func (s *Store) CreateTenant(ctx context.Context, tenant *domain.Tenant) error {
	if tenant.ID == "" {
		return fmt.Errorf("CreateTenant: tenant ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tenants[tenant.ID]; exists {
		return fmt.Errorf("CreateTenant: %s: %w", tenant.ID, store.ErrConflict)
	}
	tenant.Version = 1
	s.tenants[tenant.ID] = tenant.Clone()
	return nil
}

// SaveTenant implements the TenantRepository interface.
func (s *Store) SaveTenant(ctx context.Context, tenant *domain.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.tenants[tenant.ID]
	if !exists {
		return fmt.Errorf("SaveTenant: %s: %w", tenant.ID, store.ErrNotFound)
	}
	if current.Version != tenant.Version {
		return fmt.Errorf("SaveTenant: %s at version %d, stored %d: %w",
			tenant.ID, tenant.Version, current.Version, store.ErrConflict)
	}

	tenant.Version++
	s.tenants[tenant.ID] = tenant.Clone()
	return nil
}

// CountProperties implements the TenantRepository interface.
func (s *Store) CountProperties(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, t := range s.tenants {
		for _, p := range t.Properties {
			seen[p.PropertyID] = struct{}{}
		}
	}
	return len(seen), nil
}

// Ensure Store implements TenantRepository interface.
var _ store.TenantRepository = (*Store)(nil)
