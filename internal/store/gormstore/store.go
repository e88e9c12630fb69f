// Package gormstore persists tenants and rent ledgers with GORM.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/dvloznov/rent-ledger/internal/domain"
	"github.com/dvloznov/rent-ledger/internal/store"
)

// Open connects to a sqlite or postgres database.
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite", "":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("Open: unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("Open: connect: %w", err)
	}

	// Every sqlite :memory: connection is a separate database.
	if driver != "postgres" && strings.Contains(dsn, ":memory:") {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("Open: sql handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// Migrate creates or updates the tenants and rent_entries tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&TenantModel{}, &RentModel{}); err != nil {
		return fmt.Errorf("Migrate: %w", err)
	}
	return nil
}

// Store implements store.TenantRepository on a *gorm.DB.
type Store struct {
	db *gorm.DB
}

// New creates a Store.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// ListTenants implements store.TenantRepository.
func (s *Store) ListTenants(ctx context.Context, filter store.TenantFilter) ([]*domain.Tenant, error) {
	q := s.db.WithContext(ctx).Model(&TenantModel{})
	if filter.TenantID != "" {
		q = q.Where("id = ?", filter.TenantID)
	}
	q = q.Preload("Rents", func(db *gorm.DB) *gorm.DB {
		switch {
		case filter.StartTerm != 0 && filter.EndTerm != 0:
			db = db.Where("term >= ? AND term <= ?", int64(filter.StartTerm), int64(filter.EndTerm))
		case filter.StartTerm != 0:
			db = db.Where("term = ?", int64(filter.StartTerm))
		}
		return db.Order("term")
	})

	var models []TenantModel
	if err := q.Order("name").Order("id").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("ListTenants: query: %w", err)
	}

	result := make([]*domain.Tenant, 0, len(models))
	for _, m := range models {
		t := toDomain(m)
		if !store.Matches(t, filter) {
			continue
		}
		result = append(result, t)
	}
	return result, nil
}

// GetTenant implements store.TenantRepository.
func (s *Store) GetTenant(ctx context.Context, id string) (*domain.Tenant, error) {
	var m TenantModel
	err := s.db.WithContext(ctx).
		Preload("Rents", func(db *gorm.DB) *gorm.DB { return db.Order("term") }).
		Where("id = ?", id).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("GetTenant: %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("GetTenant: query: %w", err)
	}
	return toDomain(m), nil
}

// CreateTenant implements store.TenantRepository.
func (s *Store) CreateTenant(ctx context.Context, tenant *domain.Tenant) error {
	if tenant.ID == "" {
		return fmt.Errorf("CreateTenant: tenant ID is required")
	}
	m := toTenantModel(tenant)
	m.Version = 1

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&TenantModel{}).Where("id = ?", tenant.ID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return store.ErrConflict
		}
		if err := tx.Omit(clause.Associations).Create(&m).Error; err != nil {
			return err
		}
		return upsertRents(tx, tenant)
	})
	if err != nil {
		return fmt.Errorf("CreateTenant: %s: %w", tenant.ID, err)
	}
	tenant.Version = 1
	return nil
}

// SaveTenant implements store.TenantRepository.
func (s *Store) SaveTenant(ctx context.Context, tenant *domain.Tenant) error {
	m := toTenantModel(tenant)
	m.Version = tenant.Version + 1

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&TenantModel{}).
			Where("id = ? AND version = ?", tenant.ID, tenant.Version).
			Select("*").
			Omit("id", "created_at", clause.Associations).
			Updates(&m)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&TenantModel{}).Where("id = ?", tenant.ID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return store.ErrNotFound
			}
			return store.ErrConflict
		}
		return upsertRents(tx, tenant)
	})
	if err != nil {
		return fmt.Errorf("SaveTenant: %s at version %d: %w", tenant.ID, tenant.Version, err)
	}
	tenant.Version++
	return nil
}

// upsertRents writes every ledger entry of the tenant. Entries are never deleted.
func upsertRents(tx *gorm.DB, tenant *domain.Tenant) error {
	rows := toRentModels(tenant.ID, tenant.Rents)
	if len(rows) == 0 {
		return nil
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "term"}},
		DoUpdates: clause.AssignmentColumns([]string{"total_amount", "payment", "new_balance", "status", "entry", "updated_at"}),
	}).Create(&rows).Error
}

// CountProperties implements store.TenantRepository.
func (s *Store) CountProperties(ctx context.Context) (int, error) {
	var models []TenantModel
	if err := s.db.WithContext(ctx).Select("id", "properties").Find(&models).Error; err != nil {
		return 0, fmt.Errorf("CountProperties: query: %w", err)
	}

	seen := make(map[string]struct{})
	for _, m := range models {
		for _, p := range m.Properties {
			seen[p.PropertyID] = struct{}{}
		}
	}
	return len(seen), nil
}

// Ensure Store implements TenantRepository interface.
var _ store.TenantRepository = (*Store)(nil)
