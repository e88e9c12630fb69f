package gormstore

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/rent-ledger/internal/domain"
	"github.com/dvloznov/rent-ledger/internal/ledger"
	"github.com/dvloznov/rent-ledger/internal/term"
)

// TenantModel is the tenants table.
type TenantModel struct {
	ID              string            `gorm:"primaryKey;size:64"`
	Name            string            `gorm:"index;size:255"`
	Reference       string            `gorm:"size:64"`
	Email           string            `gorm:"size:255"`
	BeginDate       time.Time         `gorm:"not null"`
	EndDate         time.Time         `gorm:"not null"`
	TerminationDate *time.Time
	Frequency       string            `gorm:"size:16;not null;default:months"`
	VATRatio        decimal.Decimal   `gorm:"type:decimal(10,4)"`
	Discount        decimal.Decimal   `gorm:"type:decimal(20,2)"`
	Properties      []ledger.Property `gorm:"serializer:json;type:text"`
	Version         int64             `gorm:"not null;default:1"`
	Rents           []RentModel       `gorm:"foreignKey:TenantID;references:ID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (TenantModel) TableName() string { return "tenants" }

// RentModel is one ledger entry. Entry holds the full record; the scalar
// columns duplicate its totals for reporting queries.
type RentModel struct {
	ID          uint             `gorm:"primaryKey"`
	TenantID    string           `gorm:"size:64;not null;uniqueIndex:idx_rent_entries_tenant_term"`
	Term        int64            `gorm:"not null;index;uniqueIndex:idx_rent_entries_tenant_term"`
	TotalAmount decimal.Decimal  `gorm:"type:decimal(20,2)"`
	Payment     decimal.Decimal  `gorm:"type:decimal(20,2)"`
	NewBalance  decimal.Decimal  `gorm:"type:decimal(20,2)"`
	Status      string           `gorm:"size:16"`
	Entry       ledger.RentEntry `gorm:"serializer:json;type:text"`
	UpdatedAt   time.Time
}

func (RentModel) TableName() string { return "rent_entries" }

func toTenantModel(t *domain.Tenant) TenantModel {
	return TenantModel{
		ID:              t.ID,
		Name:            t.Name,
		Reference:       t.Reference,
		Email:           t.Email,
		BeginDate:       t.BeginDate,
		EndDate:         t.EndDate,
		TerminationDate: t.TerminationDate,
		Frequency:       string(t.Frequency.OrDefault()),
		VATRatio:        t.VATRatio,
		Discount:        t.Discount,
		Properties:      t.Properties,
		Version:         t.Version,
	}
}

func toRentModels(tenantID string, rents []ledger.RentEntry) []RentModel {
	out := make([]RentModel, 0, len(rents))
	for _, r := range rents {
		out = append(out, RentModel{
			TenantID:    tenantID,
			Term:        int64(r.Term),
			TotalAmount: r.TotalAmount,
			Payment:     r.Payment,
			NewBalance:  r.NewBalance,
			Status:      string(r.Status()),
			Entry:       r,
		})
	}
	return out
}

func toDomain(m TenantModel) *domain.Tenant {
	t := &domain.Tenant{
		ID:              m.ID,
		Name:            m.Name,
		Reference:       m.Reference,
		Email:           m.Email,
		BeginDate:       m.BeginDate,
		EndDate:         m.EndDate,
		TerminationDate: m.TerminationDate,
		Frequency:       term.Frequency(m.Frequency),
		VATRatio:        m.VATRatio,
		Discount:        m.Discount,
		Properties:      m.Properties,
		Rents:           make([]ledger.RentEntry, 0, len(m.Rents)),
		Version:         m.Version,
	}
	for _, r := range m.Rents {
		entry := r.Entry
		entry.Term = term.Term(r.Term)
		t.Rents = append(t.Rents, entry)
	}
	return t
}
