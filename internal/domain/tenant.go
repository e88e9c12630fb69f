package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/rent-ledger/internal/ledger"
	"github.com/dvloznov/rent-ledger/internal/term"
)

// Tenant is an occupant and the lease it holds.
// This is a domain struct, not a storage row; stores map it into their own schema.
type Tenant struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Reference string `json:"reference,omitempty"`
	Email     string `json:"email,omitempty"`

	BeginDate time.Time `json:"begin_date"`
	EndDate   time.Time `json:"end_date"`
	// TerminationDate overrides EndDate when the lease was ended early.
	TerminationDate *time.Time `json:"termination_date,omitempty"`

	Frequency  term.Frequency     `json:"frequency"`
	VATRatio   decimal.Decimal    `json:"vat_ratio"`
	Discount   decimal.Decimal    `json:"discount"`
	Properties []ledger.Property  `json:"properties"`
	Rents      []ledger.RentEntry `json:"rents"`

	// Version is incremented by the store on every successful save.
	Version int64 `json:"version"`
}

// LeaseEnd returns the termination date when set, the nominal end otherwise.
func (t *Tenant) LeaseEnd() time.Time {
	if t.TerminationDate != nil && !t.TerminationDate.IsZero() {
		return *t.TerminationDate
	}
	return t.EndDate
}

// Terminated reports whether the lease was ended early.
func (t *Tenant) Terminated() bool {
	return t.TerminationDate != nil && !t.TerminationDate.IsZero()
}

// ActiveAt reports whether the lease covers the given day.
func (t *Tenant) ActiveAt(at time.Time) bool {
	return !at.Before(t.BeginDate) && !at.After(t.LeaseEnd())
}

// LeaseContract builds the ledger contract for the tenant.
func (t *Tenant) LeaseContract() ledger.Contract {
	return ledger.Contract{
		Begin:      t.BeginDate,
		End:        t.LeaseEnd(),
		Frequency:  t.Frequency.OrDefault(),
		VATRate:    t.VATRatio,
		Discount:   t.Discount,
		Properties: t.Properties,
		Rents:      t.Rents,
	}
}

// ApplyContract stores a settled ledger back on the tenant.
func (t *Tenant) ApplyContract(c ledger.Contract) {
	t.Rents = c.Rents
}

// Clone returns a deep copy of the tenant.
func (t *Tenant) Clone() *Tenant {
	c := t.LeaseContract().Clone()
	out := *t
	out.Properties = c.Properties
	out.Rents = c.Rents
	if t.TerminationDate != nil {
		d := *t.TerminationDate
		out.TerminationDate = &d
	}
	return &out
}
