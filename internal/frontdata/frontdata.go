// Package frontdata projects ledger entries and tenants into display records.
package frontdata

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/rent-ledger/internal/domain"
	"github.com/dvloznov/rent-ledger/internal/ledger"
	"github.com/dvloznov/rent-ledger/internal/notify"
	"github.com/dvloznov/rent-ledger/internal/term"
)

// ActiveMarker flags the rent of the current period.
const ActiveMarker = "active"

// RentView is the display record of one rent entry.
type RentView struct {
	Term       term.Term `json:"term"`
	Month      int       `json:"month"`
	Year       int       `json:"year"`
	Active     string    `json:"active,omitempty"`
	OccupantID string    `json:"occupant_id,omitempty"`
	Occupant   string    `json:"occupant_name,omitempty"`
	Reference  string    `json:"reference,omitempty"`
	Terminated bool      `json:"terminated,omitempty"`

	VATRatio decimal.Decimal `json:"vat_ratio"`

	Breakdown   ledger.Breakdown  `json:"breakdown"`
	TotalAmount decimal.Decimal   `json:"total_amount"`
	TotalToPay  decimal.Decimal   `json:"total_to_pay"`
	Payment     decimal.Decimal   `json:"payment"`
	Payments    []ledger.Payment  `json:"payments"`
	Discounts   []ledger.Discount `json:"discounts"`
	Debts       []ledger.Debt     `json:"debts"`
	Promo       decimal.Decimal   `json:"promo"`
	ExtraCharge decimal.Decimal   `json:"extra_charge"`
	NewBalance  decimal.Decimal   `json:"new_balance"`
	Status      ledger.Status     `json:"status"`
	Description string            `json:"description,omitempty"`

	Emails notify.RecordStatus `json:"emails"`
}

// OccupantView is the display record of a tenant.
type OccupantView struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	Reference       string            `json:"reference,omitempty"`
	Email           string            `json:"email,omitempty"`
	BeginDate       time.Time         `json:"begin_date"`
	EndDate         time.Time         `json:"end_date"`
	TerminationDate *time.Time        `json:"termination_date,omitempty"`
	Terminated      bool              `json:"terminated"`
	Frequency       term.Frequency    `json:"frequency"`
	VATRatio        decimal.Decimal   `json:"vat_ratio"`
	Discount        decimal.Decimal   `json:"discount"`
	Properties      []ledger.Property `json:"properties"`
	Balance         decimal.Decimal   `json:"balance"`
}

// Projector builds display records relative to its clock.
type Projector struct {
	clock Clock
}

// NewProjector creates a Projector. A nil clock reads the wall clock.
func NewProjector(clock Clock) *Projector {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Projector{clock: clock}
}

// ToRentData flattens a rent entry. tenant and emails are optional.
func (p *Projector) ToRentData(entry ledger.RentEntry, tenant *domain.Tenant, emails notify.RecordStatus) RentView {
	entry = entry.Clone()
	v := RentView{
		Term:        entry.Term,
		Month:       int(entry.Term.Month()),
		Year:        entry.Term.Year(),
		VATRatio:    decimal.Zero,
		Breakdown:   entry.Breakdown,
		TotalAmount: entry.TotalAmount,
		TotalToPay:  entry.TotalToPay(),
		Payment:     entry.Payment,
		Payments:    entry.Payments,
		Discounts:   entry.Discounts,
		Debts:       entry.Debts,
		Promo:       entry.DiscountTotal(),
		ExtraCharge: entry.DebtTotal(),
		NewBalance:  entry.NewBalance,
		Status:      entry.Status(),
		Description: entry.Description,
		Emails:      copyEmails(emails),
	}

	freq := term.Months
	if tenant != nil {
		freq = tenant.Frequency.OrDefault()
		v.OccupantID = tenant.ID
		v.Occupant = tenant.Name
		v.Reference = tenant.Reference
		v.Terminated = tenant.Terminated()
		v.VATRatio = tenant.VATRatio
	}
	if entry.Term == term.Of(p.clock.Now(), freq) {
		v.Active = ActiveMarker
	}
	return v
}

// ToOccupantData projects a tenant and its current balance.
func (p *Projector) ToOccupantData(tenant *domain.Tenant) OccupantView {
	t := tenant.Clone()
	v := OccupantView{
		ID:              t.ID,
		Name:            t.Name,
		Reference:       t.Reference,
		Email:           t.Email,
		BeginDate:       t.BeginDate,
		EndDate:         t.EndDate,
		TerminationDate: t.TerminationDate,
		Terminated:      t.Terminated(),
		Frequency:       t.Frequency.OrDefault(),
		VATRatio:        t.VATRatio,
		Discount:        t.Discount,
		Properties:      t.Properties,
		Balance:         decimal.Zero,
	}
	if last, ok := t.LeaseContract().LastEntry(); ok {
		v.Balance = last.NewBalance
	}
	return v
}

func copyEmails(in notify.RecordStatus) notify.RecordStatus {
	out := make(notify.RecordStatus, len(in))
	for tmpl, deliveries := range in {
		out[tmpl] = append([]notify.Delivery(nil), deliveries...)
	}
	return out
}
