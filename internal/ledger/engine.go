// Package ledger computes rents, applies settlements and aggregates ledgers.
// It performs no I/O and never mutates the values handed to it.
package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/rent-ledger/internal/term"
)

// Engine holds the VAT convention shared by rent computation and settlement.
type Engine struct {
	vatInclusiveInput bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithVATInclusiveInput makes the engine treat entered amounts as VAT-inclusive.
// By default amounts are pre-tax and VAT is added on top.
func WithVATInclusiveInput(inclusive bool) Option {
	return func(e *Engine) {
		e.vatInclusiveInput = inclusive
	}
}

// NewEngine creates an Engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// VATInclusiveInput reports the configured VAT convention.
func (e *Engine) VATInclusiveInput() bool {
	return e.vatInclusiveInput
}

var one = decimal.NewFromInt(1)

// vatSplit returns the pre-tax and VAT parts of an entered amount.
// Their sum is the amount that affects the balance.
func (e *Engine) vatSplit(amount, rate decimal.Decimal) (preTax, vat decimal.Decimal) {
	if rate.IsZero() {
		return amount, decimal.Zero
	}
	if e.vatInclusiveInput {
		preTax = amount.Mul(one.Div(one.Add(rate))).Round(2)
		return preTax, amount.Sub(preTax)
	}
	return amount, amount.Mul(rate).Round(2)
}

// ComputeRent derives the ledger entry of the period containing target.
// previous, when given, is the latest entry before that period; its balance is carried forward.
func (e *Engine) ComputeRent(c Contract, target time.Time, previous *RentEntry) (RentEntry, error) {
	if err := validateContract(c); err != nil {
		return RentEntry{}, err
	}
	freq := c.Frequency.OrDefault()
	tm := term.Of(target, freq)

	if tm < term.Of(c.Begin, freq) || tm > term.Of(c.End, freq) {
		return RentEntry{}, fieldError(ErrInvalidContract, "target_date",
			fmt.Sprintf("term %s outside lease %s..%s", tm, c.Begin.Format(time.DateOnly), c.End.Format(time.DateOnly)))
	}
	if previous != nil && previous.Term >= tm {
		return RentEntry{}, fieldError(ErrInvalidContract, "previous",
			fmt.Sprintf("previous term %s is not before %s", previous.Term, tm))
	}

	periodStart := tm.In(target.Location())
	next, err := term.Next(tm, freq)
	if err != nil {
		return RentEntry{}, fieldError(ErrInvalidContract, "target_date", err.Error())
	}
	periodEnd := next.In(target.Location())

	rent, charges := decimal.Zero, decimal.Zero
	for _, p := range c.Properties {
		if !p.occupies(periodStart, periodEnd) {
			continue
		}
		rent = rent.Add(p.Rent)
		for _, x := range p.Expenses {
			charges = charges.Add(x.Amount)
		}
	}

	preTax, vat := e.vatSplit(rent.Add(charges).Sub(c.Discount), c.VATRate)

	balance := decimal.Zero
	if previous != nil {
		balance = previous.NewBalance.Neg()
	}
	total := preTax.Add(vat).Add(balance)

	return RentEntry{
		Term: tm,
		Breakdown: Breakdown{
			Rent:         rent,
			Charges:      charges,
			Discount:     c.Discount,
			PreTaxAmount: preTax,
			VAT:          vat,
			Balance:      balance,
		},
		TotalAmount: total,
		Payments:    []Payment{},
		Payment:     decimal.Zero,
		Discounts:   []Discount{},
		Debts:       []Debt{},
		NewBalance:  total.Neg(),
	}, nil
}

// Validate reports the first unusable lease field as an ErrInvalidContract.
func (c Contract) Validate() error {
	return validateContract(c)
}

func validateContract(c Contract) error {
	if c.Begin.IsZero() {
		return fieldError(ErrInvalidContract, "begin", "missing")
	}
	if c.End.IsZero() {
		return fieldError(ErrInvalidContract, "end", "missing")
	}
	if c.End.Before(c.Begin) {
		return fieldError(ErrInvalidContract, "end", "before begin")
	}
	if err := c.Frequency.Validate(); err != nil {
		return fieldError(ErrInvalidContract, "frequency", err.Error())
	}
	if c.VATRate.IsNegative() {
		return fieldError(ErrInvalidContract, "vat_rate", "negative")
	}
	return nil
}

// occupies reports whether the property is leased during [start, end).
func (p Property) occupies(start, end time.Time) bool {
	if p.EntryDate != nil && !p.EntryDate.Before(end) {
		return false
	}
	if p.ExitDate != nil && p.ExitDate.Before(start) {
		return false
	}
	return true
}
