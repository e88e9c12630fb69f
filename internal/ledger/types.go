package ledger

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/rent-ledger/internal/term"
)

// Status classifies a rent entry for reporting.
type Status string

const (
	StatusPaid          Status = "paid"
	StatusPartiallyPaid Status = "partially_paid"
	StatusNotPaid       Status = "not_paid"
)

// PaymentType is the channel a payment was received through.
type PaymentType string

const (
	PaymentBank     PaymentType = "bank"
	PaymentCash     PaymentType = "cash"
	PaymentLevy     PaymentType = "levy"
	PaymentTransfer PaymentType = "transfer"
	PaymentMpesa    PaymentType = "mpesa"
)

// Discount origins.
const (
	OriginContract   = "contract"
	OriginSettlement = "settlement"
)

// Contract is one lease and the ledger it owns.
type Contract struct {
	Begin      time.Time       `json:"begin"`
	End        time.Time       `json:"end"`
	Frequency  term.Frequency  `json:"frequency"`
	VATRate    decimal.Decimal `json:"vat_rate"`
	Discount   decimal.Decimal `json:"discount"`
	Properties []Property      `json:"properties"`
	Rents      []RentEntry     `json:"rents"`
}

// Property is a leased unit contributing to the rent of a contract.
type Property struct {
	PropertyID string          `json:"property_id"`
	Name       string          `json:"name"`
	Rent       decimal.Decimal `json:"rent"`
	Expenses   []Expense       `json:"expenses,omitempty"`
	EntryDate  *time.Time      `json:"entry_date,omitempty"`
	ExitDate   *time.Time      `json:"exit_date,omitempty"`
}

// Expense is a recurring charge billed with a property.
type Expense struct {
	Title  string          `json:"title"`
	Amount decimal.Decimal `json:"amount"`
}

// Breakdown records how the base amount of an entry was derived.
type Breakdown struct {
	Rent         decimal.Decimal `json:"rent"`
	Charges      decimal.Decimal `json:"charges"`
	Discount     decimal.Decimal `json:"discount"`
	PreTaxAmount decimal.Decimal `json:"pre_tax_amount"`
	VAT          decimal.Decimal `json:"vat"`
	// Balance is the amount carried from the previous entry, positive when owed.
	Balance decimal.Decimal `json:"balance"`
}

// RentEntry is the financial record of one billing period.
type RentEntry struct {
	Term        term.Term       `json:"term"`
	Breakdown   Breakdown       `json:"breakdown"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Payments    []Payment       `json:"payments"`
	Payment     decimal.Decimal `json:"payment"`
	Discounts   []Discount      `json:"discounts"`
	Debts       []Debt          `json:"debts"`
	NewBalance  decimal.Decimal `json:"new_balance"`
	Description string          `json:"description"`
}

// Payment is a single amount received for a term.
type Payment struct {
	Date        civil.Date      `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Type        PaymentType     `json:"type"`
	Reference   string          `json:"reference,omitempty"`
	Description string          `json:"description,omitempty"`
}

// Discount lowers the amount due for a term. Amount is the balance effect.
type Discount struct {
	Origin       string          `json:"origin"`
	Description  string          `json:"description"`
	Amount       decimal.Decimal `json:"amount"`
	PreTaxAmount decimal.Decimal `json:"pre_tax_amount"`
	VAT          decimal.Decimal `json:"vat"`
}

// Debt is an extra charge added to a term. Amount is the balance effect.
type Debt struct {
	Description  string          `json:"description"`
	Amount       decimal.Decimal `json:"amount"`
	PreTaxAmount decimal.Decimal `json:"pre_tax_amount"`
	VAT          decimal.Decimal `json:"vat"`
}

// Settlement bundles the adjustments applied to one term in a single call.
type Settlement struct {
	Payments    []Payment  `json:"payments"`
	Debts       []Debt     `json:"debts"`
	Discounts   []Discount `json:"discounts"`
	Description string     `json:"description"`
}

// Overview aggregates a set of rent entries.
type Overview struct {
	CountAll           int             `json:"count_all"`
	CountPaid          int             `json:"count_paid"`
	CountPartiallyPaid int             `json:"count_partially_paid"`
	CountNotPaid       int             `json:"count_not_paid"`
	TotalToPay         decimal.Decimal `json:"total_to_pay"`
	TotalPaid          decimal.Decimal `json:"total_paid"`
	TotalNotPaid       decimal.Decimal `json:"total_not_paid"`
}

// DiscountTotal sums the balance effect of all discounts.
func (r RentEntry) DiscountTotal() decimal.Decimal {
	total := decimal.Zero
	for _, d := range r.Discounts {
		total = total.Add(d.Amount)
	}
	return total
}

// DebtTotal sums the balance effect of all debts.
func (r RentEntry) DebtTotal() decimal.Decimal {
	total := decimal.Zero
	for _, d := range r.Debts {
		total = total.Add(d.Amount)
	}
	return total
}

// TotalToPay is the amount due for the term before payments.
func (r RentEntry) TotalToPay() decimal.Decimal {
	return r.TotalAmount.Add(r.DebtTotal()).Sub(r.DiscountTotal())
}

// Status classifies the entry as paid, partially paid or not paid.
func (r RentEntry) Status() Status {
	if !r.TotalAmount.IsPositive() || !r.NewBalance.IsNegative() {
		return StatusPaid
	}
	if r.Payment.IsPositive() {
		return StatusPartiallyPaid
	}
	return StatusNotPaid
}

// Reconciles reports whether the entry's balance matches its settlements.
func (r RentEntry) Reconciles() bool {
	lhs := r.TotalAmount.Sub(r.Payment).Sub(r.DiscountTotal()).Add(r.DebtTotal())
	return lhs.Equal(r.NewBalance.Neg())
}

// Clone returns a deep copy of the entry.
func (r RentEntry) Clone() RentEntry {
	out := r
	out.Payments = append(make([]Payment, 0, len(r.Payments)), r.Payments...)
	out.Discounts = append(make([]Discount, 0, len(r.Discounts)), r.Discounts...)
	out.Debts = append(make([]Debt, 0, len(r.Debts)), r.Debts...)
	return out
}

// Clone returns a deep copy of the contract and its ledger.
func (c Contract) Clone() Contract {
	out := c
	out.Properties = make([]Property, len(c.Properties))
	for i, p := range c.Properties {
		out.Properties[i] = p.clone()
	}
	out.Rents = make([]RentEntry, len(c.Rents))
	for i, r := range c.Rents {
		out.Rents[i] = r.Clone()
	}
	return out
}

// Entry returns the ledger entry for tm.
func (c Contract) Entry(tm term.Term) (RentEntry, bool) {
	if i := c.indexOf(tm); i >= 0 {
		return c.Rents[i], true
	}
	return RentEntry{}, false
}

// LastEntry returns the latest ledger entry.
func (c Contract) LastEntry() (RentEntry, bool) {
	if len(c.Rents) == 0 {
		return RentEntry{}, false
	}
	return c.Rents[len(c.Rents)-1], true
}

func (c Contract) indexOf(tm term.Term) int {
	for i := range c.Rents {
		if c.Rents[i].Term == tm {
			return i
		}
	}
	return -1
}

// previousOf returns the latest entry strictly before tm.
func (c Contract) previousOf(tm term.Term) *RentEntry {
	var prev *RentEntry
	for i := range c.Rents {
		if c.Rents[i].Term < tm && (prev == nil || c.Rents[i].Term > prev.Term) {
			prev = &c.Rents[i]
		}
	}
	return prev
}

// insert places entry in term order and returns its index.
func (c *Contract) insert(entry RentEntry) int {
	i := 0
	for i < len(c.Rents) && c.Rents[i].Term < entry.Term {
		i++
	}
	c.Rents = append(c.Rents, RentEntry{})
	copy(c.Rents[i+1:], c.Rents[i:])
	c.Rents[i] = entry
	return i
}

func (p Property) clone() Property {
	out := p
	out.Expenses = append([]Expense(nil), p.Expenses...)
	if p.EntryDate != nil {
		d := *p.EntryDate
		out.EntryDate = &d
	}
	if p.ExitDate != nil {
		d := *p.ExitDate
		out.ExitDate = &d
	}
	return out
}
