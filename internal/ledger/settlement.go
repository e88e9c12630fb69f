package ledger

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/rent-ledger/internal/term"
)

// PayTerm folds a settlement into the entry of tm and returns the updated contract.
// A missing entry is first computed from the latest earlier one. The input contract is
// left untouched and nothing is applied when the settlement fails validation.
// Applying the same settlement twice records its items twice.
func (e *Engine) PayTerm(c Contract, tm term.Term, s Settlement) (Contract, error) {
	if err := validateSettlement(s); err != nil {
		return Contract{}, err
	}

	out := c.Clone()
	idx := out.indexOf(tm)
	if idx < 0 {
		entry, err := e.materialize(out, tm)
		if err != nil {
			return Contract{}, fmt.Errorf("%w: %s: %w", ErrTermNotFound, tm, err)
		}
		idx = out.insert(entry)
	}
	entry := &out.Rents[idx]

	for _, p := range s.Payments {
		p.Type = normalizePaymentType(p.Type)
		entry.Payments = append(entry.Payments, p)
	}
	entry.Payment = decimal.Zero
	for _, p := range entry.Payments {
		entry.Payment = entry.Payment.Add(p.Amount)
	}

	for _, d := range s.Discounts {
		preTax, vat := e.vatSplit(d.Amount, out.VATRate)
		origin := d.Origin
		if origin == "" {
			origin = OriginSettlement
		}
		entry.Discounts = append(entry.Discounts, Discount{
			Origin:       origin,
			Description:  d.Description,
			Amount:       preTax.Add(vat),
			PreTaxAmount: preTax,
			VAT:          vat,
		})
	}

	for _, d := range s.Debts {
		preTax, vat := e.vatSplit(d.Amount, out.VATRate)
		entry.Debts = append(entry.Debts, Debt{
			Description:  d.Description,
			Amount:       preTax.Add(vat),
			PreTaxAmount: preTax,
			VAT:          vat,
		})
	}

	entry.NewBalance = entry.Payment.Add(entry.DiscountTotal()).Sub(entry.DebtTotal()).Sub(entry.TotalAmount)

	if s.Description != "" {
		entry.Description = s.Description
	}
	return out, nil
}

func (e *Engine) materialize(c Contract, tm term.Term) (RentEntry, error) {
	if _, err := term.Parse(tm); err != nil {
		return RentEntry{}, err
	}
	at := tm.In(c.Begin.Location())
	if term.Of(at, c.Frequency.OrDefault()) != tm {
		return RentEntry{}, fmt.Errorf("%s is not the start of a %s period", tm, c.Frequency.OrDefault())
	}
	return e.ComputeRent(c, at, c.previousOf(tm))
}

func validateSettlement(s Settlement) error {
	for i, p := range s.Payments {
		if !p.Date.IsValid() {
			return itemError(ErrInvalidSettlement, "payments", i, "missing date")
		}
		if normalizePaymentType(p.Type) == "" {
			return itemError(ErrInvalidSettlement, "payments", i, "missing type")
		}
		if !p.Amount.IsPositive() {
			return itemError(ErrInvalidSettlement, "payments", i, "amount must be positive")
		}
	}
	for i, d := range s.Discounts {
		if d.Origin != "" && d.Origin != OriginContract && d.Origin != OriginSettlement {
			return itemError(ErrInvalidSettlement, "discounts", i, fmt.Sprintf("unknown origin %q", d.Origin))
		}
		if !d.Amount.IsPositive() {
			return itemError(ErrInvalidSettlement, "discounts", i, "amount must be positive")
		}
	}
	for i, d := range s.Debts {
		if !d.Amount.IsPositive() {
			return itemError(ErrInvalidSettlement, "debts", i, "amount must be positive")
		}
	}
	return nil
}

func normalizePaymentType(t PaymentType) PaymentType {
	return PaymentType(strings.ToLower(strings.TrimSpace(string(t))))
}
