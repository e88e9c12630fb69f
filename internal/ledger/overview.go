package ledger

import "github.com/shopspring/decimal"

// BuildOverview classifies and sums entries already filtered to a reporting window.
func BuildOverview(entries []RentEntry) Overview {
	o := Overview{
		TotalToPay:   decimal.Zero,
		TotalPaid:    decimal.Zero,
		TotalNotPaid: decimal.Zero,
	}
	for _, r := range entries {
		o.CountAll++
		switch r.Status() {
		case StatusPaid:
			o.CountPaid++
		case StatusPartiallyPaid:
			o.CountPartiallyPaid++
		default:
			o.CountNotPaid++
		}
		o.TotalToPay = o.TotalToPay.Add(r.TotalToPay())
		o.TotalPaid = o.TotalPaid.Add(r.Payment)
		if r.NewBalance.IsNegative() {
			o.TotalNotPaid = o.TotalNotPaid.Sub(r.NewBalance)
		}
	}
	return o
}
