package ledger

import (
	"fmt"

	"github.com/dvloznov/rent-ledger/internal/term"
)

// FindDuplicatePayment looks for a payment on the same day for the same amount
// anywhere in the contract's ledger and returns the term holding it.
func FindDuplicatePayment(c Contract, p Payment) (term.Term, bool) {
	for _, r := range c.Rents {
		for _, existing := range r.Payments {
			if samePayment(existing, p) {
				return r.Term, true
			}
		}
	}
	return 0, false
}

// CheckDuplicates rejects the first payment already recorded in the ledger or
// repeated earlier in the same batch.
func CheckDuplicates(c Contract, payments []Payment) error {
	for i, p := range payments {
		if tm, ok := FindDuplicatePayment(c, p); ok {
			return itemError(ErrDuplicatePayment, "payments", i,
				fmt.Sprintf("%s payment of %s already recorded in term %s", p.Date, p.Amount, tm))
		}
		for j := 0; j < i; j++ {
			if samePayment(payments[j], p) {
				return itemError(ErrDuplicatePayment, "payments", i,
					fmt.Sprintf("same as payment %d", j))
			}
		}
	}
	return nil
}

func samePayment(a, b Payment) bool {
	return a.Date == b.Date && a.Amount.Equal(b.Amount)
}
