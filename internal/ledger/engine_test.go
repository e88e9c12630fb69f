package ledger

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/rent-ledger/internal/term"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newContract(rent string, vat string) Contract {
	return Contract{
		Begin:     date(2024, time.January, 1),
		End:       date(2024, time.December, 31),
		Frequency: term.Months,
		VATRate:   dec(vat),
		Discount:  decimal.Zero,
		Properties: []Property{
			{PropertyID: "p1", Name: "Flat 1", Rent: dec(rent)},
		},
	}
}

func TestComputeRent_Basic(t *testing.T) {
	e := NewEngine()
	c := newContract("1000", "0")

	r, err := e.ComputeRent(c, date(2024, time.March, 15), nil)
	if err != nil {
		t.Fatalf("ComputeRent() error: %v", err)
	}
	if r.Term != 2024030100 {
		t.Errorf("Term = %d, want 2024030100", r.Term)
	}
	if !r.TotalAmount.Equal(dec("1000")) {
		t.Errorf("TotalAmount = %s, want 1000", r.TotalAmount)
	}
	if !r.NewBalance.Equal(dec("-1000")) {
		t.Errorf("NewBalance = %s, want -1000", r.NewBalance)
	}
	if !r.Payment.IsZero() || len(r.Payments) != 0 || len(r.Discounts) != 0 || len(r.Debts) != 0 {
		t.Errorf("expected empty settlements, got %+v", r)
	}
	if r.Payments == nil || r.Discounts == nil || r.Debts == nil {
		t.Error("expected non-nil empty slices")
	}
	if !r.Reconciles() {
		t.Error("fresh entry does not reconcile")
	}
}

func TestComputeRent_PropertiesExpensesAndDiscount(t *testing.T) {
	e := NewEngine()
	exit := date(2024, time.February, 10)
	entry := date(2024, time.April, 1)
	c := newContract("800", "0")
	c.Discount = dec("50")
	c.Properties[0].Expenses = []Expense{{Title: "service charge", Amount: dec("40")}}
	c.Properties = append(c.Properties,
		Property{PropertyID: "p2", Name: "Parking", Rent: dec("100"), ExitDate: &exit},
		Property{PropertyID: "p3", Name: "Storage", Rent: dec("30"), EntryDate: &entry},
	)

	tests := []struct {
		name   string
		target time.Time
		want   string
	}{
		{"parking still leased", date(2024, time.February, 1), "890"},
		{"parking gone, storage not yet", date(2024, time.March, 1), "790"},
		{"storage leased", date(2024, time.April, 20), "820"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := e.ComputeRent(c, tt.target, nil)
			if err != nil {
				t.Fatalf("ComputeRent() error: %v", err)
			}
			if !r.TotalAmount.Equal(dec(tt.want)) {
				t.Errorf("TotalAmount = %s, want %s", r.TotalAmount, tt.want)
			}
		})
	}
}

func TestComputeRent_VATConventions(t *testing.T) {
	c := newContract("1000", "0.2")

	exclusive, err := NewEngine().ComputeRent(c, date(2024, time.May, 1), nil)
	if err != nil {
		t.Fatalf("exclusive: %v", err)
	}
	if !exclusive.Breakdown.PreTaxAmount.Equal(dec("1000")) || !exclusive.Breakdown.VAT.Equal(dec("200")) {
		t.Errorf("exclusive breakdown = %+v", exclusive.Breakdown)
	}
	if !exclusive.TotalAmount.Equal(dec("1200")) {
		t.Errorf("exclusive TotalAmount = %s, want 1200", exclusive.TotalAmount)
	}

	inclusive, err := NewEngine(WithVATInclusiveInput(true)).ComputeRent(c, date(2024, time.May, 1), nil)
	if err != nil {
		t.Fatalf("inclusive: %v", err)
	}
	if !inclusive.Breakdown.PreTaxAmount.Equal(dec("833.33")) || !inclusive.Breakdown.VAT.Equal(dec("166.67")) {
		t.Errorf("inclusive breakdown = %+v", inclusive.Breakdown)
	}
	if !inclusive.TotalAmount.Equal(dec("1000")) {
		t.Errorf("inclusive TotalAmount = %s, want 1000", inclusive.TotalAmount)
	}
}

func TestComputeRent_Idempotent(t *testing.T) {
	e := NewEngine(WithVATInclusiveInput(true))
	c := newContract("1234.56", "0.16")
	c.Discount = dec("10.10")
	prev := &RentEntry{Term: 2024010100, NewBalance: dec("-99.99")}

	first, err := e.ComputeRent(c, date(2024, time.February, 3), prev)
	if err != nil {
		t.Fatalf("ComputeRent() error: %v", err)
	}
	second, err := e.ComputeRent(c, date(2024, time.February, 27), prev)
	if err != nil {
		t.Fatalf("ComputeRent() error: %v", err)
	}

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Errorf("recomputed entry differs:\n%s\n%s", a, b)
	}
}

func TestComputeRent_CarryForward(t *testing.T) {
	e := NewEngine()
	c := newContract("1000", "0")

	jan, err := e.ComputeRent(c, date(2024, time.January, 1), nil)
	if err != nil {
		t.Fatalf("jan: %v", err)
	}
	c.Rents = []RentEntry{jan}
	c, err = e.PayTerm(c, jan.Term, Settlement{Payments: []Payment{payment("2024-01-05", "600")}})
	if err != nil {
		t.Fatalf("PayTerm() error: %v", err)
	}
	jan, _ = c.Entry(2024010100)

	feb, err := e.ComputeRent(c, date(2024, time.February, 1), &jan)
	if err != nil {
		t.Fatalf("feb: %v", err)
	}
	if !feb.Breakdown.Balance.Equal(dec("400")) {
		t.Errorf("carried balance = %s, want 400", feb.Breakdown.Balance)
	}
	if !feb.TotalAmount.Equal(dec("1400")) {
		t.Errorf("TotalAmount = %s, want 1400", feb.TotalAmount)
	}

	// Overpayment becomes a credit.
	credit := RentEntry{Term: 2024020100, NewBalance: dec("150")}
	mar, err := e.ComputeRent(c, date(2024, time.March, 1), &credit)
	if err != nil {
		t.Fatalf("mar: %v", err)
	}
	if !mar.TotalAmount.Equal(dec("850")) {
		t.Errorf("TotalAmount = %s, want 850", mar.TotalAmount)
	}
}

func TestComputeRent_InvalidContract(t *testing.T) {
	e := NewEngine()
	base := newContract("1000", "0")

	tests := []struct {
		name      string
		mutate    func(c *Contract)
		target    time.Time
		previous  *RentEntry
		wantField string
	}{
		{"missing begin", func(c *Contract) { c.Begin = time.Time{} }, date(2024, 3, 1), nil, "begin"},
		{"missing end", func(c *Contract) { c.End = time.Time{} }, date(2024, 3, 1), nil, "end"},
		{"end before begin", func(c *Contract) { c.End = date(2023, 1, 1) }, date(2024, 3, 1), nil, "end"},
		{"unknown frequency", func(c *Contract) { c.Frequency = "fortnights" }, date(2024, 3, 1), nil, "frequency"},
		{"negative vat", func(c *Contract) { c.VATRate = dec("-0.1") }, date(2024, 3, 1), nil, "vat_rate"},
		{"before lease", func(c *Contract) {}, date(2023, 12, 31), nil, "target_date"},
		{"after lease", func(c *Contract) {}, date(2025, 1, 1), nil, "target_date"},
		{"previous not earlier", func(c *Contract) {}, date(2024, 3, 1), &RentEntry{Term: 2024030100}, "previous"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base.Clone()
			tt.mutate(&c)
			_, err := e.ComputeRent(c, tt.target, tt.previous)
			if !errors.Is(err, ErrInvalidContract) {
				t.Fatalf("error = %v, want ErrInvalidContract", err)
			}
			var fe *FieldError
			if !errors.As(err, &fe) || fe.Field != tt.wantField {
				t.Errorf("field = %v, want %s", fe, tt.wantField)
			}
		})
	}
}

func TestComputeRent_TerminationMonthIncluded(t *testing.T) {
	e := NewEngine()
	c := newContract("1000", "0")
	c.End = date(2024, time.June, 10)

	if _, err := e.ComputeRent(c, date(2024, time.June, 28), nil); err != nil {
		t.Errorf("termination month rejected: %v", err)
	}
	if _, err := e.ComputeRent(c, date(2024, time.July, 1), nil); !errors.Is(err, ErrInvalidContract) {
		t.Errorf("month after termination accepted: %v", err)
	}
}
