package bigquery

import (
	"math/big"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/rent-ledger/internal/domain"
	"github.com/dvloznov/rent-ledger/internal/ledger"
)

func rat(s string) *big.Rat {
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		panic("bad rat " + s)
	}
	return r
}

func TestToRentRows(t *testing.T) {
	exported := time.Date(2024, 3, 18, 12, 0, 0, 0, time.UTC)
	tenants := []*domain.Tenant{
		{
			ID:   "t1",
			Name: "Alice",
			Rents: []ledger.RentEntry{
				{
					Term:        2024020100,
					TotalAmount: decimal.RequireFromString("1000"),
					Payment:     decimal.RequireFromString("1000"),
					Payments:    []ledger.Payment{{Date: civil.Date{Year: 2024, Month: 2, Day: 3}, Amount: decimal.RequireFromString("1000")}},
					NewBalance:  decimal.Zero,
					Description: "paid in full",
				},
				{
					Term:        2024030100,
					TotalAmount: decimal.RequireFromString("1200.50"),
					Payment:     decimal.Zero,
					Discounts:   []ledger.Discount{{Amount: decimal.RequireFromString("50")}},
					Debts:       []ledger.Debt{{Amount: decimal.RequireFromString("20.25")}},
					NewBalance:  decimal.RequireFromString("-1170.75"),
				},
			},
		},
		{ID: "t2", Name: "Bob"},
	}

	rows := ToRentRows(tenants, exported)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}

	feb := rows[0]
	if feb.TenantID != "t1" || feb.Term != 2024020100 || feb.Year != 2024 || feb.Month != 2 {
		t.Errorf("feb = %+v", feb)
	}
	if feb.PeriodStart != (civil.Date{Year: 2024, Month: 2, Day: 1}) {
		t.Errorf("PeriodStart = %v", feb.PeriodStart)
	}
	if feb.Status != string(ledger.StatusPaid) || feb.PaymentCount != 1 {
		t.Errorf("Status = %s PaymentCount = %d", feb.Status, feb.PaymentCount)
	}
	if !feb.Description.Valid || feb.Description.StringVal != "paid in full" {
		t.Errorf("Description = %+v", feb.Description)
	}
	if !feb.ExportedTS.Equal(exported) {
		t.Errorf("ExportedTS = %v", feb.ExportedTS)
	}

	mar := rows[1]
	checks := []struct {
		name string
		got  *big.Rat
		want string
	}{
		{"total_amount", mar.TotalAmount, "1200.50"},
		{"payment", mar.Payment, "0"},
		{"discount_total", mar.DiscountTotal, "50"},
		{"debt_total", mar.DebtTotal, "20.25"},
		{"new_balance", mar.NewBalance, "-1170.75"},
	}
	for _, c := range checks {
		if c.got.Cmp(rat(c.want)) != 0 {
			t.Errorf("%s = %s, want %s", c.name, c.got.FloatString(2), c.want)
		}
	}
	if mar.Description.Valid {
		t.Error("empty description should be NULL")
	}
	if mar.Status != string(ledger.StatusNotPaid) {
		t.Errorf("Status = %s", mar.Status)
	}
}

func TestYearTotalsQuery(t *testing.T) {
	q := yearTotalsQuery("my-project", "rents")
	if !strings.Contains(q, "`my-project.rents.rent_entries`") {
		t.Errorf("query does not reference the table:\n%s", q)
	}
	if !strings.Contains(q, "@year") || !strings.Contains(q, "QUALIFY") {
		t.Errorf("query missing year filter or dedupe:\n%s", q)
	}
}

func TestRentEntriesDDL(t *testing.T) {
	ddl := rentEntriesDDL("my-project", "rents")
	if !strings.Contains(ddl, "CREATE TABLE IF NOT EXISTS `my-project.rents.rent_entries`") {
		t.Errorf("DDL does not create the table:\n%s", ddl)
	}
	for _, col := range []string{"tenant_id", "total_amount   NUMERIC", "period_start   DATE", "exported_ts    TIMESTAMP"} {
		if !strings.Contains(ddl, col) {
			t.Errorf("DDL missing %q", col)
		}
	}
}
