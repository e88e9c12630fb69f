package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/rent-ledger/internal/domain"
)

// RentRow is one rent entry as exported to the rent_entries table.
// Every export appends rows; readers keep the latest exported_ts per tenant and term.
type RentRow struct {
	TenantID   string `bigquery:"tenant_id"`   // REQUIRED
	TenantName string `bigquery:"tenant_name"` // REQUIRED

	Term        int64      `bigquery:"term"`         // REQUIRED, YYYYMMDDHH
	Year        int64      `bigquery:"year"`         // REQUIRED
	Month       int64      `bigquery:"month"`        // REQUIRED
	PeriodStart civil.Date `bigquery:"period_start"` // REQUIRED

	TotalAmount   *big.Rat `bigquery:"total_amount"`   // REQUIRED NUMERIC
	Payment       *big.Rat `bigquery:"payment"`        // REQUIRED NUMERIC
	DiscountTotal *big.Rat `bigquery:"discount_total"` // REQUIRED NUMERIC
	DebtTotal     *big.Rat `bigquery:"debt_total"`     // REQUIRED NUMERIC
	NewBalance    *big.Rat `bigquery:"new_balance"`    // REQUIRED NUMERIC

	Status       string              `bigquery:"status"`        // REQUIRED
	PaymentCount int64               `bigquery:"payment_count"` // REQUIRED
	Description  bigquery.NullString `bigquery:"description"`   // NULLABLE

	ExportedTS time.Time `bigquery:"exported_ts"` // REQUIRED
}

// YearTotal is the monthly revenue of one year.
type YearTotal struct {
	Year        int64    `bigquery:"year"`
	Month       int64    `bigquery:"month"`
	TotalAmount *big.Rat `bigquery:"total_amount"`
	Payment     *big.Rat `bigquery:"payment"`
	Rents       int64    `bigquery:"rents"`
}

// ToRentRows flattens the tenants' ledgers into export rows.
func ToRentRows(tenants []*domain.Tenant, exportedAt time.Time) []*RentRow {
	var rows []*RentRow
	for _, t := range tenants {
		for _, r := range t.Rents {
			start := r.Term.Time()
			row := &RentRow{
				TenantID:      t.ID,
				TenantName:    t.Name,
				Term:          int64(r.Term),
				Year:          int64(start.Year()),
				Month:         int64(start.Month()),
				PeriodStart:   civil.DateOf(start),
				TotalAmount:   toRat(r.TotalAmount),
				Payment:       toRat(r.Payment),
				DiscountTotal: toRat(r.DiscountTotal()),
				DebtTotal:     toRat(r.DebtTotal()),
				NewBalance:    toRat(r.NewBalance),
				Status:        string(r.Status()),
				PaymentCount:  int64(len(r.Payments)),
				ExportedTS:    exportedAt,
			}
			if r.Description != "" {
				row.Description = bigquery.NullString{StringVal: r.Description, Valid: true}
			}
			rows = append(rows, row)
		}
	}
	return rows
}

func toRat(d decimal.Decimal) *big.Rat {
	return d.Rat()
}
