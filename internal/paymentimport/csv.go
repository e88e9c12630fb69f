// Package paymentimport turns bulk payment CSV files into ledger settlements.
package paymentimport

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/rent-ledger/internal/ledger"
	"github.com/dvloznov/rent-ledger/internal/rents"
)

// Column names of a payment file.
const (
	ColTenantID         = "tenant_id"
	ColPaymentDate      = "payment_date"
	ColPaymentType      = "payment_type"
	ColPaymentReference = "payment_reference"
	ColAmount           = "amount"
	ColDescription      = "description"
	ColError            = "error"
)

// Columns lists the required columns in template order.
var Columns = []string{ColTenantID, ColPaymentDate, ColPaymentType, ColPaymentReference, ColAmount}

// ErrMalformedFile is returned when the file cannot be read as a payment CSV at all.
var ErrMalformedFile = errors.New("malformed payment file")

var dateLayouts = []string{"1/2/2006", "2006-01-02"}

// RowError is a row that could not be turned into a payment.
// Record holds the required columns in template order.
type RowError struct {
	Row    int      `json:"row"`
	Record []string `json:"record"`
	Err    string   `json:"error"`
}

// ParseResult holds the parsed payments and the rejected rows.
type ParseResult struct {
	Payments []rents.BulkPayment
	Errors   []RowError
}

// Parse reads a payment CSV. Row numbers are file line numbers, the header being row 1.
// Bad rows are collected; only a missing header or column is fatal.
func Parse(r io.Reader) (*ParseResult, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("Parse: %w: empty file", ErrMalformedFile)
	}
	if err != nil {
		return nil, fmt.Errorf("Parse: %w: header: %w", ErrMalformedFile, err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		index[h] = i
	}
	var missing []string
	for _, col := range Columns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("Parse: %w: missing columns %s", ErrMalformedFile, strings.Join(missing, ", "))
	}

	res := &ParseResult{Payments: []rents.BulkPayment{}, Errors: []RowError{}}
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				res.Errors = append(res.Errors, RowError{Row: perr.StartLine, Record: ordered(record, index), Err: perr.Err.Error()})
				continue
			}
			return nil, fmt.Errorf("Parse: %w", err)
		}
		if blank(record) {
			continue
		}
		row, _ := cr.FieldPos(0)

		p, err := parseRow(record, index)
		if err != nil {
			res.Errors = append(res.Errors, RowError{Row: row, Record: ordered(record, index), Err: err.Error()})
			continue
		}
		p.Row = row
		res.Payments = append(res.Payments, p)
	}
	return res, nil
}

func column(record []string, index map[string]int, col string) string {
	i, ok := index[col]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

// ordered returns the record's required columns in template order.
func ordered(record []string, index map[string]int) []string {
	out := make([]string, len(Columns))
	for i, col := range Columns {
		out[i] = column(record, index, col)
	}
	return out
}

func parseRow(record []string, index map[string]int) (rents.BulkPayment, error) {
	field := func(col string) string { return column(record, index, col) }

	p := rents.BulkPayment{
		TenantRef:   field(ColTenantID),
		Reference:   field(ColPaymentReference),
		Description: field(ColDescription),
	}
	if p.TenantRef == "" {
		return p, fmt.Errorf("missing %s", ColTenantID)
	}

	date, err := parseDate(field(ColPaymentDate))
	if err != nil {
		return p, err
	}
	p.Date = date

	p.Type = ledger.PaymentType(strings.ToLower(field(ColPaymentType)))
	if p.Type == "" {
		p.Type = ledger.PaymentCash
	}

	raw := strings.ReplaceAll(field(ColAmount), ",", "")
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return p, fmt.Errorf("invalid amount %q", field(ColAmount))
	}
	if !amount.IsPositive() {
		return p, fmt.Errorf("invalid amount %s: must be positive", amount)
	}
	p.Amount = amount
	return p, nil
}

func parseDate(s string) (civil.Date, error) {
	if s == "" {
		return civil.Date{}, fmt.Errorf("missing %s", ColPaymentDate)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return civil.DateOf(t), nil
		}
	}
	return civil.Date{}, fmt.Errorf("invalid %s %q, want MM/DD/YYYY", ColPaymentDate, s)
}

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// FailedRowsCSV writes the rejected and failed rows back as CSV with an error column,
// ordered by row, so they can be fixed and re-imported.
func FailedRowsCSV(w io.Writer, parseErrors []RowError, failed []rents.ImportItem) error {
	type line struct {
		row    int
		fields []string
	}
	var lines []line
	for _, e := range parseErrors {
		fields := make([]string, len(Columns))
		copy(fields, e.Record)
		lines = append(lines, line{e.Row, append(fields, e.Err)})
	}
	for _, it := range failed {
		date := ""
		if it.Date.IsValid() {
			date = fmt.Sprintf("%02d/%02d/%04d", it.Date.Month, it.Date.Day, it.Date.Year)
		}
		lines = append(lines, line{it.Row, []string{
			it.TenantRef, date, string(it.Type), it.Reference, it.Amount.String(), it.Error,
		}})
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].row < lines[j].row })

	cw := csv.NewWriter(w)
	if err := cw.Write(append(append([]string{}, Columns...), ColError)); err != nil {
		return fmt.Errorf("FailedRowsCSV: header: %w", err)
	}
	for _, l := range lines {
		if err := cw.Write(l.fields); err != nil {
			return fmt.Errorf("FailedRowsCSV: row %d: %w", l.row, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("FailedRowsCSV: %w", err)
	}
	return nil
}
