package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

const (
	rentEntriesTable = "rent_entries"
	insertBatchSize  = 500
)

// rentEntriesDDL creates rent_entries, partitioned by period and clustered by tenant.
func rentEntriesDDL(projectID, datasetID string) string {
	return fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS `+"`%s.%s.%s`"+` (
			tenant_id      STRING NOT NULL,
			tenant_name    STRING NOT NULL,
			term           INT64 NOT NULL,
			year           INT64 NOT NULL,
			month          INT64 NOT NULL,
			period_start   DATE NOT NULL,
			total_amount   NUMERIC NOT NULL,
			payment        NUMERIC NOT NULL,
			discount_total NUMERIC NOT NULL,
			debt_total     NUMERIC NOT NULL,
			new_balance    NUMERIC NOT NULL,
			status         STRING NOT NULL,
			payment_count  INT64 NOT NULL,
			description    STRING,
			exported_ts    TIMESTAMP NOT NULL
		)
		PARTITION BY DATE_TRUNC(period_start, MONTH)
		CLUSTER BY tenant_id
	`, projectID, datasetID, rentEntriesTable)
}

// EnsureTableWithClient creates the rent_entries table if it does not exist.
func EnsureTableWithClient(ctx context.Context, client *bigquery.Client, projectID, datasetID string) error {
	job, err := client.Query(rentEntriesDDL(projectID, datasetID)).Run(ctx)
	if err != nil {
		return fmt.Errorf("EnsureTable: running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("EnsureTable: waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("EnsureTable: job error: %w", err)
	}
	return nil
}

// InsertRentRowsWithClient appends rows to rent_entries in batches.
func InsertRentRowsWithClient(ctx context.Context, client *bigquery.Client, projectID, datasetID string, rows []*RentRow) error {
	if len(rows) == 0 {
		return nil
	}

	inserter := client.DatasetInProject(projectID, datasetID).Table(rentEntriesTable).Inserter()
	for start := 0; start < len(rows); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := inserter.Put(ctx, rows[start:end]); err != nil {
			return fmt.Errorf("InsertRentRows: inserting rows %d-%d: %w", start, end-1, err)
		}
	}
	return nil
}

// yearTotalsQuery sums the latest export of each rent of a year by month.
func yearTotalsQuery(projectID, datasetID string) string {
	return fmt.Sprintf(`
		WITH latest AS (
			SELECT *
			FROM `+"`%s.%s.%s`"+`
			WHERE year = @year
			QUALIFY ROW_NUMBER() OVER (PARTITION BY tenant_id, term ORDER BY exported_ts DESC) = 1
		)
		SELECT
			year,
			month,
			SUM(total_amount) AS total_amount,
			SUM(payment) AS payment,
			COUNT(*) AS rents
		FROM latest
		GROUP BY year, month
		ORDER BY month
	`, projectID, datasetID, rentEntriesTable)
}

// QueryYearTotalsWithClient returns the monthly totals of a year.
func QueryYearTotalsWithClient(ctx context.Context, client *bigquery.Client, projectID, datasetID string, year int) ([]*YearTotal, error) {
	q := client.Query(yearTotalsQuery(projectID, datasetID))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "year", Value: int64(year)},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QueryYearTotals: query read: %w", err)
	}

	var totals []*YearTotal
	for {
		var t YearTotal
		err := it.Next(&t)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QueryYearTotals: iter next: %w", err)
		}
		totals = append(totals, &t)
	}
	return totals, nil
}
