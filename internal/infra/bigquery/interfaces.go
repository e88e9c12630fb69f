package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
)

// LedgerRepository exports rent entries for reporting.
type LedgerRepository interface {
	EnsureTable(ctx context.Context) error
	InsertRentRows(ctx context.Context, rows []*RentRow) error
	QueryYearTotals(ctx context.Context, year int) ([]*YearTotal, error)
	Close() error
}

// BigQueryLedgerRepository is the LedgerRepository backed by BigQuery.
// It holds a shared client to avoid a connection per operation.
type BigQueryLedgerRepository struct {
	client    *bigquery.Client
	projectID string
	datasetID string
}

// NewBigQueryLedgerRepository creates a repository writing to projectID.datasetID.
func NewBigQueryLedgerRepository(ctx context.Context, projectID, datasetID string) (*BigQueryLedgerRepository, error) {
	if projectID == "" || datasetID == "" {
		return nil, fmt.Errorf("NewBigQueryLedgerRepository: project and dataset are required")
	}
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryLedgerRepository: creating client: %w", err)
	}
	return &BigQueryLedgerRepository{
		client:    client,
		projectID: projectID,
		datasetID: datasetID,
	}, nil
}

// Close closes the BigQuery client connection.
func (r *BigQueryLedgerRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// EnsureTable delegates to EnsureTableWithClient with the shared client.
func (r *BigQueryLedgerRepository) EnsureTable(ctx context.Context) error {
	return EnsureTableWithClient(ctx, r.client, r.projectID, r.datasetID)
}

// InsertRentRows delegates to InsertRentRowsWithClient with the shared client.
func (r *BigQueryLedgerRepository) InsertRentRows(ctx context.Context, rows []*RentRow) error {
	return InsertRentRowsWithClient(ctx, r.client, r.projectID, r.datasetID, rows)
}

// QueryYearTotals delegates to QueryYearTotalsWithClient with the shared client.
func (r *BigQueryLedgerRepository) QueryYearTotals(ctx context.Context, year int) ([]*YearTotal, error) {
	return QueryYearTotalsWithClient(ctx, r.client, r.projectID, r.datasetID, year)
}

var _ LedgerRepository = (*BigQueryLedgerRepository)(nil)
