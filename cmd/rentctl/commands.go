package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/dvloznov/rent-ledger/internal/app"
	"github.com/dvloznov/rent-ledger/internal/config"
	"github.com/dvloznov/rent-ledger/internal/domain"
	"github.com/dvloznov/rent-ledger/internal/gcsuploader"
	infraBQ "github.com/dvloznov/rent-ledger/internal/infra/bigquery"
	"github.com/dvloznov/rent-ledger/internal/ledger"
	"github.com/dvloznov/rent-ledger/internal/logger"
	"github.com/dvloznov/rent-ledger/internal/notify"
	"github.com/dvloznov/rent-ledger/internal/notionsync"
	"github.com/dvloznov/rent-ledger/internal/paymentimport"
	"github.com/dvloznov/rent-ledger/internal/rents"
	"github.com/dvloznov/rent-ledger/internal/store"
	"github.com/dvloznov/rent-ledger/internal/term"
)

// environment is built once per invocation from the env file and flags.
type environment struct {
	envFile string
	cfg     *config.Config
	log     zerolog.Logger
	app     *app.App
}

func (e *environment) load(cmd *cobra.Command) error {
	cfg, err := config.Load(e.envFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	e.cfg = cfg
	e.log = logger.NewWithLevel(cfg.LogLevel)
	cmd.SetContext(logger.WithContext(cmd.Context(), e.log))
	return nil
}

// service opens the store and builds the rent service on first use.
func (e *environment) service(ctx context.Context) (*app.App, error) {
	if e.app != nil {
		return e.app, nil
	}
	a, err := app.Build(ctx, e.cfg, e.log)
	if err != nil {
		return nil, err
	}
	e.app = a
	return a, nil
}

func (e *environment) close() error {
	if e.app == nil {
		return nil
	}
	return e.app.Close()
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func MigrateCmd(env *environment) *cobra.Command {
	var withBigQuery bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the ledger tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if _, err := env.service(ctx); err != nil {
				return fmt.Errorf("failed to migrate database: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Database (%s) is up to date\n", env.cfg.DatabaseDriver)

			if !withBigQuery {
				return nil
			}
			repo, err := infraBQ.NewBigQueryLedgerRepository(ctx, env.cfg.BigQueryProject, env.cfg.BigQueryDataset)
			if err != nil {
				return err
			}
			defer repo.Close()
			if err := repo.EnsureTable(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "BigQuery table %s.%s.rent_entries is ready\n", env.cfg.BigQueryProject, env.cfg.BigQueryDataset)
			return nil
		},
	}
	cmd.Flags().BoolVar(&withBigQuery, "bigquery", false, "Also create the BigQuery export table")
	return cmd
}

func TenantsCmd(env *environment) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenants",
		Short: "Manage tenants",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "load <tenants.json>",
		Short: "Create tenants from a JSON array",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := env.service(ctx)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			var tenants []*domain.Tenant
			if err := json.Unmarshal(data, &tenants); err != nil {
				return fmt.Errorf("failed to decode tenants: %w", err)
			}
			for _, t := range tenants {
				if t.ID == "" {
					t.ID = uuid.New().String()
				}
				if err := t.LeaseContract().Validate(); err != nil {
					return fmt.Errorf("tenant %s: %w", t.Name, err)
				}
				if err := a.Repo.CreateTenant(ctx, t); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created tenant %s (%s)\n", t.Name, t.ID)
			}
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List tenants with their balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := env.service(ctx)
			if err != nil {
				return err
			}
			tenants, err := a.Repo.ListTenants(ctx, store.TenantFilter{})
			if err != nil {
				return err
			}
			for _, t := range tenants {
				occ, err := a.Service.RentsOfOccupant(ctx, t.ID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-36s  %-24s  %-10s  %12s\n", t.ID, t.Name, t.Reference, occ.Occupant.Balance.StringFixed(2))
			}
			return nil
		},
	})
	return cmd
}

func RentsCmd(env *environment) *cobra.Command {
	now := time.Now()
	var year, month int
	cmd := &cobra.Command{
		Use:   "rents",
		Short: "Show the rent board of a month, seeding due rents",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := env.service(ctx)
			if err != nil {
				return err
			}
			board, err := a.Service.RentsByMonth(ctx, notify.RequestInfo{}, year, month)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), board)
		},
	}
	cmd.Flags().IntVar(&year, "year", now.Year(), "Year")
	cmd.Flags().IntVar(&month, "month", int(now.Month()), "Month (1-12)")
	return cmd
}

func PayCmd(env *environment) *cobra.Command {
	var (
		tenantID, termStr, dateStr, paymentType, reference, description string
		amount, promo, extraCharge                                       string
	)
	cmd := &cobra.Command{
		Use:   "pay",
		Short: "Record a payment for a tenant's term",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			tm, err := term.ParseString(termStr)
			if err != nil {
				return err
			}
			form := rents.PaymentForm{TenantID: tenantID, Description: description}

			if amount != "" {
				amt, err := decimal.NewFromString(amount)
				if err != nil {
					return fmt.Errorf("invalid amount %q: %w", amount, err)
				}
				date := civil.DateOf(time.Now())
				if dateStr != "" {
					if date, err = civil.ParseDate(dateStr); err != nil {
						return fmt.Errorf("invalid date %q: %w", dateStr, err)
					}
				}
				form.Payments = []ledger.Payment{{Date: date, Amount: amt, Type: ledger.PaymentType(paymentType), Reference: reference}}
			}
			if form.Promo, err = optionalDecimal(promo); err != nil {
				return err
			}
			if form.ExtraCharge, err = optionalDecimal(extraCharge); err != nil {
				return err
			}

			a, err := env.service(ctx)
			if err != nil {
				return err
			}
			view, err := a.Service.UpdateByTerm(ctx, notify.RequestInfo{}, tm, form)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), view)
		},
	}
	cmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant ID (required)")
	cmd.Flags().StringVar(&termStr, "term", "", "Term YYYYMMDDHH (required)")
	cmd.Flags().StringVar(&amount, "amount", "", "Payment amount")
	cmd.Flags().StringVar(&dateStr, "date", "", "Payment date YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&paymentType, "type", string(ledger.PaymentCash), "Payment type")
	cmd.Flags().StringVar(&reference, "reference", "", "Payment reference")
	cmd.Flags().StringVar(&promo, "promo", "", "Discount granted for the term")
	cmd.Flags().StringVar(&extraCharge, "extra-charge", "", "Extra charge for the term")
	cmd.Flags().StringVar(&description, "description", "", "Settlement description")
	cmd.MarkFlagRequired("tenant")
	cmd.MarkFlagRequired("term")
	return cmd
}

func optionalDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d, nil
}

func ImportCmd(env *environment) *cobra.Command {
	var gcsURI, failedOut string
	cmd := &cobra.Command{
		Use:   "import [payments.csv]",
		Short: "Import a payment CSV from a local file or GCS",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if (len(args) == 0) == (gcsURI == "") {
				return fmt.Errorf("give either a local file or --gcs-uri")
			}

			state := &paymentimport.State{GCSURI: gcsURI}
			if len(args) == 1 {
				data, err := os.ReadFile(args[0])
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", args[0], err)
				}
				state.Data = data
			}

			a, err := env.service(ctx)
			if err != nil {
				return err
			}
			p := paymentimport.NewImportPipeline(gcsuploader.NewGCSStorageService(), a.Service)
			if err := p.Execute(ctx, state); err != nil {
				return err
			}

			if failedOut != "" {
				var buf bytes.Buffer
				if err := paymentimport.FailedRowsCSV(&buf, state.Parsed.Errors, state.Result.Failed); err != nil {
					return err
				}
				if err := os.WriteFile(failedOut, buf.Bytes(), 0o644); err != nil {
					return fmt.Errorf("failed to write %s: %w", failedOut, err)
				}
			}
			return printJSON(cmd.OutOrStdout(), state.Summary(time.Now().UTC()))
		},
	}
	cmd.Flags().StringVar(&gcsURI, "gcs-uri", "", "gs:// URI of the CSV to import")
	cmd.Flags().StringVar(&failedOut, "failed-out", "", "Write rejected rows to this CSV file")
	return cmd
}

func UploadCmd(env *environment) *cobra.Command {
	var bucket string
	cmd := &cobra.Command{
		Use:   "upload <payments.csv>",
		Short: "Upload a payment CSV to GCS for a later import",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if bucket == "" {
				bucket = env.cfg.GCSBucket
			}
			if bucket == "" {
				return fmt.Errorf("--bucket or GCS_BUCKET is required")
			}
			objectName := gcsuploader.ImportObjectName(uuid.New().String(), filepath.Base(args[0]))
			if err := gcsuploader.UploadFile(cmd.Context(), bucket, objectName, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "gs://%s/%s\n", bucket, objectName)
			return nil
		},
	}
	cmd.Flags().StringVar(&bucket, "bucket", "", "GCS bucket (default GCS_BUCKET)")
	return cmd
}

func ExportCmd(env *environment) *cobra.Command {
	var year int
	var totals bool
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a year of rents to BigQuery",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			repo, err := infraBQ.NewBigQueryLedgerRepository(ctx, env.cfg.BigQueryProject, env.cfg.BigQueryDataset)
			if err != nil {
				return err
			}
			defer repo.Close()

			if totals {
				rows, err := repo.QueryYearTotals(ctx, year)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), rows)
			}

			a, err := env.service(ctx)
			if err != nil {
				return err
			}
			start, _ := term.Bounds(time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC), term.Years)
			_, end := term.Bounds(time.Date(year, 12, 31, 0, 0, 0, 0, time.UTC), term.Years)
			tenants, err := a.Repo.ListTenants(ctx, store.TenantFilter{StartTerm: start, EndTerm: end})
			if err != nil {
				return err
			}
			rows := infraBQ.ToRentRows(tenants, time.Now().UTC())
			if err := repo.InsertRentRows(ctx, rows); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d rents of %d\n", len(rows), year)
			return nil
		},
	}
	cmd.Flags().IntVar(&year, "year", time.Now().Year(), "Year to export")
	cmd.Flags().BoolVar(&totals, "totals", false, "Print the exported monthly totals instead of exporting")
	return cmd
}

func SyncNotionCmd(env *environment) *cobra.Command {
	now := time.Now()
	var year, month int
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "sync-notion",
		Short: "Mirror the rent board of a month to Notion",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if env.cfg.NotionRentsDBID == "" {
				return fmt.Errorf("NOTION_RENTS_DB_ID is required")
			}
			client, err := notionsync.NewNotionClient(env.cfg.NotionToken)
			if err != nil {
				return err
			}
			a, err := env.service(ctx)
			if err != nil {
				return err
			}
			stats, err := notionsync.SyncMonth(ctx, a.Service, client, env.cfg.NotionRentsDBID, year, time.Month(month), dryRun)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), stats)
		},
	}
	cmd.Flags().IntVar(&year, "year", now.Year(), "Year")
	cmd.Flags().IntVar(&month, "month", int(now.Month()), "Month (1-12)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Preview changes without writing to Notion")
	return cmd
}
