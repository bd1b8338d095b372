package main

import (
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
	_ "modernc.org/sqlite"

	"proplend/config"
	"proplend/core"
	nativecommon "proplend/native/common"
	"proplend/native/lending"
	"proplend/native/market"
)

const (
	formatParquet = "parquet"
	formatSQLite  = "sqlite"
)

type loanRow struct {
	ID              int64  `parquet:"name=id, type=INT64"`
	Borrower        string `parquet:"name=borrower, type=BYTE_ARRAY, convertedtype=UTF8"`
	Principal       string `parquet:"name=principal, type=BYTE_ARRAY, convertedtype=UTF8"`
	PropertyID      string `parquet:"name=property_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	PropertyValue   string `parquet:"name=property_value, type=BYTE_ARRAY, convertedtype=UTF8"`
	LTVPercent      int64  `parquet:"name=ltv_percent, type=INT64"`
	InterestRateBps int64  `parquet:"name=interest_rate_bps, type=INT64"`
	TermMonths      int64  `parquet:"name=term_months, type=INT64"`
	InterestDue     string `parquet:"name=interest_due, type=BYTE_ARRAY, convertedtype=UTF8"`
	Status          string `parquet:"name=status, type=BYTE_ARRAY, convertedtype=UTF8"`
	OriginatedAt    int64  `parquet:"name=originated_at, type=INT64"`
	MaturesAt       int64  `parquet:"name=matures_at, type=INT64"`
	ClosedAt        int64  `parquet:"name=closed_at, type=INT64"`
}

type orderRow struct {
	ID              int64  `parquet:"name=id, type=INT64"`
	Creator         string `parquet:"name=creator, type=BYTE_ARRAY, convertedtype=UTF8"`
	Tranche         string `parquet:"name=tranche, type=BYTE_ARRAY, convertedtype=UTF8"`
	Side            string `parquet:"name=side, type=BYTE_ARRAY, convertedtype=UTF8"`
	Amount          string `parquet:"name=amount, type=BYTE_ARRAY, convertedtype=UTF8"`
	RemainingAmount string `parquet:"name=remaining_amount, type=BYTE_ARRAY, convertedtype=UTF8"`
	PricePerUnit    string `parquet:"name=price_per_unit, type=BYTE_ARRAY, convertedtype=UTF8"`
	Status          string `parquet:"name=status, type=BYTE_ARRAY, convertedtype=UTF8"`
	CreatedAt       int64  `parquet:"name=created_at, type=INT64"`
	UpdatedAt       int64  `parquet:"name=updated_at, type=INT64"`
}

func newExportCmd() *cobra.Command {
	var (
		configPath string
		outDir     string
		format     string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export loans and orders from the configured store",
		Long: "Opens the ledger store named in the TOML configuration read-only and writes\n" +
			"loans.parquet and orders.parquet (or ledger.sqlite with --format sqlite) to --out.\n" +
			"LevelDB and Bolt stores are locked by a running ledgerd; export from a stopped node or a copy.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := os.Stat(configPath); err != nil {
				return fmt.Errorf("config: %w", err)
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			db, err := cfg.OpenStorage()
			if err != nil {
				return err
			}
			defer db.Close()
			ledger, err := core.NewLedger(db, cfg.Params())
			if err != nil {
				return err
			}
			files, err := exportLedger(ledger, outDir, format)
			if err != nil {
				return err
			}
			for _, f := range files {
				fmt.Fprintln(cmd.OutOrStdout(), f)
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&configPath, "config", "ledger.toml", "Path to the ledger TOML configuration")
	flags.StringVar(&outDir, "out", ".", "Directory receiving the export files")
	flags.StringVar(&format, "format", formatParquet, "Output format: parquet or sqlite")
	return cmd
}

// exportLedger writes the ledger's loans and orders to dir and returns the
// paths written.
func exportLedger(ledger *core.Ledger, dir, format string) ([]string, error) {
	loans, err := ledger.Loans()
	if err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}
	orders, err := ledger.Orders()
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	loanRows := make([]loanRow, 0, len(loans))
	for _, loan := range loans {
		loanRows = append(loanRows, toLoanRow(loan))
	}
	orderRows := make([]orderRow, 0, len(orders))
	for _, order := range orders {
		orderRows = append(orderRows, toOrderRow(order))
	}

	switch strings.ToLower(strings.TrimSpace(format)) {
	case formatParquet:
		loansPath := filepath.Join(dir, "loans.parquet")
		if err := writeParquet(loansPath, new(loanRow), loanRows); err != nil {
			return nil, err
		}
		ordersPath := filepath.Join(dir, "orders.parquet")
		if err := writeParquet(ordersPath, new(orderRow), orderRows); err != nil {
			return nil, err
		}
		return []string{loansPath, ordersPath}, nil
	case formatSQLite:
		path := filepath.Join(dir, "ledger.sqlite")
		if err := writeSQLite(path, loanRows, orderRows); err != nil {
			return nil, err
		}
		return []string{path}, nil
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}

func toLoanRow(loan *lending.Loan) loanRow {
	return loanRow{
		ID:              int64(loan.ID),
		Borrower:        loan.Borrower.String(),
		Principal:       formatAmount(loan.Principal),
		PropertyID:      fmt.Sprintf("%x", loan.PropertyID),
		PropertyValue:   formatAmount(loan.PropertyValue),
		LTVPercent:      int64(loan.LTVPercent),
		InterestRateBps: int64(loan.InterestRateBps),
		TermMonths:      int64(loan.TermMonths),
		InterestDue:     formatAmount(loan.InterestDue),
		Status:          loan.Status.String(),
		OriginatedAt:    int64(loan.OriginatedAt),
		MaturesAt:       int64(loan.MaturesAt),
		ClosedAt:        int64(loan.ClosedAt),
	}
}

func toOrderRow(order *market.Order) orderRow {
	return orderRow{
		ID:              int64(order.ID),
		Creator:         order.Creator.String(),
		Tranche:         order.Tranche.String(),
		Side:            order.Side.String(),
		Amount:          formatAmount(order.Amount),
		RemainingAmount: formatAmount(order.RemainingAmount),
		PricePerUnit:    formatAmount(order.PricePerUnit),
		Status:          order.Status.String(),
		CreatedAt:       int64(order.CreatedAt),
		UpdatedAt:       int64(order.UpdatedAt),
	}
}

func formatAmount(v *big.Int) string {
	return nativecommon.FormatUnits(v)
}

func writeParquet[T any](path string, schema *T, rows []T) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	fw := writerfile.NewWriterFile(file)
	pw, err := writer.NewParquetWriter(fw, schema, 1)
	if err != nil {
		return err
	}
	pw.RowGroupSize = 128 * 1024 * 1024
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for i := range rows {
		if err := pw.Write(&rows[i]); err != nil {
			_ = pw.WriteStop()
			return fmt.Errorf("write %s: %w", filepath.Base(path), err)
		}
	}
	return pw.WriteStop()
}

const sqliteSchema = `
CREATE TABLE loans (
	id INTEGER PRIMARY KEY,
	borrower TEXT NOT NULL,
	principal TEXT NOT NULL,
	property_id TEXT NOT NULL,
	property_value TEXT NOT NULL,
	ltv_percent INTEGER NOT NULL,
	interest_rate_bps INTEGER NOT NULL,
	term_months INTEGER NOT NULL,
	interest_due TEXT NOT NULL,
	status TEXT NOT NULL,
	originated_at INTEGER NOT NULL,
	matures_at INTEGER NOT NULL,
	closed_at INTEGER NOT NULL
);
CREATE TABLE orders (
	id INTEGER PRIMARY KEY,
	creator TEXT NOT NULL,
	tranche TEXT NOT NULL,
	side TEXT NOT NULL,
	amount TEXT NOT NULL,
	remaining_amount TEXT NOT NULL,
	price_per_unit TEXT NOT NULL,
	status TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);`

func writeSQLite(path string, loans []loanRow, orders []orderRow) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.Exec(sqliteSchema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	for _, r := range loans {
		if _, err := tx.Exec(`INSERT INTO loans VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.Borrower, r.Principal, r.PropertyID, r.PropertyValue, r.LTVPercent,
			r.InterestRateBps, r.TermMonths, r.InterestDue, r.Status, r.OriginatedAt, r.MaturesAt, r.ClosedAt); err != nil {
			return fmt.Errorf("insert loan %d: %w", r.ID, err)
		}
	}
	for _, r := range orders {
		if _, err := tx.Exec(`INSERT INTO orders VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.Creator, r.Tranche, r.Side, r.Amount, r.RemainingAmount, r.PricePerUnit,
			r.Status, r.CreatedAt, r.UpdatedAt); err != nil {
			return fmt.Errorf("insert order %d: %w", r.ID, err)
		}
	}
	return tx.Commit()
}
