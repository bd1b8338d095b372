package main

import (
	"bytes"
	"context"
	"database/sql"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"

	"proplend/core"
	"proplend/crypto"
	nativecommon "proplend/native/common"
	"proplend/native/lending"
	"proplend/native/market"
	"proplend/native/tranche"
	"proplend/storage"
)

func runCmd(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestUnitsCommand(t *testing.T) {
	out, err := runCmd(t, "", "units", "12.5")
	require.NoError(t, err)
	require.Equal(t, "12500000\n", out)

	out, err = runCmd(t, "", "units", "--reverse", "12500000")
	require.NoError(t, err)
	require.Equal(t, "12.5\n", out)

	_, err = runCmd(t, "", "units", "1.0000001")
	require.Error(t, err)
}

func TestAddressCommand(t *testing.T) {
	addr := crypto.ModuleAddress("module/lending")

	out, err := runCmd(t, "", "address", "--hex", addr.Hex())
	require.NoError(t, err)
	require.Equal(t, addr.String(), strings.TrimSpace(out))

	out, err = runCmd(t, "", "address", addr.String())
	require.NoError(t, err)
	require.Equal(t, addr.Hex(), strings.TrimSpace(out))

	out, err = runCmd(t, "", "address", "--module", "module/lending")
	require.NoError(t, err)
	require.Equal(t, addr.String(), strings.TrimSpace(out))

	_, err = runCmd(t, "", "address")
	require.Error(t, err)
}

func TestTokenCommandSignsHS256(t *testing.T) {
	secret := "0123456789abcdef0123456789abcdef"
	sub := crypto.ModuleAddress("test/alice").String()

	out, err := runCmd(t, secret+"\n", "token", "--sub", sub, "--secret-stdin", "--issuer", "proplend", "--audience", "ledgerd")
	require.NoError(t, err)

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(strings.TrimSpace(out), claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer("proplend"), jwt.WithAudience("ledgerd"))
	require.NoError(t, err)
	require.True(t, parsed.Valid)
	require.Equal(t, sub, claims.Subject)
}

func TestTokenCommandRejectsBadInput(t *testing.T) {
	sub := crypto.ModuleAddress("test/alice").String()

	_, err := runCmd(t, "short\n", "token", "--sub", sub, "--secret-stdin")
	require.ErrorContains(t, err, "at least")

	_, err = runCmd(t, "0123456789abcdef0123\n", "token", "--sub", "not-an-address", "--secret-stdin")
	require.Error(t, err)

	_, err = runCmd(t, "", "token", "--sub", sub)
	require.ErrorContains(t, err, "exactly one")
}

func TestSignTokenExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	token, err := signToken([]byte("0123456789abcdef"), tokenOptions{
		subject: crypto.ModuleAddress("test/alice").String(),
		ttl:     time.Minute,
	}, now)
	require.NoError(t, err)

	claims := &jwt.RegisteredClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(token, claims)
	require.NoError(t, err)
	require.Equal(t, now.Add(time.Minute).Unix(), claims.ExpiresAt.Unix())
}

func units(whole int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(whole), nativecommon.Unit())
}

func seededLedger(t *testing.T) *core.Ledger {
	t.Helper()
	ctx := context.Background()
	admin := crypto.ModuleAddress("test/admin")
	operator := crypto.ModuleAddress("test/operator")
	senior := crypto.ModuleAddress("test/senior")
	junior := crypto.ModuleAddress("test/junior")
	borrower := crypto.ModuleAddress("test/borrower")

	ledger, err := core.NewLedger(storage.NewMemDB(), core.DefaultParams())
	require.NoError(t, err)
	require.NoError(t, ledger.Bootstrap(ctx, core.BootstrapConfig{Admin: admin, Operators: []crypto.Address{operator}}))
	require.NoError(t, ledger.Issue(ctx, admin, senior, units(80_000)))
	require.NoError(t, ledger.Issue(ctx, admin, junior, units(20_000)))
	require.NoError(t, ledger.Deposit(ctx, senior, units(80_000), true))
	require.NoError(t, ledger.Deposit(ctx, junior, units(20_000), false))

	_, err = ledger.ApplyForLoan(ctx, operator, lending.LoanRequest{
		Borrower:      borrower,
		Principal:     units(60_000),
		PropertyValue: units(100_000),
		TermMonths:    12,
	})
	require.NoError(t, err)
	_, err = ledger.CreateOrder(ctx, senior, tranche.Senior, market.SideSell, units(10), nativecommon.Unit())
	require.NoError(t, err)
	return ledger
}

func TestExportParquet(t *testing.T) {
	ledger := seededLedger(t)
	dir := t.TempDir()

	files, err := exportLedger(ledger, dir, formatParquet)
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, "loans.parquet"), filepath.Join(dir, "orders.parquet")}, files)

	fr, err := local.NewLocalFileReader(files[0])
	require.NoError(t, err)
	defer fr.Close()
	pr, err := reader.NewParquetReader(fr, new(loanRow), 1)
	require.NoError(t, err)
	defer pr.ReadStop()
	require.EqualValues(t, 1, pr.GetNumRows())

	rows := make([]loanRow, 1)
	require.NoError(t, pr.Read(&rows))
	require.Equal(t, "60000", rows[0].Principal)
	require.EqualValues(t, 60, rows[0].LTVPercent)
	require.EqualValues(t, 2200, rows[0].InterestRateBps)
	require.Equal(t, "13200", rows[0].InterestDue)
	require.Equal(t, crypto.ModuleAddress("test/borrower").String(), rows[0].Borrower)

	info, err := os.Stat(files[1])
	require.NoError(t, err)
	require.NotZero(t, info.Size())
}

func TestExportSQLite(t *testing.T) {
	ledger := seededLedger(t)
	dir := t.TempDir()

	files, err := exportLedger(ledger, dir, formatSQLite)
	require.NoError(t, err)
	require.Len(t, files, 1)

	db, err := sql.Open("sqlite", files[0])
	require.NoError(t, err)
	defer db.Close()

	var loans, orders int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM loans`).Scan(&loans))
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM orders`).Scan(&orders))
	require.Equal(t, 1, loans)
	require.Equal(t, 1, orders)

	var side, amount string
	require.NoError(t, db.QueryRow(`SELECT side, amount FROM orders WHERE id = 0`).Scan(&side, &amount))
	require.Equal(t, market.SideSell.String(), side)
	require.Equal(t, "10", amount)

	// Re-exporting replaces the file.
	_, err = exportLedger(ledger, dir, formatSQLite)
	require.NoError(t, err)
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	_, err := exportLedger(seededLedger(t), t.TempDir(), "csv")
	require.ErrorContains(t, err, "unsupported format")
}

func TestAdminCommandPrintsKeystoreAddress(t *testing.T) {
	t.Setenv("PROPLEND_KEYSTORE_PASSPHRASE", "test-passphrase")
	path := filepath.Join(t.TempDir(), "ledger.toml")

	first, err := runCmd(t, "", "admin", "--config", path)
	require.NoError(t, err)
	_, err = crypto.DecodeAddress(strings.TrimSpace(first))
	require.NoError(t, err)

	second, err := runCmd(t, "", "admin", "--config", path)
	require.NoError(t, err)
	require.Equal(t, first, second)
}
