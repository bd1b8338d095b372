package audit

import (
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"proplend/core/events"
	"proplend/crypto"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "audit.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestAppendChainsDigests(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	lender := crypto.ModuleAddress("lender")

	first, err := store.Append(ctx, events.PoolDeposit{Depositor: lender, Tranche: "senior", Amount: big.NewInt(1_000_000)})
	require.NoError(t, err)
	second, err := store.Append(ctx, events.LoanRepaid{LoanID: 0, Borrower: lender, Principal: big.NewInt(5), Interest: big.NewInt(1), Total: big.NewInt(6)})
	require.NoError(t, err)

	require.Equal(t, uint64(1), first.Seq)
	require.Empty(t, first.PrevDigest)
	require.Equal(t, first.Digest, second.PrevDigest)
	require.NoError(t, store.Verify(ctx))

	records, err := store.List(ctx, events.TypeLoanRepaid, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, second.ID, records[0].ID)
}

func TestVerifyDetectsTampering(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	acct := crypto.ModuleAddress("lender")
	for i := 0; i < 3; i++ {
		store.Emit(events.PoolDeposit{Depositor: acct, Tranche: "senior", Amount: big.NewInt(int64(i + 1))})
	}
	require.NoError(t, store.Verify(ctx))

	require.NoError(t, store.db.Model(&Record{}).Where("seq = ?", 2).
		Update("attributes", `{"amount":"999"}`).Error)
	err := store.Verify(ctx)
	require.True(t, errors.Is(err, ErrChainBroken), "got %v", err)
}

func TestReopenResumesChain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	store, err := Open(path, nil)
	require.NoError(t, err)
	_, err = store.Append(context.Background(), events.PoolWithdrawal{Account: crypto.ModuleAddress("a"), Amount: big.NewInt(7)})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := Open(path, nil)
	require.NoError(t, err)
	defer reopened.Close()
	record, err := reopened.Append(context.Background(), events.PoolWithdrawal{Account: crypto.ModuleAddress("a"), Amount: big.NewInt(8)})
	require.NoError(t, err)
	require.Equal(t, uint64(2), record.Seq)
	require.NoError(t, reopened.Verify(context.Background()))
}
