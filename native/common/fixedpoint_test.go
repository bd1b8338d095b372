package common

import (
	"errors"
	"math/big"
	"testing"
)

func TestMulDivFloors(t *testing.T) {
	got, err := MulDiv(big.NewInt(800_000_000_000), big.NewInt(800), big.NewInt(120_000))
	if err != nil {
		t.Fatalf("muldiv: %v", err)
	}
	if got.Cmp(big.NewInt(5_333_333_333)) != 0 {
		t.Fatalf("unexpected result %s", got)
	}
}

func TestMulDivRejectsZeroDivisor(t *testing.T) {
	if _, err := MulDiv(big.NewInt(1), big.NewInt(1), big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
}

func TestMulDivOverflow(t *testing.T) {
	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	if _, err := MulDiv(max, big.NewInt(2), big.NewInt(1)); !errors.Is(err, ErrAmountOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
	if _, err := MulDiv(new(big.Int).Lsh(big.NewInt(1), 300), big.NewInt(1), big.NewInt(1)); !errors.Is(err, ErrAmountOverflow) {
		t.Fatalf("expected overflow for oversized input, got %v", err)
	}
	// The intermediate product may exceed 256 bits as long as the quotient fits.
	got, err := MulDiv(max, big.NewInt(4), big.NewInt(8))
	if err != nil {
		t.Fatalf("expected wide intermediate to succeed: %v", err)
	}
	if got.Cmp(new(big.Int).Rsh(max, 1)) != 0 {
		t.Fatalf("unexpected wide result %s", got)
	}
}

func TestApplyBps(t *testing.T) {
	cases := []struct {
		amount int64
		bps    uint64
		want   int64
	}{
		{10_000_000_000, 30, 30_000_000},
		{40_000, 200, 800},
		{0, 30, 0},
		{333, 30, 0},
	}
	for _, tc := range cases {
		got, err := ApplyBps(big.NewInt(tc.amount), tc.bps)
		if err != nil {
			t.Fatalf("apply bps: %v", err)
		}
		if got.Int64() != tc.want {
			t.Fatalf("ApplyBps(%d, %d) = %s, want %d", tc.amount, tc.bps, got, tc.want)
		}
	}
}

func TestSubRejectsUnderflow(t *testing.T) {
	if _, err := Sub(big.NewInt(5), big.NewInt(6)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	got, err := Sub(big.NewInt(6), nil)
	if err != nil || got.Int64() != 6 {
		t.Fatalf("unexpected sub result %v %v", got, err)
	}
}

func TestKindName(t *testing.T) {
	wrapped := NewError(ErrExceedsMaxLTV, "lending engine: ltv above maximum")
	if !errors.Is(wrapped, ErrExceedsMaxLTV) {
		t.Fatalf("expected kind to match")
	}
	if KindName(wrapped) != "exceeds_max_ltv" {
		t.Fatalf("unexpected kind name %s", KindName(wrapped))
	}
	if KindName(errors.New("boom")) != "internal" {
		t.Fatalf("expected internal for unclassified errors")
	}
}

func TestMulDivUpRoundsRemainderUp(t *testing.T) {
	cases := []struct {
		x, y, d int64
		want    int64
	}{
		{x: 10, y: 333_333, d: 1_000_000, want: 4},
		{x: 1, y: 1, d: 1_000_000, want: 1},
		{x: 3, y: 1_000_000, d: 1_000_000, want: 3},
		{x: 0, y: 7, d: 3, want: 0},
	}
	for _, tc := range cases {
		got, err := MulDivUp(big.NewInt(tc.x), big.NewInt(tc.y), big.NewInt(tc.d))
		if err != nil {
			t.Fatalf("MulDivUp(%d,%d,%d): %v", tc.x, tc.y, tc.d, err)
		}
		if got.Int64() != tc.want {
			t.Fatalf("MulDivUp(%d,%d,%d) = %s, want %d", tc.x, tc.y, tc.d, got, tc.want)
		}
	}
	if _, err := MulDivUp(big.NewInt(1), big.NewInt(1), big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected zero divisor rejection, got %v", err)
	}
}
