package common

import (
	"errors"
	"math/big"
	"testing"
)

func TestParseUnits(t *testing.T) {
	cases := map[string]int64{
		"12.5":     12_500_000,
		"0.000001": 1,
		" 100 ":    100_000_000,
		"0":        0,
	}
	for in, want := range cases {
		got, err := ParseUnits(in)
		if err != nil {
			t.Fatalf("parse %q: %v", in, err)
		}
		if got.Cmp(big.NewInt(want)) != 0 {
			t.Fatalf("parse %q = %s, want %d", in, got, want)
		}
	}
	for _, in := range []string{"", "abc", "-1", "0.0000001"} {
		if _, err := ParseUnits(in); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("parse %q: expected invalid amount, got %v", in, err)
		}
	}
}

func TestFormatUnits(t *testing.T) {
	if got := FormatUnits(big.NewInt(12_500_000)); got != "12.5" {
		t.Fatalf("format = %s", got)
	}
	if got := FormatUnits(big.NewInt(1)); got != "0.000001" {
		t.Fatalf("format = %s", got)
	}
	if got := FormatUnits(nil); got != "0" {
		t.Fatalf("format nil = %s", got)
	}
}
