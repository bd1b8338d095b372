package tranche

import (
	"fmt"
	"math/big"
	"strings"

	"proplend/crypto"
	nativecommon "proplend/native/common"
)

// Class identifies one of the two risk tranches.
type Class uint8

const (
	Senior Class = iota + 1
	Junior
)

// ClassFor maps the boolean tranche selector used by deposit and withdraw.
func ClassFor(isSenior bool) Class {
	if isSenior {
		return Senior
	}
	return Junior
}

// ParseClass accepts "senior"/"junior" in any case.
func ParseClass(s string) (Class, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "senior":
		return Senior, nil
	case "junior":
		return Junior, nil
	default:
		return 0, fmt.Errorf("tranche: unknown class %q", s)
	}
}

func (c Class) Valid() bool { return c == Senior || c == Junior }

func (c Class) IsSenior() bool { return c == Senior }

func (c Class) String() string {
	switch c {
	case Senior:
		return "senior"
	case Junior:
		return "junior"
	default:
		return "unknown"
	}
}

// TrancheType returns the display name reported by token metadata.
func (c Class) TrancheType() string {
	switch c {
	case Senior:
		return "Senior"
	case Junior:
		return "Junior"
	default:
		return ""
	}
}

// Scope is the role scope guarding mint and burn for the class.
func (c Class) Scope() string {
	if c == Senior {
		return nativecommon.ScopeTrancheSenior
	}
	return nativecommon.ScopeTrancheJunior
}

// Address is the deterministic identity of the class's share token.
func (c Class) Address() crypto.Address {
	return crypto.ModuleAddress("token/" + c.String())
}

// Token holds the metadata and supply of one tranche share token.
type Token struct {
	Class       Class
	Address     crypto.Address
	Name        string
	Symbol      string
	Decimals    uint8
	TotalSupply *big.Int
}

// DefaultToken returns the canonical metadata for class with zero supply.
func DefaultToken(class Class) *Token {
	token := &Token{
		Class:       class,
		Address:     class.Address(),
		Decimals:    nativecommon.Decimals,
		TotalSupply: big.NewInt(0),
	}
	switch class {
	case Senior:
		token.Name = "Senior SAFE Token"
		token.Symbol = "sSAFE"
	case Junior:
		token.Name = "Junior YIELD Token"
		token.Symbol = "jYIELD"
	}
	return token
}

func (t *Token) TrancheType() string {
	if t == nil {
		return ""
	}
	return t.Class.TrancheType()
}

func (t *Token) Clone() *Token {
	if t == nil {
		return nil
	}
	clone := *t
	clone.TotalSupply = nativecommon.Normalize(t.TotalSupply)
	return &clone
}
