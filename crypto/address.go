package crypto

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// AddressPrefix is the human-readable part of every encoded ledger address.
const AddressPrefix = "plend"

// AddressLength is the size of an account or module address in bytes.
const AddressLength = 20

var errInvalidAddress = errors.New("crypto: invalid address")

// Address identifies an account, a module vault or a token on the ledger.
type Address [AddressLength]byte

// BytesToAddress copies b into an Address. The input must be exactly
// AddressLength bytes long.
func BytesToAddress(b []byte) (Address, error) {
	var addr Address
	if len(b) != AddressLength {
		return addr, fmt.Errorf("%w: expected %d bytes, got %d", errInvalidAddress, AddressLength, len(b))
	}
	copy(addr[:], b)
	return addr, nil
}

// ModuleAddress derives the deterministic vault address owned by a ledger
// module, for example "module/lending".
func ModuleAddress(name string) Address {
	var addr Address
	digest := ethcrypto.Keccak256([]byte(name))
	copy(addr[:], digest[len(digest)-AddressLength:])
	return addr
}

func (a Address) Bytes() []byte {
	out := make([]byte, AddressLength)
	copy(out, a[:])
	return out
}

func (a Address) IsZero() bool {
	return a == Address{}
}

func (a Address) Equal(other Address) bool {
	return bytes.Equal(a[:], other[:])
}

// Hex returns the 0x-prefixed hexadecimal form.
func (a Address) Hex() string {
	return "0x" + hex.EncodeToString(a[:])
}

func (a Address) String() string {
	conv, err := bech32.ConvertBits(a[:], 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(AddressPrefix, conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	decoded, err := DecodeAddress(string(text))
	if err != nil {
		return err
	}
	*a = decoded
	return nil
}

// DecodeAddress parses either the bech32 form (plend1...) or a 0x-prefixed
// hexadecimal address.
func DecodeAddress(addrStr string) (Address, error) {
	trimmed := strings.TrimSpace(addrStr)
	if trimmed == "" {
		return Address{}, fmt.Errorf("%w: empty", errInvalidAddress)
	}
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		raw, err := hex.DecodeString(trimmed[2:])
		if err != nil {
			return Address{}, fmt.Errorf("%w: %v", errInvalidAddress, err)
		}
		return BytesToAddress(raw)
	}
	prefix, decoded, err := bech32.Decode(trimmed)
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	if prefix != AddressPrefix {
		return Address{}, fmt.Errorf("%w: unexpected prefix %q", errInvalidAddress, prefix)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	return BytesToAddress(conv)
}

// MustDecodeAddress panics when addrStr is not a valid address. Intended for
// constants and tests.
func MustDecodeAddress(addrStr string) Address {
	addr, err := DecodeAddress(addrStr)
	if err != nil {
		panic(err)
	}
	return addr
}
