package lending

import (
	"encoding/hex"
	"fmt"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// PropertyIDFromLabel derives a property identifier from a free-form label
// such as a title reference.
func PropertyIDFromLabel(label string) [32]byte {
	var id [32]byte
	copy(id[:], ethcrypto.Keccak256([]byte(strings.TrimSpace(label))))
	return id
}

// ParsePropertyID decodes a 32-byte hex identifier with optional 0x prefix.
func ParsePropertyID(s string) ([32]byte, error) {
	var id [32]byte
	trimmed := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return id, fmt.Errorf("lending: decode property id: %w", err)
	}
	if len(raw) != len(id) {
		return id, fmt.Errorf("lending: property id must be 32 bytes, got %d", len(raw))
	}
	copy(id[:], raw)
	return id, nil
}
