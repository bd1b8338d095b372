package events

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"proplend/crypto"
)

func formatAmount(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.String()
}

func formatAddress(addr crypto.Address) string {
	if addr.IsZero() {
		return ""
	}
	return addr.String()
}

func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func putAddress(attrs map[string]string, key string, addr crypto.Address) {
	if encoded := formatAddress(addr); encoded != "" {
		attrs[key] = encoded
	}
}

func formatHash(h [32]byte) string {
	return "0x" + hex.EncodeToString(h[:])
}
