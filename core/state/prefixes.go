package state

import (
	"encoding/binary"

	"proplend/crypto"
)

var (
	rolePrefix             = []byte("access/role/")
	currencyBalancePrefix  = []byte("bank/balance/")
	currencySupplyKey      = []byte("bank/supply")
	trancheTokenPrefix     = []byte("tranche/token/")
	trancheBalancePrefix   = []byte("tranche/balance/")
	trancheAllowancePrefix = []byte("tranche/allowance/")
	lendingPoolKey         = []byte("lending/pool")
	lendingLoanPrefix      = []byte("lending/loan/")
	waterfallKey           = []byte("waterfall/distributor")
	marketKey              = []byte("market/config")
	marketOrderPrefix      = []byte("market/order/")
	marketUserOrderPrefix  = []byte("market/user-orders/")
)

func joinKey(prefix []byte, parts ...[]byte) []byte {
	size := len(prefix)
	for _, p := range parts {
		size += len(p) + 1
	}
	buf := make([]byte, 0, size)
	buf = append(buf, prefix...)
	for i, p := range parts {
		if i > 0 {
			buf = append(buf, '/')
		}
		buf = append(buf, p...)
	}
	return buf
}

func idBytes(id uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], id)
	return buf[:]
}

func addrBytes(addr crypto.Address) []byte {
	return addr.Bytes()
}
