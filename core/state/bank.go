package state

import (
	"fmt"
	"math/big"

	"proplend/crypto"
)

func currencyBalanceKey(addr crypto.Address) []byte {
	return joinKey(currencyBalancePrefix, addrBytes(addr))
}

func (m *Manager) loadAmount(key []byte) (*big.Int, error) {
	amount := new(big.Int)
	ok, err := m.KVGet(key, amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return amount, nil
}

func (m *Manager) storeAmount(key []byte, amount *big.Int) error {
	if amount == nil {
		amount = big.NewInt(0)
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("state: negative amount not allowed")
	}
	return m.KVPut(key, amount)
}

// CurrencyBalance returns the reference currency balance held by addr.
func (m *Manager) CurrencyBalance(addr crypto.Address) (*big.Int, error) {
	return m.loadAmount(currencyBalanceKey(addr))
}

func (m *Manager) SetCurrencyBalance(addr crypto.Address, amount *big.Int) error {
	return m.storeAmount(currencyBalanceKey(addr), amount)
}

func (m *Manager) CurrencySupply() (*big.Int, error) {
	return m.loadAmount(currencySupplyKey)
}

func (m *Manager) SetCurrencySupply(amount *big.Int) error {
	return m.storeAmount(currencySupplyKey, amount)
}
