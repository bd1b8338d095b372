package state

import (
	"math/big"

	"proplend/crypto"
	"proplend/native/tranche"
)

type storedToken struct {
	Class       uint8
	Address     [20]byte
	Name        string
	Symbol      string
	Decimals    uint8
	TotalSupply *big.Int
}

func trancheTokenKey(class tranche.Class) []byte {
	return joinKey(trancheTokenPrefix, []byte(class.String()))
}

func trancheBalanceKey(class tranche.Class, addr crypto.Address) []byte {
	return joinKey(trancheBalancePrefix, []byte(class.String()), addrBytes(addr))
}

func trancheAllowanceKey(class tranche.Class, owner, spender crypto.Address) []byte {
	return joinKey(trancheAllowancePrefix, []byte(class.String()), addrBytes(owner), addrBytes(spender))
}

// TrancheToken loads the metadata and supply of class.
func (m *Manager) TrancheToken(class tranche.Class) (*tranche.Token, bool, error) {
	var stored storedToken
	ok, err := m.KVGet(trancheTokenKey(class), &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	token := &tranche.Token{
		Class:       tranche.Class(stored.Class),
		Address:     crypto.Address(stored.Address),
		Name:        stored.Name,
		Symbol:      stored.Symbol,
		Decimals:    stored.Decimals,
		TotalSupply: stored.TotalSupply,
	}
	return token.Clone(), true, nil
}

func (m *Manager) PutTrancheToken(token *tranche.Token) error {
	normalized := token.Clone()
	return m.KVPut(trancheTokenKey(token.Class), &storedToken{
		Class:       uint8(normalized.Class),
		Address:     normalized.Address,
		Name:        normalized.Name,
		Symbol:      normalized.Symbol,
		Decimals:    normalized.Decimals,
		TotalSupply: normalized.TotalSupply,
	})
}

func (m *Manager) TrancheBalance(class tranche.Class, addr crypto.Address) (*big.Int, error) {
	return m.loadAmount(trancheBalanceKey(class, addr))
}

func (m *Manager) SetTrancheBalance(class tranche.Class, addr crypto.Address, amount *big.Int) error {
	return m.storeAmount(trancheBalanceKey(class, addr), amount)
}

func (m *Manager) TrancheAllowance(class tranche.Class, owner, spender crypto.Address) (*big.Int, error) {
	return m.loadAmount(trancheAllowanceKey(class, owner, spender))
}

func (m *Manager) SetTrancheAllowance(class tranche.Class, owner, spender crypto.Address, amount *big.Int) error {
	return m.storeAmount(trancheAllowanceKey(class, owner, spender), amount)
}
