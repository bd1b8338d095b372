package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"errors"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// PrivateKey is a secp256k1 signing key controlling a ledger account.
type PrivateKey struct {
	*ecdsa.PrivateKey
}

func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := ecdsa.GenerateKey(ethcrypto.S256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	key, err := ethcrypto.ToECDSA(b)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

func (k *PrivateKey) Bytes() []byte {
	return ethcrypto.FromECDSA(k.PrivateKey)
}

// Address derives the account address owned by the key.
func (k *PrivateKey) Address() (Address, error) {
	if k == nil || k.PrivateKey == nil {
		return Address{}, errors.New("crypto: nil private key")
	}
	return Address(ethcrypto.PubkeyToAddress(k.PrivateKey.PublicKey)), nil
}
