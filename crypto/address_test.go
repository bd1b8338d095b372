package crypto

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestAddressRoundTrip(t *testing.T) {
	addr := ModuleAddress("module/lending")
	encoded := addr.String()
	if !strings.HasPrefix(encoded, AddressPrefix+"1") {
		t.Fatalf("unexpected encoding %q", encoded)
	}
	decoded, err := DecodeAddress(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded != addr {
		t.Fatalf("round trip mismatch: %s != %s", decoded, addr)
	}
	fromHex, err := DecodeAddress(addr.Hex())
	if err != nil {
		t.Fatalf("decode hex: %v", err)
	}
	if fromHex != addr {
		t.Fatalf("hex round trip mismatch")
	}
}

func TestDecodeAddressRejectsForeignPrefix(t *testing.T) {
	if _, err := DecodeAddress("cosmos1qqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqq"); err == nil {
		t.Fatalf("expected error for foreign prefix")
	}
	if _, err := DecodeAddress("0x1234"); err == nil {
		t.Fatalf("expected error for short hex address")
	}
}

func TestModuleAddressDeterministic(t *testing.T) {
	if ModuleAddress("module/market") != ModuleAddress("module/market") {
		t.Fatalf("module address should be deterministic")
	}
	if ModuleAddress("module/market") == ModuleAddress("module/lending") {
		t.Fatalf("distinct modules should not collide")
	}
}

func TestKeystoreRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	path := filepath.Join(t.TempDir(), "keys", "operator.json")
	if err := SaveToKeystore(path, key, "passphrase"); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := LoadFromKeystore(path, "passphrase")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want, _ := key.Address()
	got, _ := loaded.Address()
	if want != got {
		t.Fatalf("address mismatch after reload")
	}
}
