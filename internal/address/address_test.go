package address

import (
	"math/big"
	"testing"

	"github.com/amiabix/zcash-bridge/pkg/zcash"
)

func TestEncodeTransparentRoundTrip(t *testing.T) {
	hash := make([]byte, 20)
	for i := range hash {
		hash[i] = byte(i + 1)
	}

	addr, err := EncodeTransparent(zcash.Testnet, zcash.KindTransparentP2PKH, hash)
	if err != nil {
		t.Fatalf("EncodeTransparent: %v", err)
	}

	decoded, err := Validate(addr, zcash.Testnet)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if decoded.Kind != zcash.KindTransparentP2PKH {
		t.Errorf("expected p2pkh, got %v", decoded.Kind)
	}
	if string(decoded.Hash160) != string(hash) {
		t.Error("hash160 mismatch after round trip")
	}
}

func TestValidateWrongNetwork(t *testing.T) {
	hash := make([]byte, 20)
	addr, _ := EncodeTransparent(zcash.Mainnet, zcash.KindTransparentP2PKH, hash)

	if _, err := Validate(addr, zcash.Testnet); err == nil {
		t.Error("mainnet address should fail testnet validation")
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	if _, err := Validate("not-a-real-address", zcash.Mainnet); err == nil {
		t.Error("garbage input should fail validation")
	}
}

func TestEncodeSaplingRoundTrip(t *testing.T) {
	ivk := big.NewInt(123456789)
	addr, err := EncodeSapling(zcash.Testnet, ivk)
	if err != nil {
		t.Fatalf("EncodeSapling: %v", err)
	}

	decoded, err := Validate(addr, zcash.Testnet)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if decoded.Kind != zcash.KindSapling {
		t.Errorf("expected sapling, got %v", decoded.Kind)
	}
	if len(decoded.Diversifier) != 11 || len(decoded.Pkd) != 32 {
		t.Errorf("unexpected payload shape: d=%d pkd=%d", len(decoded.Diversifier), len(decoded.Pkd))
	}
}
