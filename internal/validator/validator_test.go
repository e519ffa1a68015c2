package validator

import (
	"errors"
	"testing"

	"github.com/amiabix/zcash-bridge/internal/serializer"
	"github.com/amiabix/zcash-bridge/pkg/zcash"
)

func baseTx() *serializer.ShieldedTx {
	return &serializer.ShieldedTx{
		Version:        4,
		VersionGroupID: serializer.VersionGroupID,
		Inputs: []serializer.TxIn{{
			PrevTxID: zcash.Hash32{0xAA},
			ScriptSig: []byte{0x01},
		}},
		TransparentOut: []serializer.TxOut{
			{Value: 99000, ScriptPubKey: []byte{0x76, 0xA9}},
		},
		ExpiryHeight: 120,
	}
}

func TestValidateAcceptsWellFormedTransparentTx(t *testing.T) {
	tx := baseTx()
	err := Validate(tx, Params{Tip: 100, InputValues: []zcash.Zatoshi{100000}, EstimatedSize: 300})
	if err != nil {
		t.Fatalf("expected valid tx, got %v", err)
	}
}

func TestValidateExpiryEqualsTipIsAccepted(t *testing.T) {
	tx := baseTx()
	tx.ExpiryHeight = 100
	err := Validate(tx, Params{Tip: 100, InputValues: []zcash.Zatoshi{100000}, EstimatedSize: 300})
	if err != nil {
		t.Fatalf("expiry == tip should be accepted, got %v", err)
	}
}

func TestValidateRejectsExpiryBeforeTip(t *testing.T) {
	tx := baseTx()
	tx.ExpiryHeight = 50
	err := Validate(tx, Params{Tip: 100, InputValues: []zcash.Zatoshi{100000}, EstimatedSize: 300})
	if !errors.Is(err, zcash.ErrValidationFailed) {
		t.Fatalf("expected ErrValidationFailed for expiry < tip, got %v", err)
	}
}

func TestValidateRejectsInsufficientFee(t *testing.T) {
	tx := baseTx()
	tx.TransparentOut[0].Value = 99999 // leaves less than MinFee against a 100000 input
	err := Validate(tx, Params{Tip: 100, InputValues: []zcash.Zatoshi{100000}, EstimatedSize: 300})
	if !errors.Is(err, zcash.ErrValidationFailed) {
		t.Fatalf("expected ErrValidationFailed for fee below MinFee, got %v", err)
	}
}

func TestValidateRejectsZeroOutput(t *testing.T) {
	tx := baseTx()
	tx.TransparentOut[0].Value = 0
	err := Validate(tx, Params{Tip: 100, InputValues: []zcash.Zatoshi{100000}, EstimatedSize: 300})
	if !errors.Is(err, zcash.ErrValidationFailed) {
		t.Fatalf("expected ErrValidationFailed for a zero-value output, got %v", err)
	}
}

func TestValidateRejectsOversizedTransaction(t *testing.T) {
	tx := baseTx()
	err := Validate(tx, Params{Tip: 100, InputValues: []zcash.Zatoshi{100000}, EstimatedSize: serializer.MaxTxSize + 1})
	if !errors.Is(err, zcash.ErrValidationFailed) {
		t.Fatalf("expected ErrValidationFailed for an oversized tx, got %v", err)
	}
}

func TestValidateRequiresBindingSigWhenShieldedPresent(t *testing.T) {
	tx := baseTx()
	tx.Inputs = nil
	tx.TransparentOut = nil
	tx.Spends = []serializer.SpendDesc{{Nullifier: [32]byte{0x01}}}
	tx.Outputs = []serializer.OutputDesc{{EncCiphertext: make([]byte, 580)}}

	err := Validate(tx, Params{Tip: 100, EstimatedSize: 2000})
	if !errors.Is(err, zcash.ErrValidationFailed) {
		t.Fatalf("expected ErrValidationFailed for a missing binding sig, got %v", err)
	}
}

func TestValidateRejectsAllZeroNullifier(t *testing.T) {
	tx := baseTx()
	tx.Inputs = nil
	tx.TransparentOut = nil
	tx.Spends = []serializer.SpendDesc{{Nullifier: [32]byte{}}}
	tx.BindingSig = [64]byte{0x01}

	err := Validate(tx, Params{Tip: 100, EstimatedSize: 2000})
	if !errors.Is(err, zcash.ErrValidationFailed) {
		t.Fatalf("expected ErrValidationFailed for an all-zero nullifier, got %v", err)
	}
}
