package serializer

import (
	"bytes"
	"testing"

	"github.com/amiabix/zcash-bridge/pkg/zcash"
)

func fixedBytes(n int, b byte) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}

func sampleTransparentTx() *ShieldedTx {
	return &ShieldedTx{
		Version:        4,
		VersionGroupID: VersionGroupID,
		Inputs: []TxIn{{
			PrevTxID:  zcash.Hash32FromBytes(fixedBytes(32, 0xAA)),
			Vout:      0,
			ScriptSig: fixedBytes(107, 0x01),
			Sequence:  0xFFFFFFFF,
		}},
		TransparentOut: []TxOut{
			{Value: 100000, ScriptPubKey: fixedBytes(25, 0x76)},
			{Value: 90000, ScriptPubKey: fixedBytes(25, 0x77)},
		},
		LockTime:     0,
		ExpiryHeight: 120,
		ValueBalance: 0,
	}
}

func sampleShieldedTx() *ShieldedTx {
	tx := sampleTransparentTx()
	tx.Spends = []SpendDesc{{
		Cv:           [32]byte(fixedBytes(32, 0x01)),
		Anchor:       zcash.Hash32FromBytes(fixedBytes(32, 0x02)),
		Nullifier:    [32]byte(fixedBytes(32, 0x03)),
		Rk:           [32]byte(fixedBytes(32, 0x04)),
		Proof:        [ProofLen]byte(fixedBytes(ProofLen, 0x05)),
		SpendAuthSig: [SigLen]byte(fixedBytes(SigLen, 0x06)),
	}}
	tx.Outputs = []OutputDesc{{
		Cv:            [32]byte(fixedBytes(32, 0x07)),
		Cmu:           [32]byte(fixedBytes(32, 0x08)),
		Epk:           [32]byte(fixedBytes(32, 0x09)),
		EncCiphertext: fixedBytes(EncCiphertextLen, 0x0A),
		OutCiphertext: fixedBytes(OutCiphertextLen, 0x0B),
		Proof:         [ProofLen]byte(fixedBytes(ProofLen, 0x0C)),
	}}
	tx.BindingSig = [SigLen]byte(fixedBytes(SigLen, 0x0D))
	tx.ValueBalance = 5000
	return tx
}

func TestRoundTripTransparentOnly(t *testing.T) {
	tx := sampleTransparentTx()
	raw, err := Serialize(tx)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}

	got, err := Deserialize(raw)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}

	raw2, err := Serialize(got)
	if err != nil {
		t.Fatalf("re-serialize: %v", err)
	}
	if !bytes.Equal(raw, raw2) {
		t.Fatalf("round trip not byte-identical:\n  first:  %x\n  second: %x", raw, raw2)
	}
}

func TestRoundTripShieldedBundle(t *testing.T) {
	tx := sampleShieldedTx()
	raw, err := Serialize(tx)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	got, err := Deserialize(raw)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}

	if got.ValueBalance != tx.ValueBalance {
		t.Fatalf("value_balance mismatch: got %d want %d", got.ValueBalance, tx.ValueBalance)
	}
	if len(got.Spends) != 1 || len(got.Outputs) != 1 {
		t.Fatalf("expected 1 spend + 1 output, got %d/%d", len(got.Spends), len(got.Outputs))
	}
	if got.Spends[0].Nullifier != tx.Spends[0].Nullifier {
		t.Fatal("nullifier mismatch after round trip")
	}
	if got.BindingSig != tx.BindingSig {
		t.Fatal("binding sig mismatch after round trip")
	}

	raw2, err := Serialize(got)
	if err != nil {
		t.Fatalf("re-serialize: %v", err)
	}
	if !bytes.Equal(raw, raw2) {
		t.Fatal("shielded round trip not byte-identical")
	}
}

func TestPrevTxidReversedOnWire(t *testing.T) {
	tx := sampleTransparentTx()
	raw, err := Serialize(tx)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}

	// version(4) + version_group_id(4) + n_tin compact-size(1) = 9 bytes
	// before the first prev-txid.
	wireTxID := raw[9 : 9+32]
	want := tx.Inputs[0].PrevTxID.Reversed().Bytes()
	if !bytes.Equal(wireTxID, want) {
		t.Fatalf("expected prev-txid reversed on wire, got %x want %x", wireTxID, want)
	}
}

func TestDeserializeTruncatedInputFails(t *testing.T) {
	tx := sampleTransparentTx()
	raw, err := Serialize(tx)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	if _, err := Deserialize(raw[:len(raw)-5]); err == nil {
		t.Fatal("expected an error deserializing truncated input")
	}
}

func TestSerializeRejectsWrongCiphertextLengths(t *testing.T) {
	tx := sampleShieldedTx()
	tx.Outputs[0].EncCiphertext = fixedBytes(10, 0x00)
	if _, err := Serialize(tx); err == nil {
		t.Fatal("expected ErrSerializationError for a short enc_ciphertext")
	}
}
