// Package signer turns the unsigned bundles internal/txbuilder produces
// into fully-signed transactions: transparent.go handles the secp256k1
// P2PKH path, shielded.go orchestrates internal/prover plus RedJubjub
// signing for the Sapling path.
package signer

import (
	"bytes"
	"encoding/binary"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"

	"github.com/amiabix/zcash-bridge/internal/enc"
	"github.com/amiabix/zcash-bridge/internal/txbuilder"
	"github.com/amiabix/zcash-bridge/pkg/zcash"
)

// SighashAll is the only sighash type this module produces.
const SighashAll = 0x01

// SignedTransparentTx is an UnsignedTransparentTx with every input's
// scriptSig filled in, plus the reversed, display-form transaction hash.
type SignedTransparentTx struct {
	Tx         *txbuilder.UnsignedTransparentTx
	TxHash     zcash.Hash32
	RawTx      []byte
	ScriptSigs [][]byte // parallel to Tx.Inputs; a composite build merges these into the shielded bundle's transparent leg
}

// InputKey supplies the private key spending one transparent input, matched
// by position to tx.Inputs.
type InputKey struct {
	PrivateKey []byte // 32-byte secp256k1 scalar
}

// SignTransparent builds the Zcash transparent sighash for each input,
// signs it with deterministic-nonce ECDSA, and emits a P2PKH scriptSig.
//
// A pure transparent build (no shielded bundle) always has a zero value
// balance; SignTransparentComposite is the variant a shielding/deshielding
// build uses, where the transparent legs sign against the bundle's actual
// value balance.
func SignTransparent(tx *txbuilder.UnsignedTransparentTx, keys []InputKey) (*SignedTransparentTx, error) {
	return SignTransparentComposite(tx, keys, 0)
}

// SignTransparentComposite is SignTransparent with an explicit value
// balance, for the transparent leg of a shielding/deshielding build whose
// sighash must commit to the same non-zero value_balance the shielded
// bundle carries. The provider merges the two legs' wire bytes after both
// are signed.
func SignTransparentComposite(tx *txbuilder.UnsignedTransparentTx, keys []InputKey, valueBalance int64) (*SignedTransparentTx, error) {
	if len(keys) != len(tx.Inputs) {
		return nil, zcash.ErrInvalidSignature
	}

	hPrevouts := hashPrevouts(tx.Inputs)
	hSequence := hashSequence(tx.Inputs)
	hOutputs := hashOutputs(tx.Outputs)

	scriptSigs := make([][]byte, len(tx.Inputs))
	for i := range tx.Inputs {
		priv, pub := btcec.PrivKeyFromBytes(keys[i].PrivateKey)

		sighash := transparentSighash(tx, i, hPrevouts, hSequence, hOutputs, valueBalance)

		sig := ecdsa.Sign(priv, sighash[:])
		sigBytes := append(sig.Serialize(), byte(SighashAll))
		pubBytes := pub.SerializeCompressed()

		var buf bytes.Buffer
		buf.WriteByte(byte(len(sigBytes)))
		buf.Write(sigBytes)
		buf.WriteByte(byte(len(pubBytes)))
		buf.Write(pubBytes)
		scriptSigs[i] = buf.Bytes()

		zero(keys[i].PrivateKey)
	}

	raw := serializeTransparent(tx, scriptSigs, valueBalance)
	txHash := enc.DoubleSha256(raw)
	return &SignedTransparentTx{Tx: tx, TxHash: txHash.Reversed(), RawTx: raw, ScriptSigs: scriptSigs}, nil
}

// transparentSighash computes the ZIP-243-style digest for input i: the
// transaction-wide prevouts/sequence/outputs hashes (shielded hashes
// zeroed), lock time, expiry, value balance and sighash type, followed by
// input i's outpoint, scriptPubKey, value and sequence, double-SHA-256'd.
func transparentSighash(tx *txbuilder.UnsignedTransparentTx, i int, hashPrevouts, hashSequence, hashOutputs zcash.Hash32, valueBalance int64) zcash.Hash32 {
	var buf bytes.Buffer
	writeU32(&buf, tx.Version|0x80000000)
	writeU32(&buf, tx.VersionGroupID)
	buf.Write(hashPrevouts[:])
	buf.Write(hashSequence[:])
	buf.Write(hashOutputs[:])
	buf.Write(make([]byte, 32)) // hashJoinSplits
	buf.Write(make([]byte, 32)) // hashShieldedSpends
	buf.Write(make([]byte, 32)) // hashShieldedOutputs
	writeU32(&buf, tx.LockTime)
	writeU32(&buf, tx.ExpiryHeight)
	writeI64(&buf, valueBalance)
	writeU32(&buf, SighashAll)

	in := tx.Inputs[i]
	buf.Write(in.Outpoint.TxID.Reversed().Bytes())
	writeU32(&buf, in.Outpoint.Vout)
	enc.CompactSizeWrite(&buf, uint64(len(in.ScriptPubKey)))
	buf.Write(in.ScriptPubKey)
	writeI64(&buf, int64(in.Value))
	writeU32(&buf, in.Sequence)

	return enc.DoubleSha256(buf.Bytes())
}

func hashPrevouts(inputs []txbuilder.TxIn) zcash.Hash32 {
	var buf bytes.Buffer
	for _, in := range inputs {
		buf.Write(in.Outpoint.TxID.Reversed().Bytes())
		writeU32(&buf, in.Outpoint.Vout)
	}
	return enc.DoubleSha256(buf.Bytes())
}

func hashSequence(inputs []txbuilder.TxIn) zcash.Hash32 {
	var buf bytes.Buffer
	for _, in := range inputs {
		writeU32(&buf, in.Sequence)
	}
	return enc.DoubleSha256(buf.Bytes())
}

func hashOutputs(outputs []txbuilder.TxOut) zcash.Hash32 {
	var buf bytes.Buffer
	for _, out := range outputs {
		writeI64(&buf, int64(out.Value))
		enc.CompactSizeWrite(&buf, uint64(len(out.ScriptPubKey)))
		buf.Write(out.ScriptPubKey)
	}
	return enc.DoubleSha256(buf.Bytes())
}

// serializeTransparent writes the fully-transparent (no shielded bundle)
// v4 wire encoding, matching internal/serializer's layout for the
// zero-spend/zero-output case. valueBalance is 0 for a pure transparent
// build; a shielding/deshielding build discards this standalone encoding
// and the provider merges the signed scriptSigs into the composite
// serializer.ShieldedTx instead.
func serializeTransparent(tx *txbuilder.UnsignedTransparentTx, scriptSigs [][]byte, valueBalance int64) []byte {
	var buf bytes.Buffer
	writeU32(&buf, tx.Version|0x80000000)
	writeU32(&buf, tx.VersionGroupID)

	enc.CompactSizeWrite(&buf, uint64(len(tx.Inputs)))
	for i, in := range tx.Inputs {
		buf.Write(in.Outpoint.TxID.Reversed().Bytes())
		writeU32(&buf, in.Outpoint.Vout)
		enc.CompactSizeWrite(&buf, uint64(len(scriptSigs[i])))
		buf.Write(scriptSigs[i])
		writeU32(&buf, in.Sequence)
	}

	enc.CompactSizeWrite(&buf, uint64(len(tx.Outputs)))
	for _, out := range tx.Outputs {
		writeI64(&buf, int64(out.Value))
		enc.CompactSizeWrite(&buf, uint64(len(out.ScriptPubKey)))
		buf.Write(out.ScriptPubKey)
	}

	writeU32(&buf, tx.LockTime)
	writeU32(&buf, tx.ExpiryHeight)
	writeI64(&buf, valueBalance)
	buf.WriteByte(0) // n_spend
	buf.WriteByte(0) // n_out

	return buf.Bytes()
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeI64(buf *bytes.Buffer, v int64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	buf.Write(b[:])
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
