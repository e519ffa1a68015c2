package signer

import (
	"context"
	"encoding/binary"
	"math/big"

	"github.com/amiabix/zcash-bridge/internal/enc"
	"github.com/amiabix/zcash-bridge/internal/jubjub"
	"github.com/amiabix/zcash-bridge/internal/note"
	"github.com/amiabix/zcash-bridge/internal/prover"
	"github.com/amiabix/zcash-bridge/internal/serializer"
	"github.com/amiabix/zcash-bridge/internal/txbuilder"
	"github.com/amiabix/zcash-bridge/pkg/zcash"
)

// SignedShieldedBundle is the output of SignShielded: every spend/output
// fully proved and signed, the binding signature, and the bundle's
// serialized bytes plus reversed tx hash.
type SignedShieldedBundle struct {
	Bundle *serializer.ShieldedTx
	TxHash zcash.Hash32
	RawTx  []byte
}

// SignShielded fills every spend/output proof via the prover façade,
// computes per-spend sighashes, produces spend-auth and binding RedJubjub
// signatures, then serializes and hashes the result.
//
// This covers only the shielded bundle. A shielding/deshielding build's
// transparent leg is signed separately via SignTransparent, and the
// provider merges the two legs' wire bytes into one composite transaction
// before broadcast, so the two signers never share key material.
func SignShielded(
	ctx context.Context,
	facade *prover.Facade,
	bundle *txbuilder.UnsignedShieldedBundle,
	lockTime, expiryHeight uint32,
) (*SignedShieldedBundle, error) {
	spends := make([]serializer.SpendDesc, len(bundle.Spends))
	for i, s := range bundle.Spends {
		spendProof, err := facade.ProveSpend(ctx, prover.SpendInputs{
			Value:     uint64(s.Note.Value),
			Rcv:       s.Rcv,
			Ask:       s.Ask,
			Alpha:     s.Alpha,
			Nsk:       s.Nsk,
			Cmu:       s.Note.Cmu,
			Anchor:    s.Anchor,
			Position:  spendPosition(s.Witness),
			Nullifier: s.Nullifier,
		})
		if err != nil {
			return nil, err
		}

		sighash := spendSighash(spendProof.Cv, s.Anchor, s.Nullifier, spendProof.Rk, bundle.ValueBalance)

		randomizedAsk := jubjub.AddMod(s.Ask, s.Alpha)
		expectedRk := jubjub.Compress(jubjub.ScalarMult(jubjub.SpendAuthGenerator(), randomizedAsk))
		if expectedRk != spendProof.Rk {
			return nil, zcash.ErrProverFailure
		}

		sig, err := jubjub.RedJubjubSign(jubjub.SpendAuthGenerator(), randomizedAsk, sighash[:])
		if err != nil {
			return nil, err
		}

		spends[i] = serializer.SpendDesc{
			Cv:           spendProof.Cv,
			Anchor:       s.Anchor,
			Nullifier:    s.Nullifier,
			Rk:           spendProof.Rk,
			Proof:        spendProof.Proof,
			SpendAuthSig: sig,
		}
		s.Zero()
	}

	outputs := make([]serializer.OutputDesc, len(bundle.Outputs))
	for i, o := range bundle.Outputs {
		outProof, err := facade.ProveOutput(ctx, prover.OutputInputs{
			Value: uint64(o.Value),
			Rcv:   o.Rcv,
			Rcm:   o.Rcm,
			Cmu:   o.Cmu,
			Epk:   o.Epk,
		})
		if err != nil {
			return nil, err
		}

		outputs[i] = serializer.OutputDesc{
			Cv:            outProof.Cv,
			Cmu:           outProof.Cmu,
			Epk:           o.Epk,
			EncCiphertext: padTo(o.EncCiphertext, serializer.EncCiphertextLen),
			OutCiphertext: padTo(o.OutCiphertext, serializer.OutCiphertextLen),
			Proof:         outProof.Proof,
		}
		o.Zero()
	}

	txSighash := bundleSighash(spends, outputs, bundle.ValueBalance)
	bindingSig, err := jubjub.RedJubjubSign(jubjub.SpendAuthGenerator(), bundle.Bsk, txSighash[:])
	if err != nil {
		return nil, err
	}
	zeroBig(bundle.Bsk)

	shielded := &serializer.ShieldedTx{
		Version:        4,
		VersionGroupID: serializer.VersionGroupID,
		LockTime:       lockTime,
		ExpiryHeight:   expiryHeight,
		ValueBalance:   bundle.ValueBalance,
		Spends:         spends,
		Outputs:        outputs,
		BindingSig:     bindingSig,
	}

	raw, err := serializer.Serialize(shielded)
	if err != nil {
		return nil, err
	}
	txHash := enc.Blake2s256("Zcash_TxHash", raw)
	return &SignedShieldedBundle{Bundle: shielded, TxHash: txHash.Reversed(), RawTx: raw}, nil
}

// spendSighash is the per-spend signing digest: BLAKE2s-256 over
// cv‖anchor‖nullifier‖rk‖value_balance_le64.
func spendSighash(cv, anchor, nullifier, rk [32]byte, valueBalance int64) zcash.Hash32 {
	var vb [8]byte
	binary.LittleEndian.PutUint64(vb[:], uint64(valueBalance))
	return enc.Blake2s256("Zcash_SpendSig", cv[:], anchor[:], nullifier[:], rk[:], vb[:])
}

// bundleSighash extends the same construction across every spend/output
// so the binding signature commits to the whole bundle, not just its value
// balance, laid out in the same field order the serializer writes.
func bundleSighash(spends []serializer.SpendDesc, outputs []serializer.OutputDesc, valueBalance int64) zcash.Hash32 {
	var vb [8]byte
	binary.LittleEndian.PutUint64(vb[:], uint64(valueBalance))

	parts := make([][]byte, 0, len(spends)*4+len(outputs)*3+1)
	for _, s := range spends {
		cv, anchor, nullifier, rk := s.Cv, s.Anchor, s.Nullifier, s.Rk
		parts = append(parts, cv[:], anchor[:], nullifier[:], rk[:])
	}
	for _, o := range outputs {
		cv, cmu, epk := o.Cv, o.Cmu, o.Epk
		parts = append(parts, cv[:], cmu[:], epk[:])
	}
	parts = append(parts, vb[:])
	return enc.Blake2s256("Zcash_BindingSig", parts...)
}

func padTo(b []byte, n int) []byte {
	out := make([]byte, n)
	copy(out, b)
	return out
}

func spendPosition(w *note.MerklePath) uint64 {
	if w == nil {
		return 0
	}
	return w.LeafPosition
}

func zeroBig(v *big.Int) {
	if v != nil {
		v.SetInt64(0)
	}
}
