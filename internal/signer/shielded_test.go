package signer

import (
	"context"
	"math/big"
	"testing"

	"github.com/amiabix/zcash-bridge/internal/jubjub"
	"github.com/amiabix/zcash-bridge/internal/note"
	"github.com/amiabix/zcash-bridge/internal/prover"
	"github.com/amiabix/zcash-bridge/internal/serializer"
	"github.com/amiabix/zcash-bridge/internal/txbuilder"
	"github.com/amiabix/zcash-bridge/pkg/zcash"
)

// fakeBackend produces proofs that are internally consistent with the rk the
// facade's caller expects, so SignShielded's rk-match check passes, without
// running an actual Groth16 circuit.
type fakeBackend struct {
	spendFill byte
	zeroOut   bool
}

func (f *fakeBackend) Name() string    { return "fake" }
func (f *fakeBackend) Available() bool { return true }

func (f *fakeBackend) ProveSpend(ctx context.Context, in prover.SpendInputs) (prover.SpendProof, error) {
	if f.zeroOut {
		return prover.SpendProof{}, nil
	}
	randomizedAsk := jubjub.AddMod(in.Ask, in.Alpha)
	rk := jubjub.Compress(jubjub.ScalarMult(jubjub.SpendAuthGenerator(), randomizedAsk))
	out := prover.SpendProof{Rk: rk}
	for i := range out.Proof {
		out.Proof[i] = f.spendFill
	}
	for i := range out.Cv {
		out.Cv[i] = f.spendFill
	}
	return out, nil
}

func (f *fakeBackend) ProveOutput(ctx context.Context, in prover.OutputInputs) (prover.OutputProof, error) {
	if f.zeroOut {
		return prover.OutputProof{}, nil
	}
	out := prover.OutputProof{Cmu: in.Cmu}
	for i := range out.Proof {
		out.Proof[i] = 0x02
	}
	for i := range out.Cv {
		out.Cv[i] = 0x02
	}
	return out, nil
}

func sampleBundle(t *testing.T) *txbuilder.UnsignedShieldedBundle {
	t.Helper()

	ask, err := jubjub.RandomScalar()
	if err != nil {
		t.Fatalf("random ask: %v", err)
	}
	alpha, err := jubjub.RandomScalar()
	if err != nil {
		t.Fatalf("random alpha: %v", err)
	}
	nsk, err := jubjub.RandomScalar()
	if err != nil {
		t.Fatalf("random nsk: %v", err)
	}
	rcv, err := jubjub.RandomScalar()
	if err != nil {
		t.Fatalf("random rcv: %v", err)
	}
	bsk, err := jubjub.RandomScalar()
	if err != nil {
		t.Fatalf("random bsk: %v", err)
	}

	spend := &txbuilder.SpendSigningData{
		Note:      &note.SaplingNote{Value: 50000},
		Ask:       ask,
		Nsk:       nsk,
		Rcv:       rcv,
		Alpha:     alpha,
		Anchor:    zcash.Hash32{0x01},
		Nullifier: [32]byte{0x02},
	}
	output := &txbuilder.OutputSigningData{
		Cmu:   [32]byte{0x03},
		Epk:   [32]byte{0x04},
		Rcv:   new(big.Int).SetInt64(1),
		Rcm:   new(big.Int).SetInt64(2),
		Value: 40000,
	}

	return &txbuilder.UnsignedShieldedBundle{
		Spends:       []*txbuilder.SpendSigningData{spend},
		Outputs:      []*txbuilder.OutputSigningData{output},
		ValueBalance: 10000,
		Bsk:          bsk,
	}
}

func TestSignShieldedProducesConsistentBundle(t *testing.T) {
	facade := prover.NewFacade(0, &fakeBackend{spendFill: 0x01})
	bundle := sampleBundle(t)

	signed, err := SignShielded(context.Background(), facade, bundle, 0, 120)
	if err != nil {
		t.Fatalf("sign shielded: %v", err)
	}

	if len(signed.Bundle.Spends) != 1 || len(signed.Bundle.Outputs) != 1 {
		t.Fatalf("expected 1 spend + 1 output, got %d/%d", len(signed.Bundle.Spends), len(signed.Bundle.Outputs))
	}
	if signed.Bundle.Spends[0].Proof == ([serializer.ProofLen]byte{}) {
		t.Fatal("expected a non-zero spend proof")
	}
	if signed.Bundle.BindingSig == ([64]byte{}) {
		t.Fatal("expected a non-zero binding signature")
	}
	if len(signed.RawTx) == 0 {
		t.Fatal("expected non-empty serialized raw tx")
	}
}

func TestSignShieldedRejectsRkMismatch(t *testing.T) {
	facade := prover.NewFacade(0, &badRkBackend{})
	bundle := sampleBundle(t)

	if _, err := SignShielded(context.Background(), facade, bundle, 0, 120); err != zcash.ErrProverFailure {
		t.Fatalf("expected ErrProverFailure for an rk mismatch, got %v", err)
	}
}

// badRkBackend returns a self-consistent-looking proof whose rk does not
// match the caller's randomized-ask computation, simulating a misbehaving
// or buggy backend.
type badRkBackend struct{}

func (badRkBackend) Name() string    { return "bad-rk" }
func (badRkBackend) Available() bool { return true }

func (badRkBackend) ProveSpend(ctx context.Context, in prover.SpendInputs) (prover.SpendProof, error) {
	out := prover.SpendProof{Rk: [32]byte{0xFF}}
	for i := range out.Proof {
		out.Proof[i] = 0x09
	}
	for i := range out.Cv {
		out.Cv[i] = 0x09
	}
	return out, nil
}

func (badRkBackend) ProveOutput(ctx context.Context, in prover.OutputInputs) (prover.OutputProof, error) {
	out := prover.OutputProof{Cmu: in.Cmu}
	for i := range out.Proof {
		out.Proof[i] = 0x02
	}
	return out, nil
}

func TestSignShieldedRejectsAllZeroProof(t *testing.T) {
	facade := prover.NewFacade(0, &fakeBackend{zeroOut: true})
	bundle := sampleBundle(t)

	if _, err := SignShielded(context.Background(), facade, bundle, 0, 120); err != zcash.ErrProverFailure {
		t.Fatalf("expected ErrProverFailure for an all-zero proof, got %v", err)
	}
}
