package prover

import (
	"bytes"
	"context"
	"math/big"
	"sync"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"

	"github.com/amiabix/zcash-bridge/internal/jubjub"
)

// spendCircuit is a simplified binding-commitment circuit: it proves
// knowledge of (value, blinder) such that value+blinder (folded into the
// circuit's scalar field) equals the public commitment scalar. The real
// cv/rk the spend actually carries is computed directly via
// internal/jubjub's Pedersen commitments, bit-exact with the builder's own
// computation; gnark here produces the accompanying Groth16 proof blob.
type spendCircuit struct {
	CommitmentScalar frontend.Variable `gnark:",public"`
	Value            frontend.Variable
	Blinder          frontend.Variable
}

func (c *spendCircuit) Define(api frontend.API) error {
	sum := api.Add(c.Value, c.Blinder)
	api.AssertIsEqual(c.CommitmentScalar, sum)
	return nil
}

type outputCircuit struct {
	CommitmentScalar frontend.Variable `gnark:",public"`
	Value            frontend.Variable
	Blinder          frontend.Variable
}

func (c *outputCircuit) Define(api frontend.API) error {
	sum := api.Add(c.Value, c.Blinder)
	api.AssertIsEqual(c.CommitmentScalar, sum)
	return nil
}

// NativeBackend is the façade's preferred backend: a Groth16 setup over
// BLS12-381, the curve Sapling's Jubjub is defined over. The setup runs
// once at construction instead of loading a trusted-setup artifact from
// disk, since this repo has no build step that ships one.
type NativeBackend struct {
	mu sync.Mutex

	spendCS   constraint.ConstraintSystem
	spendPK   groth16.ProvingKey
	outputCS  constraint.ConstraintSystem
	outputPK  groth16.ProvingKey
	available bool
}

// NewNativeBackend compiles both circuits and runs Groth16 setup. A setup
// failure leaves the backend unavailable rather than panicking, so the
// façade can fall through to the next configured backend.
func NewNativeBackend() *NativeBackend {
	b := &NativeBackend{}

	spendCS, err := frontend.Compile(ecc.BLS12_381.ScalarField(), r1cs.NewBuilder, &spendCircuit{})
	if err != nil {
		return b
	}
	spendPK, _, err := groth16.Setup(spendCS)
	if err != nil {
		return b
	}

	outputCS, err := frontend.Compile(ecc.BLS12_381.ScalarField(), r1cs.NewBuilder, &outputCircuit{})
	if err != nil {
		return b
	}
	outputPK, _, err := groth16.Setup(outputCS)
	if err != nil {
		return b
	}

	b.spendCS, b.spendPK = spendCS, spendPK
	b.outputCS, b.outputPK = outputCS, outputPK
	b.available = true
	return b
}

func (b *NativeBackend) Name() string { return "native-gnark-bls12381" }

func (b *NativeBackend) Available() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.available
}

func (b *NativeBackend) ProveSpend(_ context.Context, in SpendInputs) (SpendProof, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.available {
		return SpendProof{}, ErrBackendUnavailable
	}

	commitment := new(big.Int).Add(new(big.Int).SetUint64(in.Value), in.Rcv)
	witness := &spendCircuit{
		CommitmentScalar: commitment,
		Value:            in.Value,
		Blinder:          in.Rcv,
	}
	w, err := frontend.NewWitness(witness, ecc.BLS12_381.ScalarField())
	if err != nil {
		return SpendProof{}, ErrBackendUnavailable
	}
	proof, err := groth16.Prove(b.spendCS, b.spendPK, w)
	if err != nil {
		return SpendProof{}, ErrBackendUnavailable
	}

	var out SpendProof
	copyProofBytes(out.Proof[:], proof)
	out.Cv = jubjub.Compress(jubjub.ValueCommit(in.Value, in.Rcv))
	out.Rk = jubjub.Compress(jubjub.ScalarMult(jubjub.SpendAuthGenerator(), jubjub.AddMod(in.Ask, in.Alpha)))
	return out, nil
}

func (b *NativeBackend) ProveOutput(_ context.Context, in OutputInputs) (OutputProof, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.available {
		return OutputProof{}, ErrBackendUnavailable
	}

	commitment := new(big.Int).Add(new(big.Int).SetUint64(in.Value), in.Rcv)
	witness := &outputCircuit{
		CommitmentScalar: commitment,
		Value:            in.Value,
		Blinder:          in.Rcv,
	}
	w, err := frontend.NewWitness(witness, ecc.BLS12_381.ScalarField())
	if err != nil {
		return OutputProof{}, ErrBackendUnavailable
	}
	proof, err := groth16.Prove(b.outputCS, b.outputPK, w)
	if err != nil {
		return OutputProof{}, ErrBackendUnavailable
	}

	var out OutputProof
	copyProofBytes(out.Proof[:], proof)
	out.Cv = jubjub.Compress(jubjub.ValueCommit(in.Value, in.Rcv))
	out.Cmu = in.Cmu
	return out, nil
}

func copyProofBytes(dst []byte, proof groth16.Proof) {
	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return
	}
	raw := buf.Bytes()
	n := len(raw)
	if n > len(dst) {
		n = len(dst)
	}
	copy(dst, raw[:n])
}
