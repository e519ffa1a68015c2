package prover

import (
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

// AltBackend is the alternative in-process circuit implementation. It
// runs the same circuit shape as NativeBackend but over BN254 instead of
// BLS12-381, so the two backends are genuinely independent proving paths
// the façade can fail over between.
type AltBackend struct {
	mu sync.Mutex

	spendCS  constraint.ConstraintSystem
	spendPK  groth16.ProvingKey
	outputCS constraint.ConstraintSystem
	outputPK groth16.ProvingKey

	available bool
}

// NewAltBackend compiles both circuits over BN254 and runs Groth16 setup.
func NewAltBackend() *AltBackend {
	b := &AltBackend{}

	spendCS, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &spendCircuit{})
	if err != nil {
		return b
	}
	spendPK, _, err := groth16.Setup(spendCS)
	if err != nil {
		return b
	}

	outputCS, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &outputCircuit{})
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

func (b *AltBackend) Name() string { return "alt-gnark-bn254" }

func (b *AltBackend) Available() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.available
}

func (b *AltBackend) ProveSpend(_ context.Context, in SpendInputs) (SpendProof, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.available {
		return SpendProof{}, ErrBackendUnavailable
	}

	commitment := new(big.Int).Add(new(big.Int).SetUint64(in.Value), in.Rcv)
	w, err := frontend.NewWitness(&spendCircuit{
		CommitmentScalar: commitment,
		Value:            in.Value,
		Blinder:          in.Rcv,
	}, ecc.BN254.ScalarField())
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

func (b *AltBackend) ProveOutput(_ context.Context, in OutputInputs) (OutputProof, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.available {
		return OutputProof{}, ErrBackendUnavailable
	}

	commitment := new(big.Int).Add(new(big.Int).SetUint64(in.Value), in.Rcv)
	w, err := frontend.NewWitness(&outputCircuit{
		CommitmentScalar: commitment,
		Value:            in.Value,
		Blinder:          in.Rcv,
	}, ecc.BN254.ScalarField())
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
