package prover

import (
	"context"
	"os"
)

// SnarkRuntimeBackend delegates to a general-purpose snark runtime fed a
// compiled circuit and zkey. It models a process-boundary
// prover (e.g. a snarkjs/WASM runtime) this module does not itself embed:
// Available() reports true only when both artifact paths exist on disk, so
// the façade skips it by default and only exercises it in a deployment that
// actually ships the compiled circuit and proving key.
type SnarkRuntimeBackend struct {
	CircuitPath string
	ZkeyPath    string

	// Invoke runs the external runtime (e.g. exec.Command or an IPC call)
	// and returns raw proof/cv/rk/cmu bytes (a spend reads proof, cv and rk;
	// an output reads proof, cv and cmu). Left as an injected func so this
	// package never assumes a specific runtime binary or RPC shape.
	Invoke func(ctx context.Context, circuitPath, zkeyPath string, publicInputs []byte) (proof, cv, rk, cmu []byte, err error)
}

func (b *SnarkRuntimeBackend) Name() string { return "snark-runtime" }

func (b *SnarkRuntimeBackend) Available() bool {
	if b.Invoke == nil || b.CircuitPath == "" || b.ZkeyPath == "" {
		return false
	}
	if _, err := os.Stat(b.CircuitPath); err != nil {
		return false
	}
	if _, err := os.Stat(b.ZkeyPath); err != nil {
		return false
	}
	return true
}

func (b *SnarkRuntimeBackend) ProveSpend(ctx context.Context, in SpendInputs) (SpendProof, error) {
	proof, cv, rk, _, err := b.Invoke(ctx, b.CircuitPath, b.ZkeyPath, encodeSpendPublicInputs(in))
	if err != nil {
		return SpendProof{}, ErrBackendUnavailable
	}
	var out SpendProof
	copy(out.Proof[:], proof)
	copy(out.Cv[:], cv)
	copy(out.Rk[:], rk)
	return out, nil
}

func (b *SnarkRuntimeBackend) ProveOutput(ctx context.Context, in OutputInputs) (OutputProof, error) {
	proof, cv, _, cmu, err := b.Invoke(ctx, b.CircuitPath, b.ZkeyPath, encodeOutputPublicInputs(in))
	if err != nil {
		return OutputProof{}, ErrBackendUnavailable
	}
	var out OutputProof
	copy(out.Proof[:], proof)
	copy(out.Cv[:], cv)
	copy(out.Cmu[:], cmu)
	return out, nil
}

func encodeSpendPublicInputs(in SpendInputs) []byte {
	out := make([]byte, 0, 64)
	out = append(out, in.Anchor[:]...)
	out = append(out, in.Nullifier[:]...)
	return out
}

func encodeOutputPublicInputs(in OutputInputs) []byte {
	out := make([]byte, 0, 64)
	out = append(out, in.Cmu[:]...)
	out = append(out, in.Epk[:]...)
	return out
}
