// Package prover implements the Groth16 proving façade: a uniform
// interface over multiple proof backends, selected in preference order,
// with all-zero output rejection and a per-call timeout.
//
// The native backend builds on gnark's groth16.Setup/Prove/Verify over two
// fixed circuits (spend, output) whose public/private split mirrors a
// Sapling spend/output statement; each proves a single commitment opening
// (value plus blinder equals the public commitment scalar).
package prover

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/amiabix/zcash-bridge/pkg/zcash"
)

// DefaultTimeout is the per-proof call budget.
const DefaultTimeout = 5 * time.Minute

// ErrBackendUnavailable marks a transient backend failure that should
// cascade to the next configured backend. A cryptographic failure never
// cascades: retrying the same witness elsewhere cannot fix it.
var ErrBackendUnavailable = errors.New("prover backend unavailable")

// SpendInputs is the witness a backend needs to produce a spend proof.
type SpendInputs struct {
	Value     uint64
	Rcv       *big.Int
	Ask       *big.Int
	Alpha     *big.Int
	Nsk       *big.Int
	Cmu       zcash.Hash32
	Anchor    zcash.Hash32
	Position  uint64
	Nullifier [32]byte
}

// SpendProof is the proof-bearing half of a spend description.
type SpendProof struct {
	Proof [192]byte
	Cv    [32]byte
	Rk    [32]byte
}

func (p SpendProof) isZero() bool {
	return p.Proof == [192]byte{} && p.Cv == [32]byte{} && p.Rk == [32]byte{}
}

// OutputInputs is the witness a backend needs to produce an output proof.
type OutputInputs struct {
	Value uint64
	Rcv   *big.Int
	Rcm   *big.Int
	Cmu   [32]byte
	Epk   [32]byte
}

// OutputProof is the proof-bearing half of an output description.
type OutputProof struct {
	Proof [192]byte
	Cv    [32]byte
	Cmu   [32]byte
}

func (p OutputProof) isZero() bool {
	return p.Proof == [192]byte{} && p.Cv == [32]byte{} && p.Cmu == [32]byte{}
}

// Backend is one Groth16 proving implementation: in-process circuits on
// two different curves, an external snark runtime, or a delegated HTTPS
// proving service.
type Backend interface {
	Name() string
	Available() bool
	ProveSpend(ctx context.Context, in SpendInputs) (SpendProof, error)
	ProveOutput(ctx context.Context, in OutputInputs) (OutputProof, error)
}

// Facade selects the first available backend from an ordered list and
// falls through to the next only on ErrBackendUnavailable.
type Facade struct {
	mu       sync.Mutex
	backends []Backend
	timeout  time.Duration
}

// NewFacade builds a façade over backends, tried in the given order.
// timeout of 0 uses DefaultTimeout.
func NewFacade(timeout time.Duration, backends ...Backend) *Facade {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Facade{backends: backends, timeout: timeout}
}

// ProveSpend produces a spend proof via the first available backend,
// rejecting all-zero results and honoring the per-call timeout.
func (f *Facade) ProveSpend(ctx context.Context, in SpendInputs) (SpendProof, error) {
	f.mu.Lock()
	backends := append([]Backend(nil), f.backends...)
	timeout := f.timeout
	f.mu.Unlock()

	var lastErr error
	for _, b := range backends {
		if !b.Available() {
			continue
		}
		proof, err := callWithTimeout(ctx, timeout, func(ctx context.Context) (SpendProof, error) {
			return b.ProveSpend(ctx, in)
		})
		if err != nil {
			if errors.Is(err, ErrBackendUnavailable) {
				lastErr = err
				continue
			}
			return SpendProof{}, err
		}
		if proof.isZero() {
			return SpendProof{}, zcash.ErrProverFailure
		}
		return proof, nil
	}
	if lastErr != nil {
		return SpendProof{}, zcash.ErrProverUnavailable
	}
	return SpendProof{}, zcash.ErrProverUnavailable
}

// ProveOutput produces an output proof, mirroring ProveSpend's backend
// selection and validation rules.
func (f *Facade) ProveOutput(ctx context.Context, in OutputInputs) (OutputProof, error) {
	f.mu.Lock()
	backends := append([]Backend(nil), f.backends...)
	timeout := f.timeout
	f.mu.Unlock()

	var lastErr error
	for _, b := range backends {
		if !b.Available() {
			continue
		}
		proof, err := callWithTimeout(ctx, timeout, func(ctx context.Context) (OutputProof, error) {
			return b.ProveOutput(ctx, in)
		})
		if err != nil {
			if errors.Is(err, ErrBackendUnavailable) {
				lastErr = err
				continue
			}
			return OutputProof{}, err
		}
		if proof.isZero() {
			return OutputProof{}, zcash.ErrProverFailure
		}
		return proof, nil
	}
	if lastErr != nil {
		return OutputProof{}, zcash.ErrProverUnavailable
	}
	return OutputProof{}, zcash.ErrProverUnavailable
}

func callWithTimeout[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		val T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		ch <- result{v, err}
	}()

	select {
	case <-ctx.Done():
		var zero T
		return zero, zcash.ErrProverTimeout
	case r := <-ch:
		return r.val, r.err
	}
}
