// Package validator implements the structural pre-broadcast checks: an
// all-or-nothing sweep over version, expiry, balance, and shielded-
// component shape that every built-and-signed transaction must pass before
// a caller is allowed to broadcast it. Every violation is collected before
// returning rather than failing fast on the first.
package validator

import (
	"github.com/amiabix/zcash-bridge/internal/serializer"
	"github.com/amiabix/zcash-bridge/pkg/zcash"
)

// MinFee is the minimum transparent-balance surplus a transaction must
// leave: Σ in − Σ out must cover at least this much.
const MinFee = zcash.Zatoshi(1000)

// MaxSafeOutputValue bounds an individual output value. Host wallets hand
// amounts through a 53-bit-safe integer boundary, so anything above it is a
// corrupted build rather than a legitimate send.
const MaxSafeOutputValue = int64(1)<<53 - 1

// Params carries the pieces of context Validate needs beyond the tx itself:
// the chain tip (for the expiry check) and each transparent input's
// declared value (for the balance check, since the serialized tx alone
// does not carry input values).
type Params struct {
	Tip           uint32
	InputValues   []zcash.Zatoshi // parallel to tx.Inputs
	EstimatedSize int
}

// Validate runs every structural check against tx and returns every
// violation found, wrapped in a single *zcash.ValidationError. A nil
// return means the transaction is structurally sound and may be
// serialized/broadcast.
func Validate(tx *serializer.ShieldedTx, p Params) error {
	var reasons []string

	if tx.Version < 1 || tx.Version > 5 {
		reasons = append(reasons, "version must be in [1,5]")
	}
	if tx.ExpiryHeight != 0 && tx.ExpiryHeight < p.Tip {
		reasons = append(reasons, "expiry height is before the chain tip")
	}
	if len(tx.Inputs) == 0 && len(tx.Spends) == 0 {
		reasons = append(reasons, "transaction has no inputs")
	}
	if len(tx.TransparentOut) == 0 && len(tx.Outputs) == 0 {
		reasons = append(reasons, "transaction has no outputs")
	}

	if len(p.InputValues) != len(tx.Inputs) {
		if len(tx.Inputs) > 0 {
			reasons = append(reasons, "input value list does not match input count")
		}
	} else {
		var inTotal, outTotal zcash.Zatoshi
		for _, v := range p.InputValues {
			if v == 0 {
				reasons = append(reasons, "input value must be nonzero")
			}
			inTotal += v
		}
		for _, o := range tx.TransparentOut {
			if o.Value == 0 {
				reasons = append(reasons, "output value must be positive")
			}
			if int64(o.Value) > MaxSafeOutputValue {
				reasons = append(reasons, "output value exceeds the safe integer bound")
			}
			if len(o.ScriptPubKey) == 0 {
				reasons = append(reasons, "output missing scriptPubKey")
			}
			outTotal += o.Value
		}
		if len(tx.Inputs) > 0 && inTotal < outTotal+MinFee {
			reasons = append(reasons, "transparent balance does not cover the minimum fee")
		}
	}

	hasShielded := len(tx.Spends) > 0 || len(tx.Outputs) > 0
	for _, s := range tx.Spends {
		if s.Nullifier == ([32]byte{}) {
			reasons = append(reasons, "spend nullifier must not be all-zero")
		}
	}
	for _, o := range tx.Outputs {
		if len(o.EncCiphertext) == 0 {
			reasons = append(reasons, "output memo ciphertext missing")
		} else if len(o.EncCiphertext) > serializer.EncCiphertextLen {
			reasons = append(reasons, "output memo exceeds 512 bytes")
		}
	}
	if hasShielded && tx.BindingSig == ([64]byte{}) {
		reasons = append(reasons, "binding signature required when a shielded component is present")
	}

	if p.EstimatedSize > serializer.MaxTxSize {
		reasons = append(reasons, "estimated transaction size exceeds 2,000,000 bytes")
	}

	if len(reasons) > 0 {
		return &zcash.ValidationError{Reasons: reasons}
	}
	return nil
}
