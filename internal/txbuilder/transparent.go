// Package txbuilder assembles unsigned transactions from selected UTXOs and
// notes: transparent.go handles fully-transparent spends, shielded.go
// handles spends involving a z-address. Neither file proves or signs;
// those stages belong to internal/prover and internal/signer.
package txbuilder

import (
	"context"

	"github.com/amiabix/zcash-bridge/internal/utxo"
	"github.com/amiabix/zcash-bridge/pkg/zcash"
)

// VersionGroupID is the fixed Sapling v4 version-group tag.
const VersionGroupID = 0x892F2085

// ExpiryWindow is how many blocks past the tip a built transaction remains
// valid for.
const ExpiryWindow = 20

// TxIn is one unsigned transparent input: the outpoint plus the scriptPubKey
// it's spending, kept around for sighash construction during signing.
type TxIn struct {
	Outpoint     utxo.Outpoint
	Value        zcash.Zatoshi
	ScriptPubKey []byte
	Sequence     uint32
}

// TxOut is one transparent output.
type TxOut struct {
	Value        zcash.Zatoshi
	ScriptPubKey []byte
}

// UnsignedTransparentTx is a fully-selected, fee-and-change-resolved
// transparent transaction awaiting its scriptSigs from internal/signer.
type UnsignedTransparentTx struct {
	Version        uint32
	VersionGroupID uint32
	LockTime       uint32
	ExpiryHeight   uint32
	Inputs         []TxIn
	Outputs        []TxOut
	TransparentFee zcash.Zatoshi
}

// FeeEstimator abstracts the per-build fee calculation so Build can accept
// either the fixed default model or an alternative strategy such as
// economics.CongestionFeeEstimator.
type FeeEstimator interface {
	Estimate(nIn, nOut int) zcash.Zatoshi
}

// FeeModel is the fixed per-byte/per-component estimator: base plus
// per-input/per-output charges, floored by size times the per-byte rate.
type FeeModel struct {
	Base        zcash.Zatoshi
	PerInput    zcash.Zatoshi
	PerOutput   zcash.Zatoshi
	PerByte     zcash.Zatoshi
	BytesPerIn  int
	BytesPerOut int
}

// DefaultFeeModel matches a typical P2PKH-dominated fee curve: a small fixed
// base, replaced by a conservative per-byte rate applied to the estimated
// size whenever that charge is the larger of the two.
var DefaultFeeModel = FeeModel{
	Base:        1000,
	PerInput:    0,
	PerOutput:   0,
	PerByte:     1,
	BytesPerIn:  148,
	BytesPerOut: 34,
}

// Estimate implements FeeEstimator.
func (m FeeModel) Estimate(nIn, nOut int) zcash.Zatoshi {
	sizeEst := 10 + nIn*m.BytesPerIn + nOut*m.BytesPerOut
	byFee := m.Base + zcash.Zatoshi(nIn)*m.PerInput + zcash.Zatoshi(nOut)*m.PerOutput
	bySize := zcash.Zatoshi(sizeEst) * m.PerByte
	if bySize > byFee {
		return bySize
	}
	return byFee
}

var _ FeeEstimator = FeeModel{}

// Params describes a requested transparent send.
type Params struct {
	FromAddress   string
	Outputs       []TxOut
	ChangeScript  []byte
	TipHeight     uint32
	MinConf       uint32
	Policy        utxo.SelectionPolicy
	Fee           FeeEstimator
	BuildID       string
}

// Build selects UTXOs via cache, applies the fee model, and folds dust
// change into the fee. Selected UTXOs are locked under p.BuildID atomically
// with selection and released on any error.
func Build(ctx context.Context, cache *utxo.Cache, p Params) (*UnsignedTransparentTx, error) {
	if len(p.Outputs) == 0 {
		return nil, zcash.ErrInvalidAmount
	}
	for _, o := range p.Outputs {
		if o.Value == 0 {
			return nil, zcash.ErrInvalidAmount
		}
	}

	var totalOut zcash.Zatoshi
	for _, o := range p.Outputs {
		totalOut += o.Value
	}

	if p.Fee == nil {
		p.Fee = DefaultFeeModel
	}

	spendable := cache.Spendable(p.FromAddress, p.TipHeight, p.MinConf)

	// Estimate assuming one change output; Select below may still leave us
	// without change, which is fine: the fee estimate only grows with
	// n_out, so overestimating by one output is conservative, not unsafe.
	feeWithChange := p.Fee.Estimate(1, len(p.Outputs)+1)
	target := totalOut + feeWithChange

	chosen, total, err := utxo.Select(spendable, target, p.Policy)
	if err != nil {
		feeNoChange := p.Fee.Estimate(1, len(p.Outputs))
		chosen, total, err = utxo.Select(spendable, totalOut+feeNoChange, p.Policy)
		if err != nil {
			return nil, zcash.ErrInsufficientFunds
		}
		feeWithChange = feeNoChange
	}

	ops := make([]utxo.Outpoint, len(chosen))
	for i, u := range chosen {
		ops[i] = u.Outpoint
	}
	if err := cache.Lock(p.FromAddress, ops, p.BuildID); err != nil {
		return nil, err
	}

	fee := p.Fee.Estimate(len(chosen), len(p.Outputs)+1)
	leftover := total - totalOut - fee

	outputs := append([]TxOut(nil), p.Outputs...)
	if leftover > utxo.DustThreshold {
		if len(p.ChangeScript) == 0 {
			cache.Unlock(p.BuildID)
			return nil, zcash.ErrInvalidAddress
		}
		outputs = append(outputs, TxOut{Value: leftover, ScriptPubKey: p.ChangeScript})
	} else {
		// Dust change folds into the fee: no change output is emitted.
		fee += leftover
	}

	if total < totalOut+fee {
		cache.Unlock(p.BuildID)
		return nil, zcash.ErrInsufficientFunds
	}

	inputs := make([]TxIn, len(chosen))
	for i, u := range chosen {
		inputs[i] = TxIn{
			Outpoint:     u.Outpoint,
			Value:        u.Value,
			ScriptPubKey: u.ScriptPubKey,
			Sequence:     0xFFFFFFFF,
		}
	}

	tx := &UnsignedTransparentTx{
		Version:        4,
		VersionGroupID: VersionGroupID,
		ExpiryHeight:   p.TipHeight + ExpiryWindow,
		Inputs:         inputs,
		Outputs:        outputs,
		TransparentFee: fee,
	}
	return tx, nil
}
