package provider

import (
	"context"
	"fmt"
	"math/big"

	"github.com/amiabix/zcash-bridge/internal/address"
	"github.com/amiabix/zcash-bridge/internal/enc"
	"github.com/amiabix/zcash-bridge/internal/jubjub"
	"github.com/amiabix/zcash-bridge/internal/keys"
	"github.com/amiabix/zcash-bridge/internal/note"
	"github.com/amiabix/zcash-bridge/internal/serializer"
	"github.com/amiabix/zcash-bridge/internal/signer"
	"github.com/amiabix/zcash-bridge/internal/txbuilder"
	"github.com/amiabix/zcash-bridge/internal/utxo"
	"github.com/amiabix/zcash-bridge/internal/validator"
	"github.com/amiabix/zcash-bridge/pkg/common"
	"github.com/amiabix/zcash-bridge/pkg/zcash"
)

// Direction names the four send shapes BuildAndSign can produce.
type Direction uint8

const (
	DirectionTransparent Direction = iota
	DirectionShielded
	DirectionShielding
	DirectionDeshielding
)

func (d Direction) String() string {
	switch d {
	case DirectionShielded:
		return "shielded"
	case DirectionShielding:
		return "shielding"
	case DirectionDeshielding:
		return "deshielding"
	default:
		return "transparent"
	}
}

// BuildRequest describes one send. FromKind
// picks which of the account's two balances funds the send; ToAddress's
// decoded kind combined with FromKind determines the Direction.
type BuildRequest struct {
	HostID       string
	AccountIndex uint32
	FromKind     zcash.AddressKind // KindTransparentP2PKH or KindSapling
	ToAddress    string
	Amount       zcash.Zatoshi
	Memo         []byte
	BuildID      string // defaults to a generated id when empty
}

// SignedTx is the final wire-ready transaction build_and_sign returns.
type SignedTx struct {
	RawTx  []byte
	TxHash zcash.Hash32
}

// BuildReport is the diagnostic record accompanying a SignedTx: which
// inputs/outputs were used and what fee was charged, for callers that want
// to show the user a confirmation summary before broadcasting.
type BuildReport struct {
	Direction       Direction
	Fee             zcash.Zatoshi
	ValueBalance    int64
	TransparentIns  int
	ShieldedSpends  int
	ShieldedOuts    int
	TransparentOuts int
	ChangeCreated   bool
}

// BuildAndSign derives the account, selects inputs from the appropriate
// cache, builds the unsigned bundle for the request's Direction, proves and
// signs it, and validates the finished wire bytes before handing them back
// for broadcast.
//
// Every build serializes through buildMu so input selection and locking
// are atomic with respect to every other build in this process.
func (p *Provider) BuildAndSign(ctx context.Context, req BuildRequest) (*SignedTx, *BuildReport, error) {
	if req.Amount == 0 {
		return nil, nil, zcash.ErrInvalidAmount
	}

	toDecoded, err := address.Validate(req.ToAddress, p.network)
	if err != nil {
		return nil, nil, err
	}
	if toDecoded.Kind == zcash.KindOrchard {
		return nil, nil, zcash.ErrInvalidAddress
	}

	derived, _, err := p.keyBridge.DeriveZcashAccount(ctx, req.HostID, req.AccountIndex)
	if err != nil {
		return nil, nil, err
	}
	defer derived.Zero()

	tip, err := p.rpc.GetBlockCount(ctx)
	if err != nil {
		return nil, nil, err
	}

	buildID := req.BuildID
	if buildID == "" {
		buildID = fmt.Sprintf("%s-%d-%d", req.HostID, req.AccountIndex, common.Now())
	}

	p.buildMu.Lock()
	defer p.buildMu.Unlock()

	toTransparent := toDecoded.Kind == zcash.KindTransparentP2PKH || toDecoded.Kind == zcash.KindTransparentP2SH

	switch {
	case req.FromKind == zcash.KindTransparentP2PKH && toTransparent:
		return p.buildTransparent(ctx, derived, req, tip, buildID)
	case req.FromKind == zcash.KindTransparentP2PKH && toDecoded.Kind == zcash.KindSapling:
		return p.buildShielding(ctx, derived, toDecoded, req, tip, buildID)
	case req.FromKind == zcash.KindSapling && toTransparent:
		return p.buildDeshielding(ctx, derived, req, tip)
	case req.FromKind == zcash.KindSapling && toDecoded.Kind == zcash.KindSapling:
		return p.buildShielded(ctx, derived, toDecoded, req, tip)
	default:
		return nil, nil, zcash.ErrInvalidAddress
	}
}

func (p *Provider) buildTransparent(ctx context.Context, derived *keys.DerivedKeys, req BuildRequest, tip uint32, buildID string) (*SignedTx, *BuildReport, error) {
	toScript, err := address.ScriptPubKeyForAddress(req.ToAddress, p.network)
	if err != nil {
		return nil, nil, err
	}
	changeScript, err := address.ScriptPubKeyForAddress(derived.TAddr, p.network)
	if err != nil {
		return nil, nil, err
	}

	unsigned, err := txbuilder.Build(ctx, p.utxoCache, txbuilder.Params{
		FromAddress:  derived.TAddr,
		Outputs:      []txbuilder.TxOut{{Value: req.Amount, ScriptPubKey: toScript}},
		ChangeScript: changeScript,
		TipHeight:    tip,
		MinConf:      p.minConf,
		Policy:       p.policy,
		Fee:          p.fee,
		BuildID:      buildID,
	})
	if err != nil {
		return nil, nil, err
	}

	signedKeys := transparentInputKeys(derived.TransparentSK, len(unsigned.Inputs))
	signed, err := signer.SignTransparent(unsigned, signedKeys)
	if err != nil {
		p.utxoCache.Unlock(buildID)
		return nil, nil, err
	}

	composite := &serializer.ShieldedTx{
		Version:        4,
		VersionGroupID: serializer.VersionGroupID,
		Inputs:         mergeInputs(unsigned.Inputs, signed.ScriptSigs),
		TransparentOut: toSerializerOuts(unsigned.Outputs),
		ExpiryHeight:   unsigned.ExpiryHeight,
	}

	inputValues := make([]zcash.Zatoshi, len(unsigned.Inputs))
	for i, in := range unsigned.Inputs {
		inputValues[i] = in.Value
	}

	signedTx, err := p.finalize(composite, tip, inputValues)
	if err != nil {
		p.utxoCache.Unlock(buildID)
		return nil, nil, err
	}

	return signedTx, &BuildReport{
		Direction:       DirectionTransparent,
		Fee:             unsigned.TransparentFee,
		TransparentIns:  len(unsigned.Inputs),
		TransparentOuts: len(unsigned.Outputs),
		ChangeCreated:   len(unsigned.Outputs) > 1,
	}, nil
}

func (p *Provider) buildShielded(ctx context.Context, derived *keys.DerivedKeys, to *address.Decoded, req BuildRequest, tip uint32) (*SignedTx, *BuildReport, error) {
	notes := p.noteCache.Spendable(derived.ZAddr)
	ask := new(big.Int).SetBytes(derived.Ask[:])
	nsk := new(big.Int).SetBytes(derived.Nsk[:])
	nk := jubjub.ScalarMult(jubjub.NullifierKeyGenerator(), nsk)

	roughFee := p.fee.Estimate(1, 2)
	chosen, total, err := note.Select(notes, req.Amount+roughFee)
	if err != nil {
		return nil, nil, err
	}

	fee := p.fee.Estimate(len(chosen), 2)
	leftover := total - req.Amount - fee

	outputs := []txbuilder.OutputPlan{{
		Diversifier: toArray11(to.Diversifier),
		Pkd:         toArray32(to.Pkd),
		Value:       req.Amount,
		Memo:        req.Memo,
	}}
	changeCreated := false
	if leftover > utxo.DustThreshold {
		self, err := address.Validate(derived.ZAddr, p.network)
		if err != nil {
			return nil, nil, err
		}
		ovk := derived.Ovk
		outputs = append(outputs, txbuilder.OutputPlan{
			Diversifier: toArray11(self.Diversifier),
			Pkd:         toArray32(self.Pkd),
			Value:       leftover,
			Ovk:         &ovk,
		})
		changeCreated = true
	} else {
		fee += leftover
	}

	anchor := p.tree.Root()
	spends := make([]txbuilder.SpendPlan, len(chosen))
	for i, n := range chosen {
		spends[i] = txbuilder.SpendPlan{Note: n, Ask: ask, Nsk: nsk, Position: n.Witness.LeafPosition, Anchor: anchor}
	}

	bundle, err := txbuilder.BuildShielded(spends, outputs, nk, fee)
	if err != nil {
		return nil, nil, err
	}

	signed, err := signer.SignShielded(ctx, p.prover, bundle, 0, tip+txbuilder.ExpiryWindow)
	if err != nil {
		return nil, nil, err
	}

	signedTx, err := p.finalize(signed.Bundle, tip, nil)
	if err != nil {
		return nil, nil, err
	}
	p.markSpent(derived.ZAddr, signed.Bundle.Spends)

	return signedTx, &BuildReport{
		Direction:      DirectionShielded,
		Fee:            fee,
		ValueBalance:   bundle.ValueBalance,
		ShieldedSpends: len(chosen),
		ShieldedOuts:   len(outputs),
		ChangeCreated:  changeCreated,
	}, nil
}

func (p *Provider) buildShielding(ctx context.Context, derived *keys.DerivedKeys, to *address.Decoded, req BuildRequest, tip uint32, buildID string) (*SignedTx, *BuildReport, error) {
	spendable := p.utxoCache.Spendable(derived.TAddr, tip, p.minConf)

	roughFee := p.fee.Estimate(1, 1)
	chosen, total, err := utxo.Select(spendable, req.Amount+roughFee, p.policy)
	if err != nil {
		return nil, nil, err
	}

	ops := make([]utxo.Outpoint, len(chosen))
	for i, u := range chosen {
		ops[i] = u.Outpoint
	}
	if err := p.utxoCache.Lock(derived.TAddr, ops, buildID); err != nil {
		return nil, nil, err
	}

	fee := p.fee.Estimate(len(chosen), 1)
	leftover := total - req.Amount - fee

	outputs := []txbuilder.OutputPlan{{
		Diversifier: toArray11(to.Diversifier),
		Pkd:         toArray32(to.Pkd),
		Value:       req.Amount,
		Memo:        req.Memo,
	}}
	changeCreated := false
	if leftover > utxo.DustThreshold {
		self, err := address.Validate(derived.ZAddr, p.network)
		if err != nil {
			p.utxoCache.Unlock(buildID)
			return nil, nil, err
		}
		ovk := derived.Ovk
		outputs = append(outputs, txbuilder.OutputPlan{
			Diversifier: toArray11(self.Diversifier),
			Pkd:         toArray32(self.Pkd),
			Value:       leftover,
			Ovk:         &ovk,
		})
		changeCreated = true
	} else {
		fee += leftover
	}

	transparentIn := make([]txbuilder.TxIn, len(chosen))
	for i, u := range chosen {
		transparentIn[i] = txbuilder.TxIn{Outpoint: u.Outpoint, Value: u.Value, ScriptPubKey: u.ScriptPubKey, Sequence: 0xFFFFFFFF}
	}

	bundle, err := txbuilder.BuildShielding(transparentIn, outputs, fee)
	if err != nil {
		p.utxoCache.Unlock(buildID)
		return nil, nil, err
	}

	signedShielded, err := signer.SignShielded(ctx, p.prover, bundle, 0, tip+txbuilder.ExpiryWindow)
	if err != nil {
		p.utxoCache.Unlock(buildID)
		return nil, nil, err
	}

	unsignedTransparent := &txbuilder.UnsignedTransparentTx{
		Version:        4,
		VersionGroupID: txbuilder.VersionGroupID,
		ExpiryHeight:   tip + txbuilder.ExpiryWindow,
		Inputs:         transparentIn,
	}
	signedKeys := transparentInputKeys(derived.TransparentSK, len(transparentIn))
	signedTransparent, err := signer.SignTransparentComposite(unsignedTransparent, signedKeys, bundle.ValueBalance)
	if err != nil {
		p.utxoCache.Unlock(buildID)
		return nil, nil, err
	}

	composite := signedShielded.Bundle
	composite.Inputs = mergeInputs(transparentIn, signedTransparent.ScriptSigs)

	inputValues := make([]zcash.Zatoshi, len(transparentIn))
	for i, in := range transparentIn {
		inputValues[i] = in.Value
	}

	signedTx, err := p.finalize(composite, tip, inputValues)
	if err != nil {
		p.utxoCache.Unlock(buildID)
		return nil, nil, err
	}

	return signedTx, &BuildReport{
		Direction:      DirectionShielding,
		Fee:            fee,
		ValueBalance:   bundle.ValueBalance,
		TransparentIns: len(transparentIn),
		ShieldedOuts:   len(outputs),
		ChangeCreated:  changeCreated,
	}, nil
}

func (p *Provider) buildDeshielding(ctx context.Context, derived *keys.DerivedKeys, req BuildRequest, tip uint32) (*SignedTx, *BuildReport, error) {
	notes := p.noteCache.Spendable(derived.ZAddr)
	ask := new(big.Int).SetBytes(derived.Ask[:])
	nsk := new(big.Int).SetBytes(derived.Nsk[:])
	nk := jubjub.ScalarMult(jubjub.NullifierKeyGenerator(), nsk)

	toScript, err := address.ScriptPubKeyForAddress(req.ToAddress, p.network)
	if err != nil {
		return nil, nil, err
	}

	roughFee := p.fee.Estimate(1, 1)
	chosen, total, err := note.Select(notes, req.Amount+roughFee)
	if err != nil {
		return nil, nil, err
	}

	fee := p.fee.Estimate(len(chosen), 1)
	leftover := total - req.Amount - fee

	transparentOut := []txbuilder.TxOut{{Value: req.Amount, ScriptPubKey: toScript}}
	var changeOutputs []txbuilder.OutputPlan
	changeCreated := false
	if leftover > utxo.DustThreshold {
		self, err := address.Validate(derived.ZAddr, p.network)
		if err != nil {
			return nil, nil, err
		}
		ovk := derived.Ovk
		changeOutputs = append(changeOutputs, txbuilder.OutputPlan{
			Diversifier: toArray11(self.Diversifier),
			Pkd:         toArray32(self.Pkd),
			Value:       leftover,
			Ovk:         &ovk,
		})
		changeCreated = true
	} else {
		fee += leftover
	}

	anchor := p.tree.Root()
	spends := make([]txbuilder.SpendPlan, len(chosen))
	for i, n := range chosen {
		spends[i] = txbuilder.SpendPlan{Note: n, Ask: ask, Nsk: nsk, Position: n.Witness.LeafPosition, Anchor: anchor}
	}

	bundle, err := txbuilder.BuildDeshielding(spends, changeOutputs, transparentOut, nk, fee)
	if err != nil {
		return nil, nil, err
	}

	signed, err := signer.SignShielded(ctx, p.prover, bundle, 0, tip+txbuilder.ExpiryWindow)
	if err != nil {
		return nil, nil, err
	}

	composite := signed.Bundle
	composite.TransparentOut = toSerializerOuts(transparentOut)

	signedTx, err := p.finalize(composite, tip, nil)
	if err != nil {
		return nil, nil, err
	}
	p.markSpent(derived.ZAddr, signed.Bundle.Spends)

	return signedTx, &BuildReport{
		Direction:       DirectionDeshielding,
		Fee:             fee,
		ValueBalance:    bundle.ValueBalance,
		ShieldedSpends:  len(chosen),
		TransparentOuts: len(transparentOut),
		ChangeCreated:   changeCreated,
	}, nil
}

// finalize serializes tx, runs the structural validation sweep, and
// computes the display-form transaction hash.
func (p *Provider) finalize(tx *serializer.ShieldedTx, tip uint32, inputValues []zcash.Zatoshi) (*SignedTx, error) {
	raw, err := serializer.Serialize(tx)
	if err != nil {
		return nil, err
	}
	if err := validator.Validate(tx, validator.Params{Tip: tip, InputValues: inputValues, EstimatedSize: len(raw)}); err != nil {
		return nil, err
	}
	txHash := enc.Blake2s256("Zcash_TxHash", raw).Reversed()
	return &SignedTx{RawTx: raw, TxHash: txHash}, nil
}

// markSpent flags every nullifier a just-signed shielded bundle consumed,
// so a subsequent GetBalance call in this process reflects the pending
// spend before Sync ever observes it on chain.
func (p *Provider) markSpent(addr string, spends []serializer.SpendDesc) {
	for _, s := range spends {
		p.noteCache.MarkSpent(addr, zcash.Hash32(s.Nullifier))
	}
}

func transparentInputKeys(sk [32]byte, n int) []signer.InputKey {
	out := make([]signer.InputKey, n)
	for i := range out {
		cp := sk
		out[i] = signer.InputKey{PrivateKey: cp[:]}
	}
	return out
}

func mergeInputs(ins []txbuilder.TxIn, scriptSigs [][]byte) []serializer.TxIn {
	out := make([]serializer.TxIn, len(ins))
	for i, in := range ins {
		out[i] = serializer.TxIn{
			PrevTxID:  in.Outpoint.TxID,
			Vout:      in.Outpoint.Vout,
			ScriptSig: scriptSigs[i],
			Sequence:  in.Sequence,
		}
	}
	return out
}

func toSerializerOuts(outs []txbuilder.TxOut) []serializer.TxOut {
	out := make([]serializer.TxOut, len(outs))
	for i, o := range outs {
		out[i] = serializer.TxOut{Value: o.Value, ScriptPubKey: o.ScriptPubKey}
	}
	return out
}

func toArray11(b []byte) [11]byte {
	var out [11]byte
	copy(out[:], b)
	return out
}

func toArray32(b []byte) [32]byte {
	var out [32]byte
	copy(out[:], b)
	return out
}
