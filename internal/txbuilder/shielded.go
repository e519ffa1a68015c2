package txbuilder

import (
	"crypto/rand"
	"encoding/binary"
	"math/big"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/amiabix/zcash-bridge/internal/enc"
	"github.com/amiabix/zcash-bridge/internal/jubjub"
	"github.com/amiabix/zcash-bridge/internal/note"
	"github.com/amiabix/zcash-bridge/pkg/zcash"
)

// Direction selects which of the three shielded entry points a build is
// for.
type Direction uint8

const (
	DirectionShielded Direction = iota // z -> z
	DirectionShielding                // t -> z
	DirectionDeshielding               // z -> t
)

// SpendPlan names a note this build will consume, along with the spending
// material needed to authorize it, supplied by the caller (Provider/KeyBridge
// hold ask/nsk; the builder never derives them itself).
type SpendPlan struct {
	Note     *note.SaplingNote
	Ask      *big.Int
	Nsk      *big.Int
	Position uint64
	Anchor   zcash.Hash32
}

// OutputPlan names a recipient shielded output to create.
type OutputPlan struct {
	Diversifier [11]byte
	Pkd         [32]byte
	Value       zcash.Zatoshi
	Memo        []byte
	Ovk         *[32]byte // set to also populate out_ciphertext (self-sent outputs)
}

// SpendSigningData is one fully-computed-but-unproven-and-unsigned spend
// description, carrying the secret material the shielded signer needs to
// invoke the prover and authorize the spend.
type SpendSigningData struct {
	Note      *note.SaplingNote
	Ask       *big.Int
	Nsk       *big.Int
	Rcv       *big.Int
	Alpha     *big.Int
	Witness   *note.MerklePath
	Anchor    zcash.Hash32
	Cv        [32]byte
	Nullifier [32]byte
	Rk        [32]byte
}

// Zero scrubs every secret scalar once the spend has been proved and
// signed.
func (s *SpendSigningData) Zero() {
	zeroBigInt(s.Ask)
	zeroBigInt(s.Nsk)
	zeroBigInt(s.Rcv)
	zeroBigInt(s.Alpha)
}

// OutputSigningData is one fully-computed output description awaiting its
// Groth16 proof.
type OutputSigningData struct {
	Cv            [32]byte
	Cmu           [32]byte
	Epk           [32]byte
	EncCiphertext []byte
	OutCiphertext []byte
	Rcv           *big.Int
	Diversifier   [11]byte
	Pkd           [32]byte
	Value         zcash.Zatoshi
	Rcm           *big.Int
}

// Zero scrubs the output's secret randomness.
func (o *OutputSigningData) Zero() {
	zeroBigInt(o.Rcv)
	zeroBigInt(o.Rcm)
}

func zeroBigInt(v *big.Int) {
	if v == nil {
		return
	}
	v.SetInt64(0)
}

// UnsignedShieldedBundle is the output of Build{Shielded,Shielding,Deshielding}:
// every spend and output computed and ready for proving and signing, plus
// the bundle's value balance and binding-signature key.
type UnsignedShieldedBundle struct {
	Direction    Direction
	Spends       []*SpendSigningData
	Outputs      []*OutputSigningData
	ValueBalance int64
	Bsk          *big.Int

	// TransparentIn/TransparentOut carry the non-shielded leg for shielding
	// and deshielding builds; empty for a pure z->z build.
	TransparentIn  []TxIn
	TransparentOut []TxOut
}

// BuildShielded assembles a z->z bundle: value_balance = Σ spent − Σ output − fee.
func BuildShielded(spends []SpendPlan, outputs []OutputPlan, nk jubjub.Point, fee zcash.Zatoshi) (*UnsignedShieldedBundle, error) {
	if len(spends) == 0 {
		return nil, zcash.ErrMissingNotes
	}
	var spentTotal, outputTotal zcash.Zatoshi
	for _, s := range spends {
		spentTotal += s.Note.Value
	}
	for _, o := range outputs {
		if o.Value == 0 {
			return nil, zcash.ErrInvalidAmount
		}
		outputTotal += o.Value
	}
	if spentTotal < outputTotal+fee {
		return nil, zcash.ErrInsufficientShieldedFunds
	}

	spendData, rcvSum, err := buildSpends(spends, nk)
	if err != nil {
		return nil, err
	}
	outputData, rcvOutSum, err := buildOutputs(outputs)
	if err != nil {
		return nil, err
	}

	vb := int64(spentTotal) - int64(outputTotal) - int64(fee)
	bsk := jubjub.AddMod(rcvSum, jubjub.NegMod(rcvOutSum))

	return &UnsignedShieldedBundle{
		Direction:    DirectionShielded,
		Spends:       spendData,
		Outputs:      outputData,
		ValueBalance: vb,
		Bsk:          bsk,
	}, nil
}

// BuildShielding assembles a t->z bundle: transparent inputs cover the
// shielded outputs plus fee; value_balance = −Σ output (the shielded side
// receives value, so its balance is negative, "owed" by the transparent
// side).
func BuildShielding(transparentIn []TxIn, outputs []OutputPlan, fee zcash.Zatoshi) (*UnsignedShieldedBundle, error) {
	var inTotal, outTotal zcash.Zatoshi
	for _, in := range transparentIn {
		inTotal += in.Value
	}
	for _, o := range outputs {
		if o.Value == 0 {
			return nil, zcash.ErrInvalidAmount
		}
		outTotal += o.Value
	}
	if inTotal < outTotal+fee {
		return nil, zcash.ErrInsufficientFunds
	}

	outputData, rcvOutSum, err := buildOutputs(outputs)
	if err != nil {
		return nil, err
	}
	bsk := jubjub.NegMod(rcvOutSum)

	return &UnsignedShieldedBundle{
		Direction:      DirectionShielding,
		Outputs:        outputData,
		ValueBalance:   -int64(outTotal),
		Bsk:            bsk,
		TransparentIn:  transparentIn,
	}, nil
}

// BuildDeshielding assembles a z->t bundle: value_balance = transparent_out +
// fee (the shielded side releases value to the transparent side).
// changeOutputs carries any shielded change sent back to the spender's own
// address when the spent notes overshoot transparentOut+fee; BuildDeshielding
// has no transparent change leg of its own, so a non-exact spend must close
// out on the shielded side instead.
func BuildDeshielding(spends []SpendPlan, changeOutputs []OutputPlan, transparentOut []TxOut, nk jubjub.Point, fee zcash.Zatoshi) (*UnsignedShieldedBundle, error) {
	if len(spends) == 0 {
		return nil, zcash.ErrMissingNotes
	}
	var spentTotal, outTotal, changeTotal zcash.Zatoshi
	for _, s := range spends {
		spentTotal += s.Note.Value
	}
	for _, o := range transparentOut {
		if o.Value == 0 {
			return nil, zcash.ErrInvalidAmount
		}
		outTotal += o.Value
	}
	for _, o := range changeOutputs {
		if o.Value == 0 {
			return nil, zcash.ErrInvalidAmount
		}
		changeTotal += o.Value
	}
	if spentTotal != outTotal+fee+changeTotal {
		return nil, zcash.ErrInsufficientShieldedFunds
	}

	spendData, rcvSpendSum, err := buildSpends(spends, nk)
	if err != nil {
		return nil, err
	}

	bsk := rcvSpendSum
	var changeData []*OutputSigningData
	if len(changeOutputs) > 0 {
		changeData, rcvChangeSum, err := buildOutputs(changeOutputs)
		if err != nil {
			return nil, err
		}
		bsk = jubjub.AddMod(rcvSpendSum, jubjub.NegMod(rcvChangeSum))
		return &UnsignedShieldedBundle{
			Direction:      DirectionDeshielding,
			Spends:         spendData,
			Outputs:        changeData,
			ValueBalance:   int64(outTotal) + int64(fee),
			Bsk:            bsk,
			TransparentOut: transparentOut,
		}, nil
	}

	return &UnsignedShieldedBundle{
		Direction:      DirectionDeshielding,
		Spends:         spendData,
		Outputs:        changeData,
		ValueBalance:   int64(outTotal) + int64(fee),
		Bsk:            bsk,
		TransparentOut: transparentOut,
	}, nil
}

func buildSpends(spends []SpendPlan, nk jubjub.Point) ([]*SpendSigningData, *big.Int, error) {
	rcvSum := big.NewInt(0)
	out := make([]*SpendSigningData, len(spends))
	for i, s := range spends {
		rcv, err := jubjub.RandomScalar()
		if err != nil {
			return nil, nil, err
		}
		alpha, err := jubjub.RandomScalar()
		if err != nil {
			return nil, nil, err
		}

		cv := jubjub.Compress(jubjub.ValueCommit(uint64(s.Note.Value), rcv))
		nullifier := jubjub.DeriveNullifier(nk, s.Note.Cmu, s.Position)

		rk := jubjub.Compress(jubjub.ScalarMult(jubjub.SpendAuthGenerator(), jubjub.AddMod(s.Ask, alpha)))

		out[i] = &SpendSigningData{
			Note:      s.Note,
			Ask:       new(big.Int).Set(s.Ask),
			Nsk:       new(big.Int).Set(s.Nsk),
			Rcv:       rcv,
			Alpha:     alpha,
			Witness:   s.Note.Witness,
			Anchor:    s.Anchor,
			Cv:        cv,
			Nullifier: nullifier,
			Rk:        rk,
		}
		rcvSum = jubjub.AddMod(rcvSum, rcv)
	}
	return out, rcvSum, nil
}

func buildOutputs(outputs []OutputPlan) ([]*OutputSigningData, *big.Int, error) {
	rcvSum := big.NewInt(0)
	out := make([]*OutputSigningData, len(outputs))
	for i, o := range outputs {
		rcv, err := jubjub.RandomScalar()
		if err != nil {
			return nil, nil, err
		}
		esk, err := jubjub.RandomScalar()
		if err != nil {
			return nil, nil, err
		}
		var rseed [32]byte
		if err := fillRandom(rseed[:]); err != nil {
			return nil, nil, err
		}
		rcm := jubjub.DeriveRcm(rseed)

		cv := jubjub.Compress(jubjub.ValueCommit(uint64(o.Value), rcv))
		cmu := jubjub.NoteCommit(o.Diversifier[:], o.Pkd, uint64(o.Value), rcm)

		dPoint, err := jubjub.DiversifyHash(o.Diversifier[:])
		if err != nil {
			return nil, nil, err
		}
		epkPoint := jubjub.ScalarMult(dPoint, esk)
		epk := jubjub.Compress(epkPoint)

		pkdPoint, err := jubjub.Decompress(o.Pkd)
		if err != nil {
			return nil, nil, zcash.ErrInvalidAddress
		}
		shared := jubjub.Compress(jubjub.ScalarMult(pkdPoint, esk))

		encCiphertext, err := encryptOutput(o, rseed, epk, shared)
		if err != nil {
			return nil, nil, err
		}

		var outCiphertext []byte
		if o.Ovk != nil {
			outCiphertext, err = encryptOutgoing(*o.Ovk, epk, o.Pkd, esk)
			if err != nil {
				return nil, nil, err
			}
		}

		out[i] = &OutputSigningData{
			Cv:            cv,
			Cmu:           cmu,
			Epk:           epk,
			EncCiphertext: encCiphertext,
			OutCiphertext: outCiphertext,
			Rcv:           rcv,
			Diversifier:   o.Diversifier,
			Pkd:           o.Pkd,
			Value:         o.Value,
			Rcm:           rcm,
		}
		rcvSum = jubjub.AddMod(rcvSum, rcv)
	}
	return out, rcvSum, nil
}

// encryptOutput builds the enc_ciphertext note payload. The key derives
// from the DH shared point and the nonce from the public epk, so the
// recipient can reconstruct both before decrypting; see the matching
// decrypt side in internal/note/scanner.go.
func encryptOutput(o OutputPlan, rseed, epk, sharedSecret [32]byte) ([]byte, error) {
	if len(o.Memo) > 512 {
		return nil, zcash.ErrValidationFailed
	}
	plaintext := make([]byte, plaintextLen)
	plaintext[0] = 0x01
	copy(plaintext[1:12], o.Diversifier[:])
	binary.LittleEndian.PutUint64(plaintext[12:20], uint64(o.Value))
	copy(plaintext[20:52], rseed[:])
	copy(plaintext[52:52+len(o.Memo)], o.Memo)

	key := enc.Blake2sPersonalized("Zcash_enc_key", 32, sharedSecret[:])
	nonce := enc.Blake2sPersonalized("Zcash_enc_nonce", chacha20poly1305.NonceSize, []byte{0x00}, epk[:])

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	return aead.Seal(nil, nonce, plaintext, nil), nil
}

// encryptOutgoing implements the out_ciphertext recovery blob: {pkd, esk}
// encrypted under a key derived from ovk and the public epk, matching
// internal/note.Scanner.ScanOutgoing's decrypt side.
func encryptOutgoing(ovk [32]byte, epk, pkd [32]byte, esk *big.Int) ([]byte, error) {
	plaintext := make([]byte, 64)
	copy(plaintext[:32], pkd[:])
	copyScalarTo(plaintext[32:64], esk)

	key := enc.Blake2sPersonalized("Zcash_out_key", 32, ovk[:], epk[:])
	nonce := enc.Blake2sPersonalized("Zcash_out_nonce", chacha20poly1305.NonceSize, []byte{0x01}, epk[:])

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	return aead.Seal(nil, nonce, plaintext, nil), nil
}

func copyScalarTo(dst []byte, s *big.Int) {
	b := s.Bytes()
	if len(b) > len(dst) {
		b = b[len(b)-len(dst):]
	}
	copy(dst[len(dst)-len(b):], b)
}

// plaintextLen mirrors internal/note's constant: lead byte ‖ d[11] ‖ v[8] ‖
// rseed[32] ‖ memo[512].
const plaintextLen = 1 + 11 + 8 + 32 + 512

func fillRandom(b []byte) error {
	_, err := rand.Read(b)
	return err
}
