package jubjub

import (
	"math/big"

	"github.com/amiabix/zcash-bridge/internal/enc"
	"github.com/amiabix/zcash-bridge/pkg/zcash"
)

// Distinct fixed generators, each derived deterministically from its own
// personalization string via the hash-then-clear-cofactor construction (the
// same DiversifyHash technique used for diversified addresses). Using
// independently-derived generators with no known discrete-log relation
// between them is what makes ValueCommit and NoteCommit binding.
var (
	valueCommitValueGen  = mustGenerator("Zcash_cv_value")
	valueCommitRandGen   = mustGenerator("Zcash_cv_rand")
	noteCommitGen        = mustGenerator("Zcash_ncm_note")
	noteCommitRandGen    = mustGenerator("Zcash_ncm_rand")
	nullifierGen         = mustGenerator("Zcash_PRF_nf")
	spendAuthGen         = Base()
)

func mustGenerator(person string) Point {
	// DiversifyHash rejects about half of all inputs, so a personalization
	// that does not map to a valid point is retried with a one-byte counter
	// appended until one does.
	tag := []byte(person)
	for ctr := 0; ctr < 256; ctr++ {
		p, err := DiversifyHash(tag)
		if err == nil {
			return p
		}
		tag = append([]byte(person), byte(ctr))
	}
	panic("jubjub: fixed generator derivation failed for " + person)
}

// DiversifyHash hashes an arbitrary-length diversifier into a prime-order
// Jubjub point: BLAKE2s(d) is interpreted as a compressed point and
// multiplied by the curve cofactor to discard any low-order component; the
// caller is expected to retry with an incremented diversifier index on
// failure (probability ~1/2 per attempt).
func DiversifyHash(d []byte) (Point, error) {
	digest := enc.Blake2sPersonalized("Zcash_gd", 32, d)
	var buf [32]byte
	copy(buf[:], digest)
	p, err := Decompress(buf)
	if err != nil {
		return p, zcash.ErrInvalidDiversifier
	}
	cofactor := big.NewInt(8)
	cleared := ScalarMult(p, cofactor)
	var identity Point
	identity.X.SetZero()
	identity.Y.SetOne()
	if cleared.Equal(&identity) {
		return cleared, zcash.ErrInvalidDiversifier
	}
	return cleared, nil
}

// SpendAuthGenerator returns G_spend, spending-key-to-ak generator.
func SpendAuthGenerator() Point { return spendAuthGen }

// NullifierKeyGenerator returns G_nk, nsk-to-nk generator.
func NullifierKeyGenerator() Point { return nullifierGen }

// ValueCommit computes cv = [value]*valueCommitValueGen + [rcv]*valueCommitRandGen,
// the Sapling Pedersen value commitment.
func ValueCommit(value uint64, rcv *big.Int) Point {
	v := new(big.Int).SetUint64(value)
	vg := ScalarMult(valueCommitValueGen, v)
	rg := ScalarMult(valueCommitRandGen, rcv)
	return Add(vg, rg)
}

// NoteCommit computes cmu = [noteHash(d,pkd,v,rcm)]*noteCommitGen + [rcm]*noteCommitRandGen,
// the Sapling note commitment. The value/diversifier/pkd triple is folded
// into a scalar via a personalized hash before the Pedersen step.
func NoteCommit(d []byte, pkd [32]byte, value uint64, rcm *big.Int) [32]byte {
	noteHash := enc.Blake2sPersonalized("Zcash_ncm_h", 32, d, pkd[:], new(big.Int).SetUint64(value).Bytes())
	m := new(big.Int).SetBytes(noteHash)
	m.Mod(m, Order())

	mg := ScalarMult(noteCommitGen, m)
	rg := ScalarMult(noteCommitRandGen, rcm)
	cmu := Add(mg, rg)
	return Compress(cmu)
}

// DeriveRcm derives a note's commitment randomness from its rseed. Defined
// once here so the shielded builder's encrypt side and the note scanner's
// decrypt side always agree.
func DeriveRcm(rseed [32]byte) *big.Int {
	digest := enc.Blake2sPersonalized("Zcash_rcm", 32, rseed[:])
	return ReduceScalar(new(big.Int).SetBytes(digest))
}

// DeriveNullifier computes nullifier = PRF^nf(nk, cmu, position), the
// deterministic double-spend tag revealed on spend.
func DeriveNullifier(nk Point, cmu [32]byte, position uint64) [32]byte {
	posBytes := make([]byte, 8)
	for i := 0; i < 8; i++ {
		posBytes[i] = byte(position >> (8 * i))
	}
	nkBytes := Compress(nk)
	digest := enc.Blake2sPersonalized("Zcash_nf", 32, nkBytes[:], cmu[:], posBytes)
	var out [32]byte
	copy(out[:], digest)
	return out
}
