package jubjub

import (
	"math/big"

	"github.com/amiabix/zcash-bridge/internal/enc"
)

// RedJubjubSign produces a 64-byte Schnorr-style signature R‖s over msg
// under the (possibly randomized) private scalar sk and its corresponding
// public point pk = [sk]*generator. Spend-auth and binding signatures are
// both this same construction, applied to a randomized ask+alpha for spends
// and to bsk for the binding signature.
//
// r is drawn fresh per signature; s = r + H(R‖pk‖msg)*sk mod L, the
// standard Schnorr relation that lets RedJubjubVerify recompute R from s
// and the challenge without ever seeing sk.
func RedJubjubSign(generator Point, sk *big.Int, msg []byte) ([64]byte, error) {
	var sig [64]byte
	pk := ScalarMult(generator, sk)
	pkBytes := Compress(pk)

	r, err := RandomScalar()
	if err != nil {
		return sig, err
	}
	rPoint := ScalarMult(generator, r)
	rBytes := Compress(rPoint)

	challenge := challengeScalar(rBytes, pkBytes, msg)
	s := AddMod(r, mulMod(challenge, sk))

	copy(sig[:32], rBytes[:])
	copyScalar(sig[32:], s)
	zeroScalar(r)
	return sig, nil
}

// RedJubjubVerify checks a signature produced by RedJubjubSign against the
// public point pk.
func RedJubjubVerify(generator, pk Point, msg []byte, sig [64]byte) bool {
	var rBytes [32]byte
	copy(rBytes[:], sig[:32])
	rPoint, err := Decompress(rBytes)
	if err != nil {
		return false
	}
	s := new(big.Int).SetBytes(sig[32:])
	if s.Cmp(Order()) >= 0 {
		return false
	}

	pkBytes := Compress(pk)
	challenge := challengeScalar(rBytes, pkBytes, msg)

	lhs := ScalarMult(generator, s)
	rhs := Add(rPoint, ScalarMult(pk, challenge))
	return Equal(lhs, rhs)
}

func challengeScalar(r, pk [32]byte, msg []byte) *big.Int {
	digest := enc.Blake2sPersonalized("Zcash_RedJubjubH", 32, r[:], pk[:], msg)
	return ReduceScalar(new(big.Int).SetBytes(digest))
}

func mulMod(a, b *big.Int) *big.Int {
	p := new(big.Int).Mul(a, b)
	return p.Mod(p, Order())
}

func copyScalar(dst []byte, s *big.Int) {
	b := s.Bytes()
	if len(b) > len(dst) {
		b = b[len(b)-len(dst):]
	}
	copy(dst[len(dst)-len(b):], b)
}

func zeroScalar(s *big.Int) { s.SetInt64(0) }
