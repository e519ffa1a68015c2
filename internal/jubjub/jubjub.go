// Package jubjub implements the Jubjub scalar field and the fixed-generator
// point arithmetic Sapling keys and commitments are built from, on top of
// gnark-crypto's BLS12-381 twisted-Edwards subgroup, the curve the Zcash
// protocol calls Jubjub.
package jubjub

import (
	"crypto/rand"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	tedwards "github.com/consensys/gnark-crypto/ecc/bls12-381/twistededwards"

	"github.com/amiabix/zcash-bridge/pkg/zcash"
)

var curve = tedwards.GetEdwardsCurve()

// Point is a Jubjub point in affine coordinates.
type Point = tedwards.PointAffine

// Base returns the curve's standard generator.
func Base() Point {
	return curve.Base
}

// Order returns L, the prime order of the Jubjub subgroup.
func Order() *big.Int {
	o := curve.Order
	return &o
}

// RandomScalar draws a uniformly random nonzero scalar in [1, L).
func RandomScalar() (*big.Int, error) {
	l := Order()
	for {
		s, err := rand.Int(rand.Reader, l)
		if err != nil {
			return nil, err
		}
		if s.Sign() != 0 {
			return s, nil
		}
	}
}

// ReduceScalar reduces s modulo L.
func ReduceScalar(s *big.Int) *big.Int {
	return new(big.Int).Mod(s, Order())
}

// ValidateScalar returns zcash.ErrInvalidScalar if s is not a canonical
// element of [0, L).
func ValidateScalar(s *big.Int) error {
	if s.Sign() < 0 || s.Cmp(Order()) >= 0 {
		return zcash.ErrInvalidScalar
	}
	return nil
}

// AddMod adds two scalars mod L.
func AddMod(a, b *big.Int) *big.Int {
	sum := new(big.Int).Add(a, b)
	return sum.Mod(sum, Order())
}

// NegMod negates a scalar mod L.
func NegMod(a *big.Int) *big.Int {
	n := new(big.Int).Neg(a)
	return n.Mod(n, Order())
}

// ScalarMult computes [scalar]*p.
func ScalarMult(p Point, scalar *big.Int) Point {
	var out Point
	out.ScalarMultiplication(&p, scalar)
	return out
}

// ScalarBaseMult computes [scalar]*Base().
func ScalarBaseMult(scalar *big.Int) Point {
	return ScalarMult(Base(), scalar)
}

// Add returns p+q.
func Add(p, q Point) Point {
	var out Point
	out.Add(&p, &q)
	return out
}

// Neg returns -p.
func Neg(p Point) Point {
	var out Point
	out.Neg(&p)
	return out
}

// Equal reports whether p and q are the same point.
func Equal(p, q Point) bool {
	return p.Equal(&q)
}

// Compress encodes p as the 32-byte little-endian compressed Edwards point
// the Zcash protocol uses: the Y coordinate little-endian with the sign of
// X folded into the top bit.
func Compress(p Point) [32]byte {
	var out [32]byte
	yBytes := p.Y.Bytes()
	for i := 0; i < 32; i++ {
		out[i] = yBytes[31-i]
	}
	xBytes := p.X.Bytes()
	if xBytes[31]&1 == 1 {
		out[31] |= 0x80
	}
	return out
}

// Decompress reverses Compress, recovering X from the curve equation and
// selecting the root whose parity matches the encoded sign bit.
func Decompress(data [32]byte) (Point, error) {
	var p Point

	sign := data[31]&0x80 != 0
	le := data
	le[31] &^= 0x80
	var be [32]byte
	for i := 0; i < 32; i++ {
		be[i] = le[31-i]
	}

	var y fr.Element
	y.SetBytes(be[:])

	var one, yy, num, den, x2, x fr.Element
	one.SetOne()
	yy.Square(&y)
	num.Sub(&yy, &one)           // y^2 - 1
	den.Mul(&curve.D, &yy)
	den.Sub(&den, &curve.A)      // d*y^2 - a
	var denInv fr.Element
	denInv.Inverse(&den)
	x2.Mul(&num, &denInv)

	if x.Sqrt(&x2) == nil {
		return p, zcash.ErrInvalidDiversifier
	}
	xBytes := x.Bytes()
	if (xBytes[31]&1 == 1) != sign {
		x.Neg(&x)
	}

	p.X = x
	p.Y = y
	return p, nil
}

// IsPrimeOrder reports whether p generates the full prime-order subgroup
// (i.e. is not a low-order point introduced by the curve's cofactor).
func IsPrimeOrder(p Point) bool {
	cleared := ScalarMult(p, Order())
	var identity Point
	identity.X.SetZero()
	identity.Y.SetOne()
	return cleared.Equal(&identity)
}
