// Package keys implements the key deriver: an HKDF-SHA512 bridge from a
// foreign account's private key, through a BIP32 master seed and a BIP44
// hardened path, to a transparent secp256k1 key and a full set of Sapling
// spending/viewing keys and addresses. The BIP32 child-key-derivation
// arithmetic uses github.com/btcsuite/btcd/btcec/v2.
package keys

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/amiabix/zcash-bridge/internal/address"
	"github.com/amiabix/zcash-bridge/internal/enc"
	"github.com/amiabix/zcash-bridge/internal/jubjub"
	"github.com/amiabix/zcash-bridge/pkg/common"
	"github.com/amiabix/zcash-bridge/pkg/zcash"
)

// DerivedKeys is the full key/address material for one account on one
// network, deterministically derived from the host's private key.
type DerivedKeys struct {
	Ask           [32]byte
	Nsk           [32]byte
	Ovk           [32]byte
	Ivk           [32]byte
	TransparentSK [32]byte
	TAddr         string
	ZAddr         string
}

// Zero scrubs every secret field. Callers must invoke this as soon as a
// DerivedKeys value is no longer needed for the current build/sign
// operation; derived secret scalars live only as long as a transaction
// build.
func (d *DerivedKeys) Zero() {
	common.Zero(d.Ask[:])
	common.Zero(d.Nsk[:])
	common.Zero(d.Ovk[:])
	common.Zero(d.Ivk[:])
	common.Zero(d.TransparentSK[:])
}

const bip44Purpose = 44
const bip44ZcashCoinType = 133

// Derive runs the whole chain, HKDF bridge through address encoding.
// hostSK must be at least 32 bytes; it is never retained beyond this
// call. Identical inputs always produce byte-identical output: nothing
// here reads a clock, an RNG, or any state outside the arguments.
func Derive(network zcash.Network, hostID string, hostSK []byte, accountIndex uint32) (*DerivedKeys, error) {
	if len(hostSK) < 32 {
		return nil, zcash.ErrInvalidHostKey
	}
	if hostID == "" {
		return nil, zcash.ErrInvalidAccountID
	}
	if accountIndex >= 1<<31 {
		return nil, zcash.ErrInvalidAccountIndex
	}

	salt := []byte(fmt.Sprintf("zcash-miden-%s-%s", network.String(), hostID))
	info := []byte("zcash-master-seed-v1")
	seed, err := enc.HkdfSha512(hostSK, salt, info, 64)
	if err != nil {
		return nil, err
	}

	masterI := enc.HmacSha512([]byte("Bitcoin seed"), seed)
	kM, cM := masterI[:32], masterI[32:]

	kPurpose, cPurpose, err := deriveHardened(kM, cM, bip44Purpose)
	if err != nil {
		return nil, err
	}
	kCoin, cCoin, err := deriveHardened(kPurpose, cPurpose, bip44ZcashCoinType)
	if err != nil {
		return nil, err
	}
	kAccount, cAccount, err := deriveHardened(kCoin, cCoin, accountIndex)
	if err != nil {
		return nil, err
	}

	// accountKey is the Sapling derivation root: the hardened path before
	// the transparent /0/0 split.
	accountKey := common.CopyBytes(kAccount)

	kChange, cChange, err := deriveNonHardened(kAccount, cAccount, 0)
	if err != nil {
		return nil, err
	}
	kAddr, _, err := deriveNonHardened(kChange, cChange, 0)
	if err != nil {
		return nil, err
	}

	var transparentSK [32]byte
	copy(transparentSK[:], kAddr)

	transparentPriv, _ := btcec.PrivKeyFromBytes(kAddr)
	pubCompressed := transparentPriv.PubKey().SerializeCompressed()
	pubHash := enc.Hash160(pubCompressed)

	tAddr, err := address.EncodeTransparent(network, zcash.KindTransparentP2PKH, pubHash)
	if err != nil {
		return nil, err
	}

	ask, nsk, ovk, err := deriveSaplingKeys(accountKey)
	common.Zero(accountKey)
	if err != nil {
		return nil, err
	}

	ak := jubjub.ScalarMult(jubjub.SpendAuthGenerator(), ask)
	nk := jubjub.ScalarMult(jubjub.NullifierKeyGenerator(), nsk)
	akBytes := jubjub.Compress(ak)
	nkBytes := jubjub.Compress(nk)

	ivkDigest := enc.Blake2sPersonalized("Zcash_ivk", 32, akBytes[:], nkBytes[:])
	ivkScalar := new(big.Int).SetBytes(ivkDigest)
	ivkScalar.Mod(ivkScalar, jubjub.Order())

	zAddr, err := address.EncodeSapling(network, ivkScalar)
	if err != nil {
		return nil, err
	}

	var out DerivedKeys
	copyScalar(out.Ask[:], ask)
	copyScalar(out.Nsk[:], nsk)
	copyScalar(out.Ovk[:], ovk)
	copyScalar(out.Ivk[:], ivkScalar)
	out.TransparentSK = transparentSK
	out.TAddr = tAddr
	out.ZAddr = zAddr

	common.Zero(kAddr)
	return &out, nil
}

func copyScalar(dst []byte, s *big.Int) {
	b := s.Bytes()
	if len(b) > len(dst) {
		b = b[len(b)-len(dst):]
	}
	copy(dst[len(dst)-len(b):], b)
}

// deriveSaplingKeys derives ask/nsk/ovk each via
// HKDF-SHA256(accountKey, label, info, 32), with info "spending-key-<idx>",
// "nsk-key-<idx>" and "ovk-key-<idx>" respectively, idx fixed at 0
// for the account-level key (per-address diversification happens
// separately at address-encode time).
func deriveSaplingKeys(accountKey []byte) (ask, nsk, ovk *big.Int, err error) {
	idx := le32(0)

	askBytes, err := enc.HkdfSha256(accountKey, []byte("zcash-sapling-spending"), append([]byte("spending-key-"), idx...), 32)
	if err != nil {
		return nil, nil, nil, err
	}
	nskBytes, err := enc.HkdfSha256(accountKey, []byte("zcash-sapling-nullifier"), append([]byte("nsk-key-"), idx...), 32)
	if err != nil {
		return nil, nil, nil, err
	}
	ovkBytes, err := enc.HkdfSha256(accountKey, []byte("zcash-sapling-outgoing"), append([]byte("ovk-key-"), idx...), 32)
	if err != nil {
		return nil, nil, nil, err
	}

	ask = jubjub.ReduceScalar(new(big.Int).SetBytes(askBytes))
	nsk = jubjub.ReduceScalar(new(big.Int).SetBytes(nskBytes))
	ovk = new(big.Int).SetBytes(ovkBytes)

	if ask.Sign() == 0 || nsk.Sign() == 0 {
		return nil, nil, nil, zcash.ErrDerivationZero
	}
	return ask, nsk, ovk, nil
}

func le32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

// deriveHardened performs one BIP32 hardened child derivation step:
// HMAC-SHA512(c_parent, 0x00 ‖ k_parent ‖ index_be32), with the hardened
// offset folded into index.
func deriveHardened(kParent, cParent []byte, index uint32) (childKey, childChain []byte, err error) {
	hardenedIndex := index | 0x80000000
	data := make([]byte, 0, 1+32+4)
	data = append(data, 0x00)
	data = append(data, kParent...)
	var idxBuf [4]byte
	binary.BigEndian.PutUint32(idxBuf[:], hardenedIndex)
	data = append(data, idxBuf[:]...)

	return combineChild(kParent, cParent, data)
}

// deriveNonHardened performs one BIP32 non-hardened child derivation step:
// HMAC-SHA512(c_parent, pubkey_compressed ‖ index_be32).
func deriveNonHardened(kParent, cParent []byte, index uint32) (childKey, childChain []byte, err error) {
	parentPriv, _ := btcec.PrivKeyFromBytes(kParent)
	pubCompressed := parentPriv.PubKey().SerializeCompressed()

	data := make([]byte, 0, len(pubCompressed)+4)
	data = append(data, pubCompressed...)
	var idxBuf [4]byte
	binary.BigEndian.PutUint32(idxBuf[:], index)
	data = append(data, idxBuf[:]...)

	return combineChild(kParent, cParent, data)
}

func combineChild(kParent, cParent, data []byte) (childKey, childChain []byte, err error) {
	i := enc.HmacSha512(cParent, data)
	il, ir := i[:32], i[32:]

	ilInt := new(big.Int).SetBytes(il)
	kInt := new(big.Int).SetBytes(kParent)
	n := btcec.S256().N

	child := new(big.Int).Add(ilInt, kInt)
	child.Mod(child, n)
	if child.Sign() == 0 || ilInt.Cmp(n) >= 0 {
		return nil, nil, zcash.ErrDerivationZero
	}

	childKey = make([]byte, 32)
	b := child.Bytes()
	copy(childKey[32-len(b):], b)
	return childKey, ir, nil
}
