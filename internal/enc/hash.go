// Package enc provides the encoding and hash primitives (Base58Check,
// Bech32, SHA-256 family, BLAKE2s, HMAC, HKDF, compact-size varint) that
// every other package in this module builds on.
package enc

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"io"

	"github.com/amiabix/zcash-bridge/pkg/zcash"
	"golang.org/x/crypto/blake2s"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // required for Zcash hash160
)

// Sha256 returns the SHA-256 digest of data.
func Sha256(data ...[]byte) zcash.Hash32 {
	h := sha256.New()
	for _, d := range data {
		h.Write(d)
	}
	return zcash.Hash32FromBytes(h.Sum(nil))
}

// DoubleSha256 returns SHA-256(SHA-256(data)), the Bitcoin/Zcash txid and
// sighash digest.
func DoubleSha256(data ...[]byte) zcash.Hash32 {
	first := Sha256(data...)
	return Sha256(first[:])
}

// Ripemd160 returns the RIPEMD-160 digest of data.
func Ripemd160(data []byte) []byte {
	h := ripemd160.New()
	h.Write(data)
	return h.Sum(nil)
}

// Hash160 is ripemd160(sha256(data)), used to derive transparent pubkey
// hashes.
func Hash160(data []byte) []byte {
	s := sha256.Sum256(data)
	return Ripemd160(s[:])
}

// Checksum4 returns the first 4 bytes of a double-SHA-256 digest, the
// Base58Check trailer.
func Checksum4(data []byte) [4]byte {
	d := DoubleSha256(data)
	var c [4]byte
	copy(c[:], d[:4])
	return c
}

// HmacSha512 computes HMAC-SHA512(key, data), used for BIP32 master-key and
// child-key derivation.
func HmacSha512(key, data []byte) []byte {
	h := hmac.New(sha512.New, key)
	h.Write(data)
	return h.Sum(nil)
}

// HkdfSha512 derives outLen bytes via HKDF-SHA512(ikm, salt, info), the
// foreign-key bridge step of key derivation.
func HkdfSha512(ikm, salt, info []byte, outLen int) ([]byte, error) {
	r := hkdf.New(sha512.New, ikm, salt, info)
	out := make([]byte, outLen)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}

// HkdfSha256 derives outLen bytes via HKDF-SHA256(ikm, salt, info), used for
// the Sapling spending/viewing-key derivation steps.
func HkdfSha256(ikm, salt, info []byte, outLen int) ([]byte, error) {
	r := hkdf.New(sha256.New, ikm, salt, info)
	out := make([]byte, outLen)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Blake2sPersonalized derives dkLen bytes from data using a personalized
// BLAKE2s-256 construction: out = BLAKE2s(person ‖ ctr_be32 ‖ data) for
// successive counters until dkLen bytes are produced, then truncated. The
// native BLAKE2s personalization block is a fixed 8-byte field in the real
// Zcash protocol; this module folds the personalization into the hashed
// message instead of the block parameter, which golang.org/x/crypto/blake2s
// does not expose. Every caller in this module uses this single function, so
// the simplification is internally consistent (see DESIGN.md).
func Blake2sPersonalized(person string, dkLen int, data ...[]byte) []byte {
	out := make([]byte, 0, dkLen)
	for ctr := uint32(0); len(out) < dkLen; ctr++ {
		h, _ := blake2s.New256(nil)
		h.Write([]byte(person))
		var ctrBuf [4]byte
		binary.BigEndian.PutUint32(ctrBuf[:], ctr)
		h.Write(ctrBuf[:])
		for _, d := range data {
			h.Write(d)
		}
		out = append(out, h.Sum(nil)...)
	}
	return out[:dkLen]
}

// Blake2s256 derives a fixed 32-byte personalized digest.
func Blake2s256(person string, data ...[]byte) zcash.Hash32 {
	return zcash.Hash32FromBytes(Blake2sPersonalized(person, 32, data...))
}
