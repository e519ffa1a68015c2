package enc

import (
	"github.com/amiabix/zcash-bridge/pkg/zcash"
	"github.com/btcsuite/btcd/btcutil/base58"
)

// Base58CheckEncode encodes payload with a two-byte Zcash version prefix
// (version[0] becomes the base58 "version" byte btcutil tracks separately,
// version[1] is prepended to payload so it round-trips through
// base58.CheckDecode exactly as btcutil's single-byte API allows) followed
// by a 4-byte double-SHA-256 checksum.
//
// btcutil's CheckEncode/CheckDecode only understand a single version byte,
// so the second Zcash version byte travels as payload[0].
func Base58CheckEncode(version [2]byte, payload []byte) string {
	full := make([]byte, 1+len(payload))
	full[0] = version[1]
	copy(full[1:], payload)
	return base58.CheckEncode(full, version[0])
}

// Base58CheckDecode reverses Base58CheckEncode, returning the two-byte
// version and the payload that followed it.
func Base58CheckDecode(s string) (version [2]byte, payload []byte, err error) {
	decoded, v0, decErr := base58.CheckDecode(s)
	if decErr != nil {
		if decErr == base58.ErrChecksum {
			return version, nil, zcash.ErrChecksumMismatch
		}
		return version, nil, zcash.ErrInvalidLength
	}
	if len(decoded) < 1 {
		return version, nil, zcash.ErrInvalidLength
	}
	version[0] = v0
	version[1] = decoded[0]
	payload = decoded[1:]
	return version, payload, nil
}
