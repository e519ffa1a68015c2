package enc

import (
	"github.com/amiabix/zcash-bridge/pkg/zcash"
	"github.com/btcsuite/btcd/btcutil/bech32"
)

// Bech32Encode encodes payload (arbitrary-length bytes, not 5-bit groups)
// under hrp using plain Bech32 (BIP-173 / Zcash Sapling addresses use the
// original bech32 checksum, not bech32m).
func Bech32Encode(hrp string, payload []byte) (string, error) {
	converted, err := bech32.ConvertBits(payload, 8, 5, true)
	if err != nil {
		return "", err
	}
	s, err := bech32.Encode(hrp, converted)
	if err != nil {
		return "", err
	}
	return s, nil
}

// Bech32Decode reverses Bech32Encode, returning the human-readable part and
// the decoded byte payload.
func Bech32Decode(s string) (hrp string, payload []byte, err error) {
	hrp, data, decErr := bech32.Decode(s)
	if decErr != nil {
		return "", nil, zcash.ErrInvalidEncoding
	}
	payload, err = bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return "", nil, zcash.ErrInvalidEncoding
	}
	return hrp, payload, nil
}
