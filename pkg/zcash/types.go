package zcash

import "encoding/hex"

// Zatoshi is the smallest Zcash unit; 1e8 zatoshi = 1 ZEC.
type Zatoshi uint64

// Hash32 is a generic 32-byte value: a txid, a commitment, a nullifier, a
// tree root. Which one it is depends entirely on where it is used; the
// protocol never mixes these fields, so a single fixed-array type is enough
// and avoids a menagerie of single-purpose [32]byte aliases.
type Hash32 [32]byte

// IsZero reports whether every byte is zero.
func (h Hash32) IsZero() bool { return h == Hash32{} }

// Bytes returns the hash as a byte slice sharing the array's backing store.
func (h Hash32) Bytes() []byte { return h[:] }

// String returns the big-endian hex encoding.
func (h Hash32) String() string { return hex.EncodeToString(h[:]) }

// Reversed returns a copy with byte order reversed, matching the Zcash wire
// convention for txids and prev-txid fields.
func (h Hash32) Reversed() Hash32 {
	var r Hash32
	for i, b := range h {
		r[31-i] = b
	}
	return r
}

// Hash32FromBytes copies up to 32 bytes of b into a new Hash32.
func Hash32FromBytes(b []byte) Hash32 {
	var h Hash32
	n := len(b)
	if n > 32 {
		n = 32
	}
	copy(h[:n], b[:n])
	return h
}

// Network selects the Zcash network parameters (version bytes, HRPs) in
// effect for derivation, address encoding, and validation.
type Network uint8

const (
	Mainnet Network = iota
	Testnet
)

func (n Network) String() string {
	if n == Testnet {
		return "testnet"
	}
	return "mainnet"
}

// AddressKind distinguishes the receiver type a caller asked for or an
// address decoded to.
type AddressKind uint8

const (
	KindUnknown AddressKind = iota
	KindTransparentP2PKH
	KindTransparentP2SH
	KindSapling
	KindOrchard
)

func (k AddressKind) String() string {
	switch k {
	case KindTransparentP2PKH:
		return "p2pkh"
	case KindTransparentP2SH:
		return "p2sh"
	case KindSapling:
		return "sapling"
	case KindOrchard:
		return "orchard"
	default:
		return "unknown"
	}
}

// Balance is a cache's summary of spendable value for an address.
type Balance struct {
	Confirmed   Zatoshi
	Unconfirmed Zatoshi
	Total       Zatoshi
}
