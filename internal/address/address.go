// Package address implements the Zcash address codec and validator:
// encode/decode/validate for transparent Base58Check addresses and Sapling
// Bech32 addresses, with network and checksum checks.
package address

import (
	"math/big"

	"github.com/amiabix/zcash-bridge/internal/enc"
	"github.com/amiabix/zcash-bridge/internal/jubjub"
	"github.com/amiabix/zcash-bridge/pkg/zcash"
)

// Mainnet/Testnet version bytes and HRPs, per the Zcash protocol's address
// encoding tables.
var p2pkhVersion = map[zcash.Network][2]byte{
	zcash.Mainnet: {0x1C, 0xB8},
	zcash.Testnet: {0x1D, 0x25},
}

var p2shVersion = map[zcash.Network][2]byte{
	zcash.Mainnet: {0x1C, 0xBD},
	zcash.Testnet: {0x1C, 0xBA},
}

var saplingHRP = map[zcash.Network]string{
	zcash.Mainnet: "zs",
	zcash.Testnet: "ztestsapling",
}

var orchardHRP = map[zcash.Network]string{
	zcash.Mainnet: "u",
	zcash.Testnet: "utest",
}

const saplingPayloadLen = 43 // 11-byte diversifier + 32-byte pkd

// EncodeTransparent encodes a 20-byte pubkey/script hash as a Base58Check
// t-address for the given network and kind.
func EncodeTransparent(network zcash.Network, kind zcash.AddressKind, hash160 []byte) (string, error) {
	if len(hash160) != 20 {
		return "", zcash.ErrInvalidLength
	}
	var version [2]byte
	switch kind {
	case zcash.KindTransparentP2PKH:
		version = p2pkhVersion[network]
	case zcash.KindTransparentP2SH:
		version = p2shVersion[network]
	default:
		return "", zcash.ErrInvalidAddress
	}
	return enc.Base58CheckEncode(version, hash160), nil
}

// EncodeSapling derives diversifier index 0 upward until DiversifyHash
// succeeds, computes pkd = [ivk]*DiversifyHash(d), and encodes
// bech32(hrp, d ‖ pkd).
func EncodeSapling(network zcash.Network, ivk *big.Int) (string, error) {
	for idx := uint32(0); idx < 256; idx++ {
		d := diversifierCandidate(ivk, idx)
		gd, err := jubjub.DiversifyHash(d)
		if err != nil {
			continue
		}
		pkdPoint := jubjub.ScalarMult(gd, ivk)
		pkd := jubjub.Compress(pkdPoint)

		payload := make([]byte, 0, saplingPayloadLen)
		payload = append(payload, d...)
		payload = append(payload, pkd[:]...)

		return enc.Bech32Encode(saplingHRP[network], payload)
	}
	return "", zcash.ErrInvalidDiversifier
}

func diversifierCandidate(ivk *big.Int, idx uint32) []byte {
	idxBytes := make([]byte, 4)
	idxBytes[0] = byte(idx)
	idxBytes[1] = byte(idx >> 8)
	idxBytes[2] = byte(idx >> 16)
	idxBytes[3] = byte(idx >> 24)
	digest := enc.Blake2sPersonalized("diversifier", 11, ivk.Bytes(), idxBytes)
	return digest
}

// Decoded is the result of Validate: exactly one of the receiver-specific
// fields is populated.
type Decoded struct {
	Kind        zcash.AddressKind
	Network     zcash.Network
	Hash160     []byte // transparent
	Diversifier []byte // sapling: 11 bytes
	Pkd         []byte // sapling: 32 bytes
	Raw         []byte // orchard raw payload if not further decoded
}

// Validate tries transparent decoding first, then shielded.
func Validate(addr string, network zcash.Network) (*Decoded, error) {
	if d, err := decodeTransparent(addr, network); err == nil {
		return d, nil
	}
	if d, err := decodeSapling(addr, network); err == nil {
		return d, nil
	}
	if d, err := decodeOrchard(addr, network); err == nil {
		return d, nil
	}
	return nil, zcash.ErrInvalidAddress
}

func decodeTransparent(addr string, network zcash.Network) (*Decoded, error) {
	version, payload, err := enc.Base58CheckDecode(addr)
	if err != nil {
		return nil, err
	}
	if len(payload) != 20 {
		return nil, zcash.ErrInvalidLength
	}
	if version == p2pkhVersion[network] {
		return &Decoded{Kind: zcash.KindTransparentP2PKH, Network: network, Hash160: payload}, nil
	}
	if version == p2shVersion[network] {
		return &Decoded{Kind: zcash.KindTransparentP2SH, Network: network, Hash160: payload}, nil
	}
	return nil, zcash.ErrNetworkMismatch
}

func decodeSapling(addr string, network zcash.Network) (*Decoded, error) {
	hrp, payload, err := enc.Bech32Decode(addr)
	if err != nil {
		return nil, err
	}
	if hrp != saplingHRP[network] {
		return nil, zcash.ErrNetworkMismatch
	}
	if len(payload) != saplingPayloadLen {
		return nil, zcash.ErrInvalidLength
	}
	return &Decoded{
		Kind:        zcash.KindSapling,
		Network:     network,
		Diversifier: payload[:11],
		Pkd:         payload[11:],
	}, nil
}

// decodeOrchard recognizes an Orchard-HRP address on receive only; this
// wallet never spends from Orchard notes.
func decodeOrchard(addr string, network zcash.Network) (*Decoded, error) {
	hrp, payload, err := enc.Bech32Decode(addr)
	if err != nil {
		return nil, err
	}
	if hrp != orchardHRP[network] {
		return nil, zcash.ErrNetworkMismatch
	}
	return &Decoded{Kind: zcash.KindOrchard, Network: network, Raw: payload}, nil
}

// IsForNetwork reports whether addr decodes successfully under network.
func IsForNetwork(addr string, network zcash.Network) bool {
	_, err := Validate(addr, network)
	return err == nil
}

// Standard Bitcoin-style script opcodes used by the two transparent
// scriptPubKey shapes this package builds.
const (
	opDup         = 0x76
	opHash160     = 0xa9
	opEqualVerify = 0x88
	opCheckSig    = 0xac
	opEqual       = 0x87
)

// P2PKHScript builds a standard pay-to-pubkey-hash scriptPubKey:
// OP_DUP OP_HASH160 <hash160> OP_EQUALVERIFY OP_CHECKSIG.
func P2PKHScript(hash160 []byte) ([]byte, error) {
	if len(hash160) != 20 {
		return nil, zcash.ErrInvalidLength
	}
	script := make([]byte, 0, 25)
	script = append(script, opDup, opHash160, byte(len(hash160)))
	script = append(script, hash160...)
	script = append(script, opEqualVerify, opCheckSig)
	return script, nil
}

// P2SHScript builds a standard pay-to-script-hash scriptPubKey:
// OP_HASH160 <hash160> OP_EQUAL.
func P2SHScript(hash160 []byte) ([]byte, error) {
	if len(hash160) != 20 {
		return nil, zcash.ErrInvalidLength
	}
	script := make([]byte, 0, 23)
	script = append(script, opHash160, byte(len(hash160)))
	script = append(script, hash160...)
	script = append(script, opEqual)
	return script, nil
}

// ScriptPubKeyForAddress decodes addr and builds the scriptPubKey a
// transparent output paying it would carry, used by the builders to turn a
// caller-supplied recipient string into wire bytes.
func ScriptPubKeyForAddress(addr string, network zcash.Network) ([]byte, error) {
	d, err := Validate(addr, network)
	if err != nil {
		return nil, err
	}
	switch d.Kind {
	case zcash.KindTransparentP2PKH:
		return P2PKHScript(d.Hash160)
	case zcash.KindTransparentP2SH:
		return P2SHScript(d.Hash160)
	default:
		return nil, zcash.ErrInvalidAddress
	}
}
