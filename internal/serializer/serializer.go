// Package serializer implements the exact v4 Sapling transaction wire
// encoding: little-endian fields, compact-size counts, prev-txid reversed
// on the wire, a pure byte-identical round trip.
package serializer

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/amiabix/zcash-bridge/internal/enc"
	"github.com/amiabix/zcash-bridge/pkg/zcash"
)

// EncCiphertextLen and OutCiphertextLen are the fixed Sapling ciphertext
// sizes.
const (
	EncCiphertextLen = 580
	OutCiphertextLen = 80
	ProofLen         = 192
	SigLen           = 64

	VersionGroupID = 0x892F2085
	MaxTxSize      = 2_000_000
)

// TxIn is one wire-form transparent input.
type TxIn struct {
	PrevTxID  zcash.Hash32 // display order; reversed automatically on write
	Vout      uint32
	ScriptSig []byte
	Sequence  uint32
}

// TxOut is one wire-form transparent output.
type TxOut struct {
	Value        zcash.Zatoshi
	ScriptPubKey []byte
}

// SpendDesc is one wire-form Sapling spend description.
type SpendDesc struct {
	Cv           [32]byte
	Anchor       zcash.Hash32
	Nullifier    [32]byte
	Rk           [32]byte
	Proof        [ProofLen]byte
	SpendAuthSig [SigLen]byte
}

// OutputDesc is one wire-form Sapling output description.
type OutputDesc struct {
	Cv            [32]byte
	Cmu           [32]byte
	Epk           [32]byte
	EncCiphertext []byte // must be EncCiphertextLen bytes
	OutCiphertext []byte // must be OutCiphertextLen bytes
	Proof         [ProofLen]byte
}

// ShieldedTx is a complete v4 transaction: transparent legs plus the
// Sapling bundle, sharing one wire layout.
type ShieldedTx struct {
	Version        uint32
	VersionGroupID uint32
	Inputs         []TxIn
	TransparentOut []TxOut
	LockTime       uint32
	ExpiryHeight   uint32
	ValueBalance   int64
	Spends         []SpendDesc
	Outputs        []OutputDesc
	BindingSig     [SigLen]byte
}

// Serialize encodes tx to its exact wire form. Pure: calling it twice on an
// equal-by-value tx yields byte-identical output.
func Serialize(tx *ShieldedTx) ([]byte, error) {
	var buf bytes.Buffer

	writeU32(&buf, tx.Version|0x80000000)
	writeU32(&buf, tx.VersionGroupID)

	enc.CompactSizeWrite(&buf, uint64(len(tx.Inputs)))
	for _, in := range tx.Inputs {
		buf.Write(in.PrevTxID.Reversed().Bytes())
		writeU32(&buf, in.Vout)
		enc.CompactSizeWrite(&buf, uint64(len(in.ScriptSig)))
		buf.Write(in.ScriptSig)
		writeU32(&buf, in.Sequence)
	}

	enc.CompactSizeWrite(&buf, uint64(len(tx.TransparentOut)))
	for _, out := range tx.TransparentOut {
		writeI64(&buf, int64(out.Value))
		enc.CompactSizeWrite(&buf, uint64(len(out.ScriptPubKey)))
		buf.Write(out.ScriptPubKey)
	}

	writeU32(&buf, tx.LockTime)
	writeU32(&buf, tx.ExpiryHeight)
	writeI64(&buf, tx.ValueBalance)

	enc.CompactSizeWrite(&buf, uint64(len(tx.Spends)))
	for _, s := range tx.Spends {
		buf.Write(s.Cv[:])
		buf.Write(s.Anchor.Bytes())
		buf.Write(s.Nullifier[:])
		buf.Write(s.Rk[:])
		buf.Write(s.Proof[:])
		buf.Write(s.SpendAuthSig[:])
	}

	enc.CompactSizeWrite(&buf, uint64(len(tx.Outputs)))
	for _, o := range tx.Outputs {
		if len(o.EncCiphertext) != EncCiphertextLen || len(o.OutCiphertext) != OutCiphertextLen {
			return nil, zcash.ErrSerializationError
		}
		buf.Write(o.Cv[:])
		buf.Write(o.Cmu[:])
		buf.Write(o.Epk[:])
		buf.Write(o.EncCiphertext)
		buf.Write(o.OutCiphertext)
		buf.Write(o.Proof[:])
	}

	if len(tx.Spends) > 0 || len(tx.Outputs) > 0 {
		buf.Write(tx.BindingSig[:])
	}

	if buf.Len() > MaxTxSize {
		return nil, zcash.ErrSerializationError
	}
	return buf.Bytes(), nil
}

// Deserialize is the exact inverse of Serialize.
func Deserialize(raw []byte) (*ShieldedTx, error) {
	r := bytes.NewReader(raw)
	tx := &ShieldedTx{}

	var rawVersion uint32
	if err := readU32(r, &rawVersion); err != nil {
		return nil, err
	}
	tx.Version = rawVersion &^ 0x80000000
	if err := readU32(r, &tx.VersionGroupID); err != nil {
		return nil, err
	}

	nIn, err := enc.CompactSizeRead(r)
	if err != nil {
		return nil, err
	}
	if err := checkCount(r, nIn, 41); err != nil { // txid+vout+len+sequence
		return nil, err
	}
	tx.Inputs = make([]TxIn, nIn)
	for i := range tx.Inputs {
		var wireTxID [32]byte
		if _, err := io.ReadFull(r, wireTxID[:]); err != nil {
			return nil, zcash.ErrTruncated
		}
		tx.Inputs[i].PrevTxID = zcash.Hash32FromBytes(wireTxID[:]).Reversed()
		if err := readU32(r, &tx.Inputs[i].Vout); err != nil {
			return nil, err
		}
		scriptLen, err := enc.CompactSizeRead(r)
		if err != nil {
			return nil, err
		}
		tx.Inputs[i].ScriptSig = make([]byte, scriptLen)
		if _, err := io.ReadFull(r, tx.Inputs[i].ScriptSig); err != nil {
			return nil, zcash.ErrTruncated
		}
		if err := readU32(r, &tx.Inputs[i].Sequence); err != nil {
			return nil, err
		}
	}

	nOut, err := enc.CompactSizeRead(r)
	if err != nil {
		return nil, err
	}
	if err := checkCount(r, nOut, 9); err != nil { // value+len
		return nil, err
	}
	tx.TransparentOut = make([]TxOut, nOut)
	for i := range tx.TransparentOut {
		var value int64
		if err := readI64(r, &value); err != nil {
			return nil, err
		}
		tx.TransparentOut[i].Value = zcash.Zatoshi(value)
		scriptLen, err := enc.CompactSizeRead(r)
		if err != nil {
			return nil, err
		}
		tx.TransparentOut[i].ScriptPubKey = make([]byte, scriptLen)
		if _, err := io.ReadFull(r, tx.TransparentOut[i].ScriptPubKey); err != nil {
			return nil, zcash.ErrTruncated
		}
	}

	if err := readU32(r, &tx.LockTime); err != nil {
		return nil, err
	}
	if err := readU32(r, &tx.ExpiryHeight); err != nil {
		return nil, err
	}
	if err := readI64(r, &tx.ValueBalance); err != nil {
		return nil, err
	}

	nSpend, err := enc.CompactSizeRead(r)
	if err != nil {
		return nil, err
	}
	if err := checkCount(r, nSpend, 32*4+ProofLen+SigLen); err != nil {
		return nil, err
	}
	tx.Spends = make([]SpendDesc, nSpend)
	for i := range tx.Spends {
		s := &tx.Spends[i]
		if _, err := io.ReadFull(r, s.Cv[:]); err != nil {
			return nil, zcash.ErrTruncated
		}
		var anchor [32]byte
		if _, err := io.ReadFull(r, anchor[:]); err != nil {
			return nil, zcash.ErrTruncated
		}
		s.Anchor = zcash.Hash32FromBytes(anchor[:])
		if _, err := io.ReadFull(r, s.Nullifier[:]); err != nil {
			return nil, zcash.ErrTruncated
		}
		if _, err := io.ReadFull(r, s.Rk[:]); err != nil {
			return nil, zcash.ErrTruncated
		}
		if _, err := io.ReadFull(r, s.Proof[:]); err != nil {
			return nil, zcash.ErrTruncated
		}
		if _, err := io.ReadFull(r, s.SpendAuthSig[:]); err != nil {
			return nil, zcash.ErrTruncated
		}
	}

	nSOut, err := enc.CompactSizeRead(r)
	if err != nil {
		return nil, err
	}
	if err := checkCount(r, nSOut, 32*3+EncCiphertextLen+OutCiphertextLen+ProofLen); err != nil {
		return nil, err
	}
	tx.Outputs = make([]OutputDesc, nSOut)
	for i := range tx.Outputs {
		o := &tx.Outputs[i]
		if _, err := io.ReadFull(r, o.Cv[:]); err != nil {
			return nil, zcash.ErrTruncated
		}
		if _, err := io.ReadFull(r, o.Cmu[:]); err != nil {
			return nil, zcash.ErrTruncated
		}
		if _, err := io.ReadFull(r, o.Epk[:]); err != nil {
			return nil, zcash.ErrTruncated
		}
		o.EncCiphertext = make([]byte, EncCiphertextLen)
		if _, err := io.ReadFull(r, o.EncCiphertext); err != nil {
			return nil, zcash.ErrTruncated
		}
		o.OutCiphertext = make([]byte, OutCiphertextLen)
		if _, err := io.ReadFull(r, o.OutCiphertext); err != nil {
			return nil, zcash.ErrTruncated
		}
		if _, err := io.ReadFull(r, o.Proof[:]); err != nil {
			return nil, zcash.ErrTruncated
		}
	}

	if len(tx.Spends) > 0 || len(tx.Outputs) > 0 {
		if _, err := io.ReadFull(r, tx.BindingSig[:]); err != nil {
			return nil, zcash.ErrTruncated
		}
	}

	return tx, nil
}

// checkCount rejects a claimed element count the remaining bytes cannot
// possibly hold, so a corrupt count never drives a huge allocation.
func checkCount(r *bytes.Reader, n uint64, minElemSize int) error {
	if n > uint64(r.Len())/uint64(minElemSize) {
		return zcash.ErrTruncated
	}
	return nil
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeI64(buf *bytes.Buffer, v int64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	buf.Write(b[:])
}

func readU32(r io.Reader, out *uint32) error {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return zcash.ErrTruncated
	}
	*out = binary.LittleEndian.Uint32(b[:])
	return nil
}

func readI64(r io.Reader, out *int64) error {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return zcash.ErrTruncated
	}
	*out = int64(binary.LittleEndian.Uint64(b[:]))
	return nil
}
