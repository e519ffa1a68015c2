package enc

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/amiabix/zcash-bridge/pkg/zcash"
)

// CompactSizeWrite writes n to buf using the Bitcoin/Zcash compact-size
// varint encoding.
func CompactSizeWrite(buf *bytes.Buffer, n uint64) {
	switch {
	case n < 0xfd:
		buf.WriteByte(byte(n))
	case n <= 0xffff:
		buf.WriteByte(0xfd)
		binary.Write(buf, binary.LittleEndian, uint16(n)) //nolint:errcheck
	case n <= 0xffffffff:
		buf.WriteByte(0xfe)
		binary.Write(buf, binary.LittleEndian, uint32(n)) //nolint:errcheck
	default:
		buf.WriteByte(0xff)
		binary.Write(buf, binary.LittleEndian, n) //nolint:errcheck
	}
}

// CompactSizeRead reads a compact-size varint from r.
func CompactSizeRead(r io.Reader) (uint64, error) {
	var prefix [1]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return 0, zcash.ErrTruncated
	}
	switch prefix[0] {
	case 0xfd:
		var v uint16
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return 0, zcash.ErrTruncated
		}
		return uint64(v), nil
	case 0xfe:
		var v uint32
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return 0, zcash.ErrTruncated
		}
		return uint64(v), nil
	case 0xff:
		var v uint64
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return 0, zcash.ErrTruncated
		}
		return v, nil
	default:
		return uint64(prefix[0]), nil
	}
}
