package wire

import (
	"bytes"
	"encoding/binary"
	"io"
)

// WriteVarInt appends v using the Bitcoin variable-length integer encoding:
// values below 0xFD encode as a single byte; larger values are prefixed with
// a width marker (0xFD/0xFE/0xFF) followed by the little-endian payload.
func WriteVarInt(buf *bytes.Buffer, v uint64) {
	switch {
	case v < 0xfd:
		buf.WriteByte(byte(v))
	case v <= 0xffff:
		buf.WriteByte(0xfd)
		binary.Write(buf, binary.LittleEndian, uint16(v))
	case v <= 0xffffffff:
		buf.WriteByte(0xfe)
		binary.Write(buf, binary.LittleEndian, uint32(v))
	default:
		buf.WriteByte(0xff)
		binary.Write(buf, binary.LittleEndian, v)
	}
}

// ReadVarInt reads a varint and rejects non-canonical encodings (a width
// marker used where the shorter form would have sufficed).
func ReadVarInt(r io.Reader) (uint64, error) {
	var first byte
	if err := binary.Read(r, binary.LittleEndian, &first); err != nil {
		return 0, newDecodeError(ErrShortRead, "reading varint marker: %v", err)
	}

	switch first {
	case 0xff:
		var v uint64
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return 0, newDecodeError(ErrShortRead, "reading varint u64 body: %v", err)
		}
		if v <= 0xffffffff {
			return 0, newDecodeError(ErrVarintMismatch, "0xff varint %d fits a narrower width", v)
		}
		return v, nil
	case 0xfe:
		var v uint32
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return 0, newDecodeError(ErrShortRead, "reading varint u32 body: %v", err)
		}
		if uint64(v) <= 0xffff {
			return 0, newDecodeError(ErrVarintMismatch, "0xfe varint %d fits a narrower width", v)
		}
		return uint64(v), nil
	case 0xfd:
		var v uint16
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return 0, newDecodeError(ErrShortRead, "reading varint u16 body: %v", err)
		}
		if v < 0xfd {
			return 0, newDecodeError(ErrVarintMismatch, "0xfd varint %d fits a narrower width", v)
		}
		return uint64(v), nil
	default:
		return uint64(first), nil
	}
}

// VarIntSize returns the number of bytes WriteVarInt would emit for v.
func VarIntSize(v uint64) int {
	switch {
	case v < 0xfd:
		return 1
	case v <= 0xffff:
		return 3
	case v <= 0xffffffff:
		return 5
	default:
		return 9
	}
}
