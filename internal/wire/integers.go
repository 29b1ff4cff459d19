package wire

import (
	"bytes"
	"encoding/binary"
	"io"
)

// Signed integers use sign-magnitude, not two's complement: the high bit of
// the most significant byte carries the sign, the remaining bits the
// magnitude in little-endian order. Preserve this exactly; do not "fix" it
// to two's complement.

func writeSignMagnitude(buf *bytes.Buffer, v int64, width int) {
	neg := v < 0
	mag := v
	if neg {
		mag = -mag
	}
	b := make([]byte, width)
	for i := 0; i < width; i++ {
		b[i] = byte(mag >> (8 * uint(i)))
	}
	if neg {
		b[width-1] |= 0x80
	}
	buf.Write(b)
}

func readSignMagnitude(r io.Reader, width int) (int64, error) {
	b := make([]byte, width)
	if _, err := io.ReadFull(r, b); err != nil {
		return 0, newDecodeError(ErrShortRead, "reading %d-byte signed int: %v", width, err)
	}
	neg := b[width-1]&0x80 != 0
	b[width-1] &^= 0x80
	var mag int64
	for i := width - 1; i >= 0; i-- {
		mag = (mag << 8) | int64(b[i])
	}
	if neg {
		mag = -mag
	}
	return mag, nil
}

func WriteInt16(buf *bytes.Buffer, v int16) { writeSignMagnitude(buf, int64(v), 2) }
func WriteInt32(buf *bytes.Buffer, v int32) { writeSignMagnitude(buf, int64(v), 4) }
func WriteInt64(buf *bytes.Buffer, v int64) { writeSignMagnitude(buf, v, 8) }

func ReadInt16(r io.Reader) (int16, error) {
	v, err := readSignMagnitude(r, 2)
	return int16(v), err
}

func ReadInt32(r io.Reader) (int32, error) {
	v, err := readSignMagnitude(r, 4)
	return int32(v), err
}

func ReadInt64(r io.Reader) (int64, error) {
	return readSignMagnitude(r, 8)
}

// Unsigned fixed-width integers are plain little-endian.

func WriteUint16(buf *bytes.Buffer, v uint16) { binary.Write(buf, binary.LittleEndian, v) }
func WriteUint32(buf *bytes.Buffer, v uint32) { binary.Write(buf, binary.LittleEndian, v) }
func WriteUint64(buf *bytes.Buffer, v uint64) { binary.Write(buf, binary.LittleEndian, v) }

func ReadUint16(r io.Reader) (uint16, error) {
	var v uint16
	if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
		return 0, newDecodeError(ErrShortRead, "reading uint16: %v", err)
	}
	return v, nil
}

func ReadUint32(r io.Reader) (uint32, error) {
	var v uint32
	if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
		return 0, newDecodeError(ErrShortRead, "reading uint32: %v", err)
	}
	return v, nil
}

func ReadUint64(r io.Reader) (uint64, error) {
	var v uint64
	if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
		return 0, newDecodeError(ErrShortRead, "reading uint64: %v", err)
	}
	return v, nil
}

// WriteUint16BE and ReadUint16BE implement the BigEndian flag, used only for
// the port field of a network address.

func WriteUint16BE(buf *bytes.Buffer, v uint16) { binary.Write(buf, binary.BigEndian, v) }

func ReadUint16BE(r io.Reader) (uint16, error) {
	var v uint16
	if err := binary.Read(r, binary.BigEndian, &v); err != nil {
		return 0, newDecodeError(ErrShortRead, "reading big-endian uint16: %v", err)
	}
	return v, nil
}

// Time fields follow the general signed-integer rule by default (8-byte
// sign-magnitude seconds since epoch); the ShortFormat flag switches to a
// plain unsigned 4-byte encoding instead.

const maxValidTime = 2000000000

func WriteTime(buf *bytes.Buffer, unixSeconds int64) {
	WriteInt64(buf, unixSeconds)
}

func ReadTime(r io.Reader) (int64, error) {
	t, err := ReadInt64(r)
	if err != nil {
		return 0, err
	}
	if t < 0 || t > maxValidTime {
		return 0, newDecodeError(ErrTimeOutOfRange, "timestamp %d out of range", t)
	}
	return t, nil
}

func WriteTimeShort(buf *bytes.Buffer, unixSeconds uint32) {
	WriteUint32(buf, unixSeconds)
}

func ReadTimeShort(r io.Reader) (uint32, error) {
	t, err := ReadUint32(r)
	if err != nil {
		return 0, err
	}
	if t > maxValidTime {
		return 0, newDecodeError(ErrTimeOutOfRange, "short timestamp %d out of range", t)
	}
	return t, nil
}
