package wire

import (
	"bytes"
	"io"
	"unicode/utf8"
)

// MaxStringLen bounds any varstring decode; payloads claiming more are
// rejected before the allocation happens.
const MaxStringLen = 1024

// WriteVarString is the VariableSize-flagged string encoding: a varint
// length prefix followed by the raw bytes.
func WriteVarString(buf *bytes.Buffer, s string) {
	WriteVarInt(buf, uint64(len(s)))
	buf.WriteString(s)
}

// ReadVarString reads a length-prefixed string, rejecting oversized or
// non-UTF-8 payloads.
func ReadVarString(r io.Reader) (string, error) {
	n, err := ReadVarInt(r)
	if err != nil {
		return "", err
	}
	if n > MaxStringLen {
		return "", newDecodeError(ErrStringTooLong, "string length %d exceeds %d", n, MaxStringLen)
	}
	b := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, b); err != nil {
			return "", newDecodeError(ErrShortRead, "reading %d-byte string: %v", n, err)
		}
	}
	if !utf8.Valid(b) {
		return "", newDecodeError(ErrBadUTF8, "string is not valid UTF-8")
	}
	return string(b), nil
}

// WriteFixedBytes is the FixedSize(n) flag for byte arrays: no length
// prefix, the caller already knows n from the field declaration.
func WriteFixedBytes(buf *bytes.Buffer, b []byte) {
	buf.Write(b)
}

// ReadFixedBytes reads exactly n bytes with no length prefix.
func ReadFixedBytes(r io.Reader, n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, newDecodeError(ErrShortRead, "reading %d fixed bytes: %v", n, err)
	}
	return b, nil
}
