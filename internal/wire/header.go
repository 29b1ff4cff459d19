package wire

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"io"
)

const headerSize = 24 // 4 magic + 12 command + 4 length + 4 checksum

// MessageHeader is the fixed-size frame prefix: network magic, command,
// payload length, and a truncated double-SHA256 checksum of the payload.
type MessageHeader struct {
	Network  NetworkType
	Command  Command
	Length   uint32
	Checksum [4]byte
}

// Checksum is the first four bytes of SHA256(SHA256(payload)).
func Checksum(payload []byte) [4]byte {
	h1 := sha256.Sum256(payload)
	h2 := sha256.Sum256(h1[:])
	var out [4]byte
	copy(out[:], h2[:4])
	return out
}

// GetSerializedMessage frames payload under the given network and command:
// magic, command, length, checksum, then the payload itself.
func GetSerializedMessage(network NetworkType, cmd Command, payload []byte) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, uint32(network))
	writeCommand(buf, cmd)
	WriteUint32(buf, uint32(len(payload)))
	checksum := Checksum(payload)
	buf.Write(checksum[:])
	buf.Write(payload)
	return buf.Bytes()
}

// ReadFrame reads one complete framed message from r: a MessageHeader
// followed by its payload. It verifies the magic against expectedNetwork
// and the payload checksum, surfacing typed *DecodeError values for both.
func ReadFrame(r io.Reader, expectedNetwork NetworkType) (Command, []byte, error) {
	raw := make([]byte, headerSize)
	if _, err := io.ReadFull(r, raw); err != nil {
		return "", nil, newDecodeError(ErrShortRead, "reading header: %v", err)
	}

	hbuf := bytes.NewReader(raw)

	var magic uint32
	binary.Read(hbuf, binary.LittleEndian, &magic)
	if NetworkType(magic) != expectedNetwork {
		return "", nil, newDecodeError(ErrUnknownMagic, "magic 0x%x does not match network %s", magic, expectedNetwork)
	}

	cmd, err := readCommand(hbuf)
	if err != nil {
		return "", nil, err
	}

	length, err := ReadUint32(hbuf)
	if err != nil {
		return "", nil, err
	}

	var wantChecksum [4]byte
	io.ReadFull(hbuf, wantChecksum[:])

	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return "", nil, newDecodeError(ErrShortRead, "reading %d-byte payload: %v", length, err)
		}
	}

	if got := Checksum(payload); got != wantChecksum {
		return "", nil, newDecodeError(ErrChecksumMismatch, "checksum mismatch for %s", cmd)
	}

	return cmd, payload, nil
}
