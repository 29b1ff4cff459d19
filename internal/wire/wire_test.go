package wire

import (
	"bytes"
	"testing"
)

func TestVarIntBoundaries(t *testing.T) {
	cases := []struct {
		value      uint64
		wantLength int
	}{
		{0, 1},
		{0xFC, 1},
		{0xFD, 3},
		{0xFFFF, 3},
		{0x10000, 5},
		{0xFFFFFFFF, 5},
		{0x100000000, 9},
		{^uint64(0), 9},
	}

	for _, tc := range cases {
		buf := new(bytes.Buffer)
		WriteVarInt(buf, tc.value)
		if buf.Len() != tc.wantLength {
			t.Errorf("WriteVarInt(%d): got length %d, want %d", tc.value, buf.Len(), tc.wantLength)
		}

		got, err := ReadVarInt(bytes.NewReader(buf.Bytes()))
		if err != nil {
			t.Fatalf("ReadVarInt(%d): %v", tc.value, err)
		}
		if got != tc.value {
			t.Errorf("ReadVarInt round-trip: got %d, want %d", got, tc.value)
		}
	}
}

func TestSignedSignMagnitude(t *testing.T) {
	buf := new(bytes.Buffer)
	WriteInt16(buf, -1)
	if got := buf.Bytes(); !bytes.Equal(got, []byte{0x01, 0x80}) {
		t.Errorf("encode_i16(-1) = % x, want 01 80", got)
	}

	buf.Reset()
	WriteInt32(buf, -1)
	if got := buf.Bytes(); !bytes.Equal(got, []byte{0x01, 0x00, 0x00, 0x80}) {
		t.Errorf("encode_i32(-1) = % x, want 01 00 00 80", got)
	}

	for _, v := range []int32{0, 1, 2, -1, -2, 1<<31 - 1, -(1<<31 - 1)} {
		buf.Reset()
		WriteInt32(buf, v)
		got, err := ReadInt32(bytes.NewReader(buf.Bytes()))
		if err != nil {
			t.Fatalf("ReadInt32(%d): %v", v, err)
		}
		if got != v {
			t.Errorf("round-trip i32(%d): got %d", v, got)
		}
	}
}

func TestBigEndianPort(t *testing.T) {
	addr := NewIPAddress("1.2.3.4", 18333, ServiceNodeNetwork)
	buf := new(bytes.Buffer)
	addr.Encode(buf)
	b := buf.Bytes()
	last2 := b[len(b)-2:]
	if !bytes.Equal(last2, []byte{0x47, 0x9d}) {
		t.Errorf("port bytes = % x, want 47 9d", last2)
	}
}

func TestFraming(t *testing.T) {
	frame := GetSerializedMessage(TestNet3, CmdVerack, nil)

	wantMagic := []byte{0x0B, 0x11, 0x09, 0x07}
	if !bytes.Equal(frame[0:4], wantMagic) {
		t.Errorf("magic = % x, want % x", frame[0:4], wantMagic)
	}

	wantCmd := append([]byte("verack"), make([]byte, 6)...)
	if !bytes.Equal(frame[4:16], wantCmd) {
		t.Errorf("command = % x, want % x", frame[4:16], wantCmd)
	}

	if !bytes.Equal(frame[16:20], []byte{0, 0, 0, 0}) {
		t.Errorf("length = % x, want 00 00 00 00", frame[16:20])
	}

	wantChecksum := []byte{0x5D, 0xF6, 0xE0, 0xE2}
	if !bytes.Equal(frame[20:24], wantChecksum) {
		t.Errorf("checksum = % x, want % x", frame[20:24], wantChecksum)
	}
}

func TestVersionMessageRoundTrip(t *testing.T) {
	recv := NewIPAddress("8.8.8.8", 8333, ServiceNodeNetwork)
	v := NewVersionMessage(recv, 100, "/btcnode:0.1.0/", 70015)
	v.Timestamp = 1700000000

	encoded := v.Encode()
	decoded, err := DecodeVersionMessage(encoded)
	if err != nil {
		t.Fatalf("DecodeVersionMessage: %v", err)
	}

	if decoded.Version != v.Version || decoded.UserAgent != v.UserAgent || decoded.Nonce != v.Nonce {
		t.Fatalf("round trip mismatch: got %+v, want %+v", decoded, v)
	}
	if !decoded.Relay {
		t.Errorf("Relay should round-trip true for version > 70001")
	}
}

func TestVersionMessageRelayDefaultsFalseBelowThreshold(t *testing.T) {
	recv := NewIPAddress("8.8.8.8", 8333, ServiceNodeNetwork)
	v := NewVersionMessage(recv, 0, "/btcnode:0.1.0/", 70001)
	v.Relay = true

	decoded, err := DecodeVersionMessage(v.Encode())
	if err != nil {
		t.Fatalf("DecodeVersionMessage: %v", err)
	}
	if decoded.Relay {
		t.Errorf("Relay should default to false when version <= 70001")
	}
}

func TestCommandRejectsUnknown(t *testing.T) {
	var raw [12]byte
	copy(raw[:], "bogus")
	if _, err := decodeCommand(raw); err == nil {
		t.Fatal("expected error decoding unknown command")
	}
}

func TestVarStringRejectsOversized(t *testing.T) {
	buf := new(bytes.Buffer)
	WriteVarInt(buf, MaxStringLen+1)
	if _, err := ReadVarString(bytes.NewReader(buf.Bytes())); err == nil {
		t.Fatal("expected error for oversized string")
	}
}
