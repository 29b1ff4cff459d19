package wire

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
)

// relayFlagVersion is the highest protocol version whose version message
// omits the trailing relay byte; the byte is present only above it.
const relayFlagVersion = 70001

// VersionMessage is the first message exchanged during the handshake.
type VersionMessage struct {
	Version     int32
	Services    Services
	Timestamp   int64
	AddrRecv    IPAddress
	AddrFrom    IPAddress
	Nonce       uint64
	UserAgent   string
	StartHeight int32
	Relay       bool
}

// NewVersionMessage builds an outbound version announcing startHeight to a
// peer reachable at recvAddr.
func NewVersionMessage(recvAddr IPAddress, startHeight int32, userAgent string, protocolVersion int32) VersionMessage {
	var nonceBuf [8]byte
	rand.Read(nonceBuf[:])
	nonce := binary.LittleEndian.Uint64(nonceBuf[:])

	return VersionMessage{
		Version:     protocolVersion,
		Services:    0,
		Timestamp:   0, // stamped by the caller at send time
		AddrRecv:    recvAddr,
		AddrFrom:    NewIPAddress("0.0.0.0", 0, 0),
		Nonce:       nonce,
		UserAgent:   userAgent,
		StartHeight: startHeight,
		Relay:       true,
	}
}

// Encode serializes the version body. The relay byte is only written when
// Version > relayFlagVersion.
func (v VersionMessage) Encode() []byte {
	buf := new(bytes.Buffer)

	WriteInt32(buf, v.Version)
	WriteUint64(buf, uint64(v.Services))
	WriteTime(buf, v.Timestamp)

	v.AddrRecv.Encode(buf)
	v.AddrFrom.Encode(buf)

	WriteUint64(buf, v.Nonce)
	WriteVarString(buf, v.UserAgent)
	WriteInt32(buf, v.StartHeight)

	if v.Version > relayFlagVersion {
		if v.Relay {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	}

	return buf.Bytes()
}

// DecodeVersionMessage parses a version payload. Relay defaults to false
// when the peer's version is at or below relayFlagVersion.
func DecodeVersionMessage(payload []byte) (VersionMessage, error) {
	var v VersionMessage
	r := bytes.NewReader(payload)

	version, err := ReadInt32(r)
	if err != nil {
		return v, err
	}
	v.Version = version

	services, err := ReadUint64(r)
	if err != nil {
		return v, err
	}
	v.Services = Services(services)

	ts, err := ReadTime(r)
	if err != nil {
		return v, err
	}
	v.Timestamp = ts

	addrRecv, err := DecodeIPAddress(r)
	if err != nil {
		return v, err
	}
	v.AddrRecv = addrRecv

	addrFrom, err := DecodeIPAddress(r)
	if err != nil {
		return v, err
	}
	v.AddrFrom = addrFrom

	nonce, err := ReadUint64(r)
	if err != nil {
		return v, err
	}
	v.Nonce = nonce

	userAgent, err := ReadVarString(r)
	if err != nil {
		return v, err
	}
	v.UserAgent = userAgent

	startHeight, err := ReadInt32(r)
	if err != nil {
		return v, err
	}
	v.StartHeight = startHeight

	if v.Version > relayFlagVersion && r.Len() > 0 {
		relayByte, err := ReadFixedBytes(r, 1)
		if err != nil {
			return v, err
		}
		v.Relay = relayByte[0] != 0
	}

	return v, nil
}
