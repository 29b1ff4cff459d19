package wire

import "bytes"

// Verack, GetAddr and FilterLoad carry no payload; empty byte slices are
// their wire form in both directions.

// PingMessage / PongMessage carry a single nonce used to match RTT replies.
type PingMessage struct{ Nonce uint64 }
type PongMessage struct{ Nonce uint64 }

func (m PingMessage) Encode() []byte {
	buf := new(bytes.Buffer)
	WriteUint64(buf, m.Nonce)
	return buf.Bytes()
}

func DecodePingMessage(payload []byte) (PingMessage, error) {
	nonce, err := ReadUint64(bytes.NewReader(payload))
	return PingMessage{Nonce: nonce}, err
}

func (m PongMessage) Encode() []byte {
	buf := new(bytes.Buffer)
	WriteUint64(buf, m.Nonce)
	return buf.Bytes()
}

func DecodePongMessage(payload []byte) (PongMessage, error) {
	nonce, err := ReadUint64(bytes.NewReader(payload))
	return PongMessage{Nonce: nonce}, err
}

// AddrMessage is a varint-prefixed list of AddrEntry.
type AddrMessage struct{ Entries []AddrEntry }

func (m AddrMessage) Encode() []byte {
	buf := new(bytes.Buffer)
	WriteVarInt(buf, uint64(len(m.Entries)))
	for _, e := range m.Entries {
		e.Encode(buf)
	}
	return buf.Bytes()
}

func DecodeAddrMessage(payload []byte) (AddrMessage, error) {
	var m AddrMessage
	r := bytes.NewReader(payload)
	count, err := ReadVarInt(r)
	if err != nil {
		return m, err
	}
	m.Entries = make([]AddrEntry, 0, count)
	for i := uint64(0); i < count; i++ {
		e, err := DecodeAddrEntry(r)
		if err != nil {
			return m, err
		}
		m.Entries = append(m.Entries, e)
	}
	return m, nil
}

// RejectMessage reports a peer's rejection of a prior message.
type RejectMessage struct {
	Message string
	CCode   byte
	Reason  string
}

func (m RejectMessage) Encode() []byte {
	buf := new(bytes.Buffer)
	WriteVarString(buf, m.Message)
	buf.WriteByte(m.CCode)
	WriteVarString(buf, m.Reason)
	return buf.Bytes()
}

func DecodeRejectMessage(payload []byte) (RejectMessage, error) {
	var m RejectMessage
	r := bytes.NewReader(payload)

	msg, err := ReadVarString(r)
	if err != nil {
		return m, err
	}
	m.Message = msg

	ccode, err := r.ReadByte()
	if err != nil {
		return m, newDecodeError(ErrShortRead, "reading reject ccode: %v", err)
	}
	m.CCode = ccode

	reason, err := ReadVarString(r)
	if err != nil {
		return m, err
	}
	m.Reason = reason

	return m, nil
}

// GetBlocksMessage is the shared body of getblocks and getheaders: a
// protocol version, a locator list walked newest-first, and a stop hash.
type GetBlocksMessage struct {
	Version       uint32
	BlockLocators [][32]byte
	HashStop      [32]byte
}

func (m GetBlocksMessage) Encode() []byte {
	buf := new(bytes.Buffer)
	WriteUint32(buf, m.Version)
	WriteVarInt(buf, uint64(len(m.BlockLocators)))
	for _, h := range m.BlockLocators {
		buf.Write(h[:])
	}
	buf.Write(m.HashStop[:])
	return buf.Bytes()
}

func DecodeGetBlocksMessage(payload []byte) (GetBlocksMessage, error) {
	var m GetBlocksMessage
	r := bytes.NewReader(payload)

	version, err := ReadUint32(r)
	if err != nil {
		return m, err
	}
	m.Version = version

	count, err := ReadVarInt(r)
	if err != nil {
		return m, err
	}
	m.BlockLocators = make([][32]byte, count)
	for i := range m.BlockLocators {
		b, err := ReadFixedBytes(r, 32)
		if err != nil {
			return m, err
		}
		copy(m.BlockLocators[i][:], b)
	}

	stop, err := ReadFixedBytes(r, 32)
	if err != nil {
		return m, err
	}
	copy(m.HashStop[:], stop)

	return m, nil
}

// BlockHeader is a single header entry of a headers message.
type BlockHeader struct {
	Version       int32
	PrevBlockHash [32]byte
	MerkleRoot    [32]byte
	Timestamp     int64
	Bits          uint32
	Nonce         uint32
	TxnCount      uint64
}

func (h BlockHeader) Encode(buf *bytes.Buffer) {
	WriteInt32(buf, h.Version)
	buf.Write(h.PrevBlockHash[:])
	buf.Write(h.MerkleRoot[:])
	WriteTime(buf, h.Timestamp)
	WriteUint32(buf, h.Bits)
	WriteUint32(buf, h.Nonce)
	WriteVarInt(buf, h.TxnCount)
}

func DecodeBlockHeader(r *bytes.Reader) (BlockHeader, error) {
	var h BlockHeader

	version, err := ReadInt32(r)
	if err != nil {
		return h, err
	}
	h.Version = version

	prev, err := ReadFixedBytes(r, 32)
	if err != nil {
		return h, err
	}
	copy(h.PrevBlockHash[:], prev)

	merkle, err := ReadFixedBytes(r, 32)
	if err != nil {
		return h, err
	}
	copy(h.MerkleRoot[:], merkle)

	ts, err := ReadTime(r)
	if err != nil {
		return h, err
	}
	h.Timestamp = ts

	bits, err := ReadUint32(r)
	if err != nil {
		return h, err
	}
	h.Bits = bits

	nonce, err := ReadUint32(r)
	if err != nil {
		return h, err
	}
	h.Nonce = nonce

	txnCount, err := ReadVarInt(r)
	if err != nil {
		return h, err
	}
	h.TxnCount = txnCount

	return h, nil
}

// HeadersMessage is a varint-prefixed list of BlockHeader.
type HeadersMessage struct{ Headers []BlockHeader }

func (m HeadersMessage) Encode() []byte {
	buf := new(bytes.Buffer)
	WriteVarInt(buf, uint64(len(m.Headers)))
	for _, h := range m.Headers {
		h.Encode(buf)
	}
	return buf.Bytes()
}

func DecodeHeadersMessage(payload []byte) (HeadersMessage, error) {
	var m HeadersMessage
	r := bytes.NewReader(payload)
	count, err := ReadVarInt(r)
	if err != nil {
		return m, err
	}
	m.Headers = make([]BlockHeader, 0, count)
	for i := uint64(0); i < count; i++ {
		h, err := DecodeBlockHeader(r)
		if err != nil {
			return m, err
		}
		m.Headers = append(m.Headers, h)
	}
	return m, nil
}

// Inventory vector types, used by inv/getdata/notfound.
const (
	InvTypeError  uint32 = 0
	InvTypeTx     uint32 = 1
	InvTypeBlock  uint32 = 2
)

type InvVector struct {
	Type uint32
	Hash [32]byte
}

// InvMessage is the shared body of inv, getdata and notfound: a
// varint-prefixed array of inventory vectors.
type InvMessage struct{ Vectors []InvVector }

func (m InvMessage) Encode() []byte {
	buf := new(bytes.Buffer)
	WriteVarInt(buf, uint64(len(m.Vectors)))
	for _, v := range m.Vectors {
		WriteUint32(buf, v.Type)
		buf.Write(v.Hash[:])
	}
	return buf.Bytes()
}

func DecodeInvMessage(payload []byte) (InvMessage, error) {
	var m InvMessage
	r := bytes.NewReader(payload)
	count, err := ReadVarInt(r)
	if err != nil {
		return m, err
	}
	m.Vectors = make([]InvVector, 0, count)
	for i := uint64(0); i < count; i++ {
		typ, err := ReadUint32(r)
		if err != nil {
			return m, err
		}
		hashBytes, err := ReadFixedBytes(r, 32)
		if err != nil {
			return m, err
		}
		var v InvVector
		v.Type = typ
		copy(v.Hash[:], hashBytes)
		m.Vectors = append(m.Vectors, v)
	}
	return m, nil
}
