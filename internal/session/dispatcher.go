package session

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"net"
	"strconv"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/rs/zerolog"

	"github.com/keato/btcnode/internal/log"
	"github.com/keato/btcnode/internal/metrics"
	"github.com/keato/btcnode/internal/peerstate"
	"github.com/keato/btcnode/internal/wire"
)

// maxPendingInv is the backpressure threshold: once pending inventory grows
// past it, get_blocks stops issuing new requests until peers catch up.
const maxPendingInv = 100

// maxGetBlocksResponse caps how many hashes a single getblocks reply sends.
const maxGetBlocksResponse = 500

// Dispatcher maps incoming framed messages to their handlers and owns the
// single shared State. It exposes exactly two entry points to the
// transport: NewConnection and Handle.
type Dispatcher struct {
	network         wire.NetworkType
	sender          Sender
	state           *State
	startHeight     int32
	userAgent       string
	protocolVersion int32
	logger          zerolog.Logger
}

// NewDispatcher wires a Dispatcher to a transport Sender and a block store.
// sender may be nil when the transport depends on the dispatcher at
// construction time; call SetSender once both exist.
func NewDispatcher(network wire.NetworkType, sender Sender, state *State, startHeight int32, userAgent string, protocolVersion int32) *Dispatcher {
	return &Dispatcher{
		network:         network,
		sender:          sender,
		state:           state,
		startHeight:     startHeight,
		userAgent:       userAgent,
		protocolVersion: protocolVersion,
		logger:          log.ComponentLogger("dispatcher"),
	}
}

// SetSender assigns the transport the dispatcher sends frames through. It
// exists to break the construction cycle between a Dispatcher and a
// transport that needs a *Dispatcher of its own.
func (d *Dispatcher) SetSender(sender Sender) {
	d.state.mu.Lock()
	defer d.state.mu.Unlock()
	d.sender = sender
}

func (d *Dispatcher) sendFrame(token Token, cmd wire.Command, payload []byte) {
	raw := wire.GetSerializedMessage(d.network, cmd, payload)
	metrics.FramesSent.WithLabelValues(string(cmd)).Inc()
	if err := d.sender.Send(token, raw); err != nil {
		d.logger.Warn().Err(err).Str("token", string(token)).Str("command", string(cmd)).Msg("send failed")
	}
}

func randomNonce() uint64 {
	var b [8]byte
	rand.Read(b[:])
	return binary.LittleEndian.Uint64(b[:])
}

func versionAddrFor(peerAddr string) wire.IPAddress {
	host, portStr, err := net.SplitHostPort(peerAddr)
	if err != nil {
		return wire.NewIPAddress("0.0.0.0", 0, 0)
	}
	port, _ := strconv.Atoi(portStr)
	return wire.NewIPAddress(host, uint16(port), wire.ServiceNodeNetwork)
}

// NewConnection is invoked by the transport once it has established an
// outbound connection: it creates the Peer entry and sends our version.
func (d *Dispatcher) NewConnection(token Token, peerAddr string) {
	d.state.mu.Lock()
	defer d.state.mu.Unlock()

	peer := peerstate.NewPeer(peerstate.Outbound)
	d.state.Peers[token] = peer

	v := wire.NewVersionMessage(versionAddrFor(peerAddr), d.startHeight, d.userAgent, d.protocolVersion)
	v.Timestamp = time.Now().Unix()
	d.sendFrame(token, wire.CmdVersion, v.Encode())
}

// Handle parses one complete framed message and dispatches it to the
// handler for its command. Decode failures are logged and dropped; they
// never propagate past this boundary.
func (d *Dispatcher) Handle(token Token, raw []byte) {
	cmd, payload, err := wire.ReadFrame(bytes.NewReader(raw), d.network)
	if err != nil {
		if de, ok := err.(*wire.DecodeError); ok {
			metrics.DecodeErrors.WithLabelValues(de.Kind.String()).Inc()
			if de.Kind == wire.ErrUnknownMagic {
				metrics.WrongNetwork.Inc()
			}
		}
		d.logger.Warn().Err(err).Str("token", string(token)).Msg("dropping malformed frame")
		return
	}

	d.state.mu.Lock()
	defer d.state.mu.Unlock()

	metrics.MessagesHandled.WithLabelValues(string(cmd)).Inc()

	peer := d.state.Peers[token]
	if peer == nil && cmd != wire.CmdVersion {
		d.logger.Warn().Str("token", string(token)).Str("command", string(cmd)).Msg("message from unregistered peer")
		return
	}

	switch cmd {
	case wire.CmdVersion:
		d.handleVersion(token, payload)
	case wire.CmdVerack:
		d.handleVerack(token, peer)
	case wire.CmdPing:
		d.handlePing(token, payload)
	case wire.CmdPong:
		d.handlePong(peer, payload)
	case wire.CmdGetAddr:
		d.handleGetAddr(token)
	case wire.CmdAddr:
		d.handleAddr(payload)
	case wire.CmdInv:
		d.handleInv(token, peer, payload)
	case wire.CmdGetData:
		d.handleGetData(token, payload)
	case wire.CmdTx:
		d.handleTx(token, peer, payload)
	case wire.CmdBlock:
		d.handleBlock(token, peer, payload)
	case wire.CmdGetBlocks:
		d.handleGetBlocks(token, payload)
	case wire.CmdGetHeaders:
		d.sendFrame(token, wire.CmdHeaders, wire.HeadersMessage{}.Encode())
	case wire.CmdReject:
		d.handleReject(token, payload)
	case wire.CmdHeaders, wire.CmdFilterLoad, wire.CmdNotFound:
		d.logger.Info().Str("token", string(token)).Str("command", string(cmd)).Msg("received, no action taken")
	}
}

func (d *Dispatcher) handleVersion(token Token, payload []byte) {
	v, err := wire.DecodeVersionMessage(payload)
	if err != nil {
		d.logger.Warn().Err(err).Str("token", string(token)).Msg("bad version payload")
		return
	}

	peer := d.state.Peers[token]
	inbound := peer == nil
	if peer == nil {
		peer = peerstate.NewPeer(peerstate.Inbound)
		d.state.Peers[token] = peer
	}
	peer.Version = &v

	if inbound {
		ours := wire.NewVersionMessage(versionAddrFor(string(token)), d.startHeight, d.userAgent, d.protocolVersion)
		ours.Timestamp = time.Now().Unix()
		d.sendFrame(token, wire.CmdVersion, ours.Encode())
	}
	d.sendFrame(token, wire.CmdVerack, nil)
}

func (d *Dispatcher) handleVerack(token Token, peer *peerstate.Peer) {
	peer.VerackReceived = true
	d.sendFrame(token, wire.CmdGetAddr, nil)
	d.getBlocks(token, peer)

	nonce := randomNonce()
	peer.RecordPing(nonce, time.Now())
	d.sendFrame(token, wire.CmdPing, wire.PingMessage{Nonce: nonce}.Encode())
}

func (d *Dispatcher) handlePing(token Token, payload []byte) {
	ping, err := wire.DecodePingMessage(payload)
	if err != nil {
		d.logger.Warn().Err(err).Msg("bad ping payload")
		return
	}
	d.sendFrame(token, wire.CmdPong, wire.PongMessage{Nonce: ping.Nonce}.Encode())
}

func (d *Dispatcher) handlePong(peer *peerstate.Peer, payload []byte) {
	pong, err := wire.DecodePongMessage(payload)
	if err != nil {
		d.logger.Warn().Err(err).Msg("bad pong payload")
		return
	}
	if !peer.RecordPong(pong.Nonce, time.Now()) {
		metrics.PongNonceMismatch.Inc()
		d.logger.Debug().Uint64("nonce", pong.Nonce).Msg("pong nonce mismatch")
		return
	}
	metrics.PingRTT.Observe(float64(peer.RTTMillis))
}

func (d *Dispatcher) handleGetAddr(token Token) {
	var entries []wire.AddrEntry
	for _, peer := range d.state.Peers {
		if peer.Version == nil {
			continue
		}
		entries = append(entries, wire.AddrEntry{
			Time: uint32(peer.LastPingSentAt.Unix()),
			Addr: peer.Version.AddrFrom,
		})
	}
	d.sendFrame(token, wire.CmdAddr, wire.AddrMessage{Entries: entries}.Encode())
}

func (d *Dispatcher) handleAddr(payload []byte) {
	addrMsg, err := wire.DecodeAddrMessage(payload)
	if err != nil {
		d.logger.Warn().Err(err).Msg("bad addr payload")
		return
	}
	for _, entry := range addrMsg.Entries {
		if err := d.sender.Connect(entry.Addr.String()); err != nil {
			d.logger.Debug().Err(err).Str("addr", entry.Addr.String()).Msg("connect request failed")
		}
	}
}

func (d *Dispatcher) handleInv(token Token, peer *peerstate.Peer, payload []byte) {
	inv, err := wire.DecodeInvMessage(payload)
	if err != nil {
		d.logger.Warn().Err(err).Msg("bad inv payload")
		return
	}

	var wanted []wire.InvVector
	for _, v := range inv.Vectors {
		hash := chainhash.Hash(v.Hash)
		switch v.Type {
		case wire.InvTypeTx:
			if _, known := d.state.TxStore[hash]; !known {
				wanted = append(wanted, v)
			}
		case wire.InvTypeBlock:
			has, err := d.state.BlockStore.Has(hash)
			if err != nil {
				d.logger.Error().Err(err).Msg("block store Has")
				continue
			}
			if !has && !d.state.PendingInv.Has(hash) {
				d.state.PendingInv.Insert(hash)
				wanted = append(wanted, v)
			}
		}
	}

	if len(wanted) > 0 {
		d.sendFrame(token, wire.CmdGetData, wire.InvMessage{Vectors: wanted}.Encode())
	}
	peer.WaitingForBlocks.Clear()
}

func (d *Dispatcher) handleGetData(token Token, payload []byte) {
	inv, err := wire.DecodeInvMessage(payload)
	if err != nil {
		d.logger.Warn().Err(err).Msg("bad getdata payload")
		return
	}
	for _, v := range inv.Vectors {
		if v.Type != wire.InvTypeBlock {
			continue
		}
		raw, ok, err := d.state.BlockStore.Get(chainhash.Hash(v.Hash))
		if err != nil {
			d.logger.Error().Err(err).Msg("block store Get")
			continue
		}
		if ok {
			d.sendFrame(token, wire.CmdBlock, raw)
		}
	}
}

func (d *Dispatcher) handleTx(token Token, peer *peerstate.Peer, payload []byte) {
	hash := chainhash.DoubleHashH(payload)
	d.state.TxStore[hash] = append([]byte(nil), payload...)
	d.getBlocks(token, peer)
}

func (d *Dispatcher) handleBlock(token Token, peer *peerstate.Peer, payload []byte) {
	if len(payload) < 80 {
		d.logger.Warn().Int("len", len(payload)).Msg("block payload shorter than header")
		return
	}
	hash := chainhash.DoubleHashH(payload[:80])

	d.state.PendingInv.Remove(hash)
	if err := d.state.BlockStore.Insert(hash, payload); err != nil {
		metrics.BlockStoreErrors.WithLabelValues("insert").Inc()
		d.logger.Error().Err(err).Msg("block store Insert")
		return
	}
	metrics.BlockHeight.Set(float64(d.state.BlockStore.Height()))
	d.getBlocks(token, peer)
}

func (d *Dispatcher) handleGetBlocks(token Token, payload []byte) {
	req, err := wire.DecodeGetBlocksMessage(payload)
	if err != nil {
		d.logger.Warn().Err(err).Msg("bad getblocks payload")
		return
	}

	startHeight := int64(-1)
	for _, locator := range req.BlockLocators {
		h, ok, err := d.state.BlockStore.GetHeight(chainhash.Hash(locator))
		if err != nil {
			d.logger.Error().Err(err).Msg("block store GetHeight")
			return
		}
		if ok {
			startHeight = h
			break
		}
	}
	if startHeight < 0 {
		return
	}

	hashStop := chainhash.Hash(req.HashStop)
	var vectors []wire.InvVector
	tip := d.state.BlockStore.Height()
	for h := startHeight + 1; h <= tip && len(vectors) < maxGetBlocksResponse; h++ {
		hash, ok, err := d.state.BlockStore.GetHashAtHeight(h)
		if err != nil {
			d.logger.Error().Err(err).Msg("block store GetHashAtHeight")
			return
		}
		if !ok {
			break
		}
		if hash == hashStop {
			break
		}
		vectors = append(vectors, wire.InvVector{Type: wire.InvTypeBlock, Hash: [32]byte(hash)})
	}

	if len(vectors) > 0 {
		d.sendFrame(token, wire.CmdInv, wire.InvMessage{Vectors: vectors}.Encode())
	}
}

func (d *Dispatcher) handleReject(token Token, payload []byte) {
	rej, err := wire.DecodeRejectMessage(payload)
	if err != nil {
		d.logger.Warn().Err(err).Msg("bad reject payload")
		return
	}
	// reject is routine peer signaling, not a connection fault: log and continue.
	d.logger.Error().Str("token", string(token)).Str("message", rej.Message).
		Uint8("ccode", rej.CCode).Str("reason", rej.Reason).Msg("peer sent reject")
}

// getBlocks requests the next batch of blocks from a peer, subject to
// pending-inventory backpressure and the peer's own in-flight request.
func (d *Dispatcher) getBlocks(token Token, peer *peerstate.Peer) {
	if d.state.PendingInv.Len() > maxPendingInv {
		metrics.GetBlocksSkipped.WithLabelValues("backpressure").Inc()
		return
	}
	if peer.WaitingForBlocks.Active() {
		metrics.GetBlocksSkipped.WithLabelValues("already_waiting").Inc()
		return
	}

	locators, err := d.state.BlockStore.BlockLocators()
	if err != nil {
		d.logger.Error().Err(err).Msg("block locators")
		return
	}
	rawLocators := make([][32]byte, len(locators))
	for i, h := range locators {
		rawLocators[i] = [32]byte(h)
	}

	peer.WaitingForBlocks.Set(true, peerstate.BlockRequestTimeout)
	msg := wire.GetBlocksMessage{Version: uint32(d.protocolVersion), BlockLocators: rawLocators}
	d.sendFrame(token, wire.CmdGetBlocks, msg.Encode())
}
