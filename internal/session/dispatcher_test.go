package session

import (
	"bytes"
	"sync"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/keato/btcnode/internal/blockstore"
	"github.com/keato/btcnode/internal/wire"
)

// fakeSender is an in-memory Sender test double that records every frame
// sent to each token, in order.
type fakeSender struct {
	mu      sync.Mutex
	sent    map[Token][][]byte
	connect []string
}

func newFakeSender() *fakeSender {
	return &fakeSender{sent: make(map[Token][][]byte)}
}

func (f *fakeSender) Connect(addr string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connect = append(f.connect, addr)
	return nil
}

func (f *fakeSender) Send(token Token, raw []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent[token] = append(f.sent[token], raw)
	return nil
}

func (f *fakeSender) commandsFor(t *testing.T, token Token) []wire.Command {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()

	var cmds []wire.Command
	for _, raw := range f.sent[token] {
		cmd, _, err := wire.ReadFrame(bytes.NewReader(raw), wire.TestNet3)
		if err != nil {
			t.Fatalf("re-parsing sent frame: %v", err)
		}
		cmds = append(cmds, cmd)
	}
	return cmds
}

func newDispatcherForTest() (*Dispatcher, *fakeSender, *State) {
	store := blockstore.NewMemory()
	state := NewState(store)
	sender := newFakeSender()
	d := NewDispatcher(wire.TestNet3, sender, state, 0, "/test:0.1/", 70002)
	return d, sender, state
}

func TestInboundVersionTriggersVersionThenVerack(t *testing.T) {
	d, sender, _ := newDispatcherForTest()
	token := Token("peer1")

	theirVersion := wire.NewVersionMessage(wire.NewIPAddress("127.0.0.1", 8333, 0), 100, "/their:1.0/", 70002)
	frame := wire.GetSerializedMessage(wire.TestNet3, wire.CmdVersion, theirVersion.Encode())

	d.Handle(token, frame)

	cmds := sender.commandsFor(t, token)
	if len(cmds) != 2 {
		t.Fatalf("expected 2 frames sent, got %d: %v", len(cmds), cmds)
	}
	if cmds[0] != wire.CmdVersion {
		t.Fatalf("first frame = %s, want version", cmds[0])
	}
	if cmds[1] != wire.CmdVerack {
		t.Fatalf("second frame = %s, want verack", cmds[1])
	}
}

func TestPingReplyEchoesNonce(t *testing.T) {
	d, sender, _ := newDispatcherForTest()
	token := Token("peer1")

	// A ping can arrive from any already-registered peer; establish one via
	// the handshake path first.
	theirVersion := wire.NewVersionMessage(wire.NewIPAddress("127.0.0.1", 8333, 0), 100, "/their:1.0/", 70002)
	d.Handle(token, wire.GetSerializedMessage(wire.TestNet3, wire.CmdVersion, theirVersion.Encode()))

	const nonce = uint64(0xdeadbeefcafef00d)
	pingFrame := wire.GetSerializedMessage(wire.TestNet3, wire.CmdPing, wire.PingMessage{Nonce: nonce}.Encode())
	d.Handle(token, pingFrame)

	cmds := sender.commandsFor(t, token)
	last := cmds[len(cmds)-1]
	if last != wire.CmdPong {
		t.Fatalf("last frame = %s, want pong", last)
	}

	sender.mu.Lock()
	rawPong := sender.sent[token][len(sender.sent[token])-1]
	sender.mu.Unlock()

	_, payload, err := wire.ReadFrame(bytes.NewReader(rawPong), wire.TestNet3)
	if err != nil {
		t.Fatalf("re-parsing pong frame: %v", err)
	}
	pong, err := wire.DecodePongMessage(payload)
	if err != nil {
		t.Fatalf("decoding pong: %v", err)
	}
	if pong.Nonce != nonce {
		t.Fatalf("pong nonce = %x, want %x", pong.Nonce, nonce)
	}
}

func TestInvRequestsOnlyUnknownBlocksAndMarksPending(t *testing.T) {
	d, sender, state := newDispatcherForTest()
	token := Token("peer1")

	theirVersion := wire.NewVersionMessage(wire.NewIPAddress("127.0.0.1", 8333, 0), 100, "/their:1.0/", 70002)
	d.Handle(token, wire.GetSerializedMessage(wire.TestNet3, wire.CmdVersion, theirVersion.Encode()))

	var known, unknown [32]byte
	known[0] = 1
	unknown[0] = 2
	if err := state.BlockStore.Insert(chainhash.Hash(known), []byte("known-block")); err != nil {
		t.Fatalf("seeding known block: %v", err)
	}

	invFrame := wire.GetSerializedMessage(wire.TestNet3, wire.CmdInv, wire.InvMessage{
		Vectors: []wire.InvVector{
			{Type: wire.InvTypeBlock, Hash: known},
			{Type: wire.InvTypeBlock, Hash: unknown},
		},
	}.Encode())
	d.Handle(token, invFrame)

	sender.mu.Lock()
	frames := sender.sent[token]
	sender.mu.Unlock()

	var gotGetData bool
	for _, raw := range frames {
		cmd, payload, err := wire.ReadFrame(bytes.NewReader(raw), wire.TestNet3)
		if err != nil {
			t.Fatalf("re-parsing frame: %v", err)
		}
		if cmd != wire.CmdGetData {
			continue
		}
		gotGetData = true
		inv, err := wire.DecodeInvMessage(payload)
		if err != nil {
			t.Fatalf("decoding getdata: %v", err)
		}
		if len(inv.Vectors) != 1 || inv.Vectors[0].Hash != unknown {
			t.Fatalf("getdata vectors = %v, want exactly [unknown]", inv.Vectors)
		}
	}
	if !gotGetData {
		t.Fatal("expected a getdata frame")
	}

	if !state.PendingInv.Has(chainhash.Hash(unknown)) {
		t.Fatal("expected unknown hash recorded in pending inventory")
	}
	if state.PendingInv.Has(chainhash.Hash(known)) {
		t.Fatal("known hash should not be in pending inventory")
	}
}

func TestGetBlocksSkippedWhenPendingInventoryExceedsBackpressureThreshold(t *testing.T) {
	d, sender, state := newDispatcherForTest()
	token := Token("peer1")

	theirVersion := wire.NewVersionMessage(wire.NewIPAddress("127.0.0.1", 8333, 0), 100, "/their:1.0/", 70002)
	d.Handle(token, wire.GetSerializedMessage(wire.TestNet3, wire.CmdVersion, theirVersion.Encode()))

	for i := 0; i < maxPendingInv+1; i++ {
		var h chainhash.Hash
		h[0] = byte(i)
		h[1] = byte(i >> 8)
		state.PendingInv.Insert(h)
	}

	peer := state.Peers[token]
	sender.mu.Lock()
	before := len(sender.sent[token])
	sender.mu.Unlock()

	d.getBlocks(token, peer)

	sender.mu.Lock()
	after := len(sender.sent[token])
	sender.mu.Unlock()

	if after != before {
		t.Fatalf("expected no new frame under backpressure, got %d new frames", after-before)
	}
}
