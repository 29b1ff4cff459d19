// Package session owns the shared per-node State and the Dispatcher that
// mutates it in response to framed wire messages.
package session

import (
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/keato/btcnode/internal/blockstore"
	"github.com/keato/btcnode/internal/cache"
	"github.com/keato/btcnode/internal/peerstate"
)

// Token is an opaque per-connection identifier supplied by the transport.
type Token string

// Sender is the transport contract the dispatcher depends on: it can be
// asked to open a new outbound connection, or to deliver a framed message
// to an already-connected peer. Implementations must be safe to call from
// any goroutine.
type Sender interface {
	Connect(addr string) error
	Send(token Token, raw []byte) error
}

// State is the single shared aggregate the dispatcher mutates. It is
// guarded by its own mutex because helper paths — notably the public
// NewConnection entry point — may run on a different goroutine than the
// one driving Handle for an existing peer.
type State struct {
	mu sync.Mutex

	Peers      map[Token]*peerstate.Peer
	TxStore    map[chainhash.Hash][]byte
	BlockStore blockstore.Store
	PendingInv *cache.Expiring[chainhash.Hash]
}

// NewState builds an empty State backed by store, with a pending-inventory
// cache using the default TTL and sweep cadence.
func NewState(store blockstore.Store) *State {
	return &State{
		Peers:      make(map[Token]*peerstate.Peer),
		TxStore:    make(map[chainhash.Hash][]byte),
		BlockStore: store,
		PendingInv: cache.NewExpiring[chainhash.Hash]("pending_inv", cache.DefaultTTL, cache.DefaultSweepInterval),
	}
}
