// Package peerstate models per-connection peer state: handshake progress,
// ping RTT tracking, and block-request gating.
package peerstate

import (
	"sync"
	"time"

	"github.com/keato/btcnode/internal/wire"
)

// ConnectionType records which side initiated the connection.
type ConnectionType int

const (
	Inbound ConnectionType = iota
	Outbound
)

// BlockRequestTimeout is how long a getblocks request may go unanswered
// before waiting_for_blocks self-clears.
const BlockRequestTimeout = 15 * time.Second

// Timeout guards a single value behind a deadline: Set arms it with a
// payload and an expiry, Active reports whether it is armed and the deadline
// has not yet passed (and self-clears once it has), Clear disarms it
// unconditionally.
type Timeout[T any] struct {
	mu      sync.Mutex
	armed   bool
	value   T
	expires time.Time
}

// Set arms the timeout with value, expiring after d.
func (t *Timeout[T]) Set(value T, d time.Duration) {
	t.mu.Lock()
	t.armed = true
	t.value = value
	t.expires = time.Now().Add(d)
	t.mu.Unlock()
}

// Clear disarms the timeout.
func (t *Timeout[T]) Clear() {
	t.mu.Lock()
	t.armed = false
	t.mu.Unlock()
}

// Active reports whether the timeout is armed and not yet expired. An
// expired timeout is cleared as a side effect: it expires unilaterally,
// with no separate caller-driven cleanup step.
func (t *Timeout[T]) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.armed {
		return false
	}
	if time.Now().After(t.expires) {
		t.armed = false
		return false
	}
	return true
}

// Peer is the per-connection state the dispatcher mutates while holding the
// session State lock.
type Peer struct {
	ConnectionType ConnectionType
	Version        *wire.VersionMessage
	VerackReceived bool

	LastPingSentAt       time.Time
	OutstandingPingNonce uint64
	RTTMillis            int64 // -1 if unknown

	WaitingForBlocks Timeout[bool]
}

// NewPeer creates fresh peer state for a connection of the given type.
func NewPeer(ct ConnectionType) *Peer {
	return &Peer{
		ConnectionType: ct,
		RTTMillis:      -1,
	}
}

// RecordPing stamps the outstanding ping nonce and send time.
func (p *Peer) RecordPing(nonce uint64, at time.Time) {
	p.OutstandingPingNonce = nonce
	p.LastPingSentAt = at
}

// RecordPong reports whether nonce matched the outstanding ping and, if so,
// records the round-trip time measured against now.
func (p *Peer) RecordPong(nonce uint64, now time.Time) bool {
	if nonce != p.OutstandingPingNonce {
		return false
	}
	p.RTTMillis = now.Sub(p.LastPingSentAt).Milliseconds()
	return true
}
