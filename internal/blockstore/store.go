// Package blockstore provides the block storage contract the dispatcher
// depends on, plus in-memory and Postgres-backed implementations.
package blockstore

import "github.com/btcsuite/btcd/chaincfg/chainhash"

// Store is the external block store contract: height tracking, locator
// generation for getblocks, and raw block lookup/insert keyed by hash.
type Store interface {
	// Height returns the current chain height, or -1 if the store is empty.
	Height() int64

	// BlockLocators returns a sparse backwards walk of known block hashes
	// used to negotiate the fork point with a peer.
	BlockLocators() ([]chainhash.Hash, error)

	// GetHashAtHeight returns the hash stored at the given height, if any.
	GetHashAtHeight(height int64) (chainhash.Hash, bool, error)

	// GetHeight returns the height at which hash was stored, if known.
	GetHeight(hash chainhash.Hash) (int64, bool, error)

	// Has reports whether hash is already stored.
	Has(hash chainhash.Hash) (bool, error)

	// Get returns the raw block payload stored for hash.
	Get(hash chainhash.Hash) ([]byte, bool, error)

	// Insert stores raw at the next height under hash.
	Insert(hash chainhash.Hash, raw []byte) error
}
