package blockstore

import (
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Memory is an in-memory Store, the default for tests and for nodes run
// without a configured database.
type Memory struct {
	mu          sync.RWMutex
	blocks      map[chainhash.Hash][]byte
	heightByHash map[chainhash.Hash]int64
	hashByHeight map[int64]chainhash.Hash
	height      int64
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		blocks:       make(map[chainhash.Hash][]byte),
		heightByHash: make(map[chainhash.Hash]int64),
		hashByHeight: make(map[int64]chainhash.Hash),
		height:       -1,
	}
}

func (m *Memory) Height() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.height
}

// BlockLocators walks back from the tip with an accelerating stride (1 for
// the first 10 steps, doubling thereafter), a classic sparse-locator
// construction that keeps the list short even for a deep chain.
func (m *Memory) BlockLocators() ([]chainhash.Hash, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var locators []chainhash.Hash
	if m.height < 0 {
		return locators, nil
	}

	step := int64(1)
	height := m.height
	for height >= 0 {
		if hash, ok := m.hashByHeight[height]; ok {
			locators = append(locators, hash)
		}
		if len(locators) >= 10 {
			step *= 2
		}
		height -= step
	}
	if locators[len(locators)-1] != m.hashByHeight[0] {
		if genesis, ok := m.hashByHeight[0]; ok {
			locators = append(locators, genesis)
		}
	}
	return locators, nil
}

func (m *Memory) GetHashAtHeight(height int64) (chainhash.Hash, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.hashByHeight[height]
	return h, ok, nil
}

func (m *Memory) GetHeight(hash chainhash.Hash) (int64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.heightByHash[hash]
	return h, ok, nil
}

func (m *Memory) Has(hash chainhash.Hash) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.blocks[hash]
	return ok, nil
}

func (m *Memory) Get(hash chainhash.Hash) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	raw, ok := m.blocks[hash]
	return raw, ok, nil
}

func (m *Memory) Insert(hash chainhash.Hash, raw []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.blocks[hash]; exists {
		return nil
	}

	m.height++
	m.blocks[hash] = raw
	m.heightByHash[hash] = m.height
	m.hashByHeight[m.height] = hash
	return nil
}
