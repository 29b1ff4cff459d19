package blockstore

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

func hashOf(b byte) chainhash.Hash {
	var h chainhash.Hash
	h[0] = b
	return h
}

func TestMemoryInsertAndLookup(t *testing.T) {
	m := NewMemory()
	if m.Height() != -1 {
		t.Fatalf("empty store height = %d, want -1", m.Height())
	}

	h0 := hashOf(1)
	if err := m.Insert(h0, []byte("genesis")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if m.Height() != 0 {
		t.Fatalf("height after first insert = %d, want 0", m.Height())
	}

	h1 := hashOf(2)
	m.Insert(h1, []byte("block1"))
	if m.Height() != 1 {
		t.Fatalf("height after second insert = %d, want 1", m.Height())
	}

	if ok, _ := m.Has(h1); !ok {
		t.Fatal("expected h1 present")
	}
	raw, ok, _ := m.Get(h1)
	if !ok || string(raw) != "block1" {
		t.Fatalf("Get(h1) = %q, %v", raw, ok)
	}

	height, ok, _ := m.GetHeight(h1)
	if !ok || height != 1 {
		t.Fatalf("GetHeight(h1) = %d, %v, want 1, true", height, ok)
	}

	hash, ok, _ := m.GetHashAtHeight(0)
	if !ok || hash != h0 {
		t.Fatalf("GetHashAtHeight(0) = %v, %v, want h0", hash, ok)
	}
}

func TestMemoryBlockLocatorsIncludesGenesis(t *testing.T) {
	m := NewMemory()
	for i := 0; i < 15; i++ {
		m.Insert(hashOf(byte(i+1)), []byte("block"))
	}

	locators, err := m.BlockLocators()
	if err != nil {
		t.Fatalf("BlockLocators: %v", err)
	}
	if len(locators) == 0 {
		t.Fatal("expected non-empty locator list")
	}
	genesis, _, _ := m.GetHashAtHeight(0)
	if locators[len(locators)-1] != genesis {
		t.Fatalf("last locator = %v, want genesis %v", locators[len(locators)-1], genesis)
	}
}
