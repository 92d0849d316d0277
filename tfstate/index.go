package tfstate

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/btree"
)

// Index is a snapshot of the addresses the state store tracks, plus an
// overlay of addresses imported during the current pass. The snapshot is
// taken once; re-querying mid-pass would race against in-flight imports.
type Index struct {
	mu       sync.RWMutex
	tree     *btree.BTreeG[string]
	snapshot int // size at snapshot time
}

// NewIndex builds an index from a list of tracked addresses.
func NewIndex(addresses []string) *Index {
	tree := btree.NewG[string](16, func(a, b string) bool { return a < b })
	for _, addr := range addresses {
		tree.ReplaceOrInsert(addr)
	}
	return &Index{tree: tree, snapshot: tree.Len()}
}

// Snapshot reads the current state once and builds an index from it.
func Snapshot(ctx context.Context, store Store) (*Index, error) {
	addresses, err := store.StateList(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot state: %w", err)
	}
	return NewIndex(addresses), nil
}

// Contains reports whether the address is tracked, including addresses
// imported earlier in this pass.
func (i *Index) Contains(address string) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.tree.Has(address)
}

// Add records a mid-pass import so later checks see it.
func (i *Index) Add(address string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.tree.ReplaceOrInsert(address)
}

// SnapshotLen returns how many addresses the initial snapshot held.
func (i *Index) SnapshotLen() int {
	return i.snapshot
}

// Len returns the tracked address count including the overlay.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.tree.Len()
}
