package trie

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	gethtrie "github.com/ethereum/go-ethereum/trie"
	"github.com/ethereum/go-ethereum/trie/trienode"
	"github.com/ethereum/go-ethereum/triedb"

	"launchpad/storage"
)

// Trie is the ledger's Merkle-Patricia state. Writes accumulate in memory
// until Commit; Discard rolls them back to the last committed root so a
// reverted transaction leaves no trace.
//
// Keys are keccak256 hashes produced by core/state. Not safe for concurrent
// use; the node serialises access.
type Trie struct {
	db    *triedb.Database
	live  *gethtrie.Trie
	root  common.Hash
	dirty bool
}

// NewTrie opens the trie at root. A nil or empty root opens the empty trie.
func NewTrie(store storage.Database, root []byte) (*Trie, error) {
	t := &Trie{db: store.TrieDB(), root: gethtypes.EmptyRootHash}
	if len(root) > 0 {
		t.root = common.BytesToHash(root)
	}
	if err := t.reopen(t.root); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Trie) reopen(root common.Hash) error {
	live, err := gethtrie.New(gethtrie.TrieID(root), t.db)
	if err != nil {
		return fmt.Errorf("open state trie at %s: %w", root.Hex(), err)
	}
	t.live = live
	t.root = root
	t.dirty = false
	return nil
}

// Get returns the value stored under key, or nil when the key is absent.
func (t *Trie) Get(key []byte) ([]byte, error) {
	return t.live.Get(key)
}

func (t *Trie) Update(key, value []byte) error {
	t.dirty = true
	return t.live.Update(key, value)
}

func (t *Trie) Delete(key []byte) error {
	t.dirty = true
	return t.live.Delete(key)
}

// Hash is the root including uncommitted writes.
func (t *Trie) Hash() common.Hash {
	return t.live.Hash()
}

// Root is the last committed root.
func (t *Trie) Root() common.Hash {
	return t.root
}

// Dirty reports whether writes are pending since the last commit.
func (t *Trie) Dirty() bool {
	return t.dirty
}

// Reset reloads the trie at root, dropping pending writes.
func (t *Trie) Reset(root common.Hash) error {
	return t.reopen(root)
}

// Discard drops pending writes. It is a no-op on a clean trie.
func (t *Trie) Discard() error {
	if !t.dirty {
		return nil
	}
	return t.reopen(t.root)
}

// Commit flushes pending writes to the backing database at height and
// returns the new root. A clean trie returns the current root untouched.
func (t *Trie) Commit(height uint64) (common.Hash, error) {
	if !t.dirty {
		return t.root, nil
	}
	parent := t.root
	next, nodes := t.live.Commit(false)
	if nodes != nil {
		set := trienode.NewMergedNodeSet()
		if err := set.Merge(nodes); err != nil {
			return common.Hash{}, err
		}
		if err := t.db.Update(next, parent, height, set, nil); err != nil {
			return common.Hash{}, fmt.Errorf("stage trie nodes: %w", err)
		}
		if err := t.db.Commit(next, false); err != nil {
			return common.Hash{}, fmt.Errorf("flush trie nodes: %w", err)
		}
	}
	// A committed geth trie cannot be written again; reopen at the new root.
	if err := t.reopen(next); err != nil {
		return common.Hash{}, err
	}
	return next, nil
}
