package main

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"marketchain/storage"
	"marketchain/storage/trie"
)

// headKey stores the most recently committed state root.
var headKey = []byte("marketd/head")

// openState opens the trie at the last committed root, or an empty trie on a
// fresh data directory.
func openState(db storage.Database) (*trie.Trie, error) {
	raw, err := db.Get(headKey)
	if errors.Is(err, storage.ErrNotFound) {
		return trie.NewTrie(db, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("read head: %w", err)
	}
	if len(raw) != common.HashLength {
		return nil, fmt.Errorf("corrupt head: %d bytes", len(raw))
	}
	return trie.NewTrie(db, raw)
}

// committer persists the processor state and records the resulting root.
type committer interface {
	Commit(height uint64) (common.Hash, error)
}

func commitHead(db storage.Database, sp committer, height uint64) (common.Hash, error) {
	root, err := sp.Commit(height)
	if err != nil {
		return common.Hash{}, err
	}
	if err := db.Put(headKey, root.Bytes()); err != nil {
		return common.Hash{}, fmt.Errorf("write head: %w", err)
	}
	return root, nil
}
