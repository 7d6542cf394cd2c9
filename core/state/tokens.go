package state

import (
	"fmt"

	"marketchain/native/token"
)

// TokenMintGet loads the mint stored at addr.
func (m *Manager) TokenMintGet(addr [20]byte) (*token.Mint, bool, error) {
	mint := new(token.Mint)
	ok, err := m.get(namespacedKey(mintPrefix, addr[:]), mint)
	if err != nil || !ok {
		return nil, false, err
	}
	return mint, true, nil
}

// TokenMintPut stores the mint at addr.
func (m *Manager) TokenMintPut(addr [20]byte, mint *token.Mint) error {
	if mint == nil {
		return fmt.Errorf("nil mint")
	}
	return m.put(namespacedKey(mintPrefix, addr[:]), mint)
}

// TokenHoldingGet loads the holding stored at addr.
func (m *Manager) TokenHoldingGet(addr [20]byte) (*token.Holding, bool, error) {
	holding := new(token.Holding)
	ok, err := m.get(namespacedKey(holdingPrefix, addr[:]), holding)
	if err != nil || !ok {
		return nil, false, err
	}
	return holding, true, nil
}

// TokenHoldingPut stores the holding at addr.
func (m *Manager) TokenHoldingPut(addr [20]byte, holding *token.Holding) error {
	if holding == nil {
		return fmt.Errorf("nil holding")
	}
	return m.put(namespacedKey(holdingPrefix, addr[:]), holding)
}

// TokenHoldingDelete removes the holding stored at addr.
func (m *Manager) TokenHoldingDelete(addr [20]byte) error {
	return m.trie.Delete(namespacedKey(holdingPrefix, addr[:]))
}
