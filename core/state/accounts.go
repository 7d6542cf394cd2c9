package state

import (
	"fmt"

	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"

	"marketchain/core/types"
)

// GetAccount returns the native account at addr. Absent accounts are returned
// as zero-valued accounts.
func (m *Manager) GetAccount(addr [20]byte) (*types.Account, error) {
	stateAcc := new(gethtypes.StateAccount)
	ok, err := m.get(namespacedKey(accountPrefix, addr[:]), stateAcc)
	if err != nil {
		return nil, fmt.Errorf("account %x: %w", addr, err)
	}
	account := &types.Account{}
	if !ok {
		return account, nil
	}
	account.Nonce = stateAcc.Nonce
	if stateAcc.Balance != nil {
		if !stateAcc.Balance.IsUint64() {
			return nil, fmt.Errorf("account %x: balance exceeds 64 bits", addr)
		}
		account.Balance = stateAcc.Balance.Uint64()
	}
	return account, nil
}

// PutAccount stores the native account at addr.
func (m *Manager) PutAccount(addr [20]byte, account *types.Account) error {
	if account == nil {
		return fmt.Errorf("nil account")
	}
	stateAcc := &gethtypes.StateAccount{
		Nonce:    account.Nonce,
		Balance:  uint256.NewInt(account.Balance),
		Root:     gethtypes.EmptyRootHash,
		CodeHash: gethtypes.EmptyCodeHash.Bytes(),
	}
	return m.put(namespacedKey(accountPrefix, addr[:]), stateAcc)
}
