package bank

import (
	"errors"
	"fmt"

	"marketchain/core/types"
	nativecommon "marketchain/native/common"
)

var (
	ErrNilState          = errors.New("bank: state not configured")
	ErrInsufficientFunds = errors.New("bank: insufficient funds")
)

// State is the account storage used for native value movements.
type State interface {
	GetAccount(addr [20]byte) (*types.Account, error)
	PutAccount(addr [20]byte, account *types.Account) error
}

// Balance returns the native balance held at addr.
func Balance(st State, addr [20]byte) (uint64, error) {
	if st == nil {
		return 0, ErrNilState
	}
	acc, err := st.GetAccount(addr)
	if err != nil {
		return 0, err
	}
	if acc == nil {
		return 0, nil
	}
	return acc.Balance, nil
}

// Transfer moves amount of native value from one account to another. Both
// sides are validated before either account is written.
func Transfer(st State, from, to [20]byte, amount uint64) error {
	if st == nil {
		return ErrNilState
	}
	if amount == 0 || from == to {
		return nil
	}
	fromAcc, err := st.GetAccount(from)
	if err != nil {
		return err
	}
	toAcc, err := st.GetAccount(to)
	if err != nil {
		return err
	}
	fromAcc = fromAcc.Clone()
	toAcc = toAcc.Clone()
	if fromAcc.Balance < amount {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientFunds, fromAcc.Balance, amount)
	}
	credited, err := nativecommon.AddUint64(toAcc.Balance, amount)
	if err != nil {
		return err
	}
	fromAcc.Balance -= amount
	toAcc.Balance = credited
	if err := st.PutAccount(from, fromAcc); err != nil {
		return err
	}
	return st.PutAccount(to, toAcc)
}

// Credit mints native value into addr. It is used for genesis allocations.
func Credit(st State, addr [20]byte, amount uint64) error {
	if st == nil {
		return ErrNilState
	}
	acc, err := st.GetAccount(addr)
	if err != nil {
		return err
	}
	acc = acc.Clone()
	balance, err := nativecommon.AddUint64(acc.Balance, amount)
	if err != nil {
		return err
	}
	acc.Balance = balance
	return st.PutAccount(addr, acc)
}

// Sweep moves the entire native balance of from into to and returns the
// amount moved. Closing a record sweeps its deposit back to the payer.
func Sweep(st State, from, to [20]byte) (uint64, error) {
	balance, err := Balance(st, from)
	if err != nil {
		return 0, err
	}
	if err := Transfer(st, from, to, balance); err != nil {
		return 0, err
	}
	return balance, nil
}

// Deposit locks amount of the payer's native value at a newly created record
// address. A zero deposit is a no-op.
func Deposit(st State, payer, record [20]byte, amount uint64) error {
	if amount == 0 {
		return nil
	}
	return Transfer(st, payer, record, amount)
}
