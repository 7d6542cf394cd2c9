package token

import "errors"

var (
	ErrNilState          = errors.New("token: state not configured")
	ErrAccountExists     = errors.New("token: account already exists")
	ErrMintNotFound      = errors.New("token: mint not found")
	ErrHoldingNotFound   = errors.New("token: holding not found")
	ErrMintMismatch      = errors.New("token: holding mint mismatch")
	ErrOwnerMismatch     = errors.New("token: authority does not own account")
	ErrMintAuthority     = errors.New("token: invalid mint authority")
	ErrInsufficientFunds = errors.New("token: insufficient funds")
	ErrNonZeroBalance    = errors.New("token: cannot close account with non-zero balance")
	ErrSelfTransfer      = errors.New("token: source and destination are the same")
	ErrHoldingLocked     = errors.New("token: holding is locked")
)
