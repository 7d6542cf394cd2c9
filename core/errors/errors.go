package errors

import stderrors "errors"

var (
	ErrChainIDMismatch = stderrors.New("tx: chain id mismatch")
	ErrNonceMismatch   = stderrors.New("tx: nonce mismatch")
	ErrUnknownTxType   = stderrors.New("tx: unknown transaction type")
	ErrGenesisChainID  = stderrors.New("genesis: chain id does not match node")
)
