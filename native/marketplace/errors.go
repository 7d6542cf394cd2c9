package marketplace

import (
	"errors"

	nativecommon "marketchain/native/common"
)

var (
	errNilState = errors.New("marketplace engine: state not configured")

	ErrNameEmpty           = errors.New("marketplace: name is empty")
	ErrNameTooLong         = errors.New("marketplace: name exceeds 32 bytes")
	ErrFeeOutOfRange       = errors.New("marketplace: fee bps out of range")
	ErrAlreadyExists       = errors.New("marketplace: already exists")
	ErrMarketplaceNotFound = errors.New("marketplace: not found")
	ErrInsufficientBalance = errors.New("marketplace: maker does not hold the asset")
	ErrDuplicateListing    = errors.New("marketplace: listing already exists")
	ErrListingNotFound     = errors.New("marketplace: listing not found")
	ErrInsufficientFunds   = errors.New("marketplace: insufficient funds")
	ErrPriceMismatch       = errors.New("marketplace: price mismatch")
	ErrUnauthorized        = errors.New("marketplace: unauthorized")

	// ErrOverflow is shared with the arithmetic helpers so callers can match
	// either.
	ErrOverflow = nativecommon.ErrOverflow
)
