package token

import (
	"encoding/hex"
	"strconv"

	"marketchain/core/types"
)

const (
	EventTypeMinted      = "token.minted"
	EventTypeTransferred = "token.transferred"
	EventTypeClosed      = "token.closed"
)

func newMintedEvent(mint, dst [20]byte, amount uint64) *types.Event {
	return &types.Event{Type: EventTypeMinted, Attributes: map[string]string{
		"mint":   hex.EncodeToString(mint[:]),
		"to":     hex.EncodeToString(dst[:]),
		"amount": strconv.FormatUint(amount, 10),
	}}
}

func newTransferredEvent(mint, src, dst [20]byte, amount uint64) *types.Event {
	return &types.Event{Type: EventTypeTransferred, Attributes: map[string]string{
		"mint":   hex.EncodeToString(mint[:]),
		"from":   hex.EncodeToString(src[:]),
		"to":     hex.EncodeToString(dst[:]),
		"amount": strconv.FormatUint(amount, 10),
	}}
}

func newClosedEvent(addr [20]byte, holding *Holding) *types.Event {
	return &types.Event{Type: EventTypeClosed, Attributes: map[string]string{
		"account": hex.EncodeToString(addr[:]),
		"mint":    hex.EncodeToString(holding.Mint[:]),
		"owner":   hex.EncodeToString(holding.Owner[:]),
	}}
}

const EventTypeMintCreated = "token.mint.created"

// NewMintCreatedEvent describes a mint created on behalf of a user.
func NewMintCreatedEvent(addr [20]byte, mint *Mint) *types.Event {
	return &types.Event{Type: EventTypeMintCreated, Attributes: map[string]string{
		"mint":      hex.EncodeToString(addr[:]),
		"authority": hex.EncodeToString(mint.Authority[:]),
		"decimals":  strconv.FormatUint(uint64(mint.Decimals), 10),
	}}
}
