package marketplace

import (
	"encoding/hex"
	"strconv"

	"marketchain/core/types"
)

const (
	EventTypeInitialized = "marketplace.initialized"
	EventTypeListed      = "marketplace.listed"
	EventTypePurchased   = "marketplace.purchased"
	EventTypeCancelled   = "marketplace.cancelled"
)

func hexAddr(addr [20]byte) string { return hex.EncodeToString(addr[:]) }

func newInitializedEvent(addr, treasury, rewardMint [20]byte, m *Marketplace) *types.Event {
	return &types.Event{Type: EventTypeInitialized, Attributes: map[string]string{
		"marketplace": hexAddr(addr),
		"name":        m.Name,
		"admin":       hexAddr(m.Admin),
		"feeBps":      strconv.FormatUint(uint64(m.FeeBps), 10),
		"treasury":    hexAddr(treasury),
		"rewardMint":  hexAddr(rewardMint),
	}}
}

func newListedEvent(addr [20]byte, l *Listing) *types.Event {
	return &types.Event{Type: EventTypeListed, Attributes: map[string]string{
		"marketplace": hexAddr(l.Marketplace),
		"listing":     hexAddr(addr),
		"maker":       hexAddr(l.Maker),
		"asset":       hexAddr(l.Asset),
		"price":       strconv.FormatUint(l.Price, 10),
		"vault":       hexAddr(l.Vault),
	}}
}

func newPurchasedEvent(s *Settlement) *types.Event {
	return &types.Event{Type: EventTypePurchased, Attributes: map[string]string{
		"marketplace": hexAddr(s.Marketplace),
		"listing":     hexAddr(s.Listing),
		"maker":       hexAddr(s.Maker),
		"taker":       hexAddr(s.Taker),
		"asset":       hexAddr(s.Asset),
		"price":       strconv.FormatUint(s.Price, 10),
		"fee":         strconv.FormatUint(s.Fee, 10),
		"proceeds":    strconv.FormatUint(s.Proceeds, 10),
		"reward":      strconv.FormatUint(s.Reward, 10),
	}}
}

func newCancelledEvent(addr [20]byte, l *Listing) *types.Event {
	return &types.Event{Type: EventTypeCancelled, Attributes: map[string]string{
		"marketplace": hexAddr(l.Marketplace),
		"listing":     hexAddr(addr),
		"maker":       hexAddr(l.Maker),
		"asset":       hexAddr(l.Asset),
		"price":       strconv.FormatUint(l.Price, 10),
	}}
}
