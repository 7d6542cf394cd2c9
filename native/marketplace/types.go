package marketplace

import "marketchain/crypto"

// ProgramID identifies the marketplace program for address derivation. Every
// marketplace, treasury, reward mint and listing address is derived under it.
var ProgramID = crypto.ProgramID("marketplace")

// MaxNameLength bounds marketplace names in bytes. A name is used verbatim as
// a derivation seed.
const MaxNameLength = 32

// Marketplace is the registry record stored at the address derived from its
// name. It is immutable once created.
type Marketplace struct {
	Admin          [20]byte
	FeeBps         uint16
	Name           string
	Bump           uint8
	TreasuryBump   uint8
	RewardsBump    uint8
	RewardDecimals uint8
}

// Clone returns a copy of the marketplace.
func (m *Marketplace) Clone() *Marketplace {
	if m == nil {
		return nil
	}
	clone := *m
	return &clone
}

// Listing is an active escrow of one unit of Asset. Its existence is the only
// witness that Vault holds that unit.
type Listing struct {
	Marketplace [20]byte
	Maker       [20]byte
	Asset       [20]byte
	Price       uint64
	Bump        uint8
	Vault       [20]byte
}

// Clone returns a copy of the listing.
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	clone := *l
	return &clone
}

// Settlement summarises a completed purchase.
type Settlement struct {
	Marketplace [20]byte
	Listing     [20]byte
	Maker       [20]byte
	Taker       [20]byte
	Asset       [20]byte
	Price       uint64
	Fee         uint64
	Proceeds    uint64
	Treasury    [20]byte
	RewardMint  [20]byte
	Reward      uint64
}
