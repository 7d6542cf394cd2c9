package marketplace

import (
	"marketchain/crypto"
	"marketchain/native/token"
)

var (
	marketplaceSeed = []byte("marketplace")
	treasurySeed    = []byte("treasury")
	rewardsSeed     = []byte("rewards")
)

// MarketplaceAddress derives the registry address for name.
func MarketplaceAddress(name string) ([20]byte, uint8, error) {
	if err := validateName(name); err != nil {
		return [20]byte{}, 0, err
	}
	return crypto.FindDerivedAddress(ProgramID, marketplaceSeed, []byte(name))
}

// TreasuryAddress derives the fee sink of a marketplace.
func TreasuryAddress(marketplace [20]byte) ([20]byte, uint8, error) {
	return crypto.FindDerivedAddress(ProgramID, treasurySeed, marketplace[:])
}

// RewardMintAddress derives the reward mint of a marketplace.
func RewardMintAddress(marketplace [20]byte) ([20]byte, uint8, error) {
	return crypto.FindDerivedAddress(ProgramID, rewardsSeed, marketplace[:])
}

// ListingAddress derives the listing record of asset under marketplace.
func ListingAddress(marketplace, asset [20]byte) ([20]byte, uint8, error) {
	return crypto.FindDerivedAddress(ProgramID, marketplace[:], asset[:])
}

// VaultAddress returns the holding that custodies the escrowed unit of a
// listing.
func VaultAddress(listing, asset [20]byte) ([20]byte, error) {
	return token.AssociatedAddress(listing, asset)
}

func marketplaceAuthority(m *Marketplace) crypto.Authority {
	return crypto.DerivedAuthority(ProgramID, m.Bump, marketplaceSeed, []byte(m.Name))
}

func listingAuthority(l *Listing) crypto.Authority {
	return crypto.DerivedAuthority(ProgramID, l.Bump, l.Marketplace[:], l.Asset[:])
}

// treasuryOf recomputes the treasury address from the stored bump.
func treasuryOf(addr [20]byte, m *Marketplace) ([20]byte, error) {
	return crypto.CreateDerivedAddress(ProgramID, m.TreasuryBump, treasurySeed, addr[:])
}

func rewardMintOf(addr [20]byte, m *Marketplace) ([20]byte, error) {
	return crypto.CreateDerivedAddress(ProgramID, m.RewardsBump, rewardsSeed, addr[:])
}
