package state

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"marketchain/core/types"
	"marketchain/native/marketplace"
	"marketchain/native/token"
	"marketchain/storage"
	"marketchain/storage/trie"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	tr, err := trie.NewTrie(storage.NewMemDB(), nil)
	require.NoError(t, err)
	return NewManager(tr)
}

func TestAccountRoundTrip(t *testing.T) {
	m := newTestManager(t)
	addr := [20]byte{0x01}

	acc, err := m.GetAccount(addr)
	require.NoError(t, err)
	require.Equal(t, &types.Account{}, acc)

	require.NoError(t, m.PutAccount(addr, &types.Account{Nonce: 3, Balance: math.MaxUint64}))
	acc, err = m.GetAccount(addr)
	require.NoError(t, err)
	require.Equal(t, uint64(3), acc.Nonce)
	require.Equal(t, uint64(math.MaxUint64), acc.Balance)
}

func TestTokenRecords(t *testing.T) {
	m := newTestManager(t)
	mintAddr, holdingAddr := [20]byte{0x0a}, [20]byte{0x0b}

	_, ok, err := m.TokenMintGet(mintAddr)
	require.NoError(t, err)
	require.False(t, ok)

	mint := &token.Mint{Decimals: 6, Authority: [20]byte{0x01}, Supply: 10}
	require.NoError(t, m.TokenMintPut(mintAddr, mint))
	got, ok, err := m.TokenMintGet(mintAddr)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, mint, got)

	holding := &token.Holding{Mint: mintAddr, Owner: [20]byte{0x02}, Amount: 1}
	require.NoError(t, m.TokenHoldingPut(holdingAddr, holding))
	gotHolding, ok, err := m.TokenHoldingGet(holdingAddr)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, holding, gotHolding)

	require.NoError(t, m.TokenHoldingDelete(holdingAddr))
	_, ok, err = m.TokenHoldingGet(holdingAddr)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMarketplaceRecords(t *testing.T) {
	m := newTestManager(t)
	empty := m.Root()
	addr, listingAddr := [20]byte{0x10}, [20]byte{0x11}

	record := &marketplace.Marketplace{Admin: [20]byte{0x01}, FeeBps: 500, Name: "bazaar", Bump: 254, TreasuryBump: 255, RewardsBump: 253, RewardDecimals: 6}
	require.NoError(t, m.MarketplacePut(addr, record))
	got, ok, err := m.MarketplaceGet(addr)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, record, got)

	listing := &marketplace.Listing{Marketplace: addr, Maker: [20]byte{0x02}, Asset: [20]byte{0x03}, Price: 1000, Bump: 255, Vault: [20]byte{0x04}}
	require.NoError(t, m.ListingPut(listingAddr, listing))
	gotListing, ok, err := m.ListingGet(listingAddr)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, listing, gotListing)

	require.NoError(t, m.ListingDelete(listingAddr))
	_, ok, err = m.ListingGet(listingAddr)
	require.NoError(t, err)
	require.False(t, ok)
	require.NotEqual(t, empty, m.Root())
}

func TestGenesisMarker(t *testing.T) {
	m := newTestManager(t)
	_, ok, err := m.GenesisApplied()
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, m.MarkGenesis(GenesisMarker{ChainID: 7}))
	marker, ok, err := m.GenesisApplied()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(7), marker.ChainID)
}
