package indexer

import (
	"encoding/hex"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"marketchain/core/events"
	"marketchain/core/types"
	"marketchain/native/marketplace"
	"marketchain/native/token"
)

func openTestIndexer(t *testing.T) *Indexer {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	idx, err := Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("open indexer: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	clock := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	idx.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return idx
}

func addr(b byte) [20]byte {
	var out [20]byte
	out[19] = b
	return out
}

func hx(a [20]byte) string { return hex.EncodeToString(a[:]) }

func emit(idx *Indexer, eventType string, attrs map[string]string) {
	idx.Emit(events.Typed{Evt: &types.Event{Type: eventType, Attributes: attrs}})
}

func TestIndexerTracksListingLifecycle(t *testing.T) {
	idx := openTestIndexer(t)
	mkt, listing, maker, taker, asset := addr(1), addr(2), addr(3), addr(4), addr(5)

	emit(idx, marketplace.EventTypeInitialized, map[string]string{
		"marketplace": hx(mkt), "name": "bazaar", "admin": hx(maker), "feeBps": "500",
		"treasury": hx(addr(6)), "rewardMint": hx(addr(7)),
	})
	require.NoError(t, idx.Err())

	listed := map[string]string{
		"marketplace": hx(mkt), "listing": hx(listing), "maker": hx(maker),
		"asset": hx(asset), "price": "1000", "vault": hx(addr(8)),
	}
	emit(idx, marketplace.EventTypeListed, listed)
	emit(idx, marketplace.EventTypeCancelled, map[string]string{
		"marketplace": hx(mkt), "listing": hx(listing), "maker": hx(maker), "asset": hx(asset), "price": "1000",
	})
	emit(idx, marketplace.EventTypeListed, listed)
	emit(idx, marketplace.EventTypePurchased, map[string]string{
		"marketplace": hx(mkt), "listing": hx(listing), "maker": hx(maker), "taker": hx(taker),
		"asset": hx(asset), "price": "1000", "fee": "50", "proceeds": "950", "reward": "10",
	})
	require.NoError(t, idx.Err())

	row, err := idx.MarketplaceByName("bazaar")
	require.NoError(t, err)
	require.Equal(t, uint16(500), row.FeeBps)
	require.Equal(t, hx(mkt), row.Address)

	history, err := idx.Listings(mkt, "")
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, ListingCancelled, history[0].Status)
	require.Equal(t, ListingSold, history[1].Status)

	active, err := idx.Listings(mkt, ListingActive)
	require.NoError(t, err)
	require.Empty(t, active)

	sales, err := idx.Sales(mkt, 0)
	require.NoError(t, err)
	require.Len(t, sales, 1)
	require.Equal(t, hx(taker), sales[0].Taker)
	require.Equal(t, "50", sales[0].Fee)
	require.Equal(t, "950", sales[0].Proceeds)
	require.Equal(t, "10", sales[0].Reward)
}

func TestIndexerFeeTotals(t *testing.T) {
	idx := openTestIndexer(t)
	mkt, treasury := addr(1), addr(6)
	emit(idx, marketplace.EventTypeInitialized, map[string]string{
		"marketplace": hx(mkt), "name": "bazaar", "admin": hx(addr(3)), "feeBps": "500",
		"treasury": hx(treasury), "rewardMint": hx(addr(7)),
	})
	for _, sale := range []struct{ price, fee, proceeds string }{{"1000", "50", "950"}, {"19", "0", "19"}} {
		emit(idx, marketplace.EventTypePurchased, map[string]string{
			"marketplace": hx(mkt), "listing": hx(addr(2)), "maker": hx(addr(3)), "taker": hx(addr(4)),
			"asset": hx(addr(5)), "price": sale.price, "fee": sale.fee, "proceeds": sale.proceeds, "reward": "0",
		})
	}
	require.NoError(t, idx.Err())

	totals, err := idx.FeeTotals(mkt)
	require.NoError(t, err)
	require.Equal(t, treasury, totals.Wallet)
	require.Equal(t, uint64(1019), totals.Gross)
	require.Equal(t, uint64(50), totals.Fee)
	require.Equal(t, uint64(969), totals.Net)
	require.Equal(t, uint64(2), totals.Count)

	_, err = idx.FeeTotals(addr(9))
	require.ErrorIs(t, err, ErrNotIndexed)
}

func TestIndexerIgnoresForeignEvents(t *testing.T) {
	idx := openTestIndexer(t)
	emit(idx, token.EventTypeMintCreated, map[string]string{"mint": hx(addr(1))})
	idx.Emit(nil)
	require.NoError(t, idx.Err())

	sales, err := idx.Sales(addr(1), 10)
	require.NoError(t, err)
	require.Empty(t, sales)
}

func TestIndexerReportsWriteFailures(t *testing.T) {
	idx := openTestIndexer(t)
	emit(idx, marketplace.EventTypeInitialized, map[string]string{"marketplace": hx(addr(1)), "name": "x", "feeBps": "bogus"})
	require.Error(t, idx.Err())
}

func TestOpenRequiresDSN(t *testing.T) {
	if _, err := Open("  "); err != ErrDSNRequired {
		t.Fatalf("expected ErrDSNRequired, got %v", err)
	}
}
