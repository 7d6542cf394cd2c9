package state

import (
	"fmt"

	"marketchain/native/marketplace"
)

// MarketplaceGet loads the marketplace registry record stored at addr.
func (m *Manager) MarketplaceGet(addr [20]byte) (*marketplace.Marketplace, bool, error) {
	record := new(marketplace.Marketplace)
	ok, err := m.get(namespacedKey(marketplacePrefix, addr[:]), record)
	if err != nil || !ok {
		return nil, false, err
	}
	return record, true, nil
}

// MarketplacePut stores the marketplace registry record at addr.
func (m *Manager) MarketplacePut(addr [20]byte, record *marketplace.Marketplace) error {
	if record == nil {
		return fmt.Errorf("nil marketplace")
	}
	return m.put(namespacedKey(marketplacePrefix, addr[:]), record)
}

// ListingGet loads the listing stored at addr.
func (m *Manager) ListingGet(addr [20]byte) (*marketplace.Listing, bool, error) {
	listing := new(marketplace.Listing)
	ok, err := m.get(namespacedKey(listingPrefix, addr[:]), listing)
	if err != nil || !ok {
		return nil, false, err
	}
	return listing, true, nil
}

// ListingPut stores the listing at addr.
func (m *Manager) ListingPut(addr [20]byte, listing *marketplace.Listing) error {
	if listing == nil {
		return fmt.Errorf("nil listing")
	}
	return m.put(namespacedKey(listingPrefix, addr[:]), listing)
}

// ListingDelete removes the listing stored at addr.
func (m *Manager) ListingDelete(addr [20]byte) error {
	return m.trie.Delete(namespacedKey(listingPrefix, addr[:]))
}
