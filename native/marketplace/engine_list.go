package marketplace

import (
	"fmt"

	"marketchain/crypto"
	"marketchain/native/bank"
	"marketchain/native/token"
)

// List escrows one unit of asset from the maker's associated holding into a
// vault owned by the new listing.
func (e *Engine) List(maker, marketplace, asset [20]byte, price uint64) (*Listing, error) {
	if _, err := e.Marketplace(marketplace); err != nil {
		return nil, err
	}
	addr, bump, err := ListingAddress(marketplace, asset)
	if err != nil {
		return nil, err
	}
	if _, ok, err := e.state.ListingGet(addr); err != nil {
		return nil, err
	} else if ok {
		return nil, fmt.Errorf("%w: asset %x", ErrDuplicateListing, asset)
	}
	vault, err := VaultAddress(addr, asset)
	if err != nil {
		return nil, err
	}
	if exists, err := e.holdingExists(vault); err != nil {
		return nil, err
	} else if exists {
		return nil, fmt.Errorf("%w: vault %x", ErrDuplicateListing, vault)
	}
	source, err := token.AssociatedAddress(maker, asset)
	if err != nil {
		return nil, err
	}
	held, err := e.tokens.Balance(source)
	if err != nil {
		return nil, err
	}
	if held < 1 {
		return nil, fmt.Errorf("%w: asset %x", ErrInsufficientBalance, asset)
	}
	deposits, err := e.deposits(2)
	if err != nil {
		return nil, err
	}
	if err := e.requireFunds(maker, deposits); err != nil {
		return nil, err
	}

	listing := &Listing{
		Marketplace: marketplace,
		Maker:       maker,
		Asset:       asset,
		Price:       price,
		Bump:        bump,
		Vault:       vault,
	}
	if err := bank.Deposit(e.state, maker, addr, e.params.RecordDeposit); err != nil {
		return nil, err
	}
	if err := bank.Deposit(e.state, maker, vault, e.params.RecordDeposit); err != nil {
		return nil, err
	}
	if _, err := e.tokens.InitializeHolding(vault, asset, addr); err != nil {
		return nil, err
	}
	if err := e.tokens.Transfer(source, vault, crypto.SignerAuthority(maker), 1); err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %v", ErrInsufficientBalance, err)
		}
		return nil, err
	}
	if err := e.tokens.LockHolding(vault, listingAuthority(listing)); err != nil {
		return nil, err
	}
	if err := e.state.ListingPut(addr, listing); err != nil {
		return nil, err
	}
	e.emit(newListedEvent(addr, listing))
	return listing.Clone(), nil
}
