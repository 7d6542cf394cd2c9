package marketplace

import (
	"fmt"

	"marketchain/native/bank"
	nativecommon "marketchain/native/common"
	"marketchain/native/fees"
	"marketchain/native/loyalty"
	"marketchain/native/token"
)

// Purchase settles the listing of asset under marketplace. The taker pays
// price: the fee goes to the treasury and the remainder to the maker. The
// escrowed unit moves to the taker under the listing authority and the reward
// is minted under the marketplace authority. The listing and its vault are
// closed afterwards.
func (e *Engine) Purchase(taker, marketplace, asset [20]byte, price uint64) (*Settlement, error) {
	addr, listing, err := e.Listing(marketplace, asset)
	if err != nil {
		return nil, err
	}
	if price != listing.Price {
		return nil, fmt.Errorf("%w: listed %d, offered %d", ErrPriceMismatch, listing.Price, price)
	}
	mkt, err := e.Marketplace(listing.Marketplace)
	if err != nil {
		return nil, err
	}
	treasury, err := treasuryOf(listing.Marketplace, mkt)
	if err != nil {
		return nil, err
	}
	rewardMint, err := rewardMintOf(listing.Marketplace, mkt)
	if err != nil {
		return nil, err
	}
	split, err := fees.Apply(fees.Policy{FeeBps: mkt.FeeBps, RouteWallet: treasury}, price)
	if err != nil {
		return nil, err
	}
	accrual, err := e.params.Reward.Compute(price)
	if err != nil {
		return nil, err
	}

	assetHolding, err := token.AssociatedAddress(taker, asset)
	if err != nil {
		return nil, err
	}
	rewardHolding, err := token.AssociatedAddress(taker, rewardMint)
	if err != nil {
		return nil, err
	}
	newRecords := 0
	if exists, err := e.holdingExists(assetHolding); err != nil {
		return nil, err
	} else if !exists {
		newRecords++
	}
	if accrual.Reward > 0 {
		if err := e.checkMintable(rewardMint, rewardHolding, accrual.Reward); err != nil {
			return nil, err
		}
		if exists, err := e.holdingExists(rewardHolding); err != nil {
			return nil, err
		} else if !exists {
			newRecords++
		}
	}
	deposits, err := e.deposits(newRecords)
	if err != nil {
		return nil, err
	}
	required, err := nativecommon.AddUint64(price, deposits)
	if err != nil {
		return nil, err
	}
	if err := e.requireFunds(taker, required); err != nil {
		return nil, err
	}
	if taker != listing.Maker {
		if err := e.requireCredit(listing.Maker, split.Net); err != nil {
			return nil, err
		}
	}
	if err := e.requireCredit(split.RouteWallet, split.Fee); err != nil {
		return nil, err
	}

	if err := bank.Transfer(e.state, taker, listing.Maker, split.Net); err != nil {
		return nil, err
	}
	if err := bank.Transfer(e.state, taker, split.RouteWallet, split.Fee); err != nil {
		return nil, err
	}
	if _, err := e.ensureHolding(taker, asset); err != nil {
		return nil, err
	}
	if err := e.tokens.Transfer(listing.Vault, assetHolding, listingAuthority(listing), 1); err != nil {
		return nil, fmt.Errorf("release vault: %w", err)
	}
	if accrual.Reward > 0 {
		if _, err := e.ensureHolding(taker, rewardMint); err != nil {
			return nil, err
		}
		if err := e.tokens.MintTo(rewardMint, rewardHolding, marketplaceAuthority(mkt), accrual.Reward); err != nil {
			return nil, fmt.Errorf("issue reward: %w", err)
		}
	}
	if err := e.closeListing(addr, listing); err != nil {
		return nil, err
	}

	settlement := &Settlement{
		Marketplace: listing.Marketplace,
		Listing:     addr,
		Maker:       listing.Maker,
		Taker:       taker,
		Asset:       asset,
		Price:       price,
		Fee:         split.Fee,
		Proceeds:    split.Net,
		Treasury:    treasury,
		RewardMint:  rewardMint,
		Reward:      accrual.Reward,
	}
	e.emit(newPurchasedEvent(settlement))
	e.emit(loyalty.NewAccrualEvent(listing.Marketplace, taker, rewardMint, e.params.Reward, accrual))
	return settlement, nil
}

func (e *Engine) checkMintable(mintAddr, holdingAddr [20]byte, amount uint64) error {
	mint, err := e.tokens.Mint(mintAddr)
	if err != nil {
		return err
	}
	if _, err := nativecommon.AddUint64(mint.Supply, amount); err != nil {
		return err
	}
	balance, err := e.tokens.Balance(holdingAddr)
	if err != nil {
		return err
	}
	_, err = nativecommon.AddUint64(balance, amount)
	return err
}

// Cancel returns the escrowed unit to the maker and closes the listing. Only
// the maker may cancel.
func (e *Engine) Cancel(caller, marketplace, asset [20]byte) (*Listing, error) {
	addr, listing, err := e.Listing(marketplace, asset)
	if err != nil {
		return nil, err
	}
	if caller != listing.Maker {
		return nil, ErrUnauthorized
	}
	destination, err := token.AssociatedAddress(listing.Maker, asset)
	if err != nil {
		return nil, err
	}
	if exists, err := e.holdingExists(destination); err != nil {
		return nil, err
	} else if !exists {
		if err := e.requireFunds(listing.Maker, e.params.RecordDeposit); err != nil {
			return nil, err
		}
	}

	if _, err := e.ensureHolding(listing.Maker, asset); err != nil {
		return nil, err
	}
	if err := e.tokens.Transfer(listing.Vault, destination, listingAuthority(listing), 1); err != nil {
		return nil, fmt.Errorf("release vault: %w", err)
	}
	if err := e.closeListing(addr, listing); err != nil {
		return nil, err
	}
	e.emit(newCancelledEvent(addr, listing))
	return listing, nil
}
