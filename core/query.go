package core

import (
	"marketchain/core/state"
	"marketchain/core/types"
	"marketchain/native/bank"
	"marketchain/native/marketplace"
	"marketchain/native/token"
)

// MarketplaceView is the read model of a registered marketplace.
type MarketplaceView struct {
	Address         [20]byte
	Treasury        [20]byte
	RewardMint      [20]byte
	TreasuryBalance uint64
	RewardSupply    uint64
	Record          *marketplace.Marketplace
}

// ListingView is the read model of an active listing.
type ListingView struct {
	Address [20]byte
	Record  *marketplace.Listing
}

// view runs fn against the live trie under the processor lock.
func (sp *StateProcessor) view(fn func(*state.Manager, *marketplace.Engine) error) error {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	manager := state.NewManager(sp.trie)
	engine := marketplace.NewEngine()
	engine.SetState(manager)
	engine.SetParams(sp.params)
	return fn(manager, engine)
}

// Marketplace resolves a marketplace by name.
func (sp *StateProcessor) Marketplace(name string) (*MarketplaceView, error) {
	var out *MarketplaceView
	err := sp.view(func(manager *state.Manager, engine *marketplace.Engine) error {
		addr, record, err := engine.MarketplaceByName(name)
		if err != nil {
			return err
		}
		treasury, err := engine.Treasury(addr)
		if err != nil {
			return err
		}
		rewardMint, err := engine.RewardMint(addr)
		if err != nil {
			return err
		}
		balance, err := bank.Balance(manager, treasury)
		if err != nil {
			return err
		}
		view := &MarketplaceView{Address: addr, Treasury: treasury, RewardMint: rewardMint, TreasuryBalance: balance, Record: record}
		if mint, ok, err := manager.TokenMintGet(rewardMint); err != nil {
			return err
		} else if ok {
			view.RewardSupply = mint.Supply
		}
		out = view
		return nil
	})
	return out, err
}

// Listing resolves the active listing of asset under the named marketplace.
func (sp *StateProcessor) Listing(name string, asset [20]byte) (*ListingView, error) {
	var out *ListingView
	err := sp.view(func(_ *state.Manager, engine *marketplace.Engine) error {
		mkt, _, err := marketplace.MarketplaceAddress(name)
		if err != nil {
			return err
		}
		addr, record, err := engine.Listing(mkt, asset)
		if err != nil {
			return err
		}
		out = &ListingView{Address: addr, Record: record}
		return nil
	})
	return out, err
}

// Account returns the native account at addr.
func (sp *StateProcessor) Account(addr [20]byte) (*types.Account, error) {
	var out *types.Account
	err := sp.view(func(manager *state.Manager, _ *marketplace.Engine) error {
		acc, err := manager.GetAccount(addr)
		out = acc
		return err
	})
	return out, err
}

// TokenBalance returns the amount of mint held in owner's associated holding.
func (sp *StateProcessor) TokenBalance(owner, mint [20]byte) (uint64, error) {
	holding, err := token.AssociatedAddress(owner, mint)
	if err != nil {
		return 0, err
	}
	var out uint64
	err = sp.view(func(manager *state.Manager, _ *marketplace.Engine) error {
		program := token.NewProgram()
		program.SetState(manager)
		balance, err := program.Balance(holding)
		out = balance
		return err
	})
	return out, err
}
