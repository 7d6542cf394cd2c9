package marketplace

import (
	"errors"
	"fmt"

	"marketchain/core/events"
	"marketchain/core/types"
	"marketchain/native/bank"
	nativecommon "marketchain/native/common"
	"marketchain/native/fees"
	"marketchain/native/token"
)

type engineState interface {
	bank.State
	token.State
	MarketplaceGet(addr [20]byte) (*Marketplace, bool, error)
	MarketplacePut(addr [20]byte, m *Marketplace) error
	ListingGet(addr [20]byte) (*Listing, bool, error)
	ListingPut(addr [20]byte, l *Listing) error
	ListingDelete(addr [20]byte) error
}

// Engine implements the marketplace registry, listing and settlement
// transitions. Each operation checks every precondition before its first
// write; atomicity across the writes themselves is provided by the state
// processor staging the transaction.
type Engine struct {
	state   engineState
	tokens  *token.Program
	emitter events.Emitter
	params  Params
}

// NewEngine creates a marketplace engine with default parameters and a no-op
// emitter.
func NewEngine() *Engine {
	return &Engine{
		tokens:  token.NewProgram(),
		emitter: events.NoopEmitter{},
		params:  DefaultParams(),
	}
}

// SetState configures the state backend used by the engine and by the token
// program it drives.
func (e *Engine) SetState(state engineState) {
	e.state = state
	e.tokens.SetState(state)
}

// SetParams replaces the engine parameters.
func (e *Engine) SetParams(params Params) { e.params = params }

// Params returns the active engine parameters.
func (e *Engine) Params() Params { return e.params }

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	e.emitter = emitter
	e.tokens.SetEmitter(emitter)
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(events.Typed{Evt: evt})
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return nil
}

func validateName(name string) error {
	if len(name) == 0 {
		return ErrNameEmpty
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("%w: %d bytes", ErrNameTooLong, len(name))
	}
	return nil
}

// Initialize registers a marketplace named name with admin as its admin. The
// reward mint is created in the same step with the marketplace as its only
// authority.
func (e *Engine) Initialize(admin [20]byte, name string, feeBps uint16) (*Marketplace, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := validateName(name); err != nil {
		return nil, err
	}
	if err := (fees.Policy{FeeBps: feeBps}).Validate(); err != nil {
		return nil, fmt.Errorf("%w: %d", ErrFeeOutOfRange, feeBps)
	}
	addr, bump, err := MarketplaceAddress(name)
	if err != nil {
		return nil, err
	}
	if _, ok, err := e.state.MarketplaceGet(addr); err != nil {
		return nil, err
	} else if ok {
		return nil, fmt.Errorf("%w: %q", ErrAlreadyExists, name)
	}
	treasury, treasuryBump, err := TreasuryAddress(addr)
	if err != nil {
		return nil, err
	}
	rewardMint, rewardsBump, err := RewardMintAddress(addr)
	if err != nil {
		return nil, err
	}
	if _, ok, err := e.state.TokenMintGet(rewardMint); err != nil {
		return nil, err
	} else if ok {
		return nil, fmt.Errorf("%w: reward mint of %q", ErrAlreadyExists, name)
	}
	deposits, err := e.deposits(2)
	if err != nil {
		return nil, err
	}
	if err := e.requireFunds(admin, deposits); err != nil {
		return nil, err
	}

	m := &Marketplace{
		Admin:          admin,
		FeeBps:         feeBps,
		Name:           name,
		Bump:           bump,
		TreasuryBump:   treasuryBump,
		RewardsBump:    rewardsBump,
		RewardDecimals: e.params.Reward.Decimals,
	}
	if err := bank.Deposit(e.state, admin, addr, e.params.RecordDeposit); err != nil {
		return nil, err
	}
	if err := bank.Deposit(e.state, admin, rewardMint, e.params.RecordDeposit); err != nil {
		return nil, err
	}
	if _, err := e.tokens.InitializeMint(rewardMint, m.RewardDecimals, addr); err != nil {
		return nil, err
	}
	if err := e.state.MarketplacePut(addr, m); err != nil {
		return nil, err
	}
	e.emit(newInitializedEvent(addr, treasury, rewardMint, m))
	return m.Clone(), nil
}

// Marketplace returns the marketplace stored at addr.
func (e *Engine) Marketplace(addr [20]byte) (*Marketplace, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	m, ok, err := e.state.MarketplaceGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrMarketplaceNotFound
	}
	return m, nil
}

// MarketplaceByName resolves a marketplace through its derived address.
func (e *Engine) MarketplaceByName(name string) ([20]byte, *Marketplace, error) {
	addr, _, err := MarketplaceAddress(name)
	if err != nil {
		return addr, nil, err
	}
	m, err := e.Marketplace(addr)
	return addr, m, err
}

// Listing returns the active listing of asset under marketplace together with
// its address.
func (e *Engine) Listing(marketplace, asset [20]byte) ([20]byte, *Listing, error) {
	if err := e.ready(); err != nil {
		return [20]byte{}, nil, err
	}
	addr, _, err := ListingAddress(marketplace, asset)
	if err != nil {
		return addr, nil, err
	}
	listing, ok, err := e.state.ListingGet(addr)
	if err != nil {
		return addr, nil, err
	}
	if !ok {
		return addr, nil, ErrListingNotFound
	}
	return addr, listing, nil
}

// Treasury returns the fee sink of the marketplace at addr.
func (e *Engine) Treasury(addr [20]byte) ([20]byte, error) {
	m, err := e.Marketplace(addr)
	if err != nil {
		return [20]byte{}, err
	}
	return treasuryOf(addr, m)
}

// RewardMint returns the reward mint of the marketplace at addr.
func (e *Engine) RewardMint(addr [20]byte) ([20]byte, error) {
	m, err := e.Marketplace(addr)
	if err != nil {
		return [20]byte{}, err
	}
	return rewardMintOf(addr, m)
}

func (e *Engine) deposits(records int) (uint64, error) {
	var total uint64
	for i := 0; i < records; i++ {
		next, err := nativecommon.AddUint64(total, e.params.RecordDeposit)
		if err != nil {
			return 0, err
		}
		total = next
	}
	return total, nil
}

func (e *Engine) requireFunds(addr [20]byte, amount uint64) error {
	balance, err := bank.Balance(e.state, addr)
	if err != nil {
		return err
	}
	if balance < amount {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientFunds, balance, amount)
	}
	return nil
}

func (e *Engine) requireCredit(addr [20]byte, amount uint64) error {
	balance, err := bank.Balance(e.state, addr)
	if err != nil {
		return err
	}
	_, err = nativecommon.AddUint64(balance, amount)
	return err
}

func (e *Engine) holdingExists(addr [20]byte) (bool, error) {
	_, ok, err := e.state.TokenHoldingGet(addr)
	return ok, err
}

// ensureHolding returns the associated holding of owner for mint, creating it
// and charging owner the record deposit when missing.
func (e *Engine) ensureHolding(owner, mint [20]byte) ([20]byte, error) {
	addr, created, err := e.tokens.EnsureAssociatedHolding(owner, mint)
	if err != nil {
		return addr, err
	}
	if created {
		if err := bank.Deposit(e.state, owner, addr, e.params.RecordDeposit); err != nil {
			return addr, err
		}
	}
	return addr, nil
}

// closeListing closes the vault, deletes the listing and returns both record
// deposits to the maker.
func (e *Engine) closeListing(addr [20]byte, listing *Listing) error {
	if err := e.tokens.CloseHolding(listing.Vault, listingAuthority(listing)); err != nil {
		return fmt.Errorf("close vault: %w", err)
	}
	if _, err := bank.Sweep(e.state, listing.Vault, listing.Maker); err != nil {
		return err
	}
	if err := e.state.ListingDelete(addr); err != nil {
		return err
	}
	_, err := bank.Sweep(e.state, addr, listing.Maker)
	return err
}

func isNotFound(err error) bool {
	return errors.Is(err, token.ErrHoldingNotFound) || errors.Is(err, token.ErrMintNotFound)
}
