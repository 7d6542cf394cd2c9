package token

import (
	"errors"
	"fmt"

	"marketchain/core/events"
	"marketchain/core/types"
	"marketchain/crypto"
	nativecommon "marketchain/native/common"
)

// State is the storage the token program needs from the surrounding state
// implementation.
type State interface {
	TokenMintGet(addr [20]byte) (*Mint, bool, error)
	TokenMintPut(addr [20]byte, mint *Mint) error
	TokenHoldingGet(addr [20]byte) (*Holding, bool, error)
	TokenHoldingPut(addr [20]byte, holding *Holding) error
	TokenHoldingDelete(addr [20]byte) error
}

// Program implements mint, transfer and close semantics over holdings.
// Every operation validates all of its inputs before the first write, so a
// failed call leaves the state untouched.
type Program struct {
	state   State
	emitter events.Emitter
}

// NewProgram returns a token program with a no-op emitter.
func NewProgram() *Program {
	return &Program{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the program.
func (p *Program) SetState(state State) { p.state = state }

// SetEmitter configures the event emitter. Passing nil resets the emitter to a
// no-op implementation.
func (p *Program) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		p.emitter = events.NoopEmitter{}
		return
	}
	p.emitter = emitter
}

func (p *Program) emit(evt *types.Event) {
	if p == nil || p.emitter == nil || evt == nil {
		return
	}
	p.emitter.Emit(events.Typed{Evt: evt})
}

func (p *Program) ready() error {
	if p == nil || p.state == nil {
		return ErrNilState
	}
	return nil
}

// Mint returns the mint stored at addr.
func (p *Program) Mint(addr [20]byte) (*Mint, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	mint, ok, err := p.state.TokenMintGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrMintNotFound
	}
	return mint, nil
}

// Holding returns the holding stored at addr.
func (p *Program) Holding(addr [20]byte) (*Holding, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	holding, ok, err := p.state.TokenHoldingGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrHoldingNotFound
	}
	return holding, nil
}

// Balance returns the amount held at addr, zero when the holding is absent.
func (p *Program) Balance(addr [20]byte) (uint64, error) {
	holding, err := p.Holding(addr)
	if errors.Is(err, ErrHoldingNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return holding.Amount, nil
}

// InitializeMint creates a mint at addr.
func (p *Program) InitializeMint(addr [20]byte, decimals uint8, authority [20]byte) (*Mint, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	if _, ok, err := p.state.TokenMintGet(addr); err != nil {
		return nil, err
	} else if ok {
		return nil, fmt.Errorf("%w: mint %x", ErrAccountExists, addr)
	}
	mint := &Mint{Decimals: decimals, Authority: authority}
	if err := p.state.TokenMintPut(addr, mint); err != nil {
		return nil, err
	}
	return mint.Clone(), nil
}

// InitializeHolding creates an empty holding of mint owned by owner at addr.
func (p *Program) InitializeHolding(addr, mint, owner [20]byte) (*Holding, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	if _, err := p.Mint(mint); err != nil {
		return nil, err
	}
	if _, ok, err := p.state.TokenHoldingGet(addr); err != nil {
		return nil, err
	} else if ok {
		return nil, fmt.Errorf("%w: holding %x", ErrAccountExists, addr)
	}
	holding := &Holding{Mint: mint, Owner: owner}
	if err := p.state.TokenHoldingPut(addr, holding); err != nil {
		return nil, err
	}
	return holding.Clone(), nil
}

// EnsureAssociatedHolding returns the associated holding address of owner for
// mint, creating the holding when it does not exist yet.
func (p *Program) EnsureAssociatedHolding(owner, mint [20]byte) ([20]byte, bool, error) {
	addr, err := AssociatedAddress(owner, mint)
	if err != nil {
		return addr, false, err
	}
	if err := p.ready(); err != nil {
		return addr, false, err
	}
	existing, ok, err := p.state.TokenHoldingGet(addr)
	if err != nil {
		return addr, false, err
	}
	if ok {
		if existing.Mint != mint || existing.Owner != owner {
			return addr, false, fmt.Errorf("%w: associated holding %x", ErrMintMismatch, addr)
		}
		return addr, false, nil
	}
	if _, err := p.InitializeHolding(addr, mint, owner); err != nil {
		return addr, false, err
	}
	return addr, true, nil
}

// MintTo issues amount units of mint into the holding at dst. The authority
// must resolve to the mint authority.
func (p *Program) MintTo(mintAddr, dst [20]byte, authority crypto.Authority, amount uint64) error {
	mint, err := p.Mint(mintAddr)
	if err != nil {
		return err
	}
	if !authority.Matches(mint.Authority) {
		return ErrMintAuthority
	}
	holding, err := p.Holding(dst)
	if err != nil {
		return err
	}
	if holding.Mint != mintAddr {
		return ErrMintMismatch
	}
	if holding.Locked {
		return ErrHoldingLocked
	}
	supply, err := nativecommon.AddUint64(mint.Supply, amount)
	if err != nil {
		return err
	}
	balance, err := nativecommon.AddUint64(holding.Amount, amount)
	if err != nil {
		return err
	}
	mint.Supply = supply
	holding.Amount = balance
	if err := p.state.TokenMintPut(mintAddr, mint); err != nil {
		return err
	}
	if err := p.state.TokenHoldingPut(dst, holding); err != nil {
		return err
	}
	p.emit(newMintedEvent(mintAddr, dst, amount))
	return nil
}

// Transfer moves amount from src to dst. The authority must resolve to the
// owner of src. Either the whole amount moves or nothing does.
func (p *Program) Transfer(src, dst [20]byte, authority crypto.Authority, amount uint64) error {
	if src == dst {
		return ErrSelfTransfer
	}
	from, err := p.Holding(src)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	to, err := p.Holding(dst)
	if err != nil {
		return fmt.Errorf("destination: %w", err)
	}
	if !authority.Matches(from.Owner) {
		return ErrOwnerMismatch
	}
	if from.Mint != to.Mint {
		return ErrMintMismatch
	}
	if to.Locked {
		return fmt.Errorf("destination: %w", ErrHoldingLocked)
	}
	if from.Amount < amount {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientFunds, from.Amount, amount)
	}
	credited, err := nativecommon.AddUint64(to.Amount, amount)
	if err != nil {
		return err
	}
	from.Amount -= amount
	to.Amount = credited
	if err := p.state.TokenHoldingPut(src, from); err != nil {
		return err
	}
	if err := p.state.TokenHoldingPut(dst, to); err != nil {
		return err
	}
	p.emit(newTransferredEvent(from.Mint, src, dst, amount))
	return nil
}

// LockHolding stops addr from receiving further units. The authority must
// resolve to the holding owner.
func (p *Program) LockHolding(addr [20]byte, authority crypto.Authority) error {
	holding, err := p.Holding(addr)
	if err != nil {
		return err
	}
	if !authority.Matches(holding.Owner) {
		return ErrOwnerMismatch
	}
	if holding.Locked {
		return nil
	}
	holding.Locked = true
	return p.state.TokenHoldingPut(addr, holding)
}

// CloseHolding removes an empty holding. The authority must resolve to the
// holding owner.
func (p *Program) CloseHolding(addr [20]byte, authority crypto.Authority) error {
	holding, err := p.Holding(addr)
	if err != nil {
		return err
	}
	if !authority.Matches(holding.Owner) {
		return ErrOwnerMismatch
	}
	if holding.Amount != 0 {
		return ErrNonZeroBalance
	}
	if err := p.state.TokenHoldingDelete(addr); err != nil {
		return err
	}
	p.emit(newClosedEvent(addr, holding))
	return nil
}
