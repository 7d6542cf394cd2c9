package core

import (
	"context"

	txerrors "marketchain/core/errors"
	"marketchain/core/events"
	"marketchain/core/state"
	"marketchain/core/types"
	"marketchain/crypto"
	"marketchain/native/bank"
	"marketchain/native/marketplace"
	"marketchain/native/token"
)

// execute dispatches tx to its native program. All writes go to the staged
// manager.
func (sp *StateProcessor) execute(ctx context.Context, manager *state.Manager, buffer *events.Buffer, from [20]byte, tx *types.Transaction) error {
	_, span := sp.tracer.Start(ctx, "instruction."+tx.Type.String())
	defer span.End()

	switch tx.Type {
	case types.TxTypeTransfer:
		var payload types.TransferPayload
		if err := tx.DecodePayload(&payload); err != nil {
			return err
		}
		return bank.Transfer(manager, from, payload.To, payload.Amount)

	case types.TxTypeCreateMint:
		var payload types.CreateMintPayload
		if err := tx.DecodePayload(&payload); err != nil {
			return err
		}
		return sp.createMint(manager, buffer, from, tx.Nonce, payload.Decimals)

	case types.TxTypeMintTo:
		var payload types.MintToPayload
		if err := tx.DecodePayload(&payload); err != nil {
			return err
		}
		return sp.mintTo(manager, buffer, from, payload)

	case types.TxTypeInitializeMarketplace:
		var payload types.InitializeMarketplacePayload
		if err := tx.DecodePayload(&payload); err != nil {
			return err
		}
		_, err := sp.marketplaceEngine(manager, buffer).Initialize(from, payload.Name, payload.FeeBps)
		return err

	case types.TxTypeList:
		var payload types.ListPayload
		if err := tx.DecodePayload(&payload); err != nil {
			return err
		}
		mkt, _, err := marketplace.MarketplaceAddress(payload.Marketplace)
		if err != nil {
			return err
		}
		_, err = sp.marketplaceEngine(manager, buffer).List(from, mkt, payload.Asset, payload.Price)
		return err

	case types.TxTypePurchase:
		var payload types.PurchasePayload
		if err := tx.DecodePayload(&payload); err != nil {
			return err
		}
		mkt, _, err := marketplace.MarketplaceAddress(payload.Marketplace)
		if err != nil {
			return err
		}
		_, err = sp.marketplaceEngine(manager, buffer).Purchase(from, mkt, payload.Asset, payload.Price)
		return err

	case types.TxTypeCancel:
		var payload types.CancelPayload
		if err := tx.DecodePayload(&payload); err != nil {
			return err
		}
		mkt, _, err := marketplace.MarketplaceAddress(payload.Marketplace)
		if err != nil {
			return err
		}
		_, err = sp.marketplaceEngine(manager, buffer).Cancel(from, mkt, payload.Asset)
		return err

	default:
		return txerrors.ErrUnknownTxType
	}
}

func (sp *StateProcessor) marketplaceEngine(manager *state.Manager, buffer *events.Buffer) *marketplace.Engine {
	engine := marketplace.NewEngine()
	engine.SetState(manager)
	engine.SetParams(sp.params)
	engine.SetEmitter(buffer)
	return engine
}

func (sp *StateProcessor) tokenProgram(manager *state.Manager, buffer *events.Buffer) *token.Program {
	program := token.NewProgram()
	program.SetState(manager)
	program.SetEmitter(buffer)
	return program
}

// createMint creates a mint whose authority is the sender. The address is
// derived from the sender and the transaction nonce so it is known before
// submission.
func (sp *StateProcessor) createMint(manager *state.Manager, buffer *events.Buffer, from [20]byte, nonce uint64, decimals uint8) error {
	addr, err := token.MintAddress(from, nonce)
	if err != nil {
		return err
	}
	if err := bank.Deposit(manager, from, addr, sp.params.RecordDeposit); err != nil {
		return err
	}
	mint, err := sp.tokenProgram(manager, buffer).InitializeMint(addr, decimals, from)
	if err != nil {
		return err
	}
	buffer.Emit(events.Typed{Evt: token.NewMintCreatedEvent(addr, mint)})
	return nil
}

// mintTo issues units of a sender-controlled mint to the owner's associated
// holding, creating the holding at the sender's expense when missing.
func (sp *StateProcessor) mintTo(manager *state.Manager, buffer *events.Buffer, from [20]byte, payload types.MintToPayload) error {
	program := sp.tokenProgram(manager, buffer)
	mintAddr := [20]byte(payload.Mint)
	owner := [20]byte(payload.Owner)
	holding, created, err := program.EnsureAssociatedHolding(owner, mintAddr)
	if err != nil {
		return err
	}
	if created {
		if err := bank.Deposit(manager, from, holding, sp.params.RecordDeposit); err != nil {
			return err
		}
	}
	return program.MintTo(mintAddr, holding, crypto.SignerAuthority(from), payload.Amount)
}
