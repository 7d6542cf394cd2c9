package core

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	txerrors "marketchain/core/errors"
	"marketchain/core/events"
	"marketchain/core/genesis"
	"marketchain/core/state"
	"marketchain/core/types"
	"marketchain/native/marketplace"
	"marketchain/observability"
	telemetry "marketchain/observability/otel"
	"marketchain/storage/trie"
)

// StateProcessor applies signed transactions to the state trie one at a time.
// Each transaction runs against a private copy of the trie which replaces the
// live trie only when every step succeeded, so a rejected transaction leaves
// the state root unchanged. Events are forwarded only for adopted
// transactions.
type StateProcessor struct {
	mu            sync.Mutex
	trie          *trie.Trie
	chainID       uint64
	params        marketplace.Params
	emitter       events.Emitter
	committedRoot common.Hash
	metrics       *observability.MarketplaceMetrics
	tracer        trace.Tracer
	logger        *slog.Logger
}

func NewStateProcessor(tr *trie.Trie, chainID uint64) *StateProcessor {
	return &StateProcessor{
		trie:          tr,
		chainID:       chainID,
		params:        marketplace.DefaultParams(),
		emitter:       events.NoopEmitter{},
		committedRoot: tr.Root(),
		metrics:       observability.Marketplace(),
		tracer:        telemetry.Tracer(),
		logger:        slog.Default(),
	}
}

// ChainID returns the chain identifier transactions must carry.
func (sp *StateProcessor) ChainID() uint64 { return sp.chainID }

// SetParams replaces the marketplace parameters. Callers must ensure the new
// parameters are identical network wide.
func (sp *StateProcessor) SetParams(params marketplace.Params) error {
	if err := params.Validate(); err != nil {
		return err
	}
	sp.mu.Lock()
	defer sp.mu.Unlock()
	sp.params = params
	return nil
}

// SetEmitter configures where committed events are forwarded. Passing nil
// discards them.
func (sp *StateProcessor) SetEmitter(emitter events.Emitter) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	sp.emitter = emitter
}

// SetLogger overrides the logger used for transaction outcomes.
func (sp *StateProcessor) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	sp.logger = logger
}

// CurrentRoot returns the last committed state root.
func (sp *StateProcessor) CurrentRoot() common.Hash {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return sp.committedRoot
}

// PendingRoot returns the root of the trie including uncommitted
// transactions.
func (sp *StateProcessor) PendingRoot() common.Hash {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return sp.trie.Hash()
}

// Commit persists the current trie contents and returns the resulting state
// root.
func (sp *StateProcessor) Commit(height uint64) (common.Hash, error) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	newRoot, err := sp.trie.Commit(sp.committedRoot, height)
	if err != nil {
		return common.Hash{}, err
	}
	sp.committedRoot = newRoot
	return newRoot, nil
}

// ApplyGenesis writes the genesis allocations when they have not been applied
// yet. It reports whether the state was modified.
func (sp *StateProcessor) ApplyGenesis(spec *genesis.GenesisSpec) (bool, error) {
	if spec == nil {
		return false, fmt.Errorf("genesis spec must not be nil")
	}
	if spec.ChainID != sp.chainID {
		return false, fmt.Errorf("%w: genesis %d, node %d", txerrors.ErrGenesisChainID, spec.ChainID, sp.chainID)
	}
	sp.mu.Lock()
	defer sp.mu.Unlock()
	staged := sp.trie.Copy()
	manager := state.NewManager(staged)
	if _, ok, err := manager.GenesisApplied(); err != nil {
		return false, err
	} else if ok {
		return false, nil
	}
	if err := genesis.Apply(spec, manager, sp.params); err != nil {
		return false, err
	}
	sp.trie = staged
	return true, nil
}

// ApplyTransaction verifies and applies tx. On error no state change and no
// event is observable.
func (sp *StateProcessor) ApplyTransaction(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	if tx == nil {
		return nil, fmt.Errorf("nil transaction")
	}
	ctx, span := sp.tracer.Start(ctx, "StateProcessor.ApplyTransaction",
		trace.WithAttributes(attribute.String("tx.type", tx.Type.String())))
	defer span.End()

	sp.mu.Lock()
	defer sp.mu.Unlock()

	start := time.Now()
	receipt, err := sp.applyLocked(ctx, tx)
	sp.metrics.ObserveTransaction(tx.Type.String(), err, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		sp.logger.Info("transaction rejected", "type", tx.Type.String(), "error", err)
		return nil, err
	}
	sp.logger.Debug("transaction applied",
		"type", tx.Type.String(),
		"tx", hex.EncodeToString(receipt.TxHash[:]),
		"events", len(receipt.Events))
	return receipt, nil
}

func (sp *StateProcessor) applyLocked(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	if tx.ChainID != sp.chainID {
		return nil, fmt.Errorf("%w: got %d, want %d", txerrors.ErrChainIDMismatch, tx.ChainID, sp.chainID)
	}
	from, err := tx.From()
	if err != nil {
		return nil, err
	}
	hash, err := tx.Hash()
	if err != nil {
		return nil, err
	}

	staged := sp.trie.Copy()
	manager := state.NewManager(staged)
	account, err := manager.GetAccount(from)
	if err != nil {
		return nil, err
	}
	if tx.Nonce != account.Nonce {
		return nil, fmt.Errorf("%w: got %d, want %d", txerrors.ErrNonceMismatch, tx.Nonce, account.Nonce)
	}

	buffer := &events.Buffer{}
	if err := sp.execute(ctx, manager, buffer, from, tx); err != nil {
		return nil, fmt.Errorf("%s: %w", tx.Type, err)
	}
	// The instruction may have moved the sender's balance, so reload before
	// bumping the nonce.
	account, err = manager.GetAccount(from)
	if err != nil {
		return nil, err
	}
	account.Nonce++
	if err := manager.PutAccount(from, account); err != nil {
		return nil, err
	}

	sp.trie = staged
	emitted := buffer.Events()
	receipt := &types.Receipt{TxHash: hash, Type: tx.Type, From: from, Events: make([]types.Event, 0, len(emitted))}
	for _, evt := range emitted {
		if payload := evt.Event(); payload != nil {
			receipt.Events = append(receipt.Events, payload.Clone())
		}
		sp.recordEventMetrics(evt)
	}
	buffer.Flush(sp.emitter)
	return receipt, nil
}
