// core/genesis/loader.go
package genesis

import (
	"fmt"

	"marketchain/core/state"
	"marketchain/crypto"
	"marketchain/native/bank"
	"marketchain/native/marketplace"
)

// Apply writes the genesis allocations and marketplaces into the state held
// by manager. Applying the same spec twice is rejected.
func Apply(spec *GenesisSpec, manager *state.Manager, params marketplace.Params) error {
	if spec == nil {
		return fmt.Errorf("genesis spec must not be nil")
	}
	if manager == nil {
		return fmt.Errorf("state manager must not be nil")
	}
	if _, ok, err := manager.GenesisApplied(); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("genesis already applied")
	}

	allocs, err := spec.Allocations()
	if err != nil {
		return err
	}
	for _, alloc := range allocs {
		if err := bank.Credit(manager, alloc.Address, alloc.Amount); err != nil {
			return fmt.Errorf("alloc %x: %w", alloc.Address, err)
		}
	}

	engine := marketplace.NewEngine()
	engine.SetState(manager)
	engine.SetParams(params)
	for _, m := range spec.Marketplaces {
		admin, err := crypto.ParseAddress(m.Admin)
		if err != nil {
			return fmt.Errorf("marketplace %q admin: %w", m.Name, err)
		}
		if _, err := engine.Initialize(admin, m.Name, m.FeeBps); err != nil {
			return fmt.Errorf("marketplace %q: %w", m.Name, err)
		}
	}
	return manager.MarkGenesis(state.GenesisMarker{ChainID: spec.ChainID, Hash: spec.Hash()})
}
