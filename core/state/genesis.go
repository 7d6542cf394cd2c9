package state

import "github.com/ethereum/go-ethereum/common"

// GenesisMarker records that genesis allocations were applied.
type GenesisMarker struct {
	ChainID uint64
	Hash    common.Hash
}

// GenesisApplied returns the stored genesis marker, if any.
func (m *Manager) GenesisApplied() (*GenesisMarker, bool, error) {
	marker := new(GenesisMarker)
	ok, err := m.KVGet(genesisKey, marker)
	if err != nil || !ok {
		return nil, false, err
	}
	return marker, true, nil
}

// MarkGenesis stores the genesis marker.
func (m *Manager) MarkGenesis(marker GenesisMarker) error {
	return m.KVPut(genesisKey, &marker)
}
