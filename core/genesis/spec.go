// core/genesis/spec.go
package genesis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"marketchain/crypto"
	"marketchain/native/fees"
)

type GenesisSpec struct {
	ChainID      uint64            `json:"chainId"`
	Alloc        map[string]string `json:"alloc"` // addr -> native amount
	Marketplaces []MarketplaceSpec `json:"marketplaces,omitempty"`

	raw []byte
}

// MarketplaceSpec registers a marketplace at genesis on behalf of Admin.
type MarketplaceSpec struct {
	Name   string `json:"name"`
	Admin  string `json:"admin"`
	FeeBps uint16 `json:"feeBps"`
}

// Allocation is a parsed genesis balance.
type Allocation struct {
	Address [20]byte
	Amount  uint64
}

func LoadGenesisSpec(path string) (*GenesisSpec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis spec %q: %w", path, err)
	}
	spec, err := ParseGenesisSpec(raw)
	if err != nil {
		return nil, fmt.Errorf("genesis spec %q: %w", path, err)
	}
	return spec, nil
}

// ParseGenesisSpec decodes and validates a JSON genesis document.
func ParseGenesisSpec(raw []byte) (*GenesisSpec, error) {
	var spec GenesisSpec
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := spec.validate(); err != nil {
		return nil, fmt.Errorf("invalid: %w", err)
	}
	spec.raw = append([]byte(nil), raw...)
	return &spec, nil
}

// Hash identifies the genesis document.
func (s *GenesisSpec) Hash() [32]byte {
	return ethcrypto.Keccak256Hash(s.raw)
}

// Allocations returns the parsed balances ordered by address.
func (s *GenesisSpec) Allocations() ([]Allocation, error) {
	out := make([]Allocation, 0, len(s.Alloc))
	for account, amount := range s.Alloc {
		addr, err := crypto.ParseAddress(account)
		if err != nil {
			return nil, fmt.Errorf("alloc[%q]: %w", account, err)
		}
		value, err := strconv.ParseUint(strings.TrimSpace(amount), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("alloc[%q]: invalid amount %q", account, amount)
		}
		out = append(out, Allocation{Address: addr, Amount: value})
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Address[:], out[j].Address[:]) < 0
	})
	return out, nil
}

func (s *GenesisSpec) validate() error {
	if s.ChainID == 0 {
		return fmt.Errorf("chainId must be provided")
	}
	allocs, err := s.Allocations()
	if err != nil {
		return err
	}
	for i := 1; i < len(allocs); i++ {
		if allocs[i].Address == allocs[i-1].Address {
			return fmt.Errorf("alloc: duplicate address %x", allocs[i].Address)
		}
	}
	names := make(map[string]struct{}, len(s.Marketplaces))
	for i, m := range s.Marketplaces {
		if _, err := crypto.ParseAddress(m.Admin); err != nil {
			return fmt.Errorf("marketplace[%d] admin: %w", i, err)
		}
		if err := (fees.Policy{FeeBps: m.FeeBps}).Validate(); err != nil {
			return fmt.Errorf("marketplace[%d]: %w", i, err)
		}
		if _, dup := names[m.Name]; dup {
			return fmt.Errorf("marketplace[%d]: duplicate name %q", i, m.Name)
		}
		names[m.Name] = struct{}{}
	}
	return nil
}
