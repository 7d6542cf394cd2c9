package token

import (
	"encoding/binary"

	"marketchain/crypto"
)

// ProgramID identifies the token program for address derivation.
var ProgramID = crypto.ProgramID("token")

// Mint describes an issuable asset. Only Authority may issue new units.
type Mint struct {
	Decimals  uint8
	Authority [20]byte
	Supply    uint64
}

// Clone returns a copy of the mint.
func (m *Mint) Clone() *Mint {
	if m == nil {
		return nil
	}
	clone := *m
	return &clone
}

// Holding is a balance of a single mint controlled by Owner. Owner may be a
// key-controlled address or a derived address. A locked holding accepts no
// further credits; its owner can still move units out and close it.
type Holding struct {
	Mint   [20]byte
	Owner  [20]byte
	Amount uint64
	Locked bool `rlp:"optional"`
}

// Clone returns a copy of the holding.
func (h *Holding) Clone() *Holding {
	if h == nil {
		return nil
	}
	clone := *h
	return &clone
}

// AssociatedAddress returns the canonical holding address of owner for mint.
func AssociatedAddress(owner, mint [20]byte) ([20]byte, error) {
	addr, _, err := crypto.FindDerivedAddress(ProgramID, owner[:], mint[:])
	return addr, err
}

// MintAddress derives the address of a mint created by creator with the
// given creation nonce.
func MintAddress(creator [20]byte, nonce uint64) ([20]byte, error) {
	var nonceBytes [8]byte
	binary.BigEndian.PutUint64(nonceBytes[:], nonce)
	addr, _, err := crypto.FindDerivedAddress(ProgramID, []byte("mint"), creator[:], nonceBytes[:])
	return addr, err
}
