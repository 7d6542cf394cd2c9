package crypto

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

const (
	// MaxSeeds bounds the number of seeds accepted by a derivation.
	MaxSeeds = 16
	// MaxSeedLength bounds the length of each individual seed.
	MaxSeedLength = 32
)

var derivedAddressTag = []byte("marketchain/DerivedAddress")

var (
	ErrMaxSeedLengthExceeded = errors.New("derive: seed exceeds maximum length")
	ErrTooManySeeds          = errors.New("derive: too many seeds")
	ErrKeyedAddress          = errors.New("derive: digest is a valid public key coordinate")
	ErrNoViableBump          = errors.New("derive: no viable bump")
)

// ProgramID derives a stable program identifier from a name.
func ProgramID(name string) [20]byte {
	var id [20]byte
	copy(id[:], crypto.Keccak256([]byte("marketchain/program/"+name))[12:])
	return id
}

// CreateDerivedAddress computes the address owned by program for the given
// seeds and bump. The keccak256 digest must not be the x-coordinate of a
// secp256k1 point, so no private key can ever sign for the address.
func CreateDerivedAddress(program [20]byte, bump uint8, seeds ...[]byte) ([20]byte, error) {
	var out [20]byte
	if err := checkSeeds(seeds); err != nil {
		return out, err
	}
	parts := make([][]byte, 0, len(seeds)+3)
	parts = append(parts, seeds...)
	parts = append(parts, []byte{bump}, program[:], derivedAddressTag)
	digest := crypto.Keccak256(parts...)
	if isCurvePoint(digest) {
		return out, ErrKeyedAddress
	}
	copy(out[:], digest[12:])
	return out, nil
}

// FindDerivedAddress returns the canonical derived address for the seeds: the
// first viable candidate when searching bumps from 255 down to 0.
func FindDerivedAddress(program [20]byte, seeds ...[]byte) ([20]byte, uint8, error) {
	if err := checkSeeds(seeds); err != nil {
		return [20]byte{}, 0, err
	}
	for bump := 255; bump >= 0; bump-- {
		addr, err := CreateDerivedAddress(program, uint8(bump), seeds...)
		if errors.Is(err, ErrKeyedAddress) {
			continue
		}
		if err != nil {
			return [20]byte{}, 0, err
		}
		return addr, uint8(bump), nil
	}
	return [20]byte{}, 0, ErrNoViableBump
}

func checkSeeds(seeds [][]byte) error {
	if len(seeds) > MaxSeeds {
		return fmt.Errorf("%w: %d", ErrTooManySeeds, len(seeds))
	}
	for _, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return fmt.Errorf("%w: %d bytes", ErrMaxSeedLengthExceeded, len(seed))
		}
	}
	return nil
}

func isCurvePoint(digest []byte) bool {
	compressed := make([]byte, 0, 33)
	compressed = append(compressed, 0x02)
	compressed = append(compressed, digest...)
	_, err := crypto.DecompressPubkey(compressed)
	return err == nil
}
