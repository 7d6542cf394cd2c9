package crypto

import "errors"

var ErrNoAuthority = errors.New("authority: empty authority")

// Authority is the capability presented to an authority-gated operation. It
// is either a live transaction signer or a derived authority proven by
// program, seeds and bump. Derived authorities are recomputed on every use,
// so holding one proves nothing unless the derivation matches the stored
// owner.
type Authority struct {
	signer  [20]byte
	program [20]byte
	seeds   [][]byte
	bump    uint8
	derived bool
}

// SignerAuthority wraps an address that signed the enclosing transaction.
func SignerAuthority(addr [20]byte) Authority {
	return Authority{signer: addr}
}

// DerivedAuthority builds a non-signing authority for the given program.
func DerivedAuthority(program [20]byte, bump uint8, seeds ...[]byte) Authority {
	copied := make([][]byte, len(seeds))
	for i, seed := range seeds {
		copied[i] = append([]byte(nil), seed...)
	}
	return Authority{program: program, seeds: copied, bump: bump, derived: true}
}

// IsDerived reports whether the authority is a derived capability.
func (a Authority) IsDerived() bool { return a.derived }

// Address resolves the address the authority acts for.
func (a Authority) Address() ([20]byte, error) {
	if !a.derived {
		if a.signer == ([20]byte{}) {
			return [20]byte{}, ErrNoAuthority
		}
		return a.signer, nil
	}
	return CreateDerivedAddress(a.program, a.bump, a.seeds...)
}

// Matches reports whether the authority resolves to expected.
func (a Authority) Matches(expected [20]byte) bool {
	addr, err := a.Address()
	if err != nil {
		return false
	}
	return addr == expected
}
