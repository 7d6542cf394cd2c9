package types

// Account holds the native balance used as the payment medium together with
// the replay-protection nonce of the owning key.
type Account struct {
	Nonce   uint64 `json:"nonce"`
	Balance uint64 `json:"balance"`
}

// Clone returns a copy of the account. Nil accounts clone to an empty one.
func (a *Account) Clone() *Account {
	if a == nil {
		return &Account{}
	}
	clone := *a
	return &clone
}
