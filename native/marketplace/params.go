package marketplace

import (
	"fmt"

	"marketchain/native/loyalty"
)

// Params configures the engine. They are not stored on chain; every node of
// a network must run with the same values.
type Params struct {
	Reward        loyalty.RewardPolicy
	RecordDeposit uint64
}

// DefaultParams returns the development defaults: the default reward policy
// and no record deposits.
func DefaultParams() Params {
	return Params{Reward: loyalty.DefaultRewardPolicy()}
}

// Validate performs static validation of the parameters.
func (p Params) Validate() error {
	if err := p.Reward.Validate(); err != nil {
		return fmt.Errorf("marketplace params: %w", err)
	}
	return nil
}
