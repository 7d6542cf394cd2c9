package loyalty

import "fmt"

// DefaultRewardDecimals matches the decimals of reward mints created by
// marketplaces unless configured otherwise.
const DefaultRewardDecimals uint8 = 6

// RewardPolicy controls how many reward units a purchase accrues.
//
// The reward is floor(price * RateBps / 10000), then limited by CapPerTx when
// the cap is non-zero. Purchases below MinSpend accrue nothing. RateBps may
// exceed 10000 to pay more than one reward unit per unit of price.
type RewardPolicy struct {
	RateBps  uint32
	MinSpend uint64
	CapPerTx uint64
	Decimals uint8
}

// DefaultRewardPolicy pays one reward unit per hundred units of price.
func DefaultRewardPolicy() RewardPolicy {
	return RewardPolicy{RateBps: 100, Decimals: DefaultRewardDecimals}
}

// Validate performs static validation of the policy.
func (p RewardPolicy) Validate() error {
	if p.Decimals > 18 {
		return fmt.Errorf("%w: decimals %d", ErrInvalidPolicy, p.Decimals)
	}
	if p.RateBps == 0 && p.CapPerTx > 0 {
		return fmt.Errorf("%w: cap set without a rate", ErrInvalidPolicy)
	}
	return nil
}
