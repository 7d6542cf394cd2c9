package loyalty

import (
	nativecommon "marketchain/native/common"
)

// Skip reasons reported when a purchase accrues no reward.
const (
	SkipNoRate        = "no_reward_rate"
	SkipBelowMinSpend = "below_min_spend"
	SkipRewardZero    = "reward_zero"
)

// Accrual is the outcome of evaluating the policy for one purchase.
type Accrual struct {
	Price      uint64
	Reward     uint64
	Capped     bool
	SkipReason string
}

// Skipped reports whether the purchase accrues no reward.
func (a Accrual) Skipped() bool { return a.SkipReason != "" }

// Compute evaluates the policy for a purchase at price. An unrepresentable
// reward is an error, never a saturated or wrapped value.
func (p RewardPolicy) Compute(price uint64) (Accrual, error) {
	accrual := Accrual{Price: price}
	if p.RateBps == 0 {
		accrual.SkipReason = SkipNoRate
		return accrual, nil
	}
	if price < p.MinSpend {
		accrual.SkipReason = SkipBelowMinSpend
		return accrual, nil
	}
	reward, err := nativecommon.ApplyBps(price, uint64(p.RateBps))
	if err != nil {
		return accrual, err
	}
	if p.CapPerTx > 0 && reward > p.CapPerTx {
		reward = p.CapPerTx
		accrual.Capped = true
	}
	if reward == 0 {
		accrual.SkipReason = SkipRewardZero
		return accrual, nil
	}
	accrual.Reward = reward
	return accrual, nil
}
