package loyalty

import (
	"encoding/hex"
	"strconv"

	"marketchain/core/types"
)

const (
	EventTypeRewardAccrued = "loyalty.reward.accrued"
	EventTypeRewardSkipped = "loyalty.reward.skipped"
)

// NewAccrualEvent returns the canonical event for an evaluated purchase. The
// event type depends on whether a reward was issued.
func NewAccrualEvent(marketplace, taker, mint [20]byte, policy RewardPolicy, accrual Accrual) *types.Event {
	attrs := map[string]string{
		"marketplace": hex.EncodeToString(marketplace[:]),
		"taker":       hex.EncodeToString(taker[:]),
		"mint":        hex.EncodeToString(mint[:]),
		"price":       strconv.FormatUint(accrual.Price, 10),
		"rateBps":     strconv.FormatUint(uint64(policy.RateBps), 10),
	}
	if accrual.Skipped() {
		attrs["reason"] = accrual.SkipReason
		return &types.Event{Type: EventTypeRewardSkipped, Attributes: attrs}
	}
	attrs["reward"] = strconv.FormatUint(accrual.Reward, 10)
	if accrual.Capped {
		attrs["capped"] = "true"
	}
	return &types.Event{Type: EventTypeRewardAccrued, Attributes: attrs}
}
