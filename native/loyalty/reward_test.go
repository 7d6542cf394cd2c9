package loyalty

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	nativecommon "marketchain/native/common"
)

func TestComputeProportionalReward(t *testing.T) {
	policy := RewardPolicy{RateBps: 100}
	accrual, err := policy.Compute(1000)
	require.NoError(t, err)
	require.False(t, accrual.Skipped())
	require.Equal(t, uint64(10), accrual.Reward)
}

func TestComputeSkipReasons(t *testing.T) {
	cases := []struct {
		name   string
		policy RewardPolicy
		price  uint64
		reason string
	}{
		{"no rate", RewardPolicy{}, 1000, SkipNoRate},
		{"below min spend", RewardPolicy{RateBps: 100, MinSpend: 5000}, 1000, SkipBelowMinSpend},
		{"rounds to zero", RewardPolicy{RateBps: 1}, 9_999, SkipRewardZero},
		{"zero price", RewardPolicy{RateBps: 100}, 0, SkipRewardZero},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			accrual, err := tc.policy.Compute(tc.price)
			require.NoError(t, err)
			require.Equal(t, tc.reason, accrual.SkipReason)
			require.Zero(t, accrual.Reward)
		})
	}
}

func TestComputeCapPerTx(t *testing.T) {
	accrual, err := RewardPolicy{RateBps: 5000, CapPerTx: 7}.Compute(1000)
	require.NoError(t, err)
	require.True(t, accrual.Capped)
	require.Equal(t, uint64(7), accrual.Reward)
}

func TestComputeOverflowFailsClosed(t *testing.T) {
	_, err := RewardPolicy{RateBps: 20_000}.Compute(math.MaxUint64)
	require.True(t, errors.Is(err, nativecommon.ErrOverflow), "got %v", err)

	accrual, err := RewardPolicy{RateBps: 10_000}.Compute(math.MaxUint64)
	require.NoError(t, err)
	require.Equal(t, uint64(math.MaxUint64), accrual.Reward)
}

func TestValidate(t *testing.T) {
	require.NoError(t, DefaultRewardPolicy().Validate())
	require.ErrorIs(t, RewardPolicy{Decimals: 19}.Validate(), ErrInvalidPolicy)
	require.ErrorIs(t, RewardPolicy{CapPerTx: 5}.Validate(), ErrInvalidPolicy)
}

func TestAccrualEventTypes(t *testing.T) {
	var mkt, taker, mint [20]byte
	policy := RewardPolicy{RateBps: 100}
	evt := NewAccrualEvent(mkt, taker, mint, policy, Accrual{Price: 1000, Reward: 10})
	require.Equal(t, EventTypeRewardAccrued, evt.Type)
	require.Equal(t, "10", evt.Attributes["reward"])

	evt = NewAccrualEvent(mkt, taker, mint, policy, Accrual{Price: 1, SkipReason: SkipRewardZero})
	require.Equal(t, EventTypeRewardSkipped, evt.Type)
	require.Equal(t, SkipRewardZero, evt.Attributes["reason"])
}
