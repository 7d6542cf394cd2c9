package fees

import (
	"errors"
	"fmt"

	nativecommon "marketchain/native/common"
)

// MaxFeeBps is the largest fee rate a marketplace may charge (100%).
const MaxFeeBps = nativecommon.BpsDenominator

var ErrFeeOutOfRange = errors.New("fees: fee bps out of range")

// Policy captures the flat fee applied to settled sales.
type Policy struct {
	FeeBps      uint16
	RouteWallet [20]byte
}

// Validate reports whether the fee rate is within [0, MaxFeeBps].
func (p Policy) Validate() error {
	if uint64(p.FeeBps) > MaxFeeBps {
		return fmt.Errorf("%w: %d", ErrFeeOutOfRange, p.FeeBps)
	}
	return nil
}

// ApplyResult summarises the computed fee and the amount left for the seller.
// Fee + Net always equals the gross amount.
type ApplyResult struct {
	Gross       uint64
	Fee         uint64
	Net         uint64
	RouteWallet [20]byte
}

// Apply splits gross according to the policy. The fee rounds down; the
// remainder always goes to the seller, never to the fee wallet.
func Apply(policy Policy, gross uint64) (ApplyResult, error) {
	result := ApplyResult{Gross: gross, Net: gross, RouteWallet: policy.RouteWallet}
	if err := policy.Validate(); err != nil {
		return result, err
	}
	if gross == 0 || policy.FeeBps == 0 {
		return result, nil
	}
	fee, err := nativecommon.ApplyBps(gross, uint64(policy.FeeBps))
	if err != nil {
		return result, err
	}
	net, err := nativecommon.SubUint64(gross, fee)
	if err != nil {
		return result, err
	}
	result.Fee = fee
	result.Net = net
	return result, nil
}

// Totals aggregates fee accounting for a fee wallet.
type Totals struct {
	Wallet [20]byte
	Gross  uint64
	Fee    uint64
	Net    uint64
	Count  uint64
}

// Add folds a settled result into the totals, failing closed on overflow.
func (t *Totals) Add(result ApplyResult) error {
	gross, err := nativecommon.AddUint64(t.Gross, result.Gross)
	if err != nil {
		return err
	}
	fee, err := nativecommon.AddUint64(t.Fee, result.Fee)
	if err != nil {
		return err
	}
	net, err := nativecommon.AddUint64(t.Net, result.Net)
	if err != nil {
		return err
	}
	count, err := nativecommon.AddUint64(t.Count, 1)
	if err != nil {
		return err
	}
	t.Gross, t.Fee, t.Net, t.Count = gross, fee, net, count
	return nil
}
