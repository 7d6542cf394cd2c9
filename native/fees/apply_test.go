package fees

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	nativecommon "marketchain/native/common"
)

func TestApplyConcreteSplit(t *testing.T) {
	result, err := Apply(Policy{FeeBps: 500}, 1000)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if result.Fee != 50 || result.Net != 950 {
		t.Fatalf("expected 50/950, got %d/%d", result.Fee, result.Net)
	}
}

func TestApplyConservesValue(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	prices := []uint64{0, 1, 9_999, 10_000, 10_001, math.MaxUint64, math.MaxUint64 - 1}
	for i := 0; i < 200; i++ {
		prices = append(prices, rng.Uint64())
	}
	rates := []uint16{0, 1, 250, 500, 3333, 9999, 10_000}
	for _, price := range prices {
		for _, bps := range rates {
			result, err := Apply(Policy{FeeBps: bps}, price)
			if err != nil {
				t.Fatalf("apply %d@%d: %v", price, bps, err)
			}
			if result.Fee+result.Net != price {
				t.Fatalf("value not conserved for %d@%d: %d + %d", price, bps, result.Fee, result.Net)
			}
			if result.Fee > price {
				t.Fatalf("fee exceeds price for %d@%d", price, bps)
			}
		}
	}
}

func TestApplyMaxPriceFullFee(t *testing.T) {
	result, err := Apply(Policy{FeeBps: 10_000}, math.MaxUint64)
	if err != nil {
		t.Fatalf("max price at full fee must not overflow: %v", err)
	}
	if result.Fee != math.MaxUint64 || result.Net != 0 {
		t.Fatalf("unexpected split %d/%d", result.Fee, result.Net)
	}
}

func TestApplyRejectsOutOfRangeFee(t *testing.T) {
	if _, err := Apply(Policy{FeeBps: 10_001}, 100); !errors.Is(err, ErrFeeOutOfRange) {
		t.Fatalf("expected range error, got %v", err)
	}
}

func TestTotalsAddFailsClosed(t *testing.T) {
	totals := Totals{Gross: math.MaxUint64}
	if err := totals.Add(ApplyResult{Gross: 1, Net: 1}); !errors.Is(err, nativecommon.ErrOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
	if totals.Gross != math.MaxUint64 || totals.Count != 0 {
		t.Fatalf("totals must be untouched after a failed add")
	}
}
