package stats

import (
	"math"

	"payon-market/internal/domain"
)

// Reference selects the historical reference value for a metric from a
// window statistics object.
func Reference(s domain.WindowStatistics, metric domain.Metric) int {
	switch metric {
	case domain.MetricLowestSold:
		return s.LowestSold
	case domain.MetricAverageSold:
		return s.AverageSold
	default:
		return 0
	}
}

// Compare computes the relative price indicator for a live lowest price
// against a historical reference value. A zero reference (no matching
// history, or no events in the window) compares as neutral-favorable:
// {0, true}.
//
// The ratio is intentionally asymmetric so its magnitude stays in [0, 1]
// regardless of direction, and each branch rounds the ratio to 2 decimals
// before taking the complement so results are stable under float noise:
//
//	ref > live:  delta = 1 - round(live/ref, 2)   (positive, live below ref)
//	ref <= live: delta = -(1 - round(ref/live, 2)) (non-positive)
func Compare(live, ref int) domain.PriceIndicator {
	if ref == 0 {
		return domain.PriceIndicator{PercentageDelta: 0, IsFavorable: true}
	}

	var delta float64
	if ref > live {
		delta = 1 - round2(float64(live)/float64(ref))
	} else {
		delta = -(1 - round2(float64(ref)/float64(live)))
	}
	if delta == 0 {
		delta = 0 // collapse negative zero from the ref == live case
	}

	return domain.PriceIndicator{
		PercentageDelta: delta,
		IsFavorable:     live < ref,
	}
}

// round2 rounds to 2 decimal digits.
func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
