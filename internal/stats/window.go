// Package stats implements the pure aggregation math of the pipeline:
// rolling-window statistics over variant histories, live snapshot summaries
// and the relative price indicator. Everything here is a pure function of
// its inputs and safe to run in parallel across variants.
package stats

import (
	"math"
	"time"

	"payon-market/internal/domain"
)

// Compute calculates the aggregate statistics of one history row over the
// given window, relative to now. An empty filtered event set yields the
// all-zero statistics object, never an error.
func Compute(h *domain.VariantHistory, window domain.Window, now time.Time) domain.WindowStatistics {
	sell := filterWindow(h.SellEvents, window, now)
	vend := filterWindow(h.VendEvents, window, now)

	return domain.WindowStatistics{
		HighestSold:    maxPrice(sell),
		LowestSold:     minPrice(sell),
		AverageListed:  roundedMean(vend),
		AverageSold:    roundedMean(sell),
		QuantityListed: len(vend),
		QuantitySold:   len(sell),
	}
}

// ComputeAll calculates statistics for every supported window.
func ComputeAll(h *domain.VariantHistory, now time.Time) map[domain.Window]domain.WindowStatistics {
	result := make(map[domain.Window]domain.WindowStatistics, len(domain.Windows))
	for _, w := range domain.Windows {
		result[w] = Compute(h, w, now)
	}
	return result
}

// filterWindow keeps events with timestamp >= now - window. AllTime keeps
// everything.
func filterWindow(points []domain.PricePoint, window domain.Window, now time.Time) []domain.PricePoint {
	d, bounded := window.Duration()
	if !bounded {
		return points
	}
	cutoff := now.Add(-d)

	var filtered []domain.PricePoint
	for _, p := range points {
		if !p.Timestamp.Before(cutoff) {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

func maxPrice(points []domain.PricePoint) int {
	best := 0
	for i, p := range points {
		if i == 0 || p.Price > best {
			best = p.Price
		}
	}
	return best
}

func minPrice(points []domain.PricePoint) int {
	best := 0
	for i, p := range points {
		if i == 0 || p.Price < best {
			best = p.Price
		}
	}
	return best
}

// roundedMean returns the arithmetic mean rounded to the nearest integer,
// half up. 0 on an empty set.
func roundedMean(points []domain.PricePoint) int {
	if len(points) == 0 {
		return 0
	}
	sum := 0
	for _, p := range points {
		sum += p.Price
	}
	return roundedMeanInt(sum, len(points))
}

// roundedMeanInt rounds sum/count to the nearest integer, half up.
func roundedMeanInt(sum, count int) int {
	return int(math.Round(float64(sum) / float64(count)))
}
