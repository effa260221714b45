package stats

import (
	"fmt"

	"payon-market/internal/domain"
)

// Summarize aggregates the active listings of one variant: price extremes,
// rounded average price, total quantity and the location of the cheapest
// listing (ties broken by first-encountered input order). Invoked lazily per
// query rather than at ingestion so it always reflects the latest snapshot.
// An empty listing set yields the zero summary with an empty location.
func Summarize(listings []domain.Listing) domain.SnapshotSummary {
	if len(listings) == 0 {
		return domain.SnapshotSummary{}
	}

	summary := domain.SnapshotSummary{
		LowestPrice:  listings[0].Price,
		HighestPrice: listings[0].Price,
	}

	sum := 0
	cheapest := listings[0]
	for _, l := range listings {
		sum += l.Price
		summary.TotalQuantity += l.Amount

		if l.Price < summary.LowestPrice {
			summary.LowestPrice = l.Price
			cheapest = l
		}
		if l.Price > summary.HighestPrice {
			summary.HighestPrice = l.Price
		}
	}

	summary.AveragePrice = roundedMeanInt(sum, len(listings))
	summary.MinLocation = domain.MinLocation{
		Location: fmt.Sprintf("%s, %d, %d", cheapest.Coordinates.Map, cheapest.Coordinates.X, cheapest.Coordinates.Y),
		Price:    cheapest.Price,
		ListedAt: cheapest.ListedAt,
	}
	return summary
}
