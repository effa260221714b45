package normalize

import (
	"sort"
	"time"

	"payon-market/internal/domain"
)

// Group partitions priced events into per-variant buckets. Iteration order
// of the result is not significant downstream; callers needing determinism
// sort the key set.
func Group(events []domain.PricedEvent) map[domain.VariantKey][]domain.PricePoint {
	groups := make(map[domain.VariantKey][]domain.PricePoint)
	for _, e := range events {
		groups[e.Key] = append(groups[e.Key], domain.PricePoint{Timestamp: e.Timestamp, Price: e.Price})
	}
	return groups
}

// BuildHistories unions the sell-side and vend-side groupings of one item on
// key-set and emits one history row per variant. A variant present on only
// one side still produces a row with an empty counterpart list. Rows are
// ordered by (refinement, cards) for deterministic output.
func BuildHistories(itemID int, name string, sell, vend []domain.PricedEvent, now time.Time) []*domain.VariantHistory {
	sellGroups := Group(sell)
	vendGroups := Group(vend)

	keySet := make(map[domain.VariantKey]struct{}, len(sellGroups)+len(vendGroups))
	for k := range sellGroups {
		keySet[k] = struct{}{}
	}
	for k := range vendGroups {
		keySet[k] = struct{}{}
	}

	keys := make([]domain.VariantKey, 0, len(keySet))
	for k := range keySet {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Refinement != keys[j].Refinement {
			return keys[i].Refinement < keys[j].Refinement
		}
		return keys[i].Cards < keys[j].Cards
	})

	rows := make([]*domain.VariantHistory, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, &domain.VariantHistory{
			ItemID:     itemID,
			Name:       name,
			Refinement: k.Refinement,
			Cards:      k.Cards,
			SellEvents: sellGroups[k],
			VendEvents: vendGroups[k],
			CreatedAt:  now,
		})
	}
	return rows
}

// KeyedListing pairs a live listing with its variant key.
type KeyedListing struct {
	Key     domain.VariantKey
	Listing domain.Listing
}

// GroupListings partitions live listing entries by variant key, preserving
// first-encountered input order within each bucket.
func GroupListings(entries []KeyedListing) map[domain.VariantKey][]domain.Listing {
	groups := make(map[domain.VariantKey][]domain.Listing)
	for _, e := range entries {
		groups[e.Key] = append(groups[e.Key], e.Listing)
	}
	return groups
}
