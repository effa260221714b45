package normalize

import (
	"time"

	"payon-market/internal/domain"
)

// batchDateLayouts are tried in order when parsing a batch date. The
// upstream source emits ISO timestamps; older records carry date-only
// strings.
var batchDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Normalizer converts raw history batches into discrete priced events
// tagged by variant key.
type Normalizer struct {
	classifier *Classifier
}

// NewNormalizer creates a normalizer whose card combos are resolved through
// the given name lookup.
func NewNormalizer(names NameLookup) *Normalizer {
	return &Normalizer{classifier: NewClassifier(names)}
}

// Classifier exposes the card classifier built from the normalizer's lookup.
func (n *Normalizer) Classifier() *Classifier {
	return n.classifier
}

// Events produces one priced event per (price, filter) pair of the batch,
// all sharing the batch date. Nil filter entries (legacy records) default to
// refinement 0 with no sub-items. A malformed batch (mismatched array
// lengths, unparseable date) yields an empty result; the caller decides
// whether to log it.
// Pure function of its inputs; output order matches input order.
func (n *Normalizer) Events(itemID int, batch domain.RawTimeSeries) []domain.PricedEvent {
	if len(batch.Prices) != len(batch.Filters) {
		return nil
	}

	ts, ok := parseBatchDate(batch.Date)
	if !ok {
		return nil
	}

	events := make([]domain.PricedEvent, 0, len(batch.Prices))
	for i, price := range batch.Prices {
		filter := batch.Filters[i]
		if filter == nil {
			filter = &domain.VariantFilter{}
		}

		events = append(events, domain.PricedEvent{
			Timestamp: ts,
			Price:     price,
			Key: domain.VariantKey{
				ItemID:     itemID,
				Refinement: filter.Refinement,
				Cards:      n.classifier.CardCombo(filter.SubItemIDs[:]),
			},
		})
	}
	return events
}

// parseBatchDate parses a batch date against the known upstream layouts.
func parseBatchDate(date string) (time.Time, bool) {
	for _, layout := range batchDateLayouts {
		if ts, err := time.Parse(layout, date); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
