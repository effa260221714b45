package domain

import "time"

// VariantFilter describes the variant attributes attached to one price in a
// raw history batch: refinement level plus up to four sub-item ids (card
// slots, enchants or pet-loyalty markers). Zero-padded; legacy upstream
// records omit it entirely.
type VariantFilter struct {
	Refinement int    // 0-10+
	SubItemIDs [4]int // zero-padded sub-item identifiers
}

// RawTimeSeries is one upstream history record: a batch of prices sharing a
// single date, with a variant filter parallel to the price array. Invariant:
// len(Prices) == len(Filters) for a well-formed batch. Filter entries may be
// nil on old records, which default to refinement 0 and no sub-items.
type RawTimeSeries struct {
	Date    string           // batch timestamp, applies to every price
	Prices  []int            // prices in smallest currency unit (zeny)
	Filters []*VariantFilter // parallel to Prices; nil entries are legacy
}

// VariantKey uniquely identifies a sellable variant of an item. It is a
// comparable struct used directly as a map key, so card combo strings
// containing separator characters cannot collide.
type VariantKey struct {
	ItemID     int
	Refinement int
	Cards      string // ", "-joined sorted card names, or "" when no cards
}

// PricedEvent is one discrete priced observation produced by normalization.
// Ephemeral; never persisted with its key (the history row carries it).
type PricedEvent struct {
	Timestamp time.Time
	Price     int
	Key       VariantKey
}

// PricePoint is the persisted form of a priced event within a history row.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     int       `json:"price"`
}

// VariantHistory is one persisted row per variant observed at least once in
// an item's sale or listing history. Rows are superseded by later refresh
// cycles, never updated in place; rows older than the retention horizon are
// purged in bulk.
type VariantHistory struct {
	ItemID     int
	Name       string
	Refinement int
	Cards      string
	SellEvents []PricePoint // completed sales
	VendEvents []PricePoint // listings (vends)
	CreatedAt  time.Time    // refresh cycle timestamp
}

// Key returns the variant key identifying this row.
func (h *VariantHistory) Key() VariantKey {
	return VariantKey{ItemID: h.ItemID, Refinement: h.Refinement, Cards: h.Cards}
}
