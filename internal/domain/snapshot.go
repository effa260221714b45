package domain

import "time"

// Coordinates locate a vending shop on a game map.
type Coordinates struct {
	Map string `json:"map"`
	X   int    `json:"x"`
	Y   int    `json:"y"`
}

// Listing is one currently active vending entry for a variant.
type Listing struct {
	ListedAt    time.Time   `json:"listedAt"`
	ShopName    string      `json:"shopName"`
	Amount      int         `json:"amount"`
	Price       int         `json:"price"`
	Coordinates Coordinates `json:"coordinates"`
}

// VariantSnapshot is one persisted row per variant observed among currently
// active listings. Fully replaced on each refresh cycle; rows older than the
// retention horizon are purged.
type VariantSnapshot struct {
	ItemID     int
	Refinement int
	Cards      string
	Listings   []Listing
	CreatedAt  time.Time // refresh cycle timestamp
}

// Key returns the variant key identifying this row.
func (s *VariantSnapshot) Key() VariantKey {
	return VariantKey{ItemID: s.ItemID, Refinement: s.Refinement, Cards: s.Cards}
}
