package upstream

import (
	"time"

	"payon-market/internal/domain"
)

// Wire types mirroring the upstream pricing API. The history endpoint
// returns parallel-array batches: one shared date per batch, prices in y,
// variant filters parallel to y.

type historyBatch struct {
	X      string       `json:"x"`
	Y      []int        `json:"y"`
	Filter []*rawFilter `json:"filter"`
}

type rawFilter struct {
	R  int `json:"r"`
	C0 int `json:"c0"`
	C1 int `json:"c1"`
	C2 int `json:"c2"`
	C3 int `json:"c3"`
}

type historyResponse struct {
	Error       string         `json:"error"`
	SellHistory []historyBatch `json:"sellHistory"`
	VendHistory []historyBatch `json:"vendHistory"`
	LastUpdated int64          `json:"lastUpdated"`
}

type detailsResponse struct {
	Data []detailRecord `json:"data"`
}

type detailRecord struct {
	ID       int    `json:"id"`
	Time     string `json:"time"`
	ShopName string `json:"shop_name"`
	Amount   int    `json:"amount"`
	Price    int    `json:"price"`
	Refine   int    `json:"refine"`
	Card0    int    `json:"card0"`
	Card1    int    `json:"card1"`
	Card2    int    `json:"card2"`
	Card3    int    `json:"card3"`
	Map      string `json:"map"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
}

// ItemHistory is the domain-shaped history of one item. Either side may be
// empty.
type ItemHistory struct {
	SellHistory []domain.RawTimeSeries
	VendHistory []domain.RawTimeSeries
}

// ListingRecord is one active listing together with the variant attributes
// the details endpoint reports for it.
type ListingRecord struct {
	Refinement int
	SubItemIDs [4]int
	Listing    domain.Listing
}

// toRawSeries converts a wire batch into a domain raw series.
func (b historyBatch) toRawSeries() domain.RawTimeSeries {
	rs := domain.RawTimeSeries{
		Date:   b.X,
		Prices: b.Y,
	}
	rs.Filters = make([]*domain.VariantFilter, len(b.Filter))
	for i, f := range b.Filter {
		if f == nil {
			continue
		}
		rs.Filters[i] = &domain.VariantFilter{
			Refinement: f.R,
			SubItemIDs: [4]int{f.C0, f.C1, f.C2, f.C3},
		}
	}
	return rs
}

// toListingRecord converts a wire detail record into a listing record.
// An unparseable listed-at time degrades to the zero time; the record is
// still usable for price aggregation.
func (d detailRecord) toListingRecord() ListingRecord {
	listedAt, _ := parseListingTime(d.Time)
	return ListingRecord{
		Refinement: d.Refine,
		SubItemIDs: [4]int{d.Card0, d.Card1, d.Card2, d.Card3},
		Listing: domain.Listing{
			ListedAt: listedAt,
			ShopName: d.ShopName,
			Amount:   d.Amount,
			Price:    d.Price,
			Coordinates: domain.Coordinates{
				Map: d.Map,
				X:   d.X,
				Y:   d.Y,
			},
		},
	}
}

var listingTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseListingTime(value string) (time.Time, bool) {
	for _, layout := range listingTimeLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
