package domain

import "time"

// Window is a trailing time range over which statistics are computed.
type Window string

// Supported statistics windows.
const (
	Last7Days  Window = "last7days"
	Last30Days Window = "last30days"
	AllTime    Window = "allTime"
)

// Windows lists all supported windows in ascending containment order.
var Windows = []Window{Last7Days, Last30Days, AllTime}

// Duration returns the trailing range of the window and whether the window
// is bounded. AllTime reports ok == false: no filtering applies.
func (w Window) Duration() (d time.Duration, ok bool) {
	switch w {
	case Last7Days:
		return 7 * 24 * time.Hour, true
	case Last30Days:
		return 30 * 24 * time.Hour, true
	default:
		return 0, false
	}
}

// Valid reports whether w is one of the supported windows.
func (w Window) Valid() bool {
	switch w {
	case Last7Days, Last30Days, AllTime:
		return true
	}
	return false
}

// Metric selects the historical reference statistic for price comparison.
type Metric string

// Supported comparison metrics.
const (
	MetricLowestSold  Metric = "lps"  // lowest price sold
	MetricAverageSold Metric = "avgs" // average price sold
)

// Metrics lists all supported comparison metrics.
var Metrics = []Metric{MetricLowestSold, MetricAverageSold}

// WindowStatistics holds aggregate statistics for one variant over one
// window. All fields default to 0 when the filtered event set is empty.
type WindowStatistics struct {
	HighestSold    int `json:"hps"`  // max sale price
	LowestSold     int `json:"lps"`  // min sale price
	AverageListed  int `json:"avgl"` // rounded mean listing price
	AverageSold    int `json:"avgs"` // rounded mean sale price
	QuantityListed int `json:"qtyl"` // listing event count
	QuantitySold   int `json:"qtys"` // sale event count
}

// MinLocation describes the cheapest active listing of a variant.
type MinLocation struct {
	Location string    `json:"location"` // "{map}, {x}, {y}", or "" when no listings
	Price    int       `json:"price"`
	ListedAt time.Time `json:"date"` // zero when no listings
}

// SnapshotSummary aggregates the active listings of one variant.
type SnapshotSummary struct {
	LowestPrice   int         `json:"lp"`
	HighestPrice  int         `json:"hp"`
	AveragePrice  int         `json:"avg"`
	TotalQuantity int         `json:"qty"`
	MinLocation   MinLocation `json:"minLocation"`
}

// PriceIndicator compares a live lowest price against a historical reference.
// PercentageDelta is positive when the live price is below the reference and
// stays within [-1, 1] by construction.
type PriceIndicator struct {
	PercentageDelta float64 `json:"percentage"`
	IsFavorable     bool    `json:"value"`
}
