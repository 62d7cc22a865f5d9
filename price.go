package cryptofolio

import (
	"sort"

	"github.com/shopspring/decimal"
)

// PricePoint is a price sample of a price series.
type PricePoint struct {
	Timestamp int64           `json:"timestamp"` // epoch milliseconds
	Price     decimal.Decimal `json:"price"`
}

// Series is a price history ordered by ascending timestamp.
//
// Fetchers guarantee the order, consumers never re-sort.
type Series []PricePoint

// Nearest returns the point whose timestamp is closest to ts.
//
// When two points are equally close the earlier one wins, and among points
// sharing a timestamp the first one wins: this is the point a forward linear
// scan keeping only strict improvements would select. It returns false for an
// empty series.
func (s Series) Nearest(ts int64) (PricePoint, bool) {
	if len(s) == 0 {
		return PricePoint{}, false
	}
	// i is the first point at or after ts.
	i := sort.Search(len(s), func(i int) bool { return s[i].Timestamp >= ts })
	switch {
	case i == len(s):
		return s[s.first(len(s)-1)], true
	case i == 0:
		return s[0], true
	}
	before, after := ts-s[i-1].Timestamp, s[i].Timestamp-ts
	if after < before {
		return s[i], true
	}
	return s[s.first(i-1)], true
}

// first returns the lowest index holding the same timestamp as s[i].
func (s Series) first(i int) int {
	for i > 0 && s[i-1].Timestamp == s[i].Timestamp {
		i--
	}
	return i
}

// Latest returns the last point of the series.
func (s Series) Latest() (PricePoint, bool) {
	if len(s) == 0 {
		return PricePoint{}, false
	}
	return s[len(s)-1], true
}

// Prices holds spot prices by asset id.
//
// A missing asset means its price is unknown, not that it is zero.
type Prices map[string]Money

// Get returns the spot price of asset.
func (p Prices) Get(asset string) (Money, bool) {
	m, ok := p[asset]
	return m, ok
}
