package cryptofolio

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// PnL is the profit or loss of a transaction at the current spot price.
// It is derived, never stored.
type PnL struct {
	CurrentPrice Money   `json:"currentPrice"`
	Value        Money   `json:"value"`   // amount×current − amount×unit
	Percent      Percent `json:"percent"` // (current − unit) / unit × 100
}

// IsGain reports whether the position is not losing money. Zero is a gain.
func (p PnL) IsGain() bool { return p.Percent >= 0 }

func (p PnL) MarshalJSON() ([]byte, error) {
	type plain PnL
	return json.Marshal(struct {
		plain
		IsGain bool `json:"isGain"`
	}{plain(p), p.IsGain()})
}

// ComputePnL values tx at its asset's spot price.
//
// It returns false when the spot price is unknown or quoted in another fiat
// currency than the transaction: the result is pending, not zero.
func ComputePnL(tx Transaction, prices Prices) (PnL, bool) {
	spot, ok := prices.Get(tx.Asset)
	if !ok || !spot.SameCurrency(tx.UnitPrice) || !tx.UnitPrice.IsPositive() {
		return PnL{}, false
	}
	value := spot.Mul(tx.Amount).Sub(tx.UnitPrice.Mul(tx.Amount))
	ratio := spot.Decimal().Sub(tx.UnitPrice.Decimal()).Div(tx.UnitPrice.Decimal()).Mul(hundred)
	return PnL{
		CurrentPrice: spot,
		Value:        value,
		Percent:      Percent(ratio.InexactFloat64()),
	}, true
}

// ProjectedPurchasePoint marks a transaction on a price curve.
type ProjectedPurchasePoint struct {
	TransactionID int64           `json:"transactionId"`
	Timestamp     int64           `json:"timestamp"`
	Price         decimal.Decimal `json:"price"`
}

// ProjectPurchasePoints places each transaction of asset on the point of
// series nearest to the start (UTC) of its day. Transactions of other assets
// are ignored, and an empty series yields no points.
func ProjectPurchasePoints(txs []Transaction, asset string, series Series) []ProjectedPurchasePoint {
	var points []ProjectedPurchasePoint
	for _, tx := range txs {
		if tx.Asset != asset {
			continue
		}
		pt, ok := series.Nearest(tx.Date.UnixMilli())
		if !ok {
			continue
		}
		points = append(points, ProjectedPurchasePoint{
			TransactionID: tx.ID,
			Timestamp:     pt.Timestamp,
			Price:         pt.Price,
		})
	}
	return points
}
