package cryptofolio

import (
	"strings"

	"github.com/shopspring/decimal"
)

// This file shapes fetched and reconciled data for presentation. Nothing here
// holds state or performs I/O.

// BalanceRow is an exchange balance as presented to users.
type BalanceRow struct {
	Symbol string          `json:"symbol"`
	Free   decimal.Decimal `json:"free"`
	Locked decimal.Decimal `json:"locked"`
	Total  decimal.Decimal `json:"total"`
	Value  *Money          `json:"value,omitempty"` // nil when the asset is not priced
}

// BalanceRows maps balances to rows. symbols maps exchange symbols (e.g.
// "BTC") to price ids (e.g. "bitcoin"), it is used to value the rows whose
// spot price is known. Both prices and symbols may be nil.
func BalanceRows(balances []Balance, prices Prices, symbols map[string]string) []BalanceRow {
	rows := make([]BalanceRow, 0, len(balances))
	for _, b := range balances {
		row := BalanceRow{Symbol: b.Asset, Free: b.Free, Locked: b.Locked, Total: b.Total()}
		if id, ok := symbols[strings.ToUpper(b.Asset)]; ok {
			if spot, ok := prices.Get(id); ok {
				v := spot.Mul(Q(row.Total))
				row.Value = &v
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// Position is a transaction and its valuation.
type Position struct {
	ID        int64    `json:"id"`
	Asset     string   `json:"asset"`
	Amount    Quantity `json:"amount"`
	UnitPrice Money    `json:"unitPrice"`
	Date      Date     `json:"date"`
	Memo      string   `json:"memo,omitempty"`
	Cost      Money    `json:"cost"`
	PnL       *PnL     `json:"pnl,omitempty"` // nil while the spot price is unknown
	Pending   bool     `json:"pending"`
}

// Holdings is the valuation of a whole ledger.
type Holdings struct {
	Positions []Position `json:"positions"` // latest added first
	Invested  Money      `json:"invested"`  // cost of all positions
	Priced    Money      `json:"priced"`    // cost of the positions with a known spot price
	Value     Money      `json:"value"`     // current value of the priced positions
	PnL       Money      `json:"pnl"`       // Value - Priced
	Percent   Percent    `json:"percent"`   // PnL relative to Priced
	Pending   int        `json:"pending"`   // number of positions without a spot price
	Warning   string     `json:"warning,omitempty"`
}

// Summarize values every transaction at the spot prices.
//
// Totals only add amounts of the currency of the first transaction, other
// currencies cannot be priced anyway.
func Summarize(txs []Transaction, prices Prices) Holdings {
	var h Holdings
	h.Positions = make([]Position, 0, len(txs))
	for i := len(txs) - 1; i >= 0; i-- {
		tx := txs[i]
		pos := Position{
			ID:        tx.ID,
			Asset:     tx.Asset,
			Amount:    tx.Amount,
			UnitPrice: tx.UnitPrice,
			Date:      tx.Date,
			Memo:      tx.Memo,
			Cost:      tx.Cost(),
		}
		pnl, ok := ComputePnL(tx, prices)
		if ok {
			pos.PnL = &pnl
		} else {
			pos.Pending = true
			h.Pending++
		}
		h.Positions = append(h.Positions, pos)

		if !h.Invested.SameCurrency(pos.Cost) {
			continue
		}
		h.Invested = h.Invested.Add(pos.Cost)
		if ok {
			h.Priced = h.Priced.Add(pos.Cost)
			h.Value = h.Value.Add(pnl.CurrentPrice.Mul(tx.Amount))
		}
	}
	h.PnL = h.Value.Sub(h.Priced)
	if h.Priced.IsPositive() {
		h.Percent = Percent(h.PnL.Decimal().Div(h.Priced.Decimal()).Mul(hundred).InexactFloat64())
	}
	return h
}

// Chart is a price curve with the purchases marked on it.
type Chart struct {
	Asset     string                   `json:"asset"`
	Points    Series                   `json:"points"`
	Purchases []ProjectedPurchasePoint `json:"purchases"`
	Spot      *Money                   `json:"spot,omitempty"`
}

// NewChart projects the transactions of asset on series.
func NewChart(asset string, series Series, txs []Transaction, prices Prices) Chart {
	c := Chart{
		Asset:     asset,
		Points:    series,
		Purchases: ProjectPurchasePoints(txs, asset, series),
	}
	if c.Points == nil {
		c.Points = Series{}
	}
	if c.Purchases == nil {
		c.Purchases = []ProjectedPurchasePoint{}
	}
	if spot, ok := prices.Get(asset); ok {
		c.Spot = &spot
	}
	return c
}
