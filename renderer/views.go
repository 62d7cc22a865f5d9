package renderer

import (
	"fmt"
	"strings"
	"time"

	"github.com/etnz/cryptofolio"
	"github.com/shopspring/decimal"
)

func dateOf(ms int64) cryptofolio.Date { return cryptofolio.DateOf(time.UnixMilli(ms)) }

// balancesView adds the total value to balance rows.
type balancesView struct {
	Rows     []cryptofolio.BalanceRow
	Value    cryptofolio.Money // sum of the valued rows
	HasValue bool
}

func newBalancesView(rows []cryptofolio.BalanceRow) balancesView {
	v := balancesView{Rows: rows}
	for _, r := range rows {
		if r.Value == nil || !v.Value.SameCurrency(*r.Value) {
			continue
		}
		v.Value = v.Value.Add(*r.Value)
		v.HasValue = true
	}
	return v
}

type chartRow struct {
	Day   cryptofolio.Date
	Price decimal.Decimal
	Marks string
}

type chartView struct {
	Asset string
	Spot  *cryptofolio.Money
	Rows  []chartRow
	First cryptofolio.Date
	Last  cryptofolio.Date
}

func newChartView(c cryptofolio.Chart) chartView {
	v := chartView{Asset: c.Asset, Spot: c.Spot}
	marks := make(map[int64][]string)
	for _, p := range c.Purchases {
		marks[p.Timestamp] = append(marks[p.Timestamp], fmt.Sprintf("#%d", p.TransactionID))
	}
	for _, p := range c.Points {
		v.Rows = append(v.Rows, chartRow{
			Day:   dateOf(p.Timestamp),
			Price: p.Price,
			Marks: strings.Join(marks[p.Timestamp], " "),
		})
		// a mark is printed once, on the first of duplicated timestamps.
		delete(marks, p.Timestamp)
	}
	if len(v.Rows) > 0 {
		v.First, v.Last = v.Rows[0].Day, v.Rows[len(v.Rows)-1].Day
	}
	return v
}
