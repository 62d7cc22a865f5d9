package cryptofolio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultTimeout bounds every remote pass of a Tracker.
const DefaultTimeout = 10 * time.Second

// BalanceSource reads the exchange balances.
type BalanceSource interface {
	FetchBalances(ctx context.Context, cred Credential) ([]Balance, error)
}

// PriceSource reads spot prices and daily price histories.
type PriceSource interface {
	FetchSpot(ctx context.Context, ids []string) (Prices, error)
	FetchHistory(ctx context.Context, id string, days int) (Series, error)
}

// Tracker runs reconciliation passes: it fetches remote data, then feeds the
// ledger and the fetched data to the reconciliation engine and the
// aggregator. It is called explicitly, by an HTTP handler or a command.
type Tracker struct {
	Ledger      *Ledger
	Exchange    BalanceSource
	Market      PriceSource
	Credential  Credential
	Symbols     map[string]string // exchange symbol -> price id
	Timeout     time.Duration     // DefaultTimeout if zero
	HistoryDays int               // 30 if zero
	Logger      *zap.Logger
}

func (t *Tracker) logger() *zap.Logger {
	if t.Logger == nil {
		return zap.NewNop()
	}
	return t.Logger
}

func (t *Tracker) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	d := t.Timeout
	if d <= 0 {
		d = DefaultTimeout
	}
	return context.WithTimeout(ctx, d)
}

// upstream makes sure a remote failure caused by the pass deadline is
// reported as an *UpstreamError.
func upstream(service string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := AsUpstream(err); ok || IsConfiguration(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &UpstreamError{Service: service, Message: "timed out", Err: err}
	}
	return err
}

// Balances fetches the exchange balances. The credential is checked before
// any call. Rows are valued when their symbol is tracked, a failure to get
// spot prices only leaves them unvalued.
func (t *Tracker) Balances(ctx context.Context) ([]BalanceRow, error) {
	if err := t.Credential.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	balances, err := t.Exchange.FetchBalances(ctx, t.Credential)
	if err != nil {
		return nil, upstream("binance", err)
	}

	var ids []string
	for _, b := range balances {
		if id, ok := t.Symbols[strings.ToUpper(b.Asset)]; ok {
			ids = append(ids, id)
		}
	}
	var prices Prices
	if len(ids) > 0 && t.Market != nil {
		prices, err = t.Market.FetchSpot(ctx, ids)
		if err != nil {
			t.logger().Warn("cannot value balances", zap.Error(err))
		}
	}
	return BalanceRows(balances, prices, t.Symbols), nil
}

// Holdings values the whole ledger at spot prices.
//
// When prices cannot be fetched every position is pending and the reason is
// reported in Holdings.Warning: a price outage never hides the ledger.
func (t *Tracker) Holdings(ctx context.Context) (Holdings, error) {
	txs := t.Ledger.List()
	assets := Assets(txs)
	if len(assets) == 0 {
		return Summarize(txs, nil), nil
	}
	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	prices, err := t.Market.FetchSpot(ctx, assets)
	if err != nil {
		err = upstream("coingecko", err)
		t.logger().Warn("spot prices unavailable", zap.Strings("assets", assets), zap.Error(err))
		h := Summarize(txs, nil)
		h.Warning = err.Error()
		return h, nil
	}
	return Summarize(txs, prices), nil
}

// Chart fetches the daily history of asset over days (HistoryDays if zero)
// and its spot price concurrently, then marks the ledger purchases on the
// curve. Only the history is required.
func (t *Tracker) Chart(ctx context.Context, asset string, days int) (Chart, error) {
	if asset == "" {
		return Chart{}, &ValidationError{Field: "asset", Msg: "asset id is required"}
	}
	if days <= 0 {
		days = t.HistoryDays
	}
	if days <= 0 {
		days = 30
	}
	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	var (
		series  Series
		prices  Prices
		spotErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		series, err = t.Market.FetchHistory(gctx, asset, days)
		return err
	})
	g.Go(func() error {
		// the spot price is optional, its failure must not cancel the history.
		prices, spotErr = t.Market.FetchSpot(gctx, []string{asset})
		return nil
	})
	if err := g.Wait(); err != nil {
		return Chart{}, fmt.Errorf("cannot chart %s: %w", asset, upstream("coingecko", err))
	}
	if spotErr != nil {
		t.logger().Warn("spot price unavailable", zap.String("asset", asset), zap.Error(spotErr))
	}
	return NewChart(asset, series, t.Ledger.List(), prices), nil
}
