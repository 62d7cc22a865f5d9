package cmd

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/etnz/cryptofolio"
	"github.com/etnz/cryptofolio/renderer"
	"github.com/google/subcommands"
)

type balancesCmd struct {
	retry int
	json  bool
}

func (*balancesCmd) Name() string     { return "balances" }
func (*balancesCmd) Synopsis() string { return "display the balances of the exchange account" }
func (*balancesCmd) Usage() string {
	return `folio balances [-retry <n>] [-json]

  Fetches the non empty balances of the exchange account, valued at spot
  prices for the tracked assets. Requires BINANCE_API_KEY and BINANCE_SECRET_KEY.
`
}

func (c *balancesCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.retry, "retry", 0, "Retry temporary failures (network, rate limiting, server errors) up to n times.")
	f.BoolVar(&c.json, "json", false, "Print the balances as JSON.")
}

func (c *balancesCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	s, err := openSession(nil)
	if err != nil {
		return fail("opening ledger", err)
	}
	defer s.Close()

	rows, err := retry(ctx, c.retry, backoff.NewExponentialBackOff(), func() ([]cryptofolio.BalanceRow, error) {
		return s.tracker.Balances(ctx)
	})
	if err != nil {
		return fail("fetching balances", err)
	}

	if c.json {
		return printJSON(rows)
	}
	printMarkdown(renderer.RenderBalances(rows))
	return subcommands.ExitSuccess
}

// retry calls op until it succeeds, fails for good, or failed n+1 times.
// Only temporary upstream errors are retried, waiting as b tells between
// attempts.
func retry[T any](ctx context.Context, n int, b backoff.BackOff, op func() (T, error)) (T, error) {
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(max(n, 0))), ctx)
	operation := func() (T, error) {
		v, err := op()
		if err == nil {
			return v, nil
		}
		if uerr, ok := cryptofolio.AsUpstream(err); ok && uerr.Temporary() {
			return v, err
		}
		return v, backoff.Permanent(err)
	}
	notify := func(err error, wait time.Duration) {
		fmt.Fprintf(os.Stderr, "Temporary failure, retrying in %v: %v\n", wait.Round(time.Millisecond), err)
	}
	return backoff.RetryNotifyWithData(operation, policy, notify)
}

func printJSON(v any) subcommands.ExitStatus {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fail("encoding JSON", err)
	}
	return subcommands.ExitSuccess
}
