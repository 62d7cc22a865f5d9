package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/cryptofolio/renderer"
	"github.com/google/subcommands"
)

type chartCmd struct {
	days int
	json bool
}

func (*chartCmd) Name() string     { return "chart" }
func (*chartCmd) Synopsis() string { return "display the daily prices of an asset with the purchases" }
func (*chartCmd) Usage() string {
	return `folio chart [-days <n>] [-json] <asset>

  Displays the daily price history of <asset> (a price id like "bitcoin") and
  marks each purchase of the ledger on the nearest day.
`
}

func (c *chartCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.days, "days", 0, "Number of days of history. Defaults to HISTORY_DAYS.")
	f.BoolVar(&c.json, "json", false, "Print the chart as JSON.")
}

func (c *chartCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: exactly one asset is required.")
		return subcommands.ExitUsageError
	}
	if c.days < 0 {
		fmt.Fprintln(os.Stderr, "Error: -days must be positive.")
		return subcommands.ExitUsageError
	}

	s, err := openSession(nil)
	if err != nil {
		return fail("opening ledger", err)
	}
	defer s.Close()

	chart, err := s.tracker.Chart(ctx, f.Arg(0), c.days)
	if err != nil {
		return fail("charting", err)
	}

	if c.json {
		return printJSON(chart)
	}
	printMarkdown(renderer.RenderChart(chart))
	return subcommands.ExitSuccess
}
