package cmd

import (
	"context"
	"flag"

	"github.com/etnz/cryptofolio/renderer"
	"github.com/google/subcommands"
)

// holdingsCmd holds the flags for the 'holdings' subcommand.
type holdingsCmd struct {
	json bool
}

func (*holdingsCmd) Name() string     { return "holdings" }
func (*holdingsCmd) Synopsis() string { return "display the profit and loss of every transaction" }
func (*holdingsCmd) Usage() string {
	return `folio holdings [-json]

  Values every transaction of the ledger at the current spot price of its
  asset. Transactions without a known spot price are reported as pending.
`
}

func (c *holdingsCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.json, "json", false, "Print the holdings as JSON.")
}

func (c *holdingsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	s, err := openSession(nil)
	if err != nil {
		return fail("opening ledger", err)
	}
	defer s.Close()

	h, err := s.tracker.Holdings(ctx)
	if err != nil {
		return fail("valuing holdings", err)
	}

	if c.json {
		return printJSON(h)
	}
	printMarkdown(renderer.RenderHoldings(h))
	return subcommands.ExitSuccess
}
