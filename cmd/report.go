package cmd

import (
	"context"
	"flag"
	"fmt"

	"github.com/etnz/cryptofolio"
	"github.com/etnz/cryptofolio/renderer"
	"github.com/google/subcommands"
)

type reportCmd struct {
	raw bool
}

func (*reportCmd) Name() string     { return "report" }
func (*reportCmd) Synopsis() string { return "display the holdings and the exchange balances" }
func (*reportCmd) Usage() string {
	return `folio report [-raw]

  Displays the full portfolio report. Balances are skipped with a note when
  the exchange cannot be reached or is not configured.
`
}

func (c *reportCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.raw, "raw", false, "Print the markdown source instead of rendering it.")
}

func (c *reportCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	s, err := openSession(nil)
	if err != nil {
		return fail("opening ledger", err)
	}
	defer s.Close()

	h, err := s.tracker.Holdings(ctx)
	if err != nil {
		return fail("valuing holdings", err)
	}
	report := renderer.Report{On: cryptofolio.Today(), Holdings: h}
	report.Balances, err = s.tracker.Balances(ctx)
	if err != nil {
		report.BalancesError = err.Error()
	}

	md := renderer.RenderReport(report)
	if c.raw {
		fmt.Print(md)
		return subcommands.ExitSuccess
	}
	printMarkdown(md)
	return subcommands.ExitSuccess
}
