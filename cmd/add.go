package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/cryptofolio"
	"github.com/google/subcommands"
)

// addCmd holds the flags for the 'add' subcommand.
type addCmd struct {
	date      string
	asset     string
	amount    string
	unitPrice string
	memo      string
}

func (*addCmd) Name() string     { return "add" }
func (*addCmd) Synopsis() string { return "record a buy transaction in the ledger" }
func (*addCmd) Usage() string {
	return `folio add -a <asset> -n <amount> -p <unit price> [-d <date>] [-m <memo>]

  Records the purchase of <amount> units of <asset> (a price id like "bitcoin")
  at <unit price> in the configured fiat currency.
`
}

func (c *addCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "d", "0d", "Date of the purchase. Accepts YYYY-MM-DD or relative dates like -3d.")
	f.StringVar(&c.asset, "a", "", "Price id of the asset (e.g. bitcoin)")
	f.StringVar(&c.amount, "n", "", "Number of units bought")
	f.StringVar(&c.unitPrice, "p", "", "Price paid per unit")
	f.StringVar(&c.memo, "m", "", "Optional note")
}

func (c *addCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	on, err := cryptofolio.ParseDate(c.date)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing date: %v\n", err)
		return subcommands.ExitUsageError
	}
	amount, err := cryptofolio.ParseQuantity(c.amount)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing amount %q: %v\n", c.amount, err)
		return subcommands.ExitUsageError
	}

	s, err := openSession(nil)
	if err != nil {
		return fail("opening ledger", err)
	}
	defer s.Close()

	unitPrice, err := cryptofolio.ParseMoney(c.unitPrice, s.cfg.App.Fiat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing unit price %q: %v\n", c.unitPrice, err)
		return subcommands.ExitUsageError
	}

	tx := cryptofolio.NewBuy(on, c.asset, amount, unitPrice)
	tx.Memo = c.memo
	tx, err = s.tracker.Ledger.Add(tx)
	if err != nil {
		return fail("adding transaction", err)
	}

	fmt.Printf("Successfully added transaction %d to %s\n", tx.ID, s.cfg.App.LedgerFile)
	return subcommands.ExitSuccess
}
