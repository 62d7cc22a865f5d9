package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/cryptofolio"
	"github.com/etnz/cryptofolio/renderer"
	"github.com/google/subcommands"
)

type txCmd struct {
	asset string
	desc  bool
	head  int
	tail  int
}

func (*txCmd) Name() string     { return "tx" }
func (*txCmd) Synopsis() string { return "list all transactions in the ledger" }
func (*txCmd) Usage() string {
	return `folio tx [-a <asset>] [-desc] [-head <n>] [-tail <n>]

  Lists transactions from the ledger in the order they were added, with options for filtering and limiting the output.
`
}

func (p *txCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.asset, "a", "", "Only list the transactions of this asset.")
	f.BoolVar(&p.desc, "desc", false, "List the latest added transactions first.")
	f.IntVar(&p.head, "head", 0, "Show only the first N transactions.")
	f.IntVar(&p.tail, "tail", 0, "Show only the last N transactions.")
}

func (p *txCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if p.head > 0 && p.tail > 0 {
		fmt.Fprintln(os.Stderr, "Error: -head and -tail flags cannot be used together.")
		return subcommands.ExitUsageError
	}

	s, err := openSession(nil)
	if err != nil {
		return fail("opening ledger", err)
	}
	defer s.Close()

	printMarkdown(renderer.RenderTransactions(p.filter(s.tracker.Ledger)))
	return subcommands.ExitSuccess
}

func (p *txCmd) filter(ledger *cryptofolio.Ledger) []cryptofolio.Transaction {
	all := ledger.List()
	if p.desc {
		all = ledger.Reversed()
	}

	var transactions []cryptofolio.Transaction
	for _, tx := range all {
		if p.asset == "" || tx.Asset == p.asset {
			transactions = append(transactions, tx)
		}
	}

	if p.head > 0 && len(transactions) > p.head {
		transactions = transactions[:p.head]
	}
	if p.tail > 0 && len(transactions) > p.tail {
		transactions = transactions[len(transactions)-p.tail:]
	}
	return transactions
}
