package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/google/subcommands"
)

type rmCmd struct{}

func (*rmCmd) Name() string     { return "rm" }
func (*rmCmd) Synopsis() string { return "remove transactions from the ledger" }
func (*rmCmd) Usage() string {
	return `folio rm <id>...

  Removes the transactions with these ids. Unknown ids are ignored.
`
}

func (*rmCmd) SetFlags(f *flag.FlagSet) {}

func (*rmCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Error: at least one transaction id is required.")
		return subcommands.ExitUsageError
	}
	ids, err := parseIDs(f.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}

	s, err := openSession(nil)
	if err != nil {
		return fail("opening ledger", err)
	}
	defer s.Close()

	for _, id := range ids {
		if _, ok := s.tracker.Ledger.Get(id); !ok {
			fmt.Printf("No transaction %d, skipped\n", id)
			continue
		}
		if err := s.tracker.Ledger.Remove(id); err != nil {
			return fail(fmt.Sprintf("removing transaction %d", id), err)
		}
		fmt.Printf("Removed transaction %d\n", id)
	}
	return subcommands.ExitSuccess
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid transaction id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
