package cmd

import "github.com/google/subcommands"

// Register the subcommands.
// A main package will call Register() to allow subcommands, and Execute() on the user-selected one.
func Register(c *subcommands.Commander) {
	c.Register(&addCmd{}, "ledger")
	c.Register(&rmCmd{}, "ledger")
	c.Register(&txCmd{}, "ledger")

	c.Register(&balancesCmd{}, "portfolio")
	c.Register(&holdingsCmd{}, "portfolio")
	c.Register(&chartCmd{}, "portfolio")
	c.Register(&reportCmd{}, "portfolio")

	c.Register(&serveCmd{}, "server")

	c.Register(&topicCmd{}, "help")
}
