// Command folio tracks a crypto portfolio: the buy transactions entered by
// hand, valued at market prices, and the balances of the exchange account.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/etnz/cryptofolio/cmd"
	"github.com/etnz/cryptofolio/config"
	"github.com/etnz/cryptofolio/docs"
	"github.com/google/subcommands"
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"
)

func main() {
	name := path.Base(os.Args[0])
	completion().Complete(name)

	commander := subcommands.NewCommander(flag.CommandLine, name)
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	cmd.Register(commander)

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}

// completion describes the command line for shell completion. It is installed
// with COMP_INSTALL=1 folio.
func completion() *complete.Command {
	var assets predict.Set
	for _, a := range config.DefaultAssets {
		assets = append(assets, a.ID)
	}
	noValue := predict.Nothing

	return &complete.Command{
		Flags: map[string]complete.Predictor{
			"env":         predict.Files("*"),
			"config":      predict.Files("*.yaml"),
			"ledger-file": predict.Files("*.json"),
		},
		Sub: map[string]*complete.Command{
			"add": {Flags: map[string]complete.Predictor{
				"a": assets,
				"n": predict.Something,
				"p": predict.Something,
				"d": predict.Something,
				"m": predict.Something,
			}},
			"rm": {Args: predict.Something},
			"tx": {Flags: map[string]complete.Predictor{
				"a":    assets,
				"desc": noValue,
				"head": predict.Something,
				"tail": predict.Something,
			}},
			"balances": {Flags: map[string]complete.Predictor{"retry": predict.Something, "json": noValue}},
			"holdings": {Flags: map[string]complete.Predictor{"json": noValue}},
			"chart": {
				Flags: map[string]complete.Predictor{"days": predict.Something, "json": noValue},
				Args:  assets,
			},
			"report": {Flags: map[string]complete.Predictor{"raw": noValue}},
			"serve":  {Flags: map[string]complete.Predictor{"port": predict.Something}},
			"topic":  {Args: predict.Set(docs.Topics())},
			"help":   {Args: predict.Set{"add", "rm", "tx", "balances", "holdings", "chart", "report", "serve", "topic"}},
		},
	}
}
