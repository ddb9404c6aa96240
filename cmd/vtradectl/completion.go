package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/subcommands"
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"
)

// flagPredictors narrows completion for flags with a closed set of values.
var flagPredictors = map[string]complete.Predictor{
	"sort":      predict.Set{"value", "percentage"},
	"type":      predict.Set{"BUY", "SELL"},
	"log-level": predict.Set{"debug", "info", "warn", "error"},
	"currency":  predict.Set{"VND", "USD", "EUR"},
}

func flagsOf(visit func(func(*flag.Flag))) map[string]complete.Predictor {
	out := map[string]complete.Predictor{}
	visit(func(f *flag.Flag) {
		if p, ok := flagPredictors[f.Name]; ok {
			out[f.Name] = p
			return
		}
		out[f.Name] = predict.Nothing
	})
	return out
}

// completionTree mirrors the registered subcommands and their flags.
func completionTree(commander *subcommands.Commander) *complete.Command {
	root := &complete.Command{
		Sub:   map[string]*complete.Command{},
		Flags: flagsOf(commander.VisitAll),
	}
	commander.VisitCommands(func(_ *subcommands.CommandGroup, c subcommands.Command) {
		fs := flag.NewFlagSet(c.Name(), flag.ContinueOnError)
		c.SetFlags(fs)
		root.Sub[c.Name()] = &complete.Command{Flags: flagsOf(fs.VisitAll)}
	})
	return root
}

type completionCmd struct{}

func (*completionCmd) Name() string     { return "completion" }
func (*completionCmd) Synopsis() string { return "print the shell completion hook" }
func (*completionCmd) Usage() string {
	return `vtradectl completion

  Prints the line to add to ~/.bashrc (or ~/.zshrc with bashcompinit) so the
  shell asks vtradectl itself for completions.
`
}

func (*completionCmd) SetFlags(*flag.FlagSet) {}

func (*completionCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	bin, err := os.Executable()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error locating binary: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("complete -C %s %s\n", bin, filepath.Base(bin))
	return subcommands.ExitSuccess
}
