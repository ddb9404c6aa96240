// Command vtradectl operates a virtual trading deployment: schema
// migration, revaluation, reports and token tooling.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
)

var commands = []struct {
	cmd   subcommands.Command
	group string
}{
	{&migrateCmd{}, "database"},
	{&revalueCmd{}, "database"},
	{&leaderboardCmd{}, "reports"},
	{&historyCmd{}, "reports"},
	{&tokenCmd{}, "tokens"},
	{&hashTokenCmd{}, "tokens"},
	{&completionCmd{}, ""},
}

func main() {
	name := path.Base(os.Args[0])
	commander := subcommands.NewCommander(flag.CommandLine, name)
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	for _, c := range commands {
		commander.Register(c.cmd, c.group)
	}

	// answers shell completion requests and exits, otherwise returns
	completionTree(commander).Complete(name)

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
