package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"vtrade/internal/trading"

	"github.com/google/subcommands"
)

type leaderboardCmd struct {
	limit  int
	sortBy string
}

func (*leaderboardCmd) Name() string     { return "leaderboard" }
func (*leaderboardCmd) Synopsis() string { return "display the ranked portfolios" }
func (*leaderboardCmd) Usage() string {
	return `vtradectl leaderboard [-n <limit>] [-sort value|percentage]

  Ranks active portfolios that traded at least once, using their stored
  valuation. Run revalue first for fresh numbers.
`
}

func (c *leaderboardCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.limit, "n", trading.DefaultLeaderboardLimit, "number of entries, at most 100")
	f.StringVar(&c.sortBy, "sort", "percentage", "ranking key: value or percentage")
}

func (c *leaderboardCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	sortBy, err := trading.ParseLeaderboardSort(c.sortBy)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	pool, err := openPool(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		return subcommands.ExitFailure
	}
	defer pool.Close()
	svc, err := openService(pool)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	entries, err := svc.Leaderboard(ctx, c.limit, sortBy)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading leaderboard: %v\n", err)
		return subcommands.ExitFailure
	}
	printMarkdown(leaderboardMarkdown(entries, string(sortBy), *currencyFlag))
	return subcommands.ExitSuccess
}
