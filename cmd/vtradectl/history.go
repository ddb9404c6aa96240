package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"vtrade/internal/trading"
	"vtrade/internal/types"

	"github.com/google/subcommands"
)

type historyCmd struct {
	user  string
	page  int
	limit int
	side  string
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "display a user's transactions with cost basis" }
func (*historyCmd) Usage() string {
	return `vtradectl history -u <user-id> [-p <page>] [-n <limit>] [-type BUY|SELL]

  Lists the user's transactions newest first. Sells show the average cost
  they were matched against and the realized profit or loss.
`
}

func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "u", "", "user id")
	f.IntVar(&c.page, "p", 1, "page number")
	f.IntVar(&c.limit, "n", trading.DefaultHistoryLimit, "page size, at most 100")
	f.StringVar(&c.side, "type", "", "only BUY or SELL transactions")
}

func (c *historyCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if strings.TrimSpace(c.user) == "" {
		fmt.Fprintln(os.Stderr, "Error: -u is required")
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
	page, err := svc.TransactionHistory(ctx, c.user, trading.HistoryQuery{
		Page:  c.page,
		Limit: c.limit,
		Type:  types.TransactionType(strings.ToUpper(strings.TrimSpace(c.side))),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading history: %v\n", err)
		return subcommands.ExitFailure
	}
	printMarkdown(historyMarkdown(c.user, page, *currencyFlag))
	return subcommands.ExitSuccess
}
