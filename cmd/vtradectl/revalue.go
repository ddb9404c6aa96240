package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
)

type revalueCmd struct{}

func (*revalueCmd) Name() string     { return "revalue" }
func (*revalueCmd) Synopsis() string { return "mark every active portfolio to the latest prices" }
func (*revalueCmd) Usage() string {
	return `vtradectl [-dsn <dsn>] [-oracle-url <url>] revalue

  Fetches the latest price of every held symbol and recomputes holding and
  portfolio valuations. Symbols without a price keep their last valuation.
`
}

func (*revalueCmd) SetFlags(*flag.FlagSet) {}

func (*revalueCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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
	sum, err := svc.RevalueAll(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error revaluing: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("revalued %d of %d portfolios, %d failed\n", sum.Revalued, sum.Portfolios, sum.Failed)
	if sum.Failed > 0 {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
