package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"vtrade/internal/auth"
	"vtrade/internal/db"
	"vtrade/internal/ledger"
	"vtrade/internal/logging"
	"vtrade/internal/marketdata"
	"vtrade/internal/trading"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	dsnFlag          = flag.String("dsn", os.Getenv("DB_DSN"), "Postgres DSN, defaults to $DB_DSN")
	logLevelFlag     = flag.String("log-level", envOr("LOG_LEVEL", "warn"), "log level written to stderr")
	currencyFlag     = flag.String("currency", envOr("CURRENCY", "VND"), "ISO 4217 code used to format amounts")
	oracleURLFlag    = flag.String("oracle-url", envOr("PRICE_ORACLE_URL", marketdata.DefaultVietCapURL), "VietCap chart endpoint used for revaluation")
	priceTimeoutFlag = flag.Duration("price-timeout", 8*time.Second, "bound on each price lookup")
	rawFlag          = flag.Bool("raw", false, "print markdown without terminal styling")
)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func openPool(ctx context.Context) (*pgxpool.Pool, error) {
	if *dsnFlag == "" {
		return nil, fmt.Errorf("no database: set -dsn or DB_DSN")
	}
	return db.NewPool(ctx, *dsnFlag)
}

// openService wires the trading service on top of Postgres, the way the API
// server does, with logs on stderr.
func openService(pool *pgxpool.Pool) (*trading.Service, error) {
	log, err := logging.New(os.Stderr, *logLevelFlag, "console")
	if err != nil {
		return nil, err
	}
	oracle := marketdata.NewCachedOracle(marketdata.NewVietCapOracle(*oracleURLFlag, *priceTimeoutFlag), time.Minute)
	cfg := trading.DefaultSettings()
	cfg.PriceTimeout = *priceTimeoutFlag
	svc := trading.NewService(
		ledger.NewPGStore(pool, 5*time.Second),
		oracle,
		marketdata.NewPGCatalog(pool),
		nil,
		cfg,
		log,
	)
	return svc.WithDirectory(auth.NewUserDirectory(pool)), nil
}
