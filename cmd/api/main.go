package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vtrade/internal/auth"
	"vtrade/internal/config"
	"vtrade/internal/db"
	"vtrade/internal/health"
	"vtrade/internal/httpserver"
	"vtrade/internal/ledger"
	"vtrade/internal/logging"
	"vtrade/internal/marketdata"
	"vtrade/internal/model"
	"vtrade/internal/trading"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(cfg config.Config, log zerolog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	startedAt := time.Now()

	var (
		pool    *pgxpool.Pool
		store   ledger.Store
		catalog marketdata.Catalog
		pinger  health.Pinger
	)
	oracle, static, err := newOracle(cfg)
	if err != nil {
		return err
	}
	var staticCodes []string
	if static != nil {
		if staticCodes, err = static.LoadPrices(cfg.StaticPrices); err != nil {
			return fmt.Errorf("STATIC_PRICES: %w", err)
		}
	}
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		pool, err = db.NewPool(ctx, cfg.DBDSN)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := db.Migrate(ctx, pool); err != nil {
			return err
		}
		store = ledger.NewPGStore(pool, cfg.LockTimeout)
		catalog = marketdata.NewPGCatalog(pool)
		pinger = pool
	default:
		symbols, err := marketdata.ParseSymbols(cfg.SeedSymbols)
		if err != nil {
			return fmt.Errorf("SEED_SYMBOLS: %w", err)
		}
		mem := marketdata.NewMemoryCatalog(symbols...)
		// statically priced codes are tradable even when not listed
		for _, code := range staticCodes {
			if _, err := mem.Symbol(ctx, code); err != nil {
				mem.Add(model.Symbol{Code: code})
			}
		}
		store = ledger.NewMemoryStore(cfg.LockTimeout)
		catalog = mem
		log.Warn().Msg("memory store in use, state is lost on exit")
	}

	bus := marketdata.NewBus()
	svc := trading.NewService(store, oracle, catalog, bus, trading.Settings{
		FeeRate:      cfg.FeeRate,
		TaxRate:      cfg.SellTaxRate,
		InitialCash:  cfg.InitialCash,
		PriceTimeout: cfg.PriceTimeout,
	}, log)
	if pool != nil {
		svc.WithDirectory(auth.NewUserDirectory(pool))
	}
	trading.StartRevaluer(ctx, svc, cfg.RevalueInterval)

	authSvc := auth.NewService(cfg.JWTIssuer, []byte(cfg.JWTSecret), cfg.JWTTTL)
	router := httpserver.NewRouter(httpserver.RouterDeps{
		TradingHandler:    trading.NewHandler(svc),
		AuthHandler:       auth.NewHandler(authSvc),
		HealthHandler:     health.NewHandler(pinger, cfg.StoreDriver, startedAt),
		AuthService:       authSvc,
		InternalTokenHash: cfg.InternalTokenHash,
		WSHandler:         httpserver.NewWSHandler(bus, authSvc, cfg.WebSocketOrigin),
		QuoteWSHandler:    marketdata.NewQuoteWS(oracle, cfg.WebSocketOrigin, 5*time.Second, cfg.PriceTimeout),
		Logger:            log,
	})
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 10 * time.Second}

	log.Info().
		Str("addr", cfg.HTTPAddr).
		Str("store", cfg.StoreDriver).
		Str("oracle", cfg.PriceOracle).
		Str("fee_rate", cfg.FeeRate.String()).
		Str("sell_tax_rate", cfg.SellTaxRate.String()).
		Dur("revalue_interval", cfg.RevalueInterval).
		Msg("server listening")
	if cfg.InternalTokenHash == "" {
		log.Warn().Msg("INTERNAL_TOKEN_HASH not set, internal routes disabled")
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		log.Info().Msg("shutting down")
		cancel()
		ctx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		_ = srv.Shutdown(ctx)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// newOracle builds the configured price source behind the TTL cache. The
// static oracle is also returned so callers can seed it.
func newOracle(cfg config.Config) (marketdata.PriceOracle, *marketdata.StaticOracle, error) {
	var (
		base   marketdata.PriceOracle
		static *marketdata.StaticOracle
	)
	switch cfg.PriceOracle {
	case config.OracleVietCap:
		url := cfg.PriceOracleURL
		if url == "" {
			url = marketdata.DefaultVietCapURL
		}
		base = marketdata.NewVietCapOracle(url, cfg.PriceTimeout)
	case config.OracleJSONPath:
		o, err := marketdata.NewJSONPathOracle(cfg.PriceOracleURL, cfg.PriceJSONPath, cfg.PricePrevJSONPath, cfg.PriceTimeout)
		if err != nil {
			return nil, nil, err
		}
		base = o
	case config.OracleStatic:
		static = marketdata.NewStaticOracle()
		return static, static, nil
	default:
		return marketdata.NewDisabledOracle(), nil, nil
	}
	if cfg.PriceCacheTTL <= 0 {
		return base, nil, nil
	}
	return marketdata.NewCachedOracle(base, cfg.PriceCacheTTL), nil, nil
}
