package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	OracleVietCap  = "vietcap"
	OracleJSONPath = "jsonpath"
	OracleStatic   = "static"
	OracleDisabled = "disabled"
)

type Config struct {
	HTTPAddr          string
	StoreDriver       string
	DBDSN             string
	JWTIssuer         string
	JWTSecret         string
	JWTTTL            time.Duration
	InternalTokenHash string
	WebSocketOrigin   string
	LogLevel          string
	LogFormat         string

	FeeRate     decimal.Decimal
	SellTaxRate decimal.Decimal
	InitialCash int64
	Currency    string

	PriceOracle       string
	PriceOracleURL    string
	PriceJSONPath     string
	PricePrevJSONPath string
	PriceTimeout      time.Duration
	PriceCacheTTL     time.Duration
	LockTimeout       time.Duration
	RevalueInterval   time.Duration

	// dev seeds for STORE_DRIVER=memory and PRICE_ORACLE=static
	SeedSymbols  string
	StaticPrices string
}

func Load() (Config, error) {
	var c Config
	var missing []string
	var errs []error

	c.HTTPAddr = os.Getenv("HTTP_ADDR")
	if c.HTTPAddr == "" {
		missing = append(missing, "HTTP_ADDR")
	}
	c.StoreDriver = strings.ToLower(strings.TrimSpace(os.Getenv("STORE_DRIVER")))
	if c.StoreDriver == "" {
		c.StoreDriver = StoreDriverPostgres
	}
	if c.StoreDriver != StoreDriverPostgres && c.StoreDriver != StoreDriverMemory {
		errs = append(errs, errors.New("invalid STORE_DRIVER: use postgres or memory"))
	}
	c.DBDSN = os.Getenv("DB_DSN")
	if c.StoreDriver == StoreDriverPostgres && c.DBDSN == "" {
		missing = append(missing, "DB_DSN")
	}
	c.JWTIssuer = os.Getenv("JWT_ISSUER")
	if c.JWTIssuer == "" {
		missing = append(missing, "JWT_ISSUER")
	}
	c.JWTSecret = os.Getenv("JWT_SECRET")
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	c.InternalTokenHash = strings.TrimSpace(os.Getenv("INTERNAL_TOKEN_HASH"))
	c.WebSocketOrigin = envOr("WS_ORIGIN", "*")
	c.LogLevel = strings.ToLower(envOr("LOG_LEVEL", "info"))
	c.LogFormat = strings.ToLower(envOr("LOG_FORMAT", "json"))
	if c.LogFormat != "json" && c.LogFormat != "console" {
		errs = append(errs, errors.New("invalid LOG_FORMAT: use json or console"))
	}
	c.Currency = strings.ToUpper(envOr("CURRENCY", "VND"))

	c.PriceOracle = strings.ToLower(envOr("PRICE_ORACLE", OracleVietCap))
	switch c.PriceOracle {
	case OracleVietCap, OracleStatic, OracleDisabled:
	case OracleJSONPath:
		if os.Getenv("PRICE_ORACLE_URL") == "" {
			missing = append(missing, "PRICE_ORACLE_URL")
		}
		if os.Getenv("PRICE_ORACLE_JSONPATH") == "" {
			missing = append(missing, "PRICE_ORACLE_JSONPATH")
		}
	default:
		errs = append(errs, fmt.Errorf("invalid PRICE_ORACLE %q", c.PriceOracle))
	}
	c.PriceOracleURL = os.Getenv("PRICE_ORACLE_URL")
	c.PriceJSONPath = os.Getenv("PRICE_ORACLE_JSONPATH")
	c.PricePrevJSONPath = os.Getenv("PRICE_ORACLE_PREV_JSONPATH")
	c.SeedSymbols = os.Getenv("SEED_SYMBOLS")
	c.StaticPrices = os.Getenv("STATIC_PRICES")

	var err error
	if c.FeeRate, err = rate("FEE_RATE", "0.0001"); err != nil {
		errs = append(errs, err)
	}
	if c.SellTaxRate, err = rate("SELL_TAX_RATE", "0.001"); err != nil {
		errs = append(errs, err)
	}
	if c.InitialCash, err = positiveInt("INITIAL_CASH", 1_000_000_000); err != nil {
		errs = append(errs, err)
	}
	durations := []struct {
		key      string
		def      time.Duration
		allowOff bool
		dst      *time.Duration
	}{
		{"JWT_TTL", 24 * time.Hour, false, &c.JWTTTL},
		{"PRICE_TIMEOUT", 8 * time.Second, false, &c.PriceTimeout},
		{"PRICE_CACHE_TTL", 15 * time.Second, true, &c.PriceCacheTTL},
		{"LOCK_TIMEOUT", 5 * time.Second, false, &c.LockTimeout},
		{"REVALUE_INTERVAL", 0, true, &c.RevalueInterval},
	}
	for _, d := range durations {
		v, err := duration(d.key, d.def, d.allowOff)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		*d.dst = v
	}

	if len(missing) > 0 {
		errs = append([]error{errors.New("missing required env: " + strings.Join(missing, ","))}, errs...)
	}
	return c, errors.Join(errs...)
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// rate parses a fraction in [0, 1).
func rate(key, def string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(envOr(key, def))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d.IsNegative() || d.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("invalid %s: must be in [0, 1)", key)
	}
	return d, nil
}

func positiveInt(key string, def int64) (int64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}

func duration(key string, def time.Duration, allowOff bool) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d < 0 || (d == 0 && !allowOff) {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}
