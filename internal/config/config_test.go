package config

import (
	"strings"
	"testing"
	"time"
)

func setBase(t *testing.T) {
	t.Helper()
	t.Setenv("HTTP_ADDR", ":8080")
	t.Setenv("DB_DSN", "postgres://localhost/vtrade")
	t.Setenv("JWT_ISSUER", "vtrade")
	t.Setenv("JWT_SECRET", "secret")
}

func TestLoadDefaults(t *testing.T) {
	setBase(t)
	c, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c.StoreDriver != StoreDriverPostgres || c.PriceOracle != OracleVietCap {
		t.Errorf("drivers = %q, %q", c.StoreDriver, c.PriceOracle)
	}
	if c.FeeRate.String() != "0.0001" || c.SellTaxRate.String() != "0.001" {
		t.Errorf("rates = %s, %s", c.FeeRate, c.SellTaxRate)
	}
	if c.InitialCash != 1_000_000_000 || c.Currency != "VND" {
		t.Errorf("cash = %d %s", c.InitialCash, c.Currency)
	}
	if c.JWTTTL != 24*time.Hour || c.PriceTimeout != 8*time.Second || c.LockTimeout != 5*time.Second {
		t.Errorf("durations = %v %v %v", c.JWTTTL, c.PriceTimeout, c.LockTimeout)
	}
	if c.RevalueInterval != 0 || c.PriceCacheTTL != 15*time.Second {
		t.Errorf("revalue %v, cache %v", c.RevalueInterval, c.PriceCacheTTL)
	}
	if c.WebSocketOrigin != "*" || c.LogFormat != "json" || c.LogLevel != "info" {
		t.Errorf("ws %q log %q/%q", c.WebSocketOrigin, c.LogFormat, c.LogLevel)
	}
}

func TestLoadMissing(t *testing.T) {
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("DB_DSN", "")
	t.Setenv("JWT_ISSUER", "")
	t.Setenv("JWT_SECRET", "")
	_, err := Load()
	if err == nil {
		t.Fatal("Load() should fail")
	}
	for _, key := range []string{"HTTP_ADDR", "DB_DSN", "JWT_ISSUER", "JWT_SECRET"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error %q does not name %s", err, key)
		}
	}
}

func TestLoadMemoryNeedsNoDSN(t *testing.T) {
	setBase(t)
	t.Setenv("DB_DSN", "")
	t.Setenv("STORE_DRIVER", "Memory")
	c, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c.StoreDriver != StoreDriverMemory {
		t.Errorf("StoreDriver = %q", c.StoreDriver)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		key, value, want string
	}{
		{"FEE_RATE", "abc", "FEE_RATE"},
		{"FEE_RATE", "-0.1", "FEE_RATE"},
		{"SELL_TAX_RATE", "1", "SELL_TAX_RATE"},
		{"INITIAL_CASH", "0", "INITIAL_CASH"},
		{"LOCK_TIMEOUT", "0s", "LOCK_TIMEOUT"},
		{"PRICE_TIMEOUT", "soon", "PRICE_TIMEOUT"},
		{"REVALUE_INTERVAL", "-1m", "REVALUE_INTERVAL"},
		{"STORE_DRIVER", "sqlite", "STORE_DRIVER"},
		{"PRICE_ORACLE", "bloomberg", "PRICE_ORACLE"},
		{"PRICE_ORACLE", "jsonpath", "PRICE_ORACLE_URL"},
		{"LOG_FORMAT", "xml", "LOG_FORMAT"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			setBase(t)
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load() error = %v, want mention of %s", err, tt.want)
			}
		})
	}
}

func TestLoadOverrides(t *testing.T) {
	setBase(t)
	t.Setenv("FEE_RATE", "0.001")
	t.Setenv("REVALUE_INTERVAL", "1m")
	t.Setenv("PRICE_ORACLE", "jsonpath")
	t.Setenv("PRICE_ORACLE_URL", "https://quotes.example/{symbol}")
	t.Setenv("PRICE_ORACLE_JSONPATH", "$.price")
	c, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c.FeeRate.String() != "0.001" || c.RevalueInterval != time.Minute || c.PriceJSONPath != "$.price" {
		t.Errorf("config = %+v", c)
	}
}
