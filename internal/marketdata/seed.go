package marketdata

import (
	"fmt"
	"strconv"
	"strings"

	"vtrade/internal/model"
)

// ParseSymbols reads "CODE=Name,CODE2" into catalog entries. A missing name
// leaves Name empty.
func ParseSymbols(list string) ([]model.Symbol, error) {
	var out []model.Symbol
	for _, item := range splitList(list) {
		code, name, _ := strings.Cut(item, "=")
		code = normalizeSymbol(code)
		if code == "" {
			return nil, fmt.Errorf("symbol entry %q has no code", item)
		}
		out = append(out, model.Symbol{Code: code, Name: strings.TrimSpace(name)})
	}
	return out, nil
}

// LoadPrices sets quotes from "CODE=price[:prevClose],..." and returns the
// codes it loaded.
func (o *StaticOracle) LoadPrices(list string) ([]string, error) {
	var codes []string
	for _, item := range splitList(list) {
		code, raw, ok := strings.Cut(item, "=")
		code = normalizeSymbol(code)
		if !ok || code == "" {
			return nil, fmt.Errorf("price entry %q: want CODE=price", item)
		}
		priceRaw, prevRaw, hasPrev := strings.Cut(raw, ":")
		price, err := strconv.ParseInt(strings.TrimSpace(priceRaw), 10, 64)
		if err != nil || price <= 0 {
			return nil, fmt.Errorf("price entry %q: invalid price", item)
		}
		var prev int64
		if hasPrev {
			prev, err = strconv.ParseInt(strings.TrimSpace(prevRaw), 10, 64)
			if err != nil || prev < 0 {
				return nil, fmt.Errorf("price entry %q: invalid previous close", item)
			}
		}
		o.Set(code, price, prev)
		codes = append(codes, code)
	}
	return codes, nil
}

func splitList(list string) []string {
	var out []string
	for _, item := range strings.Split(list, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
