package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/shopspring/decimal"
)

// JSONPathOracle fetches a JSON document per symbol and extracts the price
// with a JSONPath expression. The URL template replaces {symbol}.
type JSONPathOracle struct {
	cli       *http.Client
	template  string
	pricePath string
	prevPath  string
}

func NewJSONPathOracle(template, pricePath, prevPath string, timeout time.Duration) (*JSONPathOracle, error) {
	if !strings.Contains(template, "{symbol}") {
		return nil, fmt.Errorf("price oracle url %q has no {symbol} placeholder", template)
	}
	if pricePath == "" {
		return nil, fmt.Errorf("price oracle jsonpath is empty")
	}
	return &JSONPathOracle{
		cli:       &http.Client{Timeout: timeout},
		template:  template,
		pricePath: pricePath,
		prevPath:  prevPath,
	}, nil
}

func (o *JSONPathOracle) LatestQuote(ctx context.Context, symbol string) (Quote, error) {
	symbol = normalizeSymbol(symbol)
	addr := strings.ReplaceAll(o.template, "{symbol}", url.PathEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return Quote{}, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := o.cli.Do(req)
	if err != nil {
		return Quote{}, unavailable(symbol, "%v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Quote{}, unavailable(symbol, "http %d", resp.StatusCode)
	}
	var jobj any
	if err := json.NewDecoder(resp.Body).Decode(&jobj); err != nil {
		return Quote{}, unavailable(symbol, "decode: %v", err)
	}

	price, err := extractPrice(o.pricePath, jobj)
	if err != nil {
		return Quote{}, unavailable(symbol, "%v", err)
	}
	if price <= 0 {
		return Quote{}, unavailable(symbol, "non-positive price %d", price)
	}
	q := Quote{Symbol: symbol, Price: price, AsOf: time.Now().UTC()}
	if o.prevPath != "" {
		if prev, err := extractPrice(o.prevPath, jobj); err == nil {
			q.PrevClose = prev
		}
	}
	return q, nil
}

func extractPrice(path string, jobj any) (int64, error) {
	jval, err := jsonpath.Get(path, jobj)
	if err != nil {
		return 0, fmt.Errorf("jsonpath %q: %w", path, err)
	}
	// a filter or slice expression yields a list; keep the first answer
	if jlist, ok := jval.([]any); ok {
		if len(jlist) == 0 {
			return 0, fmt.Errorf("jsonpath %q: no match", path)
		}
		jval = jlist[0]
	}
	switch v := jval.(type) {
	case float64:
		return toMinorUnits(v), nil
	case string:
		d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(v), ",", ""))
		if err != nil {
			return 0, fmt.Errorf("jsonpath %q: invalid number %q", path, v)
		}
		return d.Round(0).IntPart(), nil
	default:
		return 0, fmt.Errorf("jsonpath %q: not a number: %v", path, jval)
	}
}
