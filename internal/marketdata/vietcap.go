package marketdata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

const DefaultVietCapURL = "https://trading.vietcap.com.vn/api/chart/OHLCChart/gap-chart"

// VietCapOracle reads the gap-chart endpoint. The latest one-minute close is
// the current price; daily closes supply the previous session close, and the
// price too when no minute candle is available.
type VietCapOracle struct {
	cli *http.Client
	url string
	now func() time.Time
}

func NewVietCapOracle(url string, timeout time.Duration) *VietCapOracle {
	if url == "" {
		url = DefaultVietCapURL
	}
	return &VietCapOracle{cli: &http.Client{Timeout: timeout}, url: url, now: time.Now}
}

type gapChartRequest struct {
	TimeFrame string   `json:"timeFrame"`
	Symbols   []string `json:"symbols"`
	To        int64    `json:"to"`
	CountBack int      `json:"countBack"`
}

type gapChartSeries struct {
	S      string    `json:"s"`
	Symbol string    `json:"symbol"`
	C      []float64 `json:"c"`
}

func (o *VietCapOracle) LatestQuote(ctx context.Context, symbol string) (Quote, error) {
	symbol = normalizeSymbol(symbol)
	now := o.now().UTC()
	minute, minuteErr := o.closes(ctx, symbol, "ONE_MINUTE", 1, now)
	daily, dailyErr := o.closes(ctx, symbol, "ONE_DAY", 2, now)

	q, err := quoteFromCloses(symbol, daily, now)
	if dailyErr != nil {
		err = dailyErr
	}
	if minuteErr == nil && len(minute) > 0 {
		if price := toMinorUnits(minute[len(minute)-1]); price > 0 {
			if err != nil {
				q = Quote{Symbol: symbol, AsOf: now}
			}
			q.Price = price
			return q, nil
		}
	}
	if err != nil {
		return Quote{}, err
	}
	return q, nil
}

// closes returns the close series of symbol for one time frame, oldest first.
func (o *VietCapOracle) closes(ctx context.Context, symbol, timeFrame string, countBack int, now time.Time) ([]float64, error) {
	body, err := json.Marshal(gapChartRequest{TimeFrame: timeFrame, Symbols: []string{symbol}, To: now.Unix(), CountBack: countBack})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Referer", "https://trading.vietcap.com.vn/")
	req.Header.Set("User-Agent", "vtrade/1.0")

	resp, err := o.cli.Do(req)
	if err != nil {
		return nil, unavailable(symbol, "%v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, unavailable(symbol, "vietcap %s http %d", timeFrame, resp.StatusCode)
	}

	var series []gapChartSeries
	if err := json.NewDecoder(resp.Body).Decode(&series); err != nil {
		return nil, unavailable(symbol, "decode: %v", err)
	}
	for _, s := range series {
		code := s.S
		if code == "" {
			code = s.Symbol
		}
		if code != "" && normalizeSymbol(code) != symbol {
			continue
		}
		return s.C, nil
	}
	return nil, unavailable(symbol, "no %s series", timeFrame)
}

func quoteFromCloses(symbol string, closes []float64, asOf time.Time) (Quote, error) {
	if len(closes) == 0 {
		return Quote{}, unavailable(symbol, "no closes")
	}
	last := len(closes) - 1
	q := Quote{Symbol: symbol, Price: toMinorUnits(closes[last]), AsOf: asOf}
	if last > 0 {
		q.PrevClose = toMinorUnits(closes[last-1])
	}
	if q.Price <= 0 {
		return Quote{}, unavailable(symbol, "non-positive close %v", closes[last])
	}
	return q, nil
}

func toMinorUnits(v float64) int64 {
	return decimal.NewFromFloat(v).Round(0).IntPart()
}

func (o *VietCapOracle) String() string {
	return fmt.Sprintf("vietcap(%s)", o.url)
}
