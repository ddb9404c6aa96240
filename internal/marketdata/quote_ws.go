package marketdata

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

type QuoteMessage struct {
	Type      string `json:"type"`
	Symbol    string `json:"symbol"`
	Price     *int64 `json:"price"`
	PrevClose *int64 `json:"prev_close,omitempty"`
	Timestamp int64  `json:"ts"`
}

// QuoteWS streams oracle quotes for one symbol at a fixed interval.
type QuoteWS struct {
	oracle   PriceOracle
	interval time.Duration
	timeout  time.Duration
	upgrader websocket.Upgrader
}

func NewQuoteWS(oracle PriceOracle, origin string, interval, timeout time.Duration) *QuoteWS {
	return &QuoteWS{
		oracle:   oracle,
		interval: interval,
		timeout:  timeout,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return AllowOrigin(r, origin) }},
	}
}

func (h *QuoteWS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	symbol := normalizeSymbol(r.URL.Query().Get("symbol"))
	if symbol == "" {
		http.Error(w, "symbol is required", http.StatusBadRequest)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		if err := conn.WriteJSON(h.snapshot(r.Context(), symbol)); err != nil {
			return
		}
		select {
		case <-ticker.C:
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (h *QuoteWS) snapshot(ctx context.Context, symbol string) QuoteMessage {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	msg := QuoteMessage{Type: "quote", Symbol: symbol, Timestamp: time.Now().UTC().Unix()}
	q, err := h.oracle.LatestQuote(ctx, symbol)
	if err != nil {
		return msg
	}
	msg.Price = &q.Price
	if q.PrevClose > 0 {
		msg.PrevClose = &q.PrevClose
	}
	return msg
}

// AllowOrigin accepts any origin for "*" and otherwise an exact,
// case-insensitive match.
func AllowOrigin(r *http.Request, origin string) bool {
	if origin == "*" {
		return true
	}
	return strings.EqualFold(r.Header.Get("Origin"), origin)
}
