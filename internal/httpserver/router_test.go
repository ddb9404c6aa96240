package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"vtrade/internal/auth"
	"vtrade/internal/health"
	"vtrade/internal/ledger"
	"vtrade/internal/marketdata"
	"vtrade/internal/model"
	"vtrade/internal/trading"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

type testServer struct {
	handler http.Handler
	auth    *auth.Service
	oracle  *marketdata.StaticOracle
	bus     *marketdata.Bus
}

func newTestServer(t *testing.T, internalToken string) *testServer {
	t.Helper()
	hash := ""
	if internalToken != "" {
		b, err := bcrypt.GenerateFromPassword([]byte(internalToken), bcrypt.MinCost)
		if err != nil {
			t.Fatalf("bcrypt: %v", err)
		}
		hash = string(b)
	}
	authSvc := auth.NewService("vtrade-test", []byte("secret"), time.Hour)
	oracle := marketdata.NewStaticOracle()
	bus := marketdata.NewBus()
	svc := trading.NewService(
		ledger.NewMemoryStore(time.Second),
		oracle,
		marketdata.NewMemoryCatalog(model.Symbol{Code: "VNM", Name: "Vinamilk"}),
		bus,
		trading.DefaultSettings(),
		zerolog.Nop(),
	)
	return &testServer{
		handler: NewRouter(RouterDeps{
			TradingHandler:    trading.NewHandler(svc),
			AuthHandler:       auth.NewHandler(authSvc),
			HealthHandler:     health.NewHandler(nil, "memory", time.Now()),
			AuthService:       authSvc,
			InternalTokenHash: hash,
			WSHandler:         NewWSHandler(bus, authSvc, "*"),
			Logger:            zerolog.Nop(),
		}),
		auth:   authSvc,
		oracle: oracle,
		bus:    bus,
	}
}

func (s *testServer) token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := s.auth.SignToken(userID)
	if err != nil {
		t.Fatalf("SignToken() error = %v", err)
	}
	return tok
}

func (s *testServer) do(method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func TestAuthenticatedRoutes(t *testing.T) {
	s := newTestServer(t, "")
	s.oracle.Set("VNM", 1000, 990)
	bearer := map[string]string{"Authorization": "Bearer " + s.token(t, "u1")}

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		header map[string]string
		want   int
	}{
		{"no token", http.MethodGet, "/v1/virtual-trading/portfolio", "", nil, http.StatusUnauthorized},
		{"bad scheme", http.MethodGet, "/v1/virtual-trading/portfolio", "", map[string]string{"Authorization": "Basic abc"}, http.StatusUnauthorized},
		{"garbage token", http.MethodGet, "/v1/virtual-trading/portfolio", "", map[string]string{"Authorization": "Bearer nope"}, http.StatusUnauthorized},
		{"no portfolio yet", http.MethodGet, "/v1/virtual-trading/portfolio", "", bearer, http.StatusNotFound},
		{"open", http.MethodPost, "/v1/virtual-trading/portfolio", "", bearer, http.StatusCreated},
		{"buy", http.MethodPost, "/v1/virtual-trading/buy", `{"symbol":"VNM","quantity":10}`, bearer, http.StatusCreated},
		{"oversell", http.MethodPost, "/v1/virtual-trading/sell", `{"symbol":"VNM","quantity":11}`, bearer, http.StatusUnprocessableEntity},
		{"history", http.MethodGet, "/v1/virtual-trading/transactions?limit=5", "", bearer, http.StatusOK},
		{"me", http.MethodGet, "/v1/me", "", bearer, http.StatusOK},
		{"public price", http.MethodGet, "/v1/virtual-trading/price/VNM", "", nil, http.StatusOK},
		{"public leaderboard", http.MethodGet, "/v1/virtual-trading/leaderboard", "", nil, http.StatusOK},
		{"liveness", http.MethodGet, "/health/live", "", nil, http.StatusOK},
	}
	// rows share one server and run in order
	for _, tt := range tests {
		rec := s.do(tt.method, tt.path, tt.body, tt.header)
		if rec.Code != tt.want {
			t.Errorf("%s: status = %d, want %d: %s", tt.name, rec.Code, tt.want, rec.Body)
		}
	}
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	s := newTestServer(t, "")
	rec := s.do(http.MethodGet, "/health/live", "", nil)
	for _, h := range []string{"X-Frame-Options", "X-Content-Type-Options", "Content-Security-Policy"} {
		if rec.Header().Get(h) == "" {
			t.Errorf("missing %s", h)
		}
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("missing X-Request-Id")
	}
}

func TestInternalRevalue(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		provided   string
		want       int
	}{
		{"disabled", "", "anything", http.StatusServiceUnavailable},
		{"missing", "s3cret", "", http.StatusUnauthorized},
		{"wrong", "s3cret", "guess", http.StatusUnauthorized},
		{"valid", "s3cret", "s3cret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, tt.configured)
			rec := s.do(http.MethodPost, "/internal/revalue", "", map[string]string{"X-Internal-Token": tt.provided})
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body)
			}
		})
	}
}

func TestRateLimiter(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	rl := newRateLimiter(1, 2)
	rl.now = func() time.Time { return now }

	if !rl.allow("1.2.3.4") || !rl.allow("1.2.3.4") {
		t.Fatal("burst should be allowed")
	}
	if rl.allow("1.2.3.4") {
		t.Error("third request should be limited")
	}
	if !rl.allow("5.6.7.8") {
		t.Error("other clients have their own bucket")
	}
	now = now.Add(time.Second)
	if !rl.allow("1.2.3.4") {
		t.Error("bucket should refill")
	}
	now = now.Add(10 * time.Minute)
	rl.allow("9.9.9.9")
	if _, ok := rl.visitors["5.6.7.8"]; ok {
		t.Error("idle visitor should be pruned")
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.7:51234"
	if got := clientIP(req); got != "10.0.0.7" {
		t.Errorf("clientIP() = %q", got)
	}
	req.RemoteAddr = "unix"
	if got := clientIP(req); got != "unix" {
		t.Errorf("clientIP() = %q", got)
	}
}

func TestWSDeliversOnlyOwnEvents(t *testing.T) {
	s := newTestServer(t, "")
	srv := httptest.NewServer(s.handler)
	defer srv.Close()

	if resp, err := http.Get(srv.URL + "/v1/virtual-trading/ws"); err == nil {
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("tokenless ws status = %d", resp.StatusCode)
		}
		resp.Body.Close()
	}

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/virtual-trading/ws?token=" + s.token(t, "u1")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// the server subscribes after the handshake, so keep publishing until read
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.bus.Publish(marketdata.Event{Type: "other", UserID: "u2", Data: 1})
				s.bus.Publish(marketdata.Event{Type: marketdata.EventPortfolio, UserID: "u1", Data: 2})
			}
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var evt map[string]any
	if err := json.Unmarshal(payload, &evt); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if evt["type"] != marketdata.EventPortfolio {
		t.Errorf("first event = %v, want own portfolio event", evt)
	}
	if _, ok := evt["UserID"]; ok {
		t.Error("user id must not be serialized")
	}
}
