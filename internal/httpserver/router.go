package httpserver

import (
	"net/http"
	"time"

	"vtrade/internal/auth"
	"vtrade/internal/health"
	"vtrade/internal/trading"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

type RouterDeps struct {
	TradingHandler    *trading.Handler
	AuthHandler       *auth.Handler
	HealthHandler     *health.Handler
	AuthService       TokenParser
	InternalTokenHash string
	WSHandler         http.Handler
	QuoteWSHandler    http.Handler
	Logger            zerolog.Logger
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(hlog.NewHandler(d.Logger))
	r.Use(hlog.RequestIDHandler("req_id", "X-Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))

	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				origin = "*"
			}
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Internal-Token")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})
	r.Use(SecurityHeaders)
	r.Use(newRateLimiter(10, 30).Middleware)

	if d.HealthHandler != nil {
		r.Get("/health", d.HealthHandler.Ready)
		r.Get("/health/live", d.HealthHandler.Live)
		r.Get("/health/ready", d.HealthHandler.Ready)
	}

	r.Route("/v1", func(r chi.Router) {
		if d.AuthHandler != nil {
			r.With(WithAuth(d.AuthService)).Get("/me", withUser(d.AuthHandler.Me))
		}
		r.Route("/virtual-trading", func(r chi.Router) {
			t := d.TradingHandler
			r.Get("/price/{symbol}", t.Price)
			r.Get("/leaderboard", t.Leaderboard)
			if d.WSHandler != nil {
				r.Get("/ws", d.WSHandler.ServeHTTP)
			}
			if d.QuoteWSHandler != nil {
				r.Get("/quotes/ws", d.QuoteWSHandler.ServeHTTP)
			}
			r.Group(func(r chi.Router) {
				r.Use(WithAuth(d.AuthService))
				r.Post("/portfolio", withUser(t.Open))
				r.Get("/portfolio", withUser(t.Get))
				r.Delete("/portfolio", withUser(t.Deactivate))
				r.Post("/buy", withUser(t.Buy))
				r.Post("/sell", withUser(t.Sell))
				r.Get("/transactions", withUser(t.Transactions))
			})
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(InternalAuth(d.InternalTokenHash))
		r.Post("/internal/revalue", d.TradingHandler.RevalueAll)
	})
	return r
}
