package health

import (
	"context"
	"net/http"
	"time"

	"vtrade/internal/httputil"
)

// Pinger is the primary dependency checked by readiness, a *pgxpool.Pool in
// production.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	db          Pinger
	store       string
	startedAt   time.Time
	pingTimeout time.Duration
	now         func() time.Time
}

// NewHandler builds the health endpoints. A nil db means the service runs
// without a database and readiness only reports the store driver.
func NewHandler(db Pinger, store string, startedAt time.Time) *Handler {
	start := startedAt.UTC()
	if start.IsZero() {
		start = time.Now().UTC()
	}
	return &Handler{
		db:          db,
		store:       store,
		startedAt:   start,
		pingTimeout: time.Second,
		now:         time.Now,
	}
}

type liveResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	UptimeSec int64  `json:"uptime_sec"`
	Uptime    string `json:"uptime"`
}

type readinessResponse struct {
	Status    string          `json:"status"`
	Timestamp string          `json:"timestamp"`
	UptimeSec int64           `json:"uptime_sec"`
	Store     string          `json:"store"`
	Database  readinessDBStat `json:"database"`
}

type readinessDBStat struct {
	Configured bool   `json:"configured"`
	Reachable  bool   `json:"reachable"`
	PingMs     int64  `json:"ping_ms"`
	Error      string `json:"error,omitempty"`
	CheckedAt  string `json:"checked_at"`
}

func (h *Handler) uptime(now time.Time) time.Duration {
	uptime := now.Sub(h.startedAt)
	if uptime < 0 {
		return 0
	}
	return uptime
}

func (h *Handler) checkDB(ctx context.Context) readinessDBStat {
	st := readinessDBStat{Configured: h.db != nil}
	if h.db == nil {
		st.CheckedAt = h.now().UTC().Format(time.RFC3339)
		return st
	}
	start := h.now()
	ctx, cancel := context.WithTimeout(ctx, h.pingTimeout)
	err := h.db.Ping(ctx)
	cancel()
	st.PingMs = h.now().Sub(start).Milliseconds()
	st.CheckedAt = h.now().UTC().Format(time.RFC3339)
	if err != nil {
		st.Error = err.Error()
		return st
	}
	st.Reachable = true
	return st
}

// Live is a lightweight liveness endpoint and does not check database reachability.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	now := h.now().UTC()
	uptime := h.uptime(now)
	httputil.WriteJSON(w, http.StatusOK, liveResponse{
		Status:    "ok",
		Timestamp: now.Format(time.RFC3339),
		UptimeSec: int64(uptime.Seconds()),
		Uptime:    uptime.String(),
	})
}

// Ready returns 503 when the database is configured but unreachable.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	now := h.now().UTC()
	db := h.checkDB(r.Context())
	status := "ok"
	httpStatus := http.StatusOK
	if db.Configured && !db.Reachable {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, httpStatus, readinessResponse{
		Status:    status,
		Timestamp: now.Format(time.RFC3339),
		UptimeSec: int64(h.uptime(now).Seconds()),
		Store:     h.store,
		Database:  db,
	})
}
