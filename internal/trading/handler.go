package trading

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"vtrade/internal/httputil"
	"vtrade/internal/types"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type orderRequest struct {
	Symbol     string `json:"symbol"`
	Quantity   int64  `json:"quantity"`
	OrderType  string `json:"order_type"`
	LimitPrice *int64 `json:"limit_price"`
}

type portfolioResponse struct {
	Portfolio any  `json:"portfolio"`
	Created   bool `json:"created"`
}

// StatusFor maps service errors onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrInsufficientFunds), errors.Is(err, ErrInsufficientShares):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrPriceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrConcurrencyConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.svc.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		msg = "internal error"
	}
	httputil.WriteJSON(w, status, httputil.ErrorResponse{Error: msg, Retryable: Retryable(err)})
}

func (h *Handler) Open(w http.ResponseWriter, r *http.Request, userID string) {
	p, created, err := h.svc.OpenPortfolio(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	httputil.WriteJSON(w, status, portfolioResponse{Portfolio: p, Created: created})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request, userID string) {
	sum, err := h.svc.GetPortfolio(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sum)
}

func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request, userID string) {
	p, err := h.svc.DeactivatePortfolio(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, portfolioResponse{Portfolio: p})
}

func (h *Handler) Buy(w http.ResponseWriter, r *http.Request, userID string) {
	h.order(w, r, userID, types.TransactionTypeBuy)
}

func (h *Handler) Sell(w http.ResponseWriter, r *http.Request, userID string) {
	h.order(w, r, userID, types.TransactionTypeSell)
}

func (h *Handler) order(w http.ResponseWriter, r *http.Request, userID string, side types.TransactionType) {
	var req orderRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	order := Order{
		SymbolCode: req.Symbol,
		Quantity:   req.Quantity,
		OrderType:  types.OrderType(strings.ToUpper(strings.TrimSpace(req.OrderType))),
		LimitPrice: req.LimitPrice,
	}
	var (
		res OrderResult
		err error
	)
	if side == types.TransactionTypeBuy {
		res, err = h.svc.Buy(r.Context(), userID, order)
	} else {
		res, err = h.svc.Sell(r.Context(), userID, order)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, res)
}

func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request, userID string) {
	q := HistoryQuery{Type: types.TransactionType(strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("type"))))}
	var ok bool
	if q.Page, ok = intParam(w, r, "page"); !ok {
		return
	}
	if q.Limit, ok = intParam(w, r, "limit"); !ok {
		return
	}
	page, err := h.svc.TransactionHistory(r.Context(), userID, q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, page)
}

func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit, ok := intParam(w, r, "limit")
	if !ok {
		return
	}
	sortBy, err := ParseLeaderboardSort(r.URL.Query().Get("sort_by"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	entries, err := h.svc.Leaderboard(r.Context(), limit, sortBy)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"items": entries, "sort_by": sortBy})
}

func (h *Handler) Price(w http.ResponseWriter, r *http.Request) {
	info, err := h.svc.StockPrice(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, info)
}

func (h *Handler) RevalueAll(w http.ResponseWriter, r *http.Request) {
	sum, err := h.svc.RevalueAll(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sum)
}

// intParam reads an optional integer query parameter; 0 when absent.
func intParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid " + name})
		return 0, false
	}
	return n, true
}
