package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/alanyoungcy/matchbox/internal/domain"
)

// MarketResolver is the part of the resolver the market endpoints use.
type MarketResolver interface {
	LookupURL(ctx context.Context, input string) (domain.MarketDetails, error)
	Search(ctx context.Context, query string) []domain.MarketDetails
	Trending(ctx context.Context, limit int) []domain.MarketDetails
	ByConditionID(ctx context.Context, conditionID string) *domain.MarketDetails
}

// MarketHandler serves market lookup endpoints.
type MarketHandler struct {
	markets MarketResolver
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler with the given resolver and logger.
func NewMarketHandler(markets MarketResolver, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		markets: markets,
		logger:  logger,
	}
}

type marketsResponse struct {
	Markets []domain.MarketDetails `json:"markets"`
}

// Resolve turns a pasted Polymarket URL into market details. 404 means the
// input is not a market; 502 means the lookup may succeed on retry.
// GET /api/markets/resolve?input=https://polymarket.com/event/...
func (h *MarketHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	input := r.URL.Query().Get("input")
	if input == "" {
		writeError(w, http.StatusBadRequest, "missing input")
		return
	}

	m, err := h.markets.LookupURL(r.Context(), input)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "market not found")
			return
		}
		h.logger.WarnContext(r.Context(), "handler: resolve failed",
			slog.String("input", input),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "market lookup failed, try again")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// Search returns active markets whose question matches q.
// GET /api/markets/search?q=election
func (h *MarketHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "missing q")
		return
	}
	writeJSON(w, http.StatusOK, marketsResponse{Markets: nonNilMarkets(h.markets.Search(r.Context(), q))})
}

// Trending returns the top active markets.
// GET /api/markets/trending?limit=10
func (h *MarketHandler) Trending(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			writeError(w, http.StatusBadRequest, "limit must be 1-100")
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, marketsResponse{Markets: nonNilMarkets(h.markets.Trending(r.Context(), limit))})
}

// GetByCondition returns the market with the given condition id.
// GET /api/markets/condition/{id}
func (h *MarketHandler) GetByCondition(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	m := h.markets.ByConditionID(r.Context(), id)
	if m == nil {
		writeError(w, http.StatusNotFound, "market not found")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func nonNilMarkets(m []domain.MarketDetails) []domain.MarketDetails {
	if m == nil {
		return []domain.MarketDetails{}
	}
	return m
}
