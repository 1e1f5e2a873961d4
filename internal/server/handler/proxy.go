package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/matchbox/internal/platform/polymarket"
	"github.com/alanyoungcy/matchbox/internal/proxy"
)

const (
	msgInternal      = "Internal server error"
	msgUpstreamFetch = "Failed to fetch from Polymarket"
)

// ProxyFetcher returns a cached or fresh upstream body.
type ProxyFetcher interface {
	Fetch(ctx context.Context, endpoint string) ([]byte, error)
}

// ProxyHandler relays Gamma API responses to browsers that cannot call the
// upstream directly.
type ProxyHandler struct {
	proxy        ProxyFetcher
	cacheControl string
	logger       *slog.Logger
}

// NewProxyHandler creates a ProxyHandler advertising the given shared-cache
// freshness and stale-while-revalidate windows.
func NewProxyHandler(p ProxyFetcher, maxAge, staleWhileRevalidate time.Duration, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		proxy: p,
		cacheControl: fmt.Sprintf("public, s-maxage=%d, stale-while-revalidate=%d",
			int(maxAge.Seconds()), int(staleWhileRevalidate.Seconds())),
		logger: logger,
	}
}

// Fetch relays the upstream body for the endpoint query parameter.
// GET /api/polymarket?endpoint=markets/slug/foo
func (h *ProxyHandler) Fetch(w http.ResponseWriter, r *http.Request) {
	endpoint := proxy.NormalizeEndpoint(r.URL.Query().Get("endpoint"))

	body, err := h.proxy.Fetch(r.Context(), endpoint)
	if err != nil {
		var statusErr *polymarket.StatusError
		if errors.As(err, &statusErr) {
			writeError(w, statusErr.Status, msgUpstreamFetch)
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: proxy fetch failed",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", h.cacheControl)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
