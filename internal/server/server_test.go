package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/matchbox/internal/cache/memory"
	"github.com/alanyoungcy/matchbox/internal/domain"
	"github.com/alanyoungcy/matchbox/internal/server/handler"
)

type stubProxy struct{}

func (stubProxy) Fetch(context.Context, string) ([]byte, error) { return []byte(`[]`), nil }

type stubMarkets struct{}

func (stubMarkets) LookupURL(context.Context, string) (domain.MarketDetails, error) {
	return domain.MarketDetails{}, domain.ErrNotFound
}
func (stubMarkets) Search(context.Context, string) []domain.MarketDetails       { return nil }
func (stubMarkets) Trending(context.Context, int) []domain.MarketDetails        { return nil }
func (stubMarkets) ByConditionID(context.Context, string) *domain.MarketDetails { return nil }

func testHandler(cfg Config, limiter domain.RateLimiter) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHandler(cfg, Handlers{
		Health:   handler.NewHealthHandler(nil, logger),
		Proxy:    handler.NewProxyHandler(stubProxy{}, time.Minute, 2*time.Minute, logger),
		Markets:  handler.NewMarketHandler(stubMarkets{}, logger),
		Sequence: handler.NewSequenceHandler(logger),
	}, nil, limiter, logger)
}

func serve(h http.Handler, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRoutes(t *testing.T) {
	h := testHandler(Config{}, nil)

	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/api/health", "", nil).Code)
	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/api/polymarket?endpoint=markets", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, serve(h, http.MethodGet, "/api/markets/resolve?input=x", "", nil).Code)
	assert.Equal(t, http.StatusOK, serve(h, http.MethodPost, "/api/sequence/validate", `{"legs":[]}`, nil).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, serve(h, http.MethodPost, "/api/polymarket", "", nil).Code)
}

func TestRoutes_DeploymentsAbsentWithoutChain(t *testing.T) {
	h := testHandler(Config{}, nil)
	assert.Equal(t, http.StatusNotFound, serve(h, http.MethodGet, "/api/deployments/abc", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, serve(h, http.MethodGet, "/api/vaults/0xabc", "", nil).Code)
}

func TestMiddlewareChain(t *testing.T) {
	h := testHandler(Config{
		APIKey:          "k",
		CORSOrigins:     []string{"http://localhost:3000"},
		RateLimit:       1,
		RateLimitWindow: time.Minute,
	}, memory.NewRateLimiter())

	preflight := serve(h, http.MethodOptions, "/api/polymarket", "", map[string]string{"Origin": "http://localhost:3000"})
	assert.Equal(t, http.StatusNoContent, preflight.Code)
	assert.Equal(t, "http://localhost:3000", preflight.Header().Get("Access-Control-Allow-Origin"))

	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/api/health", "", nil).Code)

	authed := map[string]string{"X-API-Key": "k", "X-Real-IP": "5.5.5.5"}
	first := serve(h, http.MethodGet, "/api/polymarket", "", authed)
	assert.Equal(t, http.StatusOK, first.Code)
	assert.NotEmpty(t, first.Header().Get("X-Request-ID"))
	assert.Equal(t, http.StatusTooManyRequests, serve(h, http.MethodGet, "/api/polymarket", "", authed).Code)

	assert.Equal(t, http.StatusUnauthorized,
		serve(h, http.MethodGet, "/api/polymarket", "", map[string]string{"X-Real-IP": "6.6.6.6"}).Code)
}
