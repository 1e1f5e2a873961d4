package polymarket

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/alanyoungcy/matchbox/internal/domain"
)

// DefaultGammaBase is the production Gamma API root.
const DefaultGammaBase = "https://gamma-api.polymarket.com"

// Gamma allows 300 requests per 10s; stay well under it.
const gammaRatePerSec = 18

// GammaClient is the REST client for the Polymarket Gamma API. It returns
// raw response bodies so the proxy can pass them through unchanged.
type GammaClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewGammaClient creates a new Gamma API client.
//
// baseURL is the Gamma API root, e.g. "https://gamma-api.polymarket.com".
func NewGammaClient(baseURL string, timeout time.Duration) *GammaClient {
	if baseURL == "" {
		baseURL = DefaultGammaBase
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GammaClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(gammaRatePerSec, 10),
	}
}

// Fetch GETs baseURL/endpoint. endpoint may carry a query string. Non-2xx
// responses are returned as *StatusError.
func (g *GammaClient) Fetch(ctx context.Context, endpoint string) ([]byte, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("polymarket/gamma: rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/"+strings.TrimLeft(endpoint, "/"), nil)
	if err != nil {
		return nil, fmt.Errorf("polymarket/gamma: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("polymarket/gamma: http request: %w: %w", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("polymarket/gamma: read response: %w: %w", domain.ErrUpstream, err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, fmt.Errorf("polymarket/gamma: %s: %w", endpoint, err)
	}
	return body, nil
}
