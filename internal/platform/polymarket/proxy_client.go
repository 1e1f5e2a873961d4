package polymarket

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alanyoungcy/matchbox/internal/domain"
)

// ProxyPath is the route the server exposes the Gamma proxy on.
const ProxyPath = "/api/polymarket"

// ProxyClient reaches the Gamma API through a running matchbox server's
// proxy route, sharing its response cache instead of calling upstream.
type ProxyClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewProxyClient creates a client for the server at baseURL.
func NewProxyClient(baseURL string, timeout time.Duration) *ProxyClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ProxyClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Fetch requests endpoint through the proxy. The endpoint is passed as a
// single encoded query parameter.
func (p *ProxyClient) Fetch(ctx context.Context, endpoint string) ([]byte, error) {
	u := p.baseURL + ProxyPath + "?endpoint=" + url.QueryEscape(endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("polymarket/proxy: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("polymarket/proxy: http request: %w: %w", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("polymarket/proxy: read response: %w: %w", domain.ErrUpstream, err)
	}
	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, fmt.Errorf("polymarket/proxy: %s: %w", endpoint, err)
	}
	return body, nil
}
