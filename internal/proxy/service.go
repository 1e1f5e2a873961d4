// Package proxy serves Gamma API responses through a shared freshness
// window so many callers cost one upstream request per endpoint per TTL.
package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/alanyoungcy/matchbox/internal/domain"
)

// DefaultEndpoint is used when the caller names none.
const DefaultEndpoint = "markets"

// sharedFetchTimeout bounds an upstream call shared by several callers. The
// call is detached from whichever caller started it.
const sharedFetchTimeout = 30 * time.Second

// Upstream fetches a raw response body for an endpoint.
type Upstream interface {
	Fetch(ctx context.Context, endpoint string) ([]byte, error)
}

// ErrInvalidBody is returned when the upstream answered 2xx with a body
// that is not JSON.
var ErrInvalidBody = errors.New("upstream body is not valid JSON")

// Service fronts the upstream with a response cache. Only successful,
// well-formed bodies are cached.
type Service struct {
	upstream Upstream
	cache    domain.ResponseCache
	ttl      time.Duration
	group    singleflight.Group
	logger   *slog.Logger
}

// NewService creates a proxy Service. cache may be nil to disable caching.
func NewService(upstream Upstream, cache domain.ResponseCache, ttl time.Duration, logger *slog.Logger) *Service {
	return &Service{
		upstream: upstream,
		cache:    cache,
		ttl:      ttl,
		logger:   logger.With(slog.String("component", "proxy")),
	}
}

// NormalizeEndpoint applies the default and strips leading slashes.
func NormalizeEndpoint(endpoint string) string {
	endpoint = strings.TrimLeft(strings.TrimSpace(endpoint), "/")
	if endpoint == "" {
		return DefaultEndpoint
	}
	return endpoint
}

// Fetch returns the body for endpoint, from cache when fresh.
func (s *Service) Fetch(ctx context.Context, endpoint string) ([]byte, error) {
	endpoint = NormalizeEndpoint(endpoint)

	if s.cache != nil {
		body, err := s.cache.Get(ctx, endpoint)
		if err == nil {
			return body, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("proxy: cache read failed",
				slog.String("endpoint", endpoint),
				slog.String("error", err.Error()),
			)
		}
	}

	ch := s.group.DoChan(endpoint, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedFetchTimeout)
		defer cancel()

		body, err := s.upstream.Fetch(fetchCtx, endpoint)
		if err != nil {
			return nil, err
		}
		if !json.Valid(body) {
			return nil, fmt.Errorf("proxy: %s: %w", endpoint, ErrInvalidBody)
		}
		if s.cache != nil {
			if err := s.cache.Set(fetchCtx, endpoint, body, s.ttl); err != nil {
				s.logger.Warn("proxy: cache write failed",
					slog.String("endpoint", endpoint),
					slog.String("error", err.Error()),
				)
			}
		}
		return body, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}
