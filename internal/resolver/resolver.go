// Package resolver turns pasted Polymarket URLs and slugs into market
// details via the Gamma API, hiding the API's inconsistent schema.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/alanyoungcy/matchbox/internal/domain"
	"github.com/alanyoungcy/matchbox/internal/platform/polymarket"
)

const (
	// MaxSearchResults caps Search.
	MaxSearchResults = 20
	// DefaultTrendingLimit is used when Trending gets a non-positive limit.
	DefaultTrendingLimit = 10

	marketsEndpoint = "markets"
)

// Fetcher retrieves a raw Gamma API body for an endpoint.
type Fetcher interface {
	Fetch(ctx context.Context, endpoint string) ([]byte, error)
}

// Resolver looks markets up through a Fetcher.
type Resolver struct {
	fetcher Fetcher
	logger  *slog.Logger
}

// New creates a Resolver.
func New(fetcher Fetcher, logger *slog.Logger) *Resolver {
	return &Resolver{
		fetcher: fetcher,
		logger:  logger.With(slog.String("component", "resolver")),
	}
}

// ExtractReference pulls the market reference out of a polymarket.com
// /event/<ref> or /market/<ref> URL.
func ExtractReference(input string) (string, bool) {
	trimmed := strings.TrimSpace(input)
	if !strings.Contains(trimmed, "polymarket.com") {
		return "", false
	}
	u, err := url.Parse(trimmed)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}

	var parts []string
	for _, p := range strings.Split(u.Path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) < 2 || (parts[0] != "event" && parts[0] != "market") {
		return "", false
	}
	return parts[1], true
}

// Lookup resolves a market reference. It returns domain.ErrNotFound when
// the market does not exist and domain.ErrUpstream when the lookup itself
// failed and may be retried.
func (r *Resolver) Lookup(ctx context.Context, ref string) (domain.MarketDetails, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return domain.MarketDetails{}, fmt.Errorf("resolver: empty reference: %w", domain.ErrNotFound)
	}

	body, err := r.fetcher.Fetch(ctx, "markets/slug/"+url.PathEscape(ref))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.MarketDetails{}, fmt.Errorf("resolver: lookup %s: %w", ref, err)
		}
		return domain.MarketDetails{}, upstreamErr("lookup "+ref, err)
	}

	m, err := polymarket.DecodeMarket(body)
	if err != nil {
		return domain.MarketDetails{}, upstreamErr("decode "+ref, err)
	}
	details := m.ToMarketDetails()
	if details.ConditionID == "" {
		return domain.MarketDetails{}, fmt.Errorf("resolver: %s has no condition id: %w", ref, domain.ErrNotFound)
	}
	return details, nil
}

// Resolve is Lookup with every failure reported as nil.
func (r *Resolver) Resolve(ctx context.Context, ref string) *domain.MarketDetails {
	details, err := r.Lookup(ctx, ref)
	if err != nil {
		r.logger.Info("resolver: market not resolved",
			slog.String("ref", ref),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return &details
}

// LookupURL extracts the reference from input and looks it up.
func (r *Resolver) LookupURL(ctx context.Context, input string) (domain.MarketDetails, error) {
	ref, ok := ExtractReference(input)
	if !ok {
		return domain.MarketDetails{}, fmt.Errorf("resolver: no market reference in input: %w", domain.ErrNotFound)
	}
	return r.Lookup(ctx, ref)
}

// ResolveURL is LookupURL with every failure reported as nil.
func (r *Resolver) ResolveURL(ctx context.Context, input string) *domain.MarketDetails {
	ref, ok := ExtractReference(input)
	if !ok {
		return nil
	}
	return r.Resolve(ctx, ref)
}

// Search returns up to MaxSearchResults active markets whose question
// contains query, case-insensitively. Failures yield an empty list.
func (r *Resolver) Search(ctx context.Context, query string) []domain.MarketDetails {
	needle := strings.ToLower(query)
	return r.filter(ctx, "search", MaxSearchResults, func(m *polymarket.APIMarket) bool {
		return bool(m.Active) && strings.Contains(strings.ToLower(m.Question), needle)
	})
}

// Trending returns the first limit active markets in upstream order.
func (r *Resolver) Trending(ctx context.Context, limit int) []domain.MarketDetails {
	if limit <= 0 {
		limit = DefaultTrendingLimit
	}
	return r.filter(ctx, "trending", limit, func(m *polymarket.APIMarket) bool {
		return bool(m.Active)
	})
}

// ByConditionID finds a market by condition id, case-insensitively.
func (r *Resolver) ByConditionID(ctx context.Context, conditionID string) *domain.MarketDetails {
	found := r.filter(ctx, "by condition id", 1, func(m *polymarket.APIMarket) bool {
		return strings.EqualFold(m.Condition(), conditionID)
	})
	if len(found) == 0 {
		return nil
	}
	return &found[0]
}

func (r *Resolver) filter(ctx context.Context, op string, limit int, keep func(*polymarket.APIMarket) bool) []domain.MarketDetails {
	out := []domain.MarketDetails{}

	body, err := r.fetcher.Fetch(ctx, marketsEndpoint)
	if err != nil {
		r.logger.Warn("resolver: "+op+" failed", slog.String("error", err.Error()))
		return out
	}
	markets, err := polymarket.DecodeMarkets(body)
	if err != nil {
		r.logger.Warn("resolver: "+op+" decode failed", slog.String("error", err.Error()))
		return out
	}

	for i := range markets {
		if len(out) >= limit {
			break
		}
		if keep(&markets[i]) {
			out = append(out, markets[i].ToMarketDetails())
		}
	}
	return out
}

func upstreamErr(op string, err error) error {
	if errors.Is(err, domain.ErrUpstream) {
		return fmt.Errorf("resolver: %s: %w", op, err)
	}
	return fmt.Errorf("resolver: %s: %w: %w", op, domain.ErrUpstream, err)
}
