package resolver

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/matchbox/internal/domain"
	"github.com/alanyoungcy/matchbox/internal/platform/polymarket"
)

type fakeFetcher struct {
	mu        sync.Mutex
	bodies    map[string]string
	errs      map[string]error
	requested []string
}

func (f *fakeFetcher) Fetch(_ context.Context, endpoint string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requested = append(f.requested, endpoint)
	if err, ok := f.errs[endpoint]; ok {
		return nil, err
	}
	if b, ok := f.bodies[endpoint]; ok {
		return []byte(b), nil
	}
	return nil, &polymarket.StatusError{Status: 404}
}

func newTestResolver(f *fakeFetcher) *Resolver {
	return New(f, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

var cond = "0x" + strings.Repeat("b", 64)

func TestExtractReference(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"https://polymarket.com/event/trump-wins-2024", "trump-wins-2024", true},
		{"  https://polymarket.com/market/will-btc-hit-100k  ", "will-btc-hit-100k", true},
		{"https://polymarket.com/event/x/extra?tid=1", "x", true},
		{"https://www.polymarket.com//event//double", "double", true},
		{"https://polymarket.com/sports/x", "", false},
		{"https://polymarket.com/event", "", false},
		{"https://example.com/event/x", "", false},
		{"polymarket.com/event/x", "", false},
		{"not a url", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ExtractReference(tt.in)
		assert.Equal(t, tt.wantOK, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestResolve_NormalizesFields(t *testing.T) {
	f := &fakeFetcher{bodies: map[string]string{
		"markets/slug/trump-wins-2024": fmt.Sprintf(`{"condition_id":%q,"question":"Trump?","market_slug":"trump-wins-2024","outcomes":"[\"Yes\",\"No\"]","active":true}`, cond),
	}}
	r := newTestResolver(f)

	m := r.ResolveURL(context.Background(), "https://polymarket.com/event/trump-wins-2024")
	require.NotNil(t, m)
	assert.Equal(t, cond, m.ConditionID)
	assert.Equal(t, "trump-wins-2024", m.Slug)
	assert.Equal(t, []string{"Yes", "No"}, m.OutcomeLabels())
	assert.True(t, m.IsActive)
}

func TestResolve_FailuresAreNil(t *testing.T) {
	f := &fakeFetcher{
		bodies: map[string]string{
			"markets/slug/garbled": `{not json`,
			"markets/slug/no-id":   `{"question":"q"}`,
		},
		errs: map[string]error{"markets/slug/down": fmt.Errorf("dial: %w", domain.ErrUpstream)},
	}
	r := newTestResolver(f)
	ctx := context.Background()

	assert.Nil(t, r.Resolve(ctx, "missing"))
	assert.Nil(t, r.Resolve(ctx, "garbled"))
	assert.Nil(t, r.Resolve(ctx, "no-id"))
	assert.Nil(t, r.Resolve(ctx, "down"))
	assert.Nil(t, r.ResolveURL(ctx, "not a url"))
}

func TestLookup_DistinguishesNotFoundFromUpstream(t *testing.T) {
	f := &fakeFetcher{
		bodies: map[string]string{"markets/slug/garbled": `[`},
		errs: map[string]error{
			"markets/slug/down": &polymarket.StatusError{Status: 503},
			"markets/slug/ctx":  context.DeadlineExceeded,
		},
	}
	r := newTestResolver(f)
	ctx := context.Background()

	_, err := r.Lookup(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NotErrorIs(t, err, domain.ErrUpstream)

	_, err = r.Lookup(ctx, " ")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	for _, ref := range []string{"down", "ctx", "garbled"} {
		_, err = r.Lookup(ctx, ref)
		assert.ErrorIs(t, err, domain.ErrUpstream, ref)
	}
}

func TestLookup_EscapesReference(t *testing.T) {
	f := &fakeFetcher{}
	r := newTestResolver(f)
	_, _ = r.Lookup(context.Background(), "a?b")
	require.Len(t, f.requested, 1)
	assert.Equal(t, "markets/slug/a%3Fb", f.requested[0])
}

func marketList(n int, active func(i int) bool, question func(i int) string) string {
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = fmt.Sprintf(`{"conditionId":"0x%064x","question":%q,"active":%t}`, i, question(i), active(i))
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func TestSearch(t *testing.T) {
	f := &fakeFetcher{bodies: map[string]string{
		"markets": marketList(50,
			func(i int) bool { return i%2 == 0 },
			func(i int) string {
				if i < 45 {
					return fmt.Sprintf("Will BITCOIN hit %d?", i)
				}
				return "Other"
			}),
	}}
	r := newTestResolver(f)

	got := r.Search(context.Background(), "bitcoin")
	require.Len(t, got, MaxSearchResults)
	for _, m := range got {
		assert.True(t, m.IsActive)
		assert.Contains(t, strings.ToLower(m.Question), "bitcoin")
	}

	assert.Empty(t, r.Search(context.Background(), "nothing matches"))
}

func TestSearch_FailureIsEmpty(t *testing.T) {
	f := &fakeFetcher{errs: map[string]error{"markets": domain.ErrUpstream}}
	got := newTestResolver(f).Search(context.Background(), "x")
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestTrendingAndByConditionID(t *testing.T) {
	f := &fakeFetcher{bodies: map[string]string{
		"markets": marketList(15, func(i int) bool { return i != 0 }, func(i int) string { return "q" }),
	}}
	r := newTestResolver(f)
	ctx := context.Background()

	trending := r.Trending(ctx, 0)
	require.Len(t, trending, DefaultTrendingLimit)
	assert.Equal(t, fmt.Sprintf("0x%064x", 1), trending[0].ConditionID)
	assert.Len(t, r.Trending(ctx, 3), 3)

	m := r.ByConditionID(ctx, strings.ToUpper(fmt.Sprintf("0x%064x", 7)))
	require.NotNil(t, m)
	assert.Equal(t, fmt.Sprintf("0x%064x", 7), m.ConditionID)
	assert.Nil(t, r.ByConditionID(ctx, cond))
}
