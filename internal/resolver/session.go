package resolver

import (
	"context"
	"sync"
	"time"

	"github.com/alanyoungcy/matchbox/internal/domain"
)

const (
	// DefaultDebounce is the quiescence period before an input is resolved.
	DefaultDebounce = 500 * time.Millisecond
	// MinInputLength is the shortest input worth resolving.
	MinInputLength = 10
)

// Tracker records the latest input generation per key so that a response
// can be checked for staleness when it arrives.
type Tracker struct {
	mu  sync.Mutex
	gen map[string]uint64
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{gen: make(map[string]uint64)}
}

// Begin marks a new input for key and returns its generation.
func (t *Tracker) Begin(key string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gen[key]++
	return t.gen[key]
}

// Current reports whether gen is still the latest input for key.
func (t *Tracker) Current(key string, gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	cur, ok := t.gen[key]
	return ok && cur == gen
}

// Invalidate makes every outstanding generation for key stale.
func (t *Tracker) Invalidate(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gen[key]++
}

// Result is a completed resolution for one leg's input.
type Result struct {
	LegID  string
	Input  string
	Market *domain.MarketDetails // nil when the input did not resolve
}

// ResolveFunc resolves raw user input.
type ResolveFunc func(ctx context.Context, input string) *domain.MarketDetails

// Session debounces per-leg input and delivers only results whose input is
// still the latest for that leg. Superseded lookups run to completion but
// their results are dropped.
type Session struct {
	ctx     context.Context
	cancel  context.CancelFunc
	resolve ResolveFunc
	deliver func(Result)
	delay   time.Duration
	minLen  int
	tracker *Tracker

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) SessionOption {
	return func(s *Session) { s.delay = d }
}

// WithMinLength overrides MinInputLength.
func WithMinLength(n int) SessionOption {
	return func(s *Session) { s.minLen = n }
}

// NewSession creates a Session. deliver is called from a timer goroutine
// while the session lock is held, so it must not call back into the
// Session.
func NewSession(ctx context.Context, resolve ResolveFunc, deliver func(Result), opts ...SessionOption) *Session {
	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		ctx:     ctx,
		cancel:  cancel,
		resolve: resolve,
		deliver: deliver,
		delay:   DefaultDebounce,
		minLen:  MinInputLength,
		tracker: NewTracker(),
		timers:  make(map[string]*time.Timer),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Input records new text for a leg. Any pending lookup for the leg is
// superseded; inputs shorter than the minimum length are not resolved.
// Once Input returns, no result for an earlier input of the leg is
// delivered.
func (s *Session) Input(legID, input string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	gen := s.tracker.Begin(legID)
	s.stopTimer(legID)
	if len(input) < s.minLen {
		return
	}

	var t *time.Timer
	t = time.AfterFunc(s.delay, func() {
		s.mu.Lock()
		if s.timers[legID] == t {
			delete(s.timers, legID)
		}
		s.mu.Unlock()

		if s.ctx.Err() != nil || !s.tracker.Current(legID, gen) {
			return
		}
		market := s.resolve(s.ctx, input)

		// Check and deliver under the lock Input takes to supersede.
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.ctx.Err() != nil || !s.tracker.Current(legID, gen) {
			return
		}
		s.deliver(Result{LegID: legID, Input: input, Market: market})
	})
	s.timers[legID] = t
}

// stopTimer cancels the pending debounce timer of a leg. s.mu must be held.
func (s *Session) stopTimer(legID string) {
	if t, ok := s.timers[legID]; ok {
		t.Stop()
		delete(s.timers, legID)
	}
}

// Remove forgets a leg, discarding any pending or in-flight result.
func (s *Session) Remove(legID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracker.Invalidate(legID)
	s.stopTimer(legID)
}

// Close stops all timers and drops every outstanding result.
func (s *Session) Close() {
	s.cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}
