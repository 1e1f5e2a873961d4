package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alanyoungcy/matchbox/internal/domain"
)

// LockManager is an in-process domain.LockManager. Locks expire after
// their TTL even if never released.
type LockManager struct {
	mu    sync.Mutex
	held  map[string]uint64
	until map[string]time.Time
	seq   uint64
}

// NewLockManager creates an empty LockManager.
func NewLockManager() *LockManager {
	return &LockManager{held: make(map[string]uint64), until: make(map[string]time.Time)}
}

// Acquire obtains the lock for key or returns domain.ErrLockHeld.
func (lm *LockManager) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	now := time.Now()
	if _, ok := lm.held[key]; ok {
		if exp := lm.until[key]; exp.IsZero() || now.Before(exp) {
			return nil, fmt.Errorf("memory: acquire lock %s: %w", key, domain.ErrLockHeld)
		}
	}

	lm.seq++
	token := lm.seq
	lm.held[key] = token
	if ttl > 0 {
		lm.until[key] = now.Add(ttl)
	} else {
		delete(lm.until, key)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			lm.mu.Lock()
			defer lm.mu.Unlock()
			if lm.held[key] == token {
				delete(lm.held, key)
				delete(lm.until, key)
			}
		})
	}, nil
}

var _ domain.LockManager = (*LockManager)(nil)
