// Package memory implements the domain stores in process memory. It backs
// the server when no database is configured, and the service tests.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/alanyoungcy/matchbox/internal/domain"
)

// DeploymentStore implements domain.DeploymentStore.
type DeploymentStore struct {
	mu   sync.RWMutex
	byID map[string]domain.Deployment
}

// NewDeploymentStore returns an empty store.
func NewDeploymentStore() *DeploymentStore {
	return &DeploymentStore{byID: make(map[string]domain.Deployment)}
}

// Create stores d; the id must be new.
func (s *DeploymentStore) Create(_ context.Context, d domain.Deployment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[d.ID]; ok {
		return domain.ErrAlreadyExists
	}
	s.byID[d.ID] = clone(d)
	return nil
}

// Update replaces an existing deployment.
func (s *DeploymentStore) Update(_ context.Context, d domain.Deployment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[d.ID]; !ok {
		return domain.ErrNotFound
	}
	s.byID[d.ID] = clone(d)
	return nil
}

// GetByID returns a copy of the stored deployment.
func (s *DeploymentStore) GetByID(_ context.Context, id string) (domain.Deployment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.byID[id]
	if !ok {
		return domain.Deployment{}, domain.ErrNotFound
	}
	return clone(d), nil
}

// ListByOwner returns the owner's deployments newest first.
func (s *DeploymentStore) ListByOwner(_ context.Context, owner string, opts domain.ListOpts) ([]domain.Deployment, error) {
	s.mu.RLock()
	var out []domain.Deployment
	for _, d := range s.byID {
		if !strings.EqualFold(d.Owner, owner) {
			continue
		}
		if opts.Since != nil && d.CreatedAt.Before(*opts.Since) {
			continue
		}
		if opts.Until != nil && d.CreatedAt.After(*opts.Until) {
			continue
		}
		out = append(out, clone(d))
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b domain.Deployment) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return nil, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func clone(d domain.Deployment) domain.Deployment {
	d.Legs = slices.Clone(d.Legs)
	d.Rules = slices.Clone(d.Rules)
	return d
}
