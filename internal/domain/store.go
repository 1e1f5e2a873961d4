package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// DeploymentStore persists deployment attempts.
type DeploymentStore interface {
	Create(ctx context.Context, d Deployment) error
	Update(ctx context.Context, d Deployment) error
	GetByID(ctx context.Context, id string) (Deployment, error)
	ListByOwner(ctx context.Context, owner string, opts ListOpts) ([]Deployment, error)
}

// AuditStore persists an append-only log of significant actions.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
}
