package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/matchbox/internal/domain"
)

const deploymentColumns = `id, owner, vault, salt, create_tx_hash, init_tx_hash,
	legs, rules, phase, failed_step, error, created_at, updated_at`

// DeploymentStore implements domain.DeploymentStore using PostgreSQL.
type DeploymentStore struct {
	pool *pgxpool.Pool
}

// NewDeploymentStore creates a new DeploymentStore backed by the given
// connection pool.
func NewDeploymentStore(pool *pgxpool.Pool) *DeploymentStore {
	return &DeploymentStore{pool: pool}
}

// Create inserts a new deployment row.
func (s *DeploymentStore) Create(ctx context.Context, d domain.Deployment) error {
	legs, rules, err := marshalSequence(d)
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO deployments (
			id, owner, vault, salt, create_tx_hash, init_tx_hash,
			legs, rules, phase, failed_step, error, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err = s.pool.Exec(ctx, query,
		d.ID, d.Owner, d.Vault, d.Salt, d.CreateTxHash, d.InitTxHash,
		legs, rules, string(d.Phase), string(d.FailedStep), d.Error,
		d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create deployment %s: %w", d.ID, err)
	}
	return nil
}

// Update overwrites the mutable columns of an existing deployment.
func (s *DeploymentStore) Update(ctx context.Context, d domain.Deployment) error {
	legs, rules, err := marshalSequence(d)
	if err != nil {
		return err
	}

	const query = `
		UPDATE deployments SET
			vault = $2, salt = $3, create_tx_hash = $4, init_tx_hash = $5,
			legs = $6, rules = $7, phase = $8, failed_step = $9, error = $10,
			updated_at = $11
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query,
		d.ID, d.Vault, d.Salt, d.CreateTxHash, d.InitTxHash,
		legs, rules, string(d.Phase), string(d.FailedStep), d.Error,
		d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: update deployment %s: %w", d.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetByID returns a single deployment.
func (s *DeploymentStore) GetByID(ctx context.Context, id string) (domain.Deployment, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+deploymentColumns+` FROM deployments WHERE id = $1`, id)
	d, err := scanDeployment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Deployment{}, domain.ErrNotFound
		}
		return domain.Deployment{}, fmt.Errorf("postgres: get deployment %s: %w", id, err)
	}
	return d, nil
}

// ListByOwner returns an owner's deployments, newest first.
func (s *DeploymentStore) ListByOwner(ctx context.Context, owner string, opts domain.ListOpts) ([]domain.Deployment, error) {
	query := `SELECT ` + deploymentColumns + ` FROM deployments WHERE lower(owner) = lower($1)`
	args := []any{owner}
	argIdx := 2

	if opts.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list deployments for %s: %w", owner, err)
	}
	defer rows.Close()

	var out []domain.Deployment
	for rows.Next() {
		d, err := scanDeployment(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan deployment: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list deployments rows: %w", err)
	}
	return out, nil
}

func marshalSequence(d domain.Deployment) ([]byte, []byte, error) {
	legs, err := json.Marshal(nonNil(d.Legs))
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: marshal legs: %w", err)
	}
	rules, err := json.Marshal(nonNil(d.Rules))
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: marshal rules: %w", err)
	}
	return legs, rules, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func scanDeployment(row pgx.Row) (domain.Deployment, error) {
	var (
		d                   domain.Deployment
		legsJSON, rulesJSON []byte
		phase, failedStep   string
	)
	if err := row.Scan(
		&d.ID, &d.Owner, &d.Vault, &d.Salt, &d.CreateTxHash, &d.InitTxHash,
		&legsJSON, &rulesJSON, &phase, &failedStep, &d.Error,
		&d.CreatedAt, &d.UpdatedAt,
	); err != nil {
		return domain.Deployment{}, err
	}
	d.Phase = domain.DeployPhase(phase)
	d.FailedStep = domain.DeployStep(failedStep)
	if len(legsJSON) > 0 {
		if err := json.Unmarshal(legsJSON, &d.Legs); err != nil {
			return domain.Deployment{}, fmt.Errorf("unmarshal legs: %w", err)
		}
	}
	if len(rulesJSON) > 0 {
		if err := json.Unmarshal(rulesJSON, &d.Rules); err != nil {
			return domain.Deployment{}, fmt.Errorf("unmarshal rules: %w", err)
		}
	}
	return d, nil
}
