package chain

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/matchbox/internal/domain"
)

// Deployer runs the two chain steps of a deployment and waits for each to
// be mined.
type Deployer struct {
	factory *Factory
	backend Backend
	tx      *Transactor
}

// NewDeployer builds a Deployer against the factory at address.
func NewDeployer(address common.Address, backend Backend, tx *Transactor) (*Deployer, error) {
	f, err := NewFactory(address, backend, tx)
	if err != nil {
		return nil, err
	}
	return &Deployer{factory: f, backend: backend, tx: tx}, nil
}

// From is the deployer account.
func (d *Deployer) From() common.Address {
	return d.tx.From()
}

// CreateVault submits createMatchbox(salt), waits for it and returns the new
// vault address. The tx hash is returned whenever the tx was sent, even if
// a later step fails.
func (d *Deployer) CreateVault(ctx context.Context, salt [32]byte) (common.Address, common.Hash, error) {
	tx, err := d.factory.CreateMatchbox(ctx, salt)
	if err != nil {
		return common.Address{}, common.Hash{}, err
	}
	receipt, err := d.tx.WaitMined(ctx, tx.Hash())
	if err != nil {
		return common.Address{}, tx.Hash(), err
	}
	vault, err := d.factory.VaultFromReceipt(receipt)
	if err != nil {
		return common.Address{}, tx.Hash(), fmt.Errorf("chain: vault address: %w", err)
	}
	return vault, tx.Hash(), nil
}

// InitializeSequence registers rules with vault and waits for the tx.
func (d *Deployer) InitializeSequence(ctx context.Context, vault common.Address, rules []domain.Rule) (common.Hash, error) {
	v, err := NewVault(vault, d.backend, d.tx)
	if err != nil {
		return common.Hash{}, err
	}
	tx, err := v.InitializeSequence(ctx, rules)
	if err != nil {
		return common.Hash{}, err
	}
	if _, err := d.tx.WaitMined(ctx, tx.Hash()); err != nil {
		return tx.Hash(), err
	}
	return tx.Hash(), nil
}
