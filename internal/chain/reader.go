package chain

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/matchbox/internal/domain"
)

// ErrNoFactory is returned by owner lookups when no factory is configured.
var ErrNoFactory = errors.New("chain: factory address not configured")

// Reader answers read-only questions about vaults.
type Reader struct {
	backend Backend
	factory common.Address
}

// NewReader returns a Reader. factory may be the zero address, in which case
// only per-vault reads work.
func NewReader(backend Backend, factory common.Address) *Reader {
	return &Reader{backend: backend, factory: factory}
}

// VaultStatus reads one vault.
func (r *Reader) VaultStatus(ctx context.Context, vault common.Address) (domain.VaultStatus, error) {
	v, err := NewVault(vault, r.backend, nil)
	if err != nil {
		return domain.VaultStatus{}, err
	}
	return v.Status(ctx)
}

// VaultsForOwner lists the vaults the factory created for owner.
func (r *Reader) VaultsForOwner(ctx context.Context, owner common.Address) ([]common.Address, error) {
	if r.factory == (common.Address{}) {
		return nil, ErrNoFactory
	}
	f, err := NewFactory(r.factory, r.backend, nil)
	if err != nil {
		return nil, err
	}
	return f.MatchboxesForOwner(ctx, owner)
}
