package chain

import (
	"context"
	"crypto/rand"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/alanyoungcy/matchbox/internal/domain"
)

// Factory wraps a deployed MatchboxFactory.
type Factory struct {
	address common.Address
	abi     abi.ABI
	backend Backend
	tx      *Transactor
}

// NewFactory binds the factory at address. tx may be nil for read-only use.
func NewFactory(address common.Address, backend Backend, tx *Transactor) (*Factory, error) {
	parsed, err := FactoryABI()
	if err != nil {
		return nil, err
	}
	return &Factory{address: address, abi: parsed, backend: backend, tx: tx}, nil
}

// Address returns the factory address.
func (f *Factory) Address() common.Address { return f.address }

// NewSalt returns keccak256 of the current time and 32 random bytes.
func NewSalt() ([32]byte, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return [32]byte{}, fmt.Errorf("chain: salt entropy: %w", err)
	}
	return ethcrypto.Keccak256Hash([]byte(strconv.FormatInt(time.Now().UnixNano(), 10)), buf), nil
}

// CreateMatchbox submits createMatchbox(salt).
func (f *Factory) CreateMatchbox(ctx context.Context, salt [32]byte) (*types.Transaction, error) {
	if f.tx == nil {
		return nil, ErrReadOnly
	}
	data, err := f.abi.Pack("createMatchbox", salt)
	if err != nil {
		return nil, fmt.Errorf("chain: pack createMatchbox: %w", err)
	}
	return f.tx.Transact(ctx, f.address, data)
}

// VaultFromReceipt extracts the new vault address from the factory's
// MatchboxCreated log in receipt.
func (f *Factory) VaultFromReceipt(receipt *types.Receipt) (common.Address, error) {
	var logs []*types.Log
	for _, lg := range receipt.Logs {
		if lg != nil && lg.Address == f.address {
			logs = append(logs, lg)
		}
	}
	return VaultFromLogs(f.abi, logs)
}

// VaultFromLogs decodes the matchbox argument of a MatchboxCreated log.
func VaultFromLogs(factory abi.ABI, logs []*types.Log) (common.Address, error) {
	v, err := DecodeEventArg(factory, EventMatchboxCreated, "matchbox", logs)
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := v.(common.Address)
	if !ok || addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("chain: %s matchbox arg %v: %w", EventMatchboxCreated, v, domain.ErrMalformedLog)
	}
	return addr, nil
}

// MatchboxesForOwner lists the vaults created by owner.
func (f *Factory) MatchboxesForOwner(ctx context.Context, owner common.Address) ([]common.Address, error) {
	out, err := call(ctx, f.backend, f.abi, f.address, "getMatchboxesForOwner", owner)
	if err != nil {
		return nil, err
	}
	addrs, ok := out[0].([]common.Address)
	if !ok {
		return nil, fmt.Errorf("chain: getMatchboxesForOwner returned %T", out[0])
	}
	return addrs, nil
}
