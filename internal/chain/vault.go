package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/alanyoungcy/matchbox/internal/domain"
	"github.com/alanyoungcy/matchbox/internal/sequence"
)

// Vault wraps one deployed Matchbox.
type Vault struct {
	address common.Address
	abi     abi.ABI
	backend Backend
	tx      *Transactor
}

// NewVault binds the vault at address. tx may be nil for read-only use.
func NewVault(address common.Address, backend Backend, tx *Transactor) (*Vault, error) {
	parsed, err := VaultABI()
	if err != nil {
		return nil, err
	}
	return &Vault{address: address, abi: parsed, backend: backend, tx: tx}, nil
}

// Address returns the vault address.
func (v *Vault) Address() common.Address { return v.address }

func (v *Vault) transact(ctx context.Context, method string, args ...any) (*types.Transaction, error) {
	if v.tx == nil {
		return nil, ErrReadOnly
	}
	data, err := v.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("chain: pack %s: %w", method, err)
	}
	return v.tx.Transact(ctx, v.address, data)
}

// InitializeSequence registers the encoded rules with the vault.
func (v *Vault) InitializeSequence(ctx context.Context, rules []domain.Rule) (*types.Transaction, error) {
	if len(rules) == 0 {
		return nil, fmt.Errorf("chain: initializeSequence: no rules")
	}
	return v.transact(ctx, "initializeSequence", rules)
}

// ExecuteFirstStep funds and starts the sequence. amountUSDC is a decimal
// string scaled to 6 decimals.
func (v *Vault) ExecuteFirstStep(ctx context.Context, amountUSDC string, orderData []byte) (*types.Transaction, error) {
	amount, err := sequence.ParseUnits(amountUSDC, sequence.USDCDecimals)
	if err != nil {
		return nil, fmt.Errorf("chain: executeFirstStep amount: %w", err)
	}
	if orderData == nil {
		orderData = []byte{}
	}
	return v.transact(ctx, "executeFirstStep", amount, orderData)
}

// WithdrawFunds withdraws amount of token from the vault to its owner.
func (v *Vault) WithdrawFunds(ctx context.Context, token common.Address, amount *big.Int) (*types.Transaction, error) {
	return v.transact(ctx, "withdrawFunds", token, amount)
}

// Sequence reads the registered rules.
func (v *Vault) Sequence(ctx context.Context) (rules []domain.Rule, err error) {
	out, err := call(ctx, v.backend, v.abi, v.address, "getSequence")
	if err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			rules, err = nil, fmt.Errorf("chain: getSequence returned %T", out[0])
		}
	}()
	return *abi.ConvertType(out[0], new([]domain.Rule)).(*[]domain.Rule), nil
}

// CurrentStep reads the index of the leg the vault is on.
func (v *Vault) CurrentStep(ctx context.Context) (*big.Int, error) {
	out, err := call(ctx, v.backend, v.abi, v.address, "currentStep")
	if err != nil {
		return nil, err
	}
	step, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("chain: currentStep returned %T", out[0])
	}
	return step, nil
}

// IsActive reads whether the sequence is still running.
func (v *Vault) IsActive(ctx context.Context) (bool, error) {
	out, err := call(ctx, v.backend, v.abi, v.address, "isActive")
	if err != nil {
		return false, err
	}
	active, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("chain: isActive returned %T", out[0])
	}
	return active, nil
}

// Status reads the vault's state in one go.
func (v *Vault) Status(ctx context.Context) (domain.VaultStatus, error) {
	active, err := v.IsActive(ctx)
	if err != nil {
		return domain.VaultStatus{}, err
	}
	step, err := v.CurrentStep(ctx)
	if err != nil {
		return domain.VaultStatus{}, err
	}
	rules, err := v.Sequence(ctx)
	if err != nil {
		return domain.VaultStatus{}, err
	}
	return domain.VaultStatus{
		Address:     v.address.Hex(),
		Active:      active,
		CurrentStep: step.Uint64(),
		Rules:       domain.Views(rules),
	}, nil
}
