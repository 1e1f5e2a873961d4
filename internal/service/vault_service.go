package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/matchbox/internal/domain"
)

const vaultStatusTTL = 5 * time.Second

// VaultReader reads on-chain vault state.
type VaultReader interface {
	VaultStatus(ctx context.Context, vault common.Address) (domain.VaultStatus, error)
	VaultsForOwner(ctx context.Context, owner common.Address) ([]common.Address, error)
}

// VaultService serves vault reads, briefly caching status so dashboards
// polling the same vault share one RPC round.
type VaultService struct {
	reader VaultReader
	cache  domain.ResponseCache
	logger *slog.Logger
}

// NewVaultService creates a VaultService. cache may be nil.
func NewVaultService(reader VaultReader, cache domain.ResponseCache, logger *slog.Logger) *VaultService {
	return &VaultService{
		reader: reader,
		cache:  cache,
		logger: logger.With(slog.String("component", "vault_service")),
	}
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("vault_service: %q: %w", s, domain.ErrInvalidAddress)
	}
	return common.HexToAddress(s), nil
}

// Status returns the state of the vault at address.
func (s *VaultService) Status(ctx context.Context, address string) (domain.VaultStatus, error) {
	addr, err := parseAddress(address)
	if err != nil {
		return domain.VaultStatus{}, err
	}
	key := "vault:" + addr.Hex()

	if s.cache != nil {
		if body, err := s.cache.Get(ctx, key); err == nil {
			var st domain.VaultStatus
			if json.Unmarshal(body, &st) == nil {
				return st, nil
			}
		} else if !errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "vault_service: cache read failed", slog.String("error", err.Error()))
		}
	}

	st, err := s.reader.VaultStatus(ctx, addr)
	if err != nil {
		return domain.VaultStatus{}, fmt.Errorf("vault_service: status %s: %w", addr.Hex(), err)
	}

	if s.cache != nil {
		if body, err := json.Marshal(st); err == nil {
			if err := s.cache.Set(ctx, key, body, vaultStatusTTL); err != nil {
				s.logger.WarnContext(ctx, "vault_service: cache write failed", slog.String("error", err.Error()))
			}
		}
	}
	return st, nil
}

// ForOwner lists the vault addresses the factory created for owner.
func (s *VaultService) ForOwner(ctx context.Context, owner string) ([]string, error) {
	addr, err := parseAddress(owner)
	if err != nil {
		return nil, err
	}
	vaults, err := s.reader.VaultsForOwner(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("vault_service: vaults for %s: %w", addr.Hex(), err)
	}
	out := make([]string, len(vaults))
	for i, v := range vaults {
		out[i] = v.Hex()
	}
	return out, nil
}
