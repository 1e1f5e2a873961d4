package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/matchbox/internal/domain"
)

// VaultService reads deployed vaults.
type VaultService interface {
	Status(ctx context.Context, address string) (domain.VaultStatus, error)
	ForOwner(ctx context.Context, owner string) ([]string, error)
}

// VaultHandler serves vault read endpoints.
type VaultHandler struct {
	vaults VaultService
	logger *slog.Logger
}

// NewVaultHandler creates a VaultHandler.
func NewVaultHandler(vaults VaultService, logger *slog.Logger) *VaultHandler {
	return &VaultHandler{vaults: vaults, logger: logger}
}

// Status returns a vault's active flag, current step and rules.
// GET /api/vaults/{address}
func (h *VaultHandler) Status(w http.ResponseWriter, r *http.Request) {
	addr := r.PathValue("address")
	st, err := h.vaults.Status(r.Context(), addr)
	if err != nil {
		h.writeChainError(w, r, addr, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// ForOwner lists the vaults created for an owner.
// GET /api/owners/{address}/vaults
func (h *VaultHandler) ForOwner(w http.ResponseWriter, r *http.Request) {
	addr := r.PathValue("address")
	vaults, err := h.vaults.ForOwner(r.Context(), addr)
	if err != nil {
		h.writeChainError(w, r, addr, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"owner": addr, "vaults": vaults})
}

func (h *VaultHandler) writeChainError(w http.ResponseWriter, r *http.Request, addr string, err error) {
	if errors.Is(err, domain.ErrInvalidAddress) {
		writeError(w, http.StatusBadRequest, "invalid address")
		return
	}
	h.logger.WarnContext(r.Context(), "handler: vault read failed",
		slog.String("address", addr),
		slog.String("error", err.Error()),
	)
	writeError(w, http.StatusBadGateway, "failed to read vault")
}
