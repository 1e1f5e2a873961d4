package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/matchbox/internal/domain"
	"github.com/alanyoungcy/matchbox/internal/service"
)

// DeployService is the part of the deployment service the handlers use.
type DeployService interface {
	Start(ctx context.Context, owner string, legs []domain.Leg) (domain.Deployment, error)
	Get(ctx context.Context, id string) (domain.Deployment, error)
	List(ctx context.Context, owner string, opts domain.ListOpts) ([]domain.Deployment, error)
	Events(ctx context.Context, id, lastID string, count int) ([]domain.DeployEvent, error)
	Reset(ctx context.Context, id string) (domain.Deployment, error)
}

// DeployHandler serves the deployment endpoints.
type DeployHandler struct {
	deploys DeployService
	logger  *slog.Logger
}

// NewDeployHandler creates a DeployHandler.
func NewDeployHandler(deploys DeployService, logger *slog.Logger) *DeployHandler {
	return &DeployHandler{deploys: deploys, logger: logger}
}

// Create starts a deployment and returns it in the creating phase.
// POST /api/deployments {"owner":"0x..","legs":[...]}
func (h *DeployHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req legsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	d, err := h.deploys.Start(r.Context(), req.Owner, req.Legs)
	if err != nil {
		switch {
		case service.IsInputError(err):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, domain.ErrLockHeld):
			writeError(w, http.StatusConflict, "a deployment for this owner is already running")
		default:
			h.logger.ErrorContext(r.Context(), "handler: start deployment failed",
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to start deployment")
		}
		return
	}
	writeJSON(w, http.StatusAccepted, d)
}

// Get returns the current state of one deployment.
// GET /api/deployments/{id}
func (h *DeployHandler) Get(w http.ResponseWriter, r *http.Request) {
	d, err := h.deploys.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeLookupError(w, r, "get deployment", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// List returns an owner's deployments, newest first.
// GET /api/deployments?owner=0x..&limit=50&offset=0
func (h *DeployHandler) List(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		writeError(w, http.StatusBadRequest, "missing owner")
		return
	}
	list, err := h.deploys.List(r.Context(), owner, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list deployments failed",
			slog.String("owner", owner),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list deployments")
		return
	}
	if list == nil {
		list = []domain.Deployment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"deployments": list})
}

// Events returns the recorded phase events of a deployment.
// GET /api/deployments/{id}/events?after=<stream id>
func (h *DeployHandler) Events(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.deploys.Get(r.Context(), id); err != nil {
		h.writeLookupError(w, r, "deployment events", err)
		return
	}
	events, err := h.deploys.Events(r.Context(), id, r.URL.Query().Get("after"), 0)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: read deployment events failed",
			slog.String("deployment_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to read events")
		return
	}
	if events == nil {
		events = []domain.DeployEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

// Reset returns an errored deployment to idle.
// POST /api/deployments/{id}/reset
func (h *DeployHandler) Reset(w http.ResponseWriter, r *http.Request) {
	d, err := h.deploys.Reset(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidPhase) {
			writeError(w, http.StatusConflict, "only a failed deployment can be reset")
			return
		}
		h.writeLookupError(w, r, "reset deployment", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *DeployHandler) writeLookupError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "deployment not found")
		return
	}
	h.logger.ErrorContext(r.Context(), "handler: "+op+" failed", slog.String("error", err.Error()))
	writeError(w, http.StatusInternalServerError, msgInternal)
}
