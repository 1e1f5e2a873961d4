package handler

import (
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/matchbox/internal/domain"
	"github.com/alanyoungcy/matchbox/internal/sequence"
)

// SequenceHandler validates and encodes leg sequences without touching the
// chain.
type SequenceHandler struct {
	logger *slog.Logger
}

// NewSequenceHandler creates a SequenceHandler.
func NewSequenceHandler(logger *slog.Logger) *SequenceHandler {
	return &SequenceHandler{logger: logger}
}

type legsRequest struct {
	Owner string       `json:"owner,omitempty"`
	Legs  []domain.Leg `json:"legs"`
}

type validateResponse struct {
	Valid    bool              `json:"valid"`
	Error    string            `json:"error,omitempty"`
	LegIndex *int              `json:"legIndex,omitempty"`
	Rules    []domain.RuleView `json:"rules,omitempty"`
}

// Validate checks legs in order and, when valid, returns the encoded rules.
// An invalid sequence is still a 200; the body says which leg failed.
// POST /api/sequence/validate
func (h *SequenceHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req legsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	legs := sequence.DraftFrom(req.Legs).Legs()
	if verr := sequence.CheckSequence(legs); verr != nil {
		resp := validateResponse{Error: verr.Error()}
		if verr.Index >= 0 {
			idx := verr.Index
			resp.LegIndex = &idx
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	rules, err := sequence.EncodeSequence(legs)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: encode after validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	writeJSON(w, http.StatusOK, validateResponse{Valid: true, Rules: domain.Views(rules)})
}
