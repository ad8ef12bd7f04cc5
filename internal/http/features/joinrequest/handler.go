package joinrequest

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/tendant/group-gatekeeper/internal/httputil"
	"github.com/tendant/group-gatekeeper/pkg/gate"
)

// Handler handles join request events posted by the transport adapter.
type Handler struct {
	logger *slog.Logger
	joins  *gate.JoinService
}

// NewHandler creates a new join request handler.
func NewHandler(logger *slog.Logger, joins *gate.JoinService) *Handler {
	return &Handler{logger: logger, joins: joins}
}

// DecideRequest represents a join request event. RequestedAt is the
// platform event timestamp in unix seconds and doubles as the idempotence
// key, so redelivery must carry the same value.
type DecideRequest struct {
	UserID      int64 `json:"user_id"`
	RequestedAt int64 `json:"requested_at"`
}

// DecideResponse carries the recorded decision.
type DecideResponse struct {
	Decision  string `json:"decision"`
	Reason    string `json:"reason"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

// Decide handles a join request event.
// POST /v1/join-requests
func (h *Handler) Decide(w http.ResponseWriter, r *http.Request) {
	var req DecideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == 0 {
		httputil.Error(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if req.RequestedAt == 0 {
		httputil.Error(w, http.StatusBadRequest, "requested_at is required")
		return
	}

	decision, err := h.joins.Decide(r.Context(), req.UserID, time.Unix(req.RequestedAt, 0))
	if err != nil {
		h.logger.Error("join request decision failed", "user_id", req.UserID, "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to decide join request")
		return
	}

	httputil.JSON(w, http.StatusOK, DecideResponse{
		Decision:  string(decision.Decision),
		Reason:    string(decision.Reason),
		Duplicate: decision.Duplicate,
	})
}
