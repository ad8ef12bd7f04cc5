package lobby

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/tendant/group-gatekeeper/internal/httputil"
	"github.com/tendant/group-gatekeeper/pkg/domain"
	"github.com/tendant/group-gatekeeper/pkg/gate"
)

// Handler handles lobby verification events posted by the transport
// adapter.
type Handler struct {
	logger       *slog.Logger
	verification *gate.VerificationService
	throttle     *gate.Throttle
}

// NewHandler creates a new lobby handler.
func NewHandler(logger *slog.Logger, verification *gate.VerificationService, throttle *gate.Throttle) *Handler {
	return &Handler{
		logger:       logger,
		verification: verification,
		throttle:     throttle,
	}
}

// StartRequest represents a first-contact event.
type StartRequest struct {
	UserID int64 `json:"user_id"`
}

// AgreeRequest represents a rules-agreement event.
type AgreeRequest struct {
	UserID int64 `json:"user_id"`
}

// AnswerRequest represents a captcha answer event. At is the platform
// event timestamp in unix seconds; zero falls back to server time.
type AnswerRequest struct {
	UserID int64  `json:"user_id"`
	Option string `json:"option"`
	At     int64  `json:"at"`
}

// ChallengeResponse is the challenge as presented to the user. The correct
// option never leaves the core.
type ChallengeResponse struct {
	PromptEN string   `json:"prompt_en"`
	PromptRU string   `json:"prompt_ru"`
	Options  []string `json:"options"`
}

// Start handles first contact.
// POST /v1/lobby/start
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == 0 {
		httputil.Error(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if !h.throttle.Allow(req.UserID) {
		httputil.Error(w, http.StatusTooManyRequests, "slow down")
		return
	}

	state, err := h.verification.Start(r.Context(), req.UserID)
	if err != nil {
		h.writeVerificationError(w, req.UserID, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"state": string(state)})
}

// Agree handles rules agreement and returns the issued challenge.
// POST /v1/lobby/agree
func (h *Handler) Agree(w http.ResponseWriter, r *http.Request) {
	var req AgreeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == 0 {
		httputil.Error(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if !h.throttle.Allow(req.UserID) {
		httputil.Error(w, http.StatusTooManyRequests, "slow down")
		return
	}

	result, err := h.verification.Agree(r.Context(), req.UserID)
	if err != nil {
		h.writeVerificationError(w, req.UserID, err)
		return
	}

	if result.Challenge == nil {
		httputil.JSON(w, http.StatusOK, map[string]any{
			"outcome":             string(gate.OutcomeCooldownActive),
			"retry_after_seconds": int(result.RetryAfter.Seconds()),
		})
		return
	}
	httputil.JSON(w, http.StatusOK, map[string]any{
		"challenge": toChallengeResponse(result.Challenge),
	})
}

// Answer handles a captcha answer.
// POST /v1/lobby/answer
func (h *Handler) Answer(w http.ResponseWriter, r *http.Request) {
	var req AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == 0 {
		httputil.Error(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if req.Option == "" {
		httputil.Error(w, http.StatusBadRequest, "option is required")
		return
	}
	if !h.throttle.Allow(req.UserID) {
		httputil.Error(w, http.StatusTooManyRequests, "slow down")
		return
	}

	var at time.Time
	if req.At != 0 {
		at = time.Unix(req.At, 0)
	}

	result, err := h.verification.Answer(r.Context(), req.UserID, req.Option, at)
	if err != nil {
		h.writeVerificationError(w, req.UserID, err)
		return
	}

	resp := map[string]any{"outcome": string(result.Outcome)}
	if result.Challenge != nil {
		resp["challenge"] = toChallengeResponse(result.Challenge)
	}
	if result.Outcome == gate.OutcomeWrong || result.Outcome == gate.OutcomeExpired {
		resp["attempts_left"] = result.AttemptsLeft
	}
	if result.RetryAfter > 0 {
		resp["retry_after_seconds"] = int(result.RetryAfter.Seconds())
	}
	httputil.JSON(w, http.StatusOK, resp)
}

// writeVerificationError maps state machine errors. Invalid transitions
// are expected under redelivery: logged, answered with 409, never a crash.
func (h *Handler) writeVerificationError(w http.ResponseWriter, userID int64, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidTransition):
		h.logger.Info("ignoring event in wrong state", "user_id", userID, "error", err)
		httputil.Error(w, http.StatusConflict, "event not permitted in current state")
	case errors.Is(err, domain.ErrRecordNotFound):
		httputil.Error(w, http.StatusConflict, "user has not started verification")
	case errors.Is(err, domain.ErrUserBlocked):
		httputil.Error(w, http.StatusForbidden, "user is blocked")
	default:
		h.logger.Error("verification event failed", "user_id", userID, "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to process event")
	}
}

func toChallengeResponse(c *domain.Challenge) ChallengeResponse {
	return ChallengeResponse{
		PromptEN: c.PromptEN,
		PromptRU: c.PromptRU,
		Options:  c.Options,
	}
}
