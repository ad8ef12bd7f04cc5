package admin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tendant/group-gatekeeper/internal/http/middleware"
	"github.com/tendant/group-gatekeeper/internal/httputil"
	"github.com/tendant/group-gatekeeper/pkg/domain"
	"github.com/tendant/group-gatekeeper/pkg/gate"
)

// Handler handles the authenticated admin surface.
type Handler struct {
	logger       *slog.Logger
	modes        *gate.ModeService
	status       *gate.StatusService
	verification *gate.VerificationService
}

// NewHandler creates a new admin handler.
func NewHandler(logger *slog.Logger, modes *gate.ModeService, status *gate.StatusService, verification *gate.VerificationService) *Handler {
	return &Handler{
		logger:       logger,
		modes:        modes,
		status:       status,
		verification: verification,
	}
}

// LockdownRequest toggles lockdown. TOTPCode is required when a step-up
// secret is configured.
type LockdownRequest struct {
	On       bool   `json:"on"`
	TOTPCode string `json:"totp_code"`
}

// ModeRequest switches between strict and soft mode.
type ModeRequest struct {
	Strict bool `json:"strict"`
}

// BlockRequest blocks a user from the lobby.
type BlockRequest struct {
	UserID int64 `json:"user_id"`
}

// SetLockdown toggles lockdown mode.
// PUT /v1/admin/lockdown
func (h *Handler) SetLockdown(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.GetAdminID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req LockdownRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.modes.SetLockdown(r.Context(), adminID, req.On, req.TOTPCode); err != nil {
		h.writeAdminError(w, adminID, err)
		return
	}

	httputil.JSON(w, http.StatusOK, h.modes.Mode())
}

// SetMode switches between strict and soft mode.
// PUT /v1/admin/mode
func (h *Handler) SetMode(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.GetAdminID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req ModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.modes.SetStrict(r.Context(), adminID, req.Strict); err != nil {
		h.writeAdminError(w, adminID, err)
		return
	}

	httputil.JSON(w, http.StatusOK, h.modes.Mode())
}

// Block marks a user as blocked in the lobby state machine.
// PUT /v1/admin/block
func (h *Handler) Block(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.GetAdminID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	if !h.modes.IsAdmin(adminID) {
		h.writeAdminError(w, adminID, domain.ErrNotAuthorized)
		return
	}

	var req BlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == 0 {
		httputil.Error(w, http.StatusBadRequest, "user_id is required")
		return
	}

	if err := h.verification.Block(r.Context(), req.UserID); err != nil {
		h.logger.Error("failed to block user", "user_id", req.UserID, "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to block user")
		return
	}

	h.logger.Info("admin blocked user", "admin_id", adminID, "user_id", req.UserID)
	httputil.JSON(w, http.StatusOK, map[string]string{"state": string(domain.StateBlocked)})
}

// Status returns the admin status projection.
// GET /v1/admin/status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.GetAdminID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	if !h.modes.IsAdmin(adminID) {
		h.writeAdminError(w, adminID, domain.ErrNotAuthorized)
		return
	}

	status, err := h.status.Status(r.Context())
	if err != nil {
		h.logger.Error("failed to build status", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to build status")
		return
	}

	httputil.JSON(w, http.StatusOK, status)
}

func (h *Handler) writeAdminError(w http.ResponseWriter, adminID int64, err error) {
	switch {
	case errors.Is(err, domain.ErrNotAuthorized):
		h.logger.Warn("unauthorized admin command", "admin_id", adminID)
		httputil.Error(w, http.StatusForbidden, "not authorized")
	case errors.Is(err, domain.ErrInvalidTOTPCode):
		h.logger.Warn("admin command with bad TOTP code", "admin_id", adminID)
		httputil.Error(w, http.StatusForbidden, "invalid or missing TOTP code")
	default:
		h.logger.Error("admin command failed", "admin_id", adminID, "error", err)
		httputil.Error(w, http.StatusInternalServerError, "admin command failed")
	}
}
