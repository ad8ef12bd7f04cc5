package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tendant/group-gatekeeper/internal/config"
	"github.com/tendant/group-gatekeeper/internal/http/features/admin"
	"github.com/tendant/group-gatekeeper/internal/http/features/joinrequest"
	"github.com/tendant/group-gatekeeper/internal/http/features/lobby"
	"github.com/tendant/group-gatekeeper/internal/http/middleware"
	"github.com/tendant/group-gatekeeper/internal/httputil"
	"github.com/tendant/group-gatekeeper/pkg/gate"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Logger              *slog.Logger
	VerificationService *gate.VerificationService
	JoinService         *gate.JoinService
	ModeService         *gate.ModeService
	StatusService       *gate.StatusService
	Throttle            *gate.Throttle
	JWTSecret           []byte
	JWTIssuer           string
	RateLimitConfig     config.RateLimitConfig
	MaxRequestBodySize  int64
}

// NewRouter creates a new HTTP router with all routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(middleware.Recover(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.RequestSizeLimit(cfg.MaxRequestBodySize))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	rateLimiters := middleware.CreateRateLimiters(cfg.RateLimitConfig, cfg.Logger)

	// Lobby verification events
	lobbyHandler := lobby.NewHandler(cfg.Logger, cfg.VerificationService, cfg.Throttle)
	joinHandler := joinrequest.NewHandler(cfg.Logger, cfg.JoinService)
	r.Group(func(r chi.Router) {
		r.Use(rateLimiters["events"])
		r.Post("/v1/lobby/start", lobbyHandler.Start)
		r.Post("/v1/lobby/agree", lobbyHandler.Agree)
		r.Post("/v1/lobby/answer", lobbyHandler.Answer)
		r.Post("/v1/join-requests", joinHandler.Decide)
	})

	// Admin surface
	adminHandler := admin.NewHandler(cfg.Logger, cfg.ModeService, cfg.StatusService, cfg.VerificationService)
	r.Group(func(r chi.Router) {
		r.Use(rateLimiters["admin"])
		r.Use(middleware.AdminAuth(cfg.JWTSecret, cfg.JWTIssuer))
		r.Put("/v1/admin/lockdown", adminHandler.SetLockdown)
		r.Put("/v1/admin/mode", adminHandler.SetMode)
		r.Put("/v1/admin/block", adminHandler.Block)
		r.Get("/v1/admin/status", adminHandler.Status)
	})

	return r
}
