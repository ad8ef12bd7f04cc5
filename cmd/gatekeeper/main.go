package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/tendant/group-gatekeeper/internal/config"
	httpserver "github.com/tendant/group-gatekeeper/internal/http"
	"github.com/tendant/group-gatekeeper/internal/notification"
	"github.com/tendant/group-gatekeeper/internal/texts"
	"github.com/tendant/group-gatekeeper/pkg/gate"
	"github.com/tendant/group-gatekeeper/pkg/repository"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Connect to database
	db, err := repository.NewDB(repository.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		DBName:   cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	logger.Info("connected to database")

	// Initialize repositories
	verificationsRepo := repository.NewVerificationsRepository(db)
	joinRequestsRepo := repository.NewJoinRequestsRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)

	clock := gate.RealClock()

	// Initialize services
	generator, err := gate.NewChallengeGenerator(
		texts.Challenges,
		texts.Decoys,
		rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	)
	if err != nil {
		logger.Error("failed to build challenge generator", "error", err)
		os.Exit(1)
	}

	verificationService := gate.NewVerificationService(gate.VerificationConfig{
		ChallengeTTL: cfg.VerifyTTL,
		Cooldown:     cfg.Cooldown,
		MaxAttempts:  cfg.MaxAttempts,
	}, verificationsRepo, generator, clock, logger)

	modeService := gate.NewModeService(gate.ModeConfig{
		AdminIDs:        cfg.AdminIDs,
		TOTPSecret:      cfg.AdminTOTPSecret,
		DefaultLockdown: cfg.Lockdown,
		DefaultStrict:   cfg.StrictMode,
	}, settingsRepo, clock, logger)
	if err := modeService.Load(context.Background()); err != nil {
		logger.Error("failed to load runtime mode", "error", err)
		os.Exit(1)
	}

	messenger := notification.NewTelegramService(notification.TelegramConfig{
		Token:  cfg.BotToken,
		ChatID: cfg.GroupChatID,
	})

	joinService := gate.NewJoinService(gate.JoinConfig{
		ApprovedText: texts.Approved,
		DeclinedText: texts.DeclinedVerifyFirst,
		InviteLink:   cfg.InviteLink,
	}, joinRequestsRepo, verificationsRepo, modeService, messenger, clock, logger)

	statusService := gate.NewStatusService(verificationsRepo, joinRequestsRepo, modeService, clock, cfg.VerifyTTL)

	throttle := gate.NewThrottle(cfg.EventThrottleEvery, 1, clock)

	// Create router
	router := httpserver.NewRouter(httpserver.RouterConfig{
		Logger:              logger,
		VerificationService: verificationService,
		JoinService:         joinService,
		ModeService:         modeService,
		StatusService:       statusService,
		Throttle:            throttle,
		JWTSecret:           []byte(cfg.JWTSecret),
		JWTIssuer:           cfg.JWTIssuer,
		RateLimitConfig:     cfg.RateLimit,
		MaxRequestBodySize:  cfg.MaxRequestBodySize,
	})

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.ServerAddr, cfg.ServerPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
}
