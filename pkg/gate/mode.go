package gate

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/tendant/group-gatekeeper/pkg/domain"
)

// Settings keys for the persisted flags.
const (
	settingLockdown = "lockdown"
	settingStrict   = "strict_mode"
)

// TOTP parameters for the lockdown step-up check.
const (
	totpPeriod = 30
	totpWindow = 1 // Allow +-30 seconds clock drift
)

// ModeConfig holds mode controller configuration. AdminIDs is the set of
// platform user ids allowed to issue admin commands; TOTPSecret, when set,
// requires a valid code on lockdown toggles.
type ModeConfig struct {
	AdminIDs   []int64
	TOTPSecret string

	// Defaults used until an admin writes a flag to the settings store.
	DefaultLockdown bool
	DefaultStrict   bool
}

// ModeService owns the process-wide lockdown/strict flags. Reads are
// snapshots under a read lock; writes are serialized, persisted to the
// settings store, and take effect for subsequently evaluated join requests
// only.
type ModeService struct {
	config   ModeConfig
	admins   map[int64]struct{}
	settings SettingsStore
	clock    Clock
	logger   *slog.Logger

	mu   sync.RWMutex
	mode domain.Mode
}

// NewModeService creates a new mode controller with the configured
// defaults in effect.
func NewModeService(config ModeConfig, settings SettingsStore, clock Clock, logger *slog.Logger) *ModeService {
	admins := make(map[int64]struct{}, len(config.AdminIDs))
	for _, id := range config.AdminIDs {
		admins[id] = struct{}{}
	}
	return &ModeService{
		config:   config,
		admins:   admins,
		settings: settings,
		clock:    clock,
		logger:   logger,
		mode: domain.Mode{
			Lockdown: config.DefaultLockdown,
			Strict:   config.DefaultStrict,
		},
	}
}

// Load restores persisted flags, falling back to the configured defaults
// for keys never written.
func (s *ModeService) Load(ctx context.Context) error {
	mode := domain.Mode{
		Lockdown: s.config.DefaultLockdown,
		Strict:   s.config.DefaultStrict,
	}

	if val, ok, err := s.settings.Get(ctx, settingLockdown); err != nil {
		return err
	} else if ok {
		mode.Lockdown = val == "1"
	}
	if val, ok, err := s.settings.Get(ctx, settingStrict); err != nil {
		return err
	} else if ok {
		mode.Strict = val == "1"
	}

	s.mu.Lock()
	s.mode = mode
	s.mu.Unlock()

	s.logger.Info("runtime mode loaded", "lockdown", mode.Lockdown, "strict", mode.Strict)
	return nil
}

// Mode returns a snapshot of the current flags.
func (s *ModeService) Mode() domain.Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// IsAdmin reports whether the sender is in the admin set.
func (s *ModeService) IsAdmin(adminID int64) bool {
	_, ok := s.admins[adminID]
	return ok
}

// SetLockdown toggles lockdown. When a TOTP secret is configured the
// caller must present a valid code; a global decline-everything switch
// warrants the step-up.
func (s *ModeService) SetLockdown(ctx context.Context, adminID int64, on bool, totpCode string) error {
	if !s.IsAdmin(adminID) {
		return domain.ErrNotAuthorized
	}
	if s.config.TOTPSecret != "" {
		valid, err := totp.ValidateCustom(totpCode, s.config.TOTPSecret, s.clock.Now(), totp.ValidateOpts{
			Period:    totpPeriod,
			Skew:      totpWindow,
			Digits:    otp.DigitsSix,
			Algorithm: otp.AlgorithmSHA1,
		})
		if err != nil || !valid {
			return domain.ErrInvalidTOTPCode
		}
	}

	if err := s.persist(ctx, settingLockdown, on); err != nil {
		return err
	}

	s.mu.Lock()
	s.mode.Lockdown = on
	s.mu.Unlock()

	s.logger.Info("lockdown changed", "admin_id", adminID, "lockdown", on)
	return nil
}

// SetStrict switches between strict and soft handling of unverified users'
// join requests.
func (s *ModeService) SetStrict(ctx context.Context, adminID int64, strict bool) error {
	if !s.IsAdmin(adminID) {
		return domain.ErrNotAuthorized
	}

	if err := s.persist(ctx, settingStrict, strict); err != nil {
		return err
	}

	s.mu.Lock()
	s.mode.Strict = strict
	s.mu.Unlock()

	s.logger.Info("strict mode changed", "admin_id", adminID, "strict", strict)
	return nil
}

func (s *ModeService) persist(ctx context.Context, key string, on bool) error {
	val := "0"
	if on {
		val = "1"
	}
	return s.settings.Set(ctx, key, val)
}
