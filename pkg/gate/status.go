package gate

import (
	"context"
	"time"

	"github.com/tendant/group-gatekeeper/pkg/domain"
)

// StatusService is the read-only admin projection over the stores and the
// mode flags. It never mutates and never blocks writers beyond the
// stores' own read paths.
type StatusService struct {
	verifications VerificationStore
	requests      JoinRequestStore
	modes         *ModeService
	clock         Clock
	challengeTTL  time.Duration
}

// NewStatusService creates a new status service.
func NewStatusService(
	verifications VerificationStore,
	requests JoinRequestStore,
	modes *ModeService,
	clock Clock,
	challengeTTL time.Duration,
) *StatusService {
	if challengeTTL == 0 {
		challengeTTL = DefaultChallengeTTL
	}
	return &StatusService{
		verifications: verifications,
		requests:      requests,
		modes:         modes,
		clock:         clock,
		challengeTTL:  challengeTTL,
	}
}

// Status returns counts per state (challenge expiry computed lazily
// against the current clock), verifications in the last 24h, pending join
// requests, and the current flags.
func (s *StatusService) Status(ctx context.Context) (*domain.Status, error) {
	now := s.clock.Now()

	states, err := s.verifications.CountByState(ctx, now, s.challengeTTL)
	if err != nil {
		return nil, err
	}
	verified24h, err := s.verifications.CountVerifiedSince(ctx, now.Add(-24*time.Hour))
	if err != nil {
		return nil, err
	}
	pending, err := s.requests.CountPending(ctx)
	if err != nil {
		return nil, err
	}

	mode := s.modes.Mode()
	return &domain.Status{
		States:              states,
		VerifiedLast24h:     verified24h,
		PendingJoinRequests: pending,
		Lockdown:            mode.Lockdown,
		Strict:              mode.Strict,
	}, nil
}
