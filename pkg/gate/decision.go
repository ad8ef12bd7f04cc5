package gate

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/group-gatekeeper/pkg/domain"
)

// Messenger is the outbound messaging capability: platform-level join
// request effects and direct messages. The transport implementation lives
// outside the core.
type Messenger interface {
	ApproveJoinRequest(ctx context.Context, userID int64) error
	DeclineJoinRequest(ctx context.Context, userID int64) error
	SendMessage(ctx context.Context, userID int64, text string) error
}

// JoinConfig holds decision engine configuration. The notification texts
// are injected so the core stays free of copy. InviteLink, when set, is
// appended to the declined DM so the user can re-request after verifying.
type JoinConfig struct {
	ApprovedText string
	DeclinedText string
	InviteLink   string
}

// JoinService decides join requests exactly once. The decision is recorded
// before the platform effect is attempted, so a crash in between surfaces
// the recorded decision to the retried event instead of deciding twice.
type JoinService struct {
	config        JoinConfig
	requests      JoinRequestStore
	verifications VerificationStore
	modes         *ModeService
	messenger     Messenger
	clock         Clock
	locks         *userLocks
	logger        *slog.Logger
}

// NewJoinService creates a new join request decision engine.
func NewJoinService(
	config JoinConfig,
	requests JoinRequestStore,
	verifications VerificationStore,
	modes *ModeService,
	messenger Messenger,
	clock Clock,
	logger *slog.Logger,
) *JoinService {
	return &JoinService{
		config:        config,
		requests:      requests,
		verifications: verifications,
		modes:         modes,
		messenger:     messenger,
		clock:         clock,
		locks:         newUserLocks(),
		logger:        logger,
	}
}

// JoinDecision is the outcome of a join request event.
type JoinDecision struct {
	Decision  domain.Decision
	Reason    domain.DecisionReason
	Duplicate bool
}

// Decide evaluates a join request. Policy, in order: redelivered occurrence
// -> prior decision with reason duplicate and no second platform call;
// lockdown -> decline; verified user -> approve; strict mode -> decline;
// otherwise the request stays pending for manual admin review.
func (s *JoinService) Decide(ctx context.Context, userID int64, requestedAt time.Time) (*JoinDecision, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	if prior, err := s.requests.Find(ctx, userID, requestedAt); err == nil {
		s.logger.Info("duplicate join request", "user_id", userID, "decision", prior.Decision)
		return &JoinDecision{
			Decision:  prior.Decision,
			Reason:    domain.ReasonDuplicate,
			Duplicate: true,
		}, nil
	} else if !errors.Is(err, domain.ErrJoinRequestNotFound) {
		return nil, err
	}

	mode := s.modes.Mode()
	state, err := s.verificationState(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	req := &domain.JoinRequest{
		ID:          uuid.New(),
		UserID:      userID,
		RequestedAt: requestedAt,
		CreatedAt:   now,
	}

	switch {
	case mode.Lockdown:
		req.Decision = domain.DecisionDeclined
		req.Reason = domain.ReasonLockdown
		req.DecidedAt = &now
	case state == domain.StateVerified:
		req.Decision = domain.DecisionApproved
		req.Reason = domain.ReasonVerified
		req.DecidedAt = &now
	case mode.Strict:
		req.Decision = domain.DecisionDeclined
		req.Reason = domain.ReasonStrictRejected
		req.DecidedAt = &now
	default:
		req.Decision = domain.DecisionPending
		req.Reason = domain.ReasonManualReview
	}

	if err := s.requests.Create(ctx, req); err != nil {
		if errors.Is(err, domain.ErrDuplicateJoinRequest) {
			// Lost the race against a concurrent delivery of the same
			// occurrence; surface its decision.
			prior, findErr := s.requests.Find(ctx, userID, requestedAt)
			if findErr != nil {
				return nil, findErr
			}
			return &JoinDecision{
				Decision:  prior.Decision,
				Reason:    domain.ReasonDuplicate,
				Duplicate: true,
			}, nil
		}
		return nil, err
	}

	s.logger.Info("join request decided",
		"user_id", userID, "decision", req.Decision, "reason", req.Reason)

	s.applyEffect(ctx, req)

	return &JoinDecision{Decision: req.Decision, Reason: req.Reason}, nil
}

// applyEffect carries out the platform-level approve/decline and the DM
// notification. Failures are logged, not returned: the decision is already
// recorded and the platform call is not retried for this occurrence.
func (s *JoinService) applyEffect(ctx context.Context, req *domain.JoinRequest) {
	switch req.Decision {
	case domain.DecisionApproved:
		if err := s.messenger.ApproveJoinRequest(ctx, req.UserID); err != nil {
			s.logger.Warn("failed to approve join request", "user_id", req.UserID, "error", err)
			return
		}
		if s.config.ApprovedText != "" {
			if err := s.messenger.SendMessage(ctx, req.UserID, s.config.ApprovedText); err != nil {
				s.logger.Warn("failed to DM approved user", "user_id", req.UserID, "error", err)
			}
		}
	case domain.DecisionDeclined:
		if err := s.messenger.DeclineJoinRequest(ctx, req.UserID); err != nil {
			s.logger.Warn("failed to decline join request", "user_id", req.UserID, "error", err)
			return
		}
		if text := s.declinedMessage(); text != "" {
			if err := s.messenger.SendMessage(ctx, req.UserID, text); err != nil {
				s.logger.Warn("failed to DM declined user", "user_id", req.UserID, "error", err)
			}
		}
	}
}

func (s *JoinService) declinedMessage() string {
	text := s.config.DeclinedText
	if text != "" && s.config.InviteLink != "" {
		text += "\n\n" + s.config.InviteLink
	}
	return text
}

func (s *JoinService) verificationState(ctx context.Context, userID int64) (domain.VerificationState, error) {
	rec, err := s.verifications.Get(ctx, userID)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return domain.StateUnstarted, nil
	}
	if err != nil {
		return "", err
	}
	return rec.State, nil
}
