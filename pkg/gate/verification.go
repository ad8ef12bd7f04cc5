package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tendant/group-gatekeeper/pkg/domain"
)

// Default thresholds, overridable via configuration.
const (
	DefaultChallengeTTL = 5 * time.Minute
	DefaultCooldown     = 10 * time.Minute
	DefaultMaxAttempts  = 3
)

// VerificationConfig holds verification state machine configuration.
type VerificationConfig struct {
	ChallengeTTL time.Duration
	Cooldown     time.Duration
	MaxAttempts  int
}

// VerificationService advances a user's record through
// agreement -> captcha -> verified in response to lobby events. All
// transitions for one user are serialized behind a per-user mutex; the
// store's version check catches anything that slips past it.
type VerificationService struct {
	config VerificationConfig
	store  VerificationStore
	gen    *ChallengeGenerator
	clock  Clock
	locks  *userLocks
	logger *slog.Logger
}

// NewVerificationService creates a new verification service.
func NewVerificationService(
	config VerificationConfig,
	store VerificationStore,
	gen *ChallengeGenerator,
	clock Clock,
	logger *slog.Logger,
) *VerificationService {
	if config.ChallengeTTL == 0 {
		config.ChallengeTTL = DefaultChallengeTTL
	}
	if config.Cooldown == 0 {
		config.Cooldown = DefaultCooldown
	}
	if config.MaxAttempts == 0 {
		config.MaxAttempts = DefaultMaxAttempts
	}
	return &VerificationService{
		config: config,
		store:  store,
		gen:    gen,
		clock:  clock,
		locks:  newUserLocks(),
		logger: logger,
	}
}

// AnswerOutcome classifies the result of a captcha answer.
type AnswerOutcome string

const (
	OutcomeVerified       AnswerOutcome = "verified"
	OutcomeWrong          AnswerOutcome = "wrong"
	OutcomeExpired        AnswerOutcome = "expired"
	OutcomeCooldownActive AnswerOutcome = "cooldown_active"
)

// AgreeResult is the outcome of an agreement event. Challenge is set on
// success; RetryAfter is set when an active cooldown blocks the
// transition.
type AgreeResult struct {
	Challenge  *domain.Challenge
	RetryAfter time.Duration
}

// AnswerResult is the outcome of a captcha answer. Challenge carries the
// reissued challenge for WRONG (below the attempt limit) and EXPIRED.
type AnswerResult struct {
	Outcome      AnswerOutcome
	Challenge    *domain.Challenge
	AttemptsLeft int
	RetryAfter   time.Duration
}

// Start handles first contact: the record is created lazily and moves
// UNSTARTED -> AWAITING_AGREEMENT. Repeated starts are a no-op returning
// the current state, since the platform redelivers events.
func (s *VerificationService) Start(ctx context.Context, userID int64) (domain.VerificationState, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	rec, err := s.ensure(ctx, userID)
	if err != nil {
		return "", err
	}

	if rec.State != domain.StateUnstarted {
		return rec.State, nil
	}

	rec.State = domain.StateAwaitingAgreement
	if err := s.save(ctx, rec); err != nil {
		return "", err
	}

	s.logger.Info("user entered lobby", "user_id", userID)
	return rec.State, nil
}

// Agree handles the user accepting the rules:
// AWAITING_AGREEMENT -> AWAITING_CAPTCHA with a fresh challenge. An active
// cooldown blocks the transition (RetryAfter is returned instead).
func (s *VerificationService) Agree(ctx context.Context, userID int64) (*AgreeResult, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	rec, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()

	if rec.State == domain.StateBlocked {
		return nil, domain.ErrUserBlocked
	}
	if rec.CooldownActive(now) {
		return &AgreeResult{RetryAfter: rec.CooldownRemaining(now)}, nil
	}
	if rec.State != domain.StateAwaitingAgreement {
		return nil, fmt.Errorf("agree in state %s: %w", rec.State, domain.ErrInvalidTransition)
	}

	challenge := s.gen.Generate()
	rec.State = domain.StateAwaitingCaptcha
	rec.Attempts = 0
	rec.ChallengeAnswer = &challenge.Answer
	rec.ChallengeIssuedAt = &now
	rec.CooldownUntil = nil

	if err := s.save(ctx, rec); err != nil {
		return nil, err
	}

	s.logger.Info("challenge issued", "user_id", userID)
	return &AgreeResult{Challenge: &challenge}, nil
}

// Answer evaluates a captcha answer submitted at the given event time.
// Outcomes:
//   - COOLDOWN_ACTIVE while the attempt lockout is in force;
//   - EXPIRED when the answering window elapsed: a fresh challenge is
//     issued silently and the attempt counter is not touched;
//   - VERIFIED for a correct in-window answer;
//   - WRONG otherwise: the counter increments, a fresh challenge is issued
//     below the limit, and at the limit the cooldown starts while the
//     stored challenge is retained.
//
// An elapsed cooldown is cleared lazily here: attempts reset and the
// retained challenge's window re-opens before the answer is evaluated.
func (s *VerificationService) Answer(ctx context.Context, userID int64, option string, at time.Time) (*AnswerResult, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	rec, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := at
	if now.IsZero() {
		now = s.clock.Now()
	}

	if rec.State == domain.StateBlocked {
		return nil, domain.ErrUserBlocked
	}
	if rec.State != domain.StateAwaitingCaptcha {
		return nil, fmt.Errorf("answer in state %s: %w", rec.State, domain.ErrInvalidTransition)
	}

	if rec.CooldownUntil != nil {
		if rec.CooldownActive(now) {
			return &AnswerResult{
				Outcome:    OutcomeCooldownActive,
				RetryAfter: rec.CooldownRemaining(now),
			}, nil
		}
		rec.CooldownUntil = nil
		rec.Attempts = 0
		rec.ChallengeIssuedAt = &now
	}

	if rec.ChallengeExpired(now, s.config.ChallengeTTL) {
		challenge := s.gen.Generate()
		rec.ChallengeAnswer = &challenge.Answer
		rec.ChallengeIssuedAt = &now
		if err := s.save(ctx, rec); err != nil {
			return nil, err
		}
		s.logger.Info("challenge expired, reissued", "user_id", userID)
		return &AnswerResult{
			Outcome:      OutcomeExpired,
			Challenge:    &challenge,
			AttemptsLeft: s.config.MaxAttempts - rec.Attempts,
		}, nil
	}

	if option == *rec.ChallengeAnswer {
		rec.State = domain.StateVerified
		rec.VerifiedAt = &now
		rec.Attempts = 0
		rec.ChallengeAnswer = nil
		rec.ChallengeIssuedAt = nil
		rec.CooldownUntil = nil
		if err := s.save(ctx, rec); err != nil {
			return nil, err
		}
		s.logger.Info("user verified", "user_id", userID)
		return &AnswerResult{Outcome: OutcomeVerified}, nil
	}

	rec.Attempts++
	if rec.Attempts >= s.config.MaxAttempts {
		cooldownUntil := now.Add(s.config.Cooldown)
		rec.CooldownUntil = &cooldownUntil
		if err := s.save(ctx, rec); err != nil {
			return nil, err
		}
		s.logger.Info("attempts exhausted, cooldown started",
			"user_id", userID, "cooldown_until", cooldownUntil)
		return &AnswerResult{
			Outcome:    OutcomeWrong,
			RetryAfter: s.config.Cooldown,
		}, nil
	}

	challenge := s.gen.Generate()
	rec.ChallengeAnswer = &challenge.Answer
	rec.ChallengeIssuedAt = &now
	if err := s.save(ctx, rec); err != nil {
		return nil, err
	}
	s.logger.Info("wrong answer, challenge reissued",
		"user_id", userID, "attempts", rec.Attempts)
	return &AnswerResult{
		Outcome:      OutcomeWrong,
		Challenge:    &challenge,
		AttemptsLeft: s.config.MaxAttempts - rec.Attempts,
	}, nil
}

// Block marks a user as blocked (terminal, admin action). Every later
// lobby event for the user is rejected with ErrUserBlocked.
func (s *VerificationService) Block(ctx context.Context, userID int64) error {
	unlock := s.locks.lock(userID)
	defer unlock()

	rec, err := s.ensure(ctx, userID)
	if err != nil {
		return err
	}
	if rec.State == domain.StateBlocked {
		return nil
	}

	rec.State = domain.StateBlocked
	rec.Attempts = 0
	rec.ChallengeAnswer = nil
	rec.ChallengeIssuedAt = nil
	rec.VerifiedAt = nil
	rec.CooldownUntil = nil
	if err := s.save(ctx, rec); err != nil {
		return err
	}

	s.logger.Info("user blocked", "user_id", userID)
	return nil
}

// State returns the user's current state, treating unknown users as
// UNSTARTED.
func (s *VerificationService) State(ctx context.Context, userID int64) (domain.VerificationState, error) {
	rec, err := s.store.Get(ctx, userID)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return domain.StateUnstarted, nil
	}
	if err != nil {
		return "", err
	}
	return rec.State, nil
}

// ensure fetches the user's record, creating the UNSTARTED row on first
// contact. A concurrent create is resolved by re-reading.
func (s *VerificationService) ensure(ctx context.Context, userID int64) (*domain.VerificationRecord, error) {
	rec, err := s.store.Get(ctx, userID)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, domain.ErrRecordNotFound) {
		return nil, err
	}

	now := s.clock.Now()
	rec = &domain.VerificationRecord{
		UserID:    userID,
		State:     domain.StateUnstarted,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = s.store.Create(ctx, rec)
	if errors.Is(err, domain.ErrRecordExists) {
		return s.store.Get(ctx, userID)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// save validates the record shape and writes it back under the version it
// was read at.
func (s *VerificationService) save(ctx context.Context, rec *domain.VerificationRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	rec.UpdatedAt = s.clock.Now()
	return s.store.Update(ctx, rec)
}
