package domain

import (
	"fmt"
	"time"
)

// VerificationState is the lobby state of a single user.
type VerificationState string

const (
	StateUnstarted         VerificationState = "unstarted"
	StateAwaitingAgreement VerificationState = "awaiting_agreement"
	StateAwaitingCaptcha   VerificationState = "awaiting_captcha"
	StateVerified          VerificationState = "verified"
	StateBlocked           VerificationState = "blocked"
)

// VerificationRecord is the single source of truth for a user's progress
// through the lobby. Exactly one record exists per user; transitions are
// append-only and guarded by the Version column (optimistic concurrency).
type VerificationRecord struct {
	UserID            int64
	State             VerificationState
	Attempts          int
	ChallengeAnswer   *string
	ChallengeIssuedAt *time.Time
	VerifiedAt        *time.Time
	CooldownUntil     *time.Time
	Version           int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Validate checks that the record's fields match the shape required by its
// state: challenge fields present iff awaiting captcha, verified_at present
// iff verified.
func (r *VerificationRecord) Validate() error {
	switch r.State {
	case StateUnstarted, StateAwaitingAgreement, StateBlocked:
		if r.ChallengeAnswer != nil || r.ChallengeIssuedAt != nil {
			return fmt.Errorf("state %s must not carry a challenge: %w", r.State, ErrInvalidRecordShape)
		}
		if r.VerifiedAt != nil {
			return fmt.Errorf("state %s must not carry verified_at: %w", r.State, ErrInvalidRecordShape)
		}
	case StateAwaitingCaptcha:
		if r.ChallengeAnswer == nil || r.ChallengeIssuedAt == nil {
			return fmt.Errorf("state %s requires an active challenge: %w", r.State, ErrInvalidRecordShape)
		}
		if r.VerifiedAt != nil {
			return fmt.Errorf("state %s must not carry verified_at: %w", r.State, ErrInvalidRecordShape)
		}
	case StateVerified:
		if r.VerifiedAt == nil {
			return fmt.Errorf("state %s requires verified_at: %w", r.State, ErrInvalidRecordShape)
		}
		if r.ChallengeAnswer != nil || r.ChallengeIssuedAt != nil {
			return fmt.Errorf("state %s must not carry a challenge: %w", r.State, ErrInvalidRecordShape)
		}
		if r.CooldownUntil != nil {
			return fmt.Errorf("state %s must not carry cooldown_until: %w", r.State, ErrInvalidRecordShape)
		}
	default:
		return fmt.Errorf("unknown state %q: %w", r.State, ErrInvalidRecordShape)
	}
	return nil
}

// CooldownActive reports whether the attempt lockout is still in force.
func (r *VerificationRecord) CooldownActive(now time.Time) bool {
	return r.CooldownUntil != nil && now.Before(*r.CooldownUntil)
}

// CooldownRemaining returns how long until the lockout elapses (zero when
// no lockout is in force).
func (r *VerificationRecord) CooldownRemaining(now time.Time) time.Duration {
	if !r.CooldownActive(now) {
		return 0
	}
	return r.CooldownUntil.Sub(now)
}

// ChallengeExpired reports whether the active challenge's answering window
// has elapsed. Expiry is evaluated lazily against the caller's clock; it is
// never cached in the record.
func (r *VerificationRecord) ChallengeExpired(now time.Time, ttl time.Duration) bool {
	if r.ChallengeIssuedAt == nil {
		return false
	}
	return now.After(r.ChallengeIssuedAt.Add(ttl))
}

// StateCounts aggregates users per state for the admin status view.
// AwaitingCaptcha counts only users whose challenge window is still open;
// CaptchaExpired counts the rest, computed lazily at query time.
type StateCounts struct {
	Unstarted         int `json:"unstarted"`
	AwaitingAgreement int `json:"awaiting_agreement"`
	AwaitingCaptcha   int `json:"awaiting_captcha"`
	CaptchaExpired    int `json:"captcha_expired"`
	Verified          int `json:"verified"`
	Blocked           int `json:"blocked"`
}

// Status is the read-only admin projection over the stores and mode flags.
type Status struct {
	States              StateCounts `json:"states"`
	VerifiedLast24h     int         `json:"verified_last_24h"`
	PendingJoinRequests int         `json:"pending_join_requests"`
	Lockdown            bool        `json:"lockdown"`
	Strict              bool        `json:"strict"`
}
