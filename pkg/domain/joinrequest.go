package domain

import (
	"time"

	"github.com/google/uuid"
)

// Decision is the outcome recorded for a join request.
type Decision string

const (
	DecisionPending  Decision = "pending"
	DecisionApproved Decision = "approved"
	DecisionDeclined Decision = "declined"
)

// DecisionReason explains why a join request was approved, declined, or
// left pending.
type DecisionReason string

const (
	ReasonVerified       DecisionReason = "verified"
	ReasonStrictRejected DecisionReason = "strict-rejected"
	ReasonLockdown       DecisionReason = "lockdown"
	ReasonManualReview   DecisionReason = "awaiting-manual-review"
	// ReasonDuplicate is returned (never stored) when a redelivered event
	// matches an already-decided request.
	ReasonDuplicate DecisionReason = "duplicate"
)

// JoinRequest is one decision record per (user, requested_at) occurrence.
// The unique (user_id, requested_at) index is what makes decisions
// exactly-once under platform redelivery.
type JoinRequest struct {
	ID          uuid.UUID
	UserID      int64
	RequestedAt time.Time
	Decision    Decision
	Reason      DecisionReason
	DecidedAt   *time.Time
	CreatedAt   time.Time
}

// Terminal reports whether the request has reached a final decision.
// Pending requests are left for manual admin resolution.
func (j *JoinRequest) Terminal() bool {
	return j.Decision == DecisionApproved || j.Decision == DecisionDeclined
}
