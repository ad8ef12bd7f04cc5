package gate

import (
	"context"
	"time"

	"github.com/tendant/group-gatekeeper/pkg/domain"
)

// VerificationStore is the durable table of per-user verification state.
// Update must be atomic per record and reject stale writes with
// domain.ErrVersionConflict.
type VerificationStore interface {
	Get(ctx context.Context, userID int64) (*domain.VerificationRecord, error)
	Create(ctx context.Context, rec *domain.VerificationRecord) error
	Update(ctx context.Context, rec *domain.VerificationRecord) error
	CountByState(ctx context.Context, now time.Time, challengeTTL time.Duration) (domain.StateCounts, error)
	CountVerifiedSince(ctx context.Context, since time.Time) (int, error)
}

// JoinRequestStore is the append-only log of join request decisions.
// Create must reject a second record for the same (user, requested_at)
// occurrence with domain.ErrDuplicateJoinRequest.
type JoinRequestStore interface {
	Create(ctx context.Context, req *domain.JoinRequest) error
	Find(ctx context.Context, userID int64, requestedAt time.Time) (*domain.JoinRequest, error)
	CountPending(ctx context.Context) (int, error)
}

// SettingsStore persists the runtime mode flags across restarts.
type SettingsStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}
