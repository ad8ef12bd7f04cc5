package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/tendant/group-gatekeeper/pkg/domain"
)

// JoinRequestsRepository handles join request log persistence.
type JoinRequestsRepository struct {
	db Querier
}

// NewJoinRequestsRepository creates a new join requests repository over a
// *sql.DB or *sql.Tx.
func NewJoinRequestsRepository(db Querier) *JoinRequestsRepository {
	return &JoinRequestsRepository{db: db}
}

// Create records a decision. The unique (user_id, requested_at) index
// rejects a second record for the same occurrence with
// ErrDuplicateJoinRequest; the caller then reads the prior decision.
func (r *JoinRequestsRepository) Create(ctx context.Context, req *domain.JoinRequest) error {
	query := `
		INSERT INTO join_requests (id, user_id, requested_at, decision, reason, decided_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		req.ID, req.UserID, req.RequestedAt, req.Decision, req.Reason, req.DecidedAt, req.CreatedAt,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return domain.ErrDuplicateJoinRequest
	}
	return err
}

// Find retrieves the record for a specific (user, requested_at) occurrence.
func (r *JoinRequestsRepository) Find(ctx context.Context, userID int64, requestedAt time.Time) (*domain.JoinRequest, error) {
	query := `
		SELECT id, user_id, requested_at, decision, reason, decided_at, created_at
		FROM join_requests
		WHERE user_id = $1 AND requested_at = $2
	`
	req := &domain.JoinRequest{}
	err := r.db.QueryRowContext(ctx, query, userID, requestedAt).Scan(
		&req.ID, &req.UserID, &req.RequestedAt, &req.Decision, &req.Reason,
		&req.DecidedAt, &req.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrJoinRequestNotFound
	}
	if err != nil {
		return nil, err
	}
	return req, nil
}

// CountPending counts join requests left for manual admin resolution.
func (r *JoinRequestsRepository) CountPending(ctx context.Context) (int, error) {
	query := `SELECT COUNT(*) FROM join_requests WHERE decision = 'pending'`
	var count int
	err := r.db.QueryRowContext(ctx, query).Scan(&count)
	return count, err
}
