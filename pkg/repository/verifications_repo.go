package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/tendant/group-gatekeeper/pkg/domain"
)

// VerificationsRepository handles verification record persistence.
type VerificationsRepository struct {
	db Querier
}

// NewVerificationsRepository creates a new verifications repository over a
// *sql.DB or *sql.Tx.
func NewVerificationsRepository(db Querier) *VerificationsRepository {
	return &VerificationsRepository{db: db}
}

// Get retrieves the verification record for a user.
func (r *VerificationsRepository) Get(ctx context.Context, userID int64) (*domain.VerificationRecord, error) {
	query := `
		SELECT user_id, state, attempts, challenge_answer, challenge_issued_at,
		       verified_at, cooldown_until, version, created_at, updated_at
		FROM verifications
		WHERE user_id = $1
	`
	rec := &domain.VerificationRecord{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&rec.UserID, &rec.State, &rec.Attempts, &rec.ChallengeAnswer, &rec.ChallengeIssuedAt,
		&rec.VerifiedAt, &rec.CooldownUntil, &rec.Version, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Create inserts a new verification record with version 1.
func (r *VerificationsRepository) Create(ctx context.Context, rec *domain.VerificationRecord) error {
	query := `
		INSERT INTO verifications (user_id, state, attempts, challenge_answer, challenge_issued_at,
		                           verified_at, cooldown_until, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 1, $8, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		rec.UserID, rec.State, rec.Attempts, rec.ChallengeAnswer, rec.ChallengeIssuedAt,
		rec.VerifiedAt, rec.CooldownUntil, rec.CreatedAt,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return domain.ErrRecordExists
	}
	return err
}

// Update writes a record back, guarded by the version it was read at.
// A concurrent writer bumping the version first causes ErrVersionConflict;
// the caller re-reads and re-validates the transition.
func (r *VerificationsRepository) Update(ctx context.Context, rec *domain.VerificationRecord) error {
	query := `
		UPDATE verifications
		SET state = $3, attempts = $4, challenge_answer = $5, challenge_issued_at = $6,
		    verified_at = $7, cooldown_until = $8, version = version + 1, updated_at = NOW()
		WHERE user_id = $1 AND version = $2
	`
	result, err := r.db.ExecContext(ctx, query,
		rec.UserID, rec.Version, rec.State, rec.Attempts, rec.ChallengeAnswer,
		rec.ChallengeIssuedAt, rec.VerifiedAt, rec.CooldownUntil,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrVersionConflict
	}
	rec.Version++
	return nil
}

// CountByState aggregates users per state for the admin status view.
// AWAITING_CAPTCHA is split into open vs expired challenge windows,
// computed against the caller's clock rather than any cached state.
func (r *VerificationsRepository) CountByState(ctx context.Context, now time.Time, challengeTTL time.Duration) (domain.StateCounts, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE state = 'unstarted'),
			COUNT(*) FILTER (WHERE state = 'awaiting_agreement'),
			COUNT(*) FILTER (WHERE state = 'awaiting_captcha'
				AND challenge_issued_at + $2 * interval '1 second' >= $1),
			COUNT(*) FILTER (WHERE state = 'awaiting_captcha'
				AND challenge_issued_at + $2 * interval '1 second' < $1),
			COUNT(*) FILTER (WHERE state = 'verified'),
			COUNT(*) FILTER (WHERE state = 'blocked')
		FROM verifications
	`
	var counts domain.StateCounts
	err := r.db.QueryRowContext(ctx, query, now, int(challengeTTL.Seconds())).Scan(
		&counts.Unstarted, &counts.AwaitingAgreement, &counts.AwaitingCaptcha,
		&counts.CaptchaExpired, &counts.Verified, &counts.Blocked,
	)
	return counts, err
}

// CountVerifiedSince counts users verified at or after the given time.
func (r *VerificationsRepository) CountVerifiedSince(ctx context.Context, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM verifications WHERE verified_at >= $1`
	var count int
	err := r.db.QueryRowContext(ctx, query, since).Scan(&count)
	return count, err
}
