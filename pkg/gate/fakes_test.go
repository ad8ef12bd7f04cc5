package gate

import (
	"context"
	"io"
	"log/slog"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/tendant/group-gatekeeper/pkg/domain"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// memVerificationStore is an in-memory VerificationStore with the same
// version semantics as the Postgres repository.
type memVerificationStore struct {
	mu   sync.Mutex
	recs map[int64]domain.VerificationRecord
}

func newMemVerificationStore() *memVerificationStore {
	return &memVerificationStore{recs: make(map[int64]domain.VerificationRecord)}
}

func (s *memVerificationStore) Get(ctx context.Context, userID int64) (*domain.VerificationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[userID]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	out := rec
	return &out, nil
}

func (s *memVerificationStore) Create(ctx context.Context, rec *domain.VerificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.recs[rec.UserID]; ok {
		return domain.ErrRecordExists
	}
	s.recs[rec.UserID] = *rec
	return nil
}

func (s *memVerificationStore) Update(ctx context.Context, rec *domain.VerificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.recs[rec.UserID]
	if !ok || existing.Version != rec.Version {
		return domain.ErrVersionConflict
	}
	rec.Version++
	s.recs[rec.UserID] = *rec
	return nil
}

func (s *memVerificationStore) CountByState(ctx context.Context, now time.Time, challengeTTL time.Duration) (domain.StateCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var counts domain.StateCounts
	for _, rec := range s.recs {
		switch rec.State {
		case domain.StateUnstarted:
			counts.Unstarted++
		case domain.StateAwaitingAgreement:
			counts.AwaitingAgreement++
		case domain.StateAwaitingCaptcha:
			if rec.ChallengeExpired(now, challengeTTL) {
				counts.CaptchaExpired++
			} else {
				counts.AwaitingCaptcha++
			}
		case domain.StateVerified:
			counts.Verified++
		case domain.StateBlocked:
			counts.Blocked++
		}
	}
	return counts, nil
}

func (s *memVerificationStore) CountVerifiedSince(ctx context.Context, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, rec := range s.recs {
		if rec.VerifiedAt != nil && !rec.VerifiedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

// memJoinRequestStore is an in-memory JoinRequestStore keyed by
// (user_id, requested_at) like the unique index.
type memJoinRequestStore struct {
	mu   sync.Mutex
	recs map[joinKey]domain.JoinRequest
}

type joinKey struct {
	userID      int64
	requestedAt int64
}

func newMemJoinRequestStore() *memJoinRequestStore {
	return &memJoinRequestStore{recs: make(map[joinKey]domain.JoinRequest)}
}

func (s *memJoinRequestStore) Create(ctx context.Context, req *domain.JoinRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := joinKey{req.UserID, req.RequestedAt.Unix()}
	if _, ok := s.recs[key]; ok {
		return domain.ErrDuplicateJoinRequest
	}
	s.recs[key] = *req
	return nil
}

func (s *memJoinRequestStore) Find(ctx context.Context, userID int64, requestedAt time.Time) (*domain.JoinRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[joinKey{userID, requestedAt.Unix()}]
	if !ok {
		return nil, domain.ErrJoinRequestNotFound
	}
	out := rec
	return &out, nil
}

func (s *memJoinRequestStore) CountPending(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, rec := range s.recs {
		if rec.Decision == domain.DecisionPending {
			count++
		}
	}
	return count, nil
}

// memSettingsStore is an in-memory SettingsStore.
type memSettingsStore struct {
	mu   sync.Mutex
	vals map[string]string
}

func newMemSettingsStore() *memSettingsStore {
	return &memSettingsStore{vals: make(map[string]string)}
}

func (s *memSettingsStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	val, ok := s.vals[key]
	return val, ok, nil
}

func (s *memSettingsStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vals[key] = value
	return nil
}

// fakeMessenger records outbound calls and can be made to fail.
type fakeMessenger struct {
	mu       sync.Mutex
	approved []int64
	declined []int64
	messages []string
	fail     error
}

func (m *fakeMessenger) ApproveJoinRequest(ctx context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.approved = append(m.approved, userID)
	return nil
}

func (m *fakeMessenger) DeclineJoinRequest(ctx context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.declined = append(m.declined, userID)
	return nil
}

func (m *fakeMessenger) SendMessage(ctx context.Context, userID int64, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.messages = append(m.messages, text)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testGenerator(t *testing.T) *ChallengeGenerator {
	t.Helper()
	specs := []ChallengeSpec{
		{PromptEN: "Pick the cat", PromptRU: "Выберите кота", Answer: "🐱"},
		{PromptEN: "Pick the dog", PromptRU: "Выберите собаку", Answer: "🐶"},
	}
	decoys := []string{"🐱", "🐶", "🦊", "🐻", "🐼", "🐸"}
	gen, err := NewChallengeGenerator(specs, decoys, rand.New(rand.NewPCG(1, 2)))
	if err != nil {
		t.Fatalf("NewChallengeGenerator failed: %v", err)
	}
	return gen
}
