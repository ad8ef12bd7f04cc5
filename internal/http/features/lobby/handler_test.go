package lobby

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tendant/group-gatekeeper/pkg/domain"
	"github.com/tendant/group-gatekeeper/pkg/gate"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
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

type memStore struct {
	mu   sync.Mutex
	recs map[int64]domain.VerificationRecord
}

func (s *memStore) Get(ctx context.Context, userID int64) (*domain.VerificationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[userID]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	out := rec
	return &out, nil
}

func (s *memStore) Create(ctx context.Context, rec *domain.VerificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.recs[rec.UserID]; ok {
		return domain.ErrRecordExists
	}
	s.recs[rec.UserID] = *rec
	return nil
}

func (s *memStore) Update(ctx context.Context, rec *domain.VerificationRecord) error {
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

func (s *memStore) CountByState(ctx context.Context, now time.Time, ttl time.Duration) (domain.StateCounts, error) {
	return domain.StateCounts{}, nil
}

func (s *memStore) CountVerifiedSince(ctx context.Context, since time.Time) (int, error) {
	return 0, nil
}

func newTestHandler(t *testing.T) (*Handler, *fakeClock) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	gen, err := gate.NewChallengeGenerator(
		[]gate.ChallengeSpec{{PromptEN: "Pick the cat", PromptRU: "Выберите кота", Answer: "🐱"}},
		[]string{"🐶", "🦊", "🐻", "🐼"},
		rand.New(rand.NewPCG(1, 2)),
	)
	if err != nil {
		t.Fatalf("NewChallengeGenerator failed: %v", err)
	}
	svc := gate.NewVerificationService(gate.VerificationConfig{},
		&memStore{recs: make(map[int64]domain.VerificationRecord)}, gen, clock, logger)
	throttle := gate.NewThrottle(300*time.Millisecond, 1, clock)
	return NewHandler(logger, svc, throttle), clock
}

func postJSON(t *testing.T, handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestHandler_Start(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := postJSON(t, h.Start, `{"user_id": 100}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["state"] != string(domain.StateAwaitingAgreement) {
		t.Errorf("state = %q, want %q", resp["state"], domain.StateAwaitingAgreement)
	}
}

func TestHandler_Start_Validation(t *testing.T) {
	h, _ := newTestHandler(t)

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{not json`},
		{"missing user_id", `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, h.Start, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestHandler_Start_Throttled(t *testing.T) {
	h, clock := newTestHandler(t)

	if rec := postJSON(t, h.Start, `{"user_id": 100}`); rec.Code != http.StatusOK {
		t.Fatalf("first status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec := postJSON(t, h.Start, `{"user_id": 100}`); rec.Code != http.StatusTooManyRequests {
		t.Errorf("burst status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}

	clock.Advance(time.Second)
	if rec := postJSON(t, h.Start, `{"user_id": 100}`); rec.Code != http.StatusOK {
		t.Errorf("status after interval = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestHandler_AgreeAndAnswer(t *testing.T) {
	h, clock := newTestHandler(t)

	if rec := postJSON(t, h.Start, `{"user_id": 100}`); rec.Code != http.StatusOK {
		t.Fatalf("Start status = %d", rec.Code)
	}

	clock.Advance(time.Second)
	rec := postJSON(t, h.Agree, `{"user_id": 100}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Agree status = %d: %s", rec.Code, rec.Body.String())
	}

	var agreeResp struct {
		Challenge ChallengeResponse `json:"challenge"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &agreeResp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(agreeResp.Challenge.Options) != 4 {
		t.Errorf("options = %d, want 4", len(agreeResp.Challenge.Options))
	}
	// The correct option must not leak to the transport
	if strings.Contains(rec.Body.String(), `"answer"`) {
		t.Error("response body leaks the challenge answer")
	}

	clock.Advance(time.Second)
	rec = postJSON(t, h.Answer, `{"user_id": 100, "option": "🐱"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Answer status = %d: %s", rec.Code, rec.Body.String())
	}
	var answerResp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &answerResp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if answerResp["outcome"] != string(gate.OutcomeVerified) {
		t.Errorf("outcome = %v, want %q", answerResp["outcome"], gate.OutcomeVerified)
	}
}

func TestHandler_Answer_Validation(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := postJSON(t, h.Answer, `{"user_id": 100}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status without option = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandler_Agree_BeforeStart(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := postJSON(t, h.Agree, `{"user_id": 100}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
}
