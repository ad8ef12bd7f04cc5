package gate

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const throttleMaxIdle = 10 * time.Minute

// Throttle rejects bursts of events from a single user (double-taps on
// inline buttons, redelivered callbacks). One token-bucket limiter per
// user; idle entries are pruned opportunistically.
type Throttle struct {
	limit rate.Limit
	burst int
	clock Clock

	mu    sync.Mutex
	users map[int64]*throttleEntry
}

type throttleEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewThrottle creates a per-user throttle allowing one event per
// minInterval with the given burst.
func NewThrottle(minInterval time.Duration, burst int, clock Clock) *Throttle {
	return &Throttle{
		limit: rate.Every(minInterval),
		burst: burst,
		clock: clock,
		users: make(map[int64]*throttleEntry),
	}
}

// Allow reports whether an event from the user may proceed now.
func (t *Throttle) Allow(userID int64) bool {
	now := t.clock.Now()

	t.mu.Lock()
	entry, ok := t.users[userID]
	if !ok {
		entry = &throttleEntry{limiter: rate.NewLimiter(t.limit, t.burst)}
		t.users[userID] = entry
		t.prune(now)
	}
	entry.lastSeen = now
	t.mu.Unlock()

	return entry.limiter.AllowN(now, 1)
}

// prune drops limiters idle longer than throttleMaxIdle. Called with t.mu
// held, only on the insert path.
func (t *Throttle) prune(now time.Time) {
	for id, entry := range t.users {
		if now.Sub(entry.lastSeen) > throttleMaxIdle {
			delete(t.users, id)
		}
	}
}
