package gate

import (
	"sync"
	"testing"
)

func TestUserLocks_SerializesPerUser(t *testing.T) {
	locks := newUserLocks()

	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.lock(100)
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Errorf("counter = %d, want 50", counter)
	}
}

func TestUserLocks_ReleasedEntriesAreRemoved(t *testing.T) {
	locks := newUserLocks()

	unlock := locks.lock(100)
	unlock()

	locks.mu.Lock()
	defer locks.mu.Unlock()
	if len(locks.locks) != 0 {
		t.Errorf("lock map size = %d, want 0", len(locks.locks))
	}
}
