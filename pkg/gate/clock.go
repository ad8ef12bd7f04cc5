package gate

import "time"

// Clock supplies the current time. Services never call time.Now directly
// so that TTL and cooldown behavior is deterministic under test.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// RealClock returns a Clock backed by the system clock.
func RealClock() Clock { return realClock{} }
