package utils

import "time"

// Clock abstracts the wall clock so the engine stays deterministic in tests.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }
