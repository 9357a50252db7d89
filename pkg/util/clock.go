package util

import "time"

// Clock abstracts wall time so intent deadline checks can be pinned in tests.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }
