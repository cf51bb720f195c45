package typewriter

import "time"

// Clock schedules a single callback. It exists so reveals can be stepped
// deterministically.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is the cancel handle of a scheduled callback.
type Timer interface {
	Stop() bool
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// RealClock returns the wall clock.
func RealClock() Clock { return realClock{} }
