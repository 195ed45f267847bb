// Package interfaces holds the small set of capabilities the upstream pool
// manager treats as injected services rather than owning itself: telling
// time and arming timers, and resolving DNS names.
package interfaces

import "time"

// Timer is a single pending, cancellable callback armed through a
// Scheduler. Stop reports whether the callback was cancelled before it
// fired; a timer that already fired or was already stopped returns false.
type Timer interface {
	Stop() bool
}

// Scheduler abstracts the embedding event loop's ability to tell time and
// arm one-shot callbacks. The default implementation wraps
// github.com/benbjohnson/clock so tests can drive revive and lazy-resolve
// timers with a virtual clock instead of sleeping in real time.
type Scheduler interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}
