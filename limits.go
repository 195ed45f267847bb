package upstream

import (
	"fmt"
	"time"

	"go.uber.org/multierr"
)

// HashSeed is the fixed 64-bit constant consistent-hash selection mixes
// into every key, giving deterministic bucket assignment across process
// restarts.
const HashSeed uint64 = 0xa574de7df64e9b9d

// Limits bundles the tuning knobs that govern circuit-breaking and DNS
// refresh. A zero Limits is not valid; use DefaultLimits and override
// individual fields.
type Limits struct {
	// MaxErrors, divided by ErrorTime, is the maximum tolerated failure
	// rate: on each failure after the first of a streak, the rate
	// (errors / elapsed-seconds-since-first-failure) is compared against
	// MaxErrors/ErrorTime to decide whether to trip the breaker.
	MaxErrors uint

	// ErrorTime is the window, paired with MaxErrors, defining the
	// maximum tolerated failure rate.
	ErrorTime time.Duration

	// ReviveTime is the base delay before an inactive upstream is
	// reconsidered for revival.
	ReviveTime time.Duration

	// ReviveJitter is the fractional jitter applied to ReviveTime, in
	// [0, 1).
	ReviveJitter float64

	// DNSTimeout bounds a single A or AAAA lookup, including all of its
	// retransmits.
	DNSTimeout time.Duration

	// DNSRetransmits is the number of retries after the first attempt
	// for a single A/AAAA lookup.
	DNSRetransmits int

	// LazyResolveTime is the base interval between background DNS
	// refreshes of an alive upstream's address set.
	LazyResolveTime time.Duration
}

// DefaultLimits returns the library's documented defaults.
func DefaultLimits() Limits {
	return Limits{
		MaxErrors:       4,
		ErrorTime:       10 * time.Second,
		ReviveTime:      60 * time.Second,
		ReviveJitter:    0.4,
		DNSTimeout:      1 * time.Second,
		DNSRetransmits:  2,
		LazyResolveTime: 3600 * time.Second,
	}
}

// Validate reports every violated constraint at once via multierr, rather
// than stopping at the first.
func (l Limits) Validate() error {
	var errs error
	if l.MaxErrors == 0 {
		errs = multierr.Append(errs, fmt.Errorf("upstream: MaxErrors must be > 0"))
	}
	if l.ErrorTime <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("upstream: ErrorTime must be > 0"))
	}
	if l.ReviveTime <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("upstream: ReviveTime must be > 0"))
	}
	if l.ReviveJitter < 0 || l.ReviveJitter >= 1 {
		errs = multierr.Append(errs, fmt.Errorf("upstream: ReviveJitter must be in [0, 1)"))
	}
	if l.DNSTimeout <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("upstream: DNSTimeout must be > 0"))
	}
	if l.DNSRetransmits < 0 {
		errs = multierr.Append(errs, fmt.Errorf("upstream: DNSRetransmits must be >= 0"))
	}
	if l.LazyResolveTime <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("upstream: LazyResolveTime must be > 0"))
	}
	return errs
}

// randFloat64 is implemented by both math/rand.Rand and any test double
// satisfying it, letting Context.jitter and the DNS-merge amnesty roll
// share one pinnable source.
type randFloat64 interface {
	Float64() float64
}

// jitter computes base * (1 + U(-frac, +frac)) using rnd as the uniform
// source.
func jitter(base time.Duration, frac float64, rnd randFloat64) time.Duration {
	if frac <= 0 {
		return base
	}
	u := rnd.Float64()*2*frac - frac // U(-frac, +frac)
	return time.Duration(float64(base) * (1 + u))
}
