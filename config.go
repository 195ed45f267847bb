package upstream

import (
	"time"

	"github.com/sentryfilter/upstream/pkg/interfaces"
)

// Config carries the limit overrides and collaborator handles a caller
// passes to Context.Bind. A zero-valued duration/count field means "keep
// the context's current default".
type Config struct {
	MaxErrors       uint
	ErrorTime       time.Duration
	ReviveTime      time.Duration
	ReviveJitter    float64
	DNSTimeout      time.Duration
	DNSRetransmits  int
	LazyResolveTime time.Duration

	// Scheduler and Resolver are the event-loop and DNS collaborators.
	// Scheduler is required; Context.Bind rejects a nil Scheduler. A nil
	// Resolver is accepted, and then no DNS refresh is ever started.
	Scheduler interfaces.Scheduler
	Resolver  interfaces.Resolver
}

// Validate reports every populated-but-invalid field via multierr. Unset
// (zero) fields are always valid since they mean "no override".
func (c Config) Validate() error {
	probe := DefaultLimits()
	c.applyTo(&probe)
	return probe.Validate()
}

// applyTo copies every non-zero override in c into l.
func (c Config) applyTo(l *Limits) {
	if c.MaxErrors != 0 {
		l.MaxErrors = c.MaxErrors
	}
	if c.ErrorTime != 0 {
		l.ErrorTime = c.ErrorTime
	}
	if c.ReviveTime != 0 {
		l.ReviveTime = c.ReviveTime
	}
	if c.ReviveJitter != 0 {
		l.ReviveJitter = c.ReviveJitter
	}
	if c.DNSTimeout != 0 {
		l.DNSTimeout = c.DNSTimeout
	}
	if c.DNSRetransmits != 0 {
		l.DNSRetransmits = c.DNSRetransmits
	}
	if c.LazyResolveTime != 0 {
		l.LazyResolveTime = c.LazyResolveTime
	}
}
