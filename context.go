package upstream

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/sentryfilter/upstream/internal/logging"
	"github.com/sentryfilter/upstream/pkg/interfaces"
)

var ctxLog = logging.Logger("context")

// Context is the process- or subsystem-scoped registry of every upstream
// created against it, plus the event-loop and DNS-resolver handles every
// List under it shares. A Context is safe for concurrent use.
type Context struct {
	mu sync.Mutex

	limits     Limits
	scheduler  interfaces.Scheduler
	resolver   interfaces.Resolver
	configured bool

	rng *rand.Rand

	// registry weakly tracks every upstream ever added to a list created
	// against this context, for Reresolve's whole-fleet iteration. Entries
	// are removed explicitly when a list detaches an upstream (on
	// List.Close or List.Destroy) — this is bookkeeping, not ownership;
	// the owning list is authoritative.
	registry map[*Upstream]struct{}
}

// NewContext returns an unbound Context with the library's default
// Limits. No timers are armed until Bind supplies a Scheduler and
// Resolver.
func NewContext() *Context {
	return &Context{
		limits:   DefaultLimits(),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		registry: make(map[*Upstream]struct{}),
	}
}

// NewClockScheduler adapts a github.com/benbjohnson/clock.Clock into an
// interfaces.Scheduler. Pass clock.New() for production use, or
// clock.NewMock() to drive revive/lazy-resolve timers deterministically
// in tests.
func NewClockScheduler(c clock.Clock) interfaces.Scheduler {
	return clockScheduler{c}
}

type clockScheduler struct{ clock.Clock }

func (s clockScheduler) AfterFunc(d time.Duration, f func()) interfaces.Timer {
	return s.Clock.AfterFunc(d, f)
}

// SetRandSource overrides the uniform source used by jitter and by the
// DNS-merge amnesty roll, so tests can pin both.
func (c *Context) SetRandSource(rng *rand.Rand) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rng = rng
}

// Bind supplies the event-loop (Scheduler) and DNS (Resolver) handles and
// applies cfg's limit overrides. It arms a lazy-resolve timer, at
// jitter(lazy_resolve_time, 10%), for every already-registered upstream
// that has no armed timer and is not flagged NoResolve.
//
// Bind may be called at most once; a Context created with NewContext is
// unbound, and list.AddUpstream works against an unbound context just
// fine — it resolves addresses synchronously at add time and defers timer
// arming to Bind.
func (c *Context) Bind(cfg Config) error {
	if cfg.Scheduler == nil {
		return fmt.Errorf("upstream: Config.Scheduler must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	if c.configured {
		c.mu.Unlock()
		return ErrAlreadyBound
	}
	cfg.applyTo(&c.limits)
	c.scheduler = cfg.Scheduler
	c.resolver = cfg.Resolver
	c.configured = true

	ups := make([]*Upstream, 0, len(c.registry))
	for u := range c.registry {
		ups = append(ups, u)
	}
	c.mu.Unlock()

	ctxLog.Debug("context bound", "upstreams", len(ups))
	for _, u := range ups {
		u.armLazyResolveIfIdle()
	}
	return nil
}

// Reresolve forces a DNS resolution pass for every registered upstream,
// regardless of its timer state — used when the host's resolver
// configuration changes.
func (c *Context) Reresolve() {
	c.mu.Lock()
	ups := make([]*Upstream, 0, len(c.registry))
	for u := range c.registry {
		ups = append(ups, u)
	}
	c.mu.Unlock()

	for _, u := range ups {
		u.triggerResolve()
	}
}

// Destroy empties the registry and marks the context unbound. It does not
// touch any list: lists created against this context keep their reference
// to it, and own their upstreams' lifetimes independently.
func (c *Context) Destroy() {
	c.mu.Lock()
	c.registry = make(map[*Upstream]struct{})
	c.configured = false
	c.mu.Unlock()
}

func (c *Context) register(u *Upstream) {
	c.mu.Lock()
	c.registry[u] = struct{}{}
	c.mu.Unlock()
}

func (c *Context) unregister(u *Upstream) {
	c.mu.Lock()
	delete(c.registry, u)
	c.mu.Unlock()
}

func (c *Context) schedulerHandle() interfaces.Scheduler {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scheduler
}

func (c *Context) resolverHandle() interfaces.Resolver {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resolver
}

func (c *Context) isConfigured() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.configured
}

func (c *Context) limitsSnapshot() Limits {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.limits
}

func (c *Context) jitterDuration(base time.Duration, frac float64) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return jitter(base, frac, c.rng)
}

// amnestyRoll reports whether the 10% amnesty branch fires for this DNS
// merge.
func (c *Context) amnestyRoll() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rng.Float64() < 0.1
}
