package upstream

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/sentryfilter/upstream/internal/addrutil"
	"github.com/sentryfilter/upstream/internal/logging"
)

var listLog = logging.Logger("list")

// RotationAlgorithm selects which Selector policy List.Get dispatches to.
type RotationAlgorithm int

const (
	// RotUndefined defers to whichever side of a Get/GetForced call
	// specifies a concrete policy.
	RotUndefined RotationAlgorithm = iota
	RotRandom
	RotRoundRobin
	RotMasterSlave
	RotHashed
	RotSequential
)

// ParseMode selects how AddUpstream interprets its spec string.
type ParseMode int

const (
	// ParseModeDefault accepts host[:port][:priority], a literal
	// IP[:port], or a UNIX path, resolving hostnames synchronously.
	ParseModeDefault ParseMode = iota
	// ParseModeNameserver accepts only a literal IP, with a default port
	// if none is given.
	ParseModeNameserver
)

// UpstreamStats is one upstream's snapshot within a List.Stats result.
type UpstreamStats struct {
	Name    string
	UID     string
	Weight  uint
	Errors  uint
	Checked uint
	Alive   bool
}

// ListStats is the snapshot returned by List.Stats.
type ListStats struct {
	Total       int
	Alive       int
	PerUpstream []UpstreamStats
}

// List is a selection pool of upstreams sharing a rotation policy, limit
// overrides, and a watcher set.
type List struct {
	mu sync.Mutex

	ctx *Context // weak; may be nil

	ups   []*Upstream
	alive []*Upstream

	watchers []*watcher

	rotAlg RotationAlgorithm
	flags  UpstreamFlags // base flags applied to upstreams added after SetFlags

	limits    Limits
	limitsSet bool

	hashSeed uint64
	curElt   int

	rng *rand.Rand

	closed bool
}

// NewList creates an empty list against ctx. ctx may be nil; the list is
// then usable (AddUpstream resolves hostnames synchronously, selection
// works normally) but no lazy-resolve or revive timers are ever armed,
// since there is no event loop to drive them.
func NewList(ctx *Context) *List {
	return &List{
		ctx:      ctx,
		rotAlg:   RotRoundRobin,
		hashSeed: HashSeed,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetRotation sets the list's default rotation policy.
func (l *List) SetRotation(alg RotationAlgorithm) {
	l.mu.Lock()
	l.rotAlg = alg
	l.mu.Unlock()
}

// SetFlags sets the base flags applied to every upstream added after this
// call (upstreams already in the list are unaffected).
func (l *List) SetFlags(flags UpstreamFlags) {
	l.mu.Lock()
	l.flags = flags
	l.mu.Unlock()
}

// SetLimits overrides this list's effective Limits, independent of its
// context's defaults.
func (l *List) SetLimits(lim Limits) error {
	if err := lim.Validate(); err != nil {
		return err
	}
	l.mu.Lock()
	l.limits = lim
	l.limitsSet = true
	l.mu.Unlock()
	return nil
}

// SetHashSeed overrides the 64-bit seed consistent-hash selection mixes
// into every key.
func (l *List) SetHashSeed(seed uint64) {
	l.mu.Lock()
	l.hashSeed = seed
	l.mu.Unlock()
}

// Count returns the number of upstreams registered in the list.
func (l *List) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ups)
}

// AliveCount returns the number of currently selectable upstreams.
func (l *List) AliveCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.alive)
}

// Foreach invokes fn once per upstream currently in the list, in
// insertion order. fn is called outside the list lock.
func (l *List) Foreach(fn func(*Upstream)) {
	l.mu.Lock()
	ups := append([]*Upstream(nil), l.ups...)
	l.mu.Unlock()

	for _, up := range ups {
		fn(up)
	}
}

// Stats returns a point-in-time snapshot of the list and every upstream
// in it — a hand-rolled counters struct, not a time-series export,
// matching the teacher's own metrics package rather than a Prometheus
// client.
func (l *List) Stats() ListStats {
	l.mu.Lock()
	ups := append([]*Upstream(nil), l.ups...)
	alive := len(l.alive)
	l.mu.Unlock()

	out := ListStats{Total: len(ups), Alive: alive, PerUpstream: make([]UpstreamStats, 0, len(ups))}
	for _, up := range ups {
		l.mu.Lock()
		isAlive := up.activeIdx >= 0
		l.mu.Unlock()

		up.mu.Lock()
		out.PerUpstream = append(out.PerUpstream, UpstreamStats{
			Name:    up.name,
			UID:     up.uid,
			Weight:  up.weight,
			Errors:  up.errors,
			Checked: up.checked,
			Alive:   isAlive,
		})
		up.mu.Unlock()
	}
	return out
}

// Close permanently removes up from the list: cancels its armed timer,
// drops it from both the membership and alive sets, clears its
// back-reference to this list, and removes it from the context's
// registry. Unlike SetInactive, this
// is not transient — up will never be revived.
func (l *List) Close(up *Upstream) {
	l.mu.Lock()
	for i, cur := range l.ups {
		if cur == up {
			l.ups = append(l.ups[:i], l.ups[i+1:]...)
			break
		}
	}
	idx := up.activeIdx
	if idx >= 0 && idx < len(l.alive) && l.alive[idx] == up {
		l.alive = append(l.alive[:idx], l.alive[idx+1:]...)
		for i := idx; i < len(l.alive); i++ {
			l.alive[i].activeIdx = i
		}
	}
	ctx := l.ctx
	l.mu.Unlock()

	up.detach()
	if ctx != nil {
		ctx.unregister(up)
	}
}

// Destroy cancels every upstream's timer, releases every watcher
// (invoking its destructor), and empties the list. The list must not be
// used afterward.
func (l *List) Destroy() {
	l.mu.Lock()
	ups := append([]*Upstream(nil), l.ups...)
	ws := append([]*watcher(nil), l.watchers...)
	ctx := l.ctx
	l.ups = nil
	l.alive = nil
	l.watchers = nil
	l.closed = true
	l.mu.Unlock()

	for _, up := range ups {
		up.detach()
		if ctx != nil {
			ctx.unregister(up)
		}
	}
	for _, w := range ws {
		if w.destroy != nil {
			w.destroy(w.userData)
		}
	}
}

func (l *List) effectiveLimits() Limits {
	l.mu.Lock()
	set := l.limitsSet
	lim := l.limits
	ctx := l.ctx
	l.mu.Unlock()
	if set {
		return lim
	}
	if ctx != nil {
		return ctx.limitsSnapshot()
	}
	return DefaultLimits()
}

func (l *List) now() time.Time {
	if l.ctx != nil {
		if sched := l.ctx.schedulerHandle(); sched != nil {
			return sched.Now()
		}
	}
	return time.Now()
}

// ──────────────────────────────────────────────────────────────────────
// Construction and parsing
// ──────────────────────────────────────────────────────────────────────

// AddUpstream parses spec per mode and, on success, constructs and
// registers a new Upstream carrying userData. It returns false if spec
// could not be parsed or resolved to at least one address; use
// AddUpstreamErr to recover the reason.
func (l *List) AddUpstream(spec string, defaultPort uint16, mode ParseMode, userData any) bool {
	_, err := l.AddUpstreamErr(spec, defaultPort, mode, userData)
	return err == nil
}

// AddUpstreamErr is AddUpstream's error-returning counterpart. It returns
// ErrEmptySpec for a blank spec, ErrNoAddresses if a hostname spec fails
// to resolve, and the underlying parse error for anything else malformed.
func (l *List) AddUpstreamErr(spec string, defaultPort uint16, mode ParseMode, userData any) (*Upstream, error) {
	up, err := l.buildUpstream(spec, defaultPort, mode)
	if err != nil {
		listLog.Debug("rejecting upstream spec", "spec", spec, "err", err)
		return nil, err
	}
	up.SetData(userData)
	l.registerUpstream(up)
	return up, nil
}

func (l *List) buildUpstream(spec string, defaultPort uint16, mode ParseMode) (*Upstream, error) {
	parsed, err := addrutil.ParseHostPortPriority(spec)
	if err != nil {
		if errors.Is(err, addrutil.ErrEmptySpec) {
			return nil, ErrEmptySpec
		}
		return nil, err
	}
	if mode == ParseModeNameserver && parsed.Kind != addrutil.KindIP {
		return nil, fmt.Errorf("upstream: nameserver spec %q must be a literal IP", spec)
	}

	port := defaultPort
	if parsed.HasPort {
		port = parsed.Port
	}
	weight := parsed.Priority

	var (
		flags UpstreamFlags
		addrs []addrEntry
		name  string
	)

	switch parsed.Kind {
	case addrutil.KindUnix:
		name = parsed.Path
		flags |= FlagNoResolve
		addrs = []addrEntry{{addr: Addr{Path: parsed.Path}}}

	case addrutil.KindIP:
		name = parsed.Host
		flags |= FlagNoResolve
		ip := net.ParseIP(parsed.Host)
		addrs = []addrEntry{{addr: Addr{IP: ip, Port: port}}}

	default: // KindHostname
		name = parsed.Host
		ips, err := l.resolveSync(parsed.Host)
		if err != nil || len(ips) == 0 {
			return nil, ErrNoAddresses
		}
		addrs = make([]addrEntry, 0, len(ips))
		for _, ip := range ips {
			addrs = append(addrs, addrEntry{addr: Addr{IP: ip, Port: port}})
		}
	}

	sortAddrEntries(addrs)

	l.mu.Lock()
	flags |= l.flags
	isFirst := len(l.ups) == 0
	masterSlave := l.rotAlg == RotMasterSlave
	l.mu.Unlock()

	if masterSlave && weight == 0 && isFirst {
		weight = 1
	}

	return newUpstream(name, flags, weight, addrs), nil
}

// resolveSync performs the synchronous A/AAAA lookup construction-time
// name resolution needs. This is deliberately the stdlib net.Resolver,
// distinct from the asynchronous interfaces.Resolver used for background
// lazy-resolve: it is a one-shot, blocking lookup at construction time,
// not a recurring background refresh.
func (l *List) resolveSync(host string) ([]net.IP, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, err
	}
	ips := make([]net.IP, 0, len(addrs))
	for _, a := range addrs {
		ips = append(ips, a.IP)
	}
	return ips, nil
}

// registerUpstream appends up to ups, registers it with the context, and
// activates it.
func (l *List) registerUpstream(up *Upstream) {
	l.mu.Lock()
	l.ups = append(l.ups, up)
	ctx := l.ctx
	l.mu.Unlock()

	up.mu.Lock()
	up.list = l
	up.mu.Unlock()

	if ctx != nil {
		ctx.register(up)
	}

	l.setActive(up)
}

// ──────────────────────────────────────────────────────────────────────
// Alive/inactive transitions
// ──────────────────────────────────────────────────────────────────────

func (l *List) setActive(up *Upstream) {
	l.mu.Lock()
	l.alive = append(l.alive, up)
	up.activeIdx = len(l.alive) - 1
	configured := l.ctx != nil && l.ctx.isConfigured()
	noResolve := up.flags&FlagNoResolve != 0
	l.mu.Unlock()

	if configured && !noResolve {
		l.armLazyResolve(up)
	}

	errCount := up.Errors()
	l.mu.Lock()
	l.notify(EventOnline, up, errCount)
	l.mu.Unlock()
}

func (l *List) setInactive(up *Upstream) {
	l.mu.Lock()
	idx := up.activeIdx
	if idx < 0 || idx >= len(l.alive) || l.alive[idx] != up {
		l.mu.Unlock()
		return
	}
	l.alive = append(l.alive[:idx], l.alive[idx+1:]...)
	for i := idx; i < len(l.alive); i++ {
		l.alive[i].activeIdx = i
	}
	up.activeIdx = -1
	hasCtx := l.ctx != nil
	l.mu.Unlock()

	if hasCtx {
		l.startResolve(up) // pre-warm addresses before revive
		l.armRevive(up)
	} else {
		up.mu.Lock()
		if up.timer != nil {
			up.timer.Stop()
			up.timer = nil
			up.timerKind = timerNone
		}
		up.mu.Unlock()
	}

	errCount := up.Errors()
	l.mu.Lock()
	l.notify(EventOffline, up, errCount)
	l.mu.Unlock()
}

// reactivateIfEmpty reactivates every member when the alive set has
// drained to nothing, so that Get always returns a result on a
// non-empty, non-sequential list. Unlike setActive (used on construction
// and on revive), reactivation does not arm a fresh lazy-resolve timer; it
// only cancels any pending revive timer.
func (l *List) reactivateIfEmpty() {
	l.mu.Lock()
	if len(l.alive) > 0 || len(l.ups) == 0 {
		l.mu.Unlock()
		return
	}
	ups := append([]*Upstream(nil), l.ups...)
	l.mu.Unlock()

	for _, up := range ups {
		up.mu.Lock()
		if up.timer != nil {
			up.timer.Stop()
			up.timer = nil
			up.timerKind = timerNone
		}
		up.mu.Unlock()

		l.mu.Lock()
		l.alive = append(l.alive, up)
		up.activeIdx = len(l.alive) - 1
		up.mu.Lock()
		errCount := up.errors
		up.mu.Unlock()
		l.notify(EventOnline, up, errCount)
		l.mu.Unlock()
	}
}
