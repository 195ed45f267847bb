package upstream

import (
	"sync"
	"time"

	"github.com/sentryfilter/upstream/internal/hashutil"
	"github.com/sentryfilter/upstream/pkg/interfaces"
)

// UpstreamFlags is a bitset of per-upstream flags. The only flag the core
// inspects is FlagNoResolve.
type UpstreamFlags uint8

const (
	// FlagNoResolve marks an upstream whose name parsed as a literal
	// address: DNS lazy-resolve and DNS-driven revive pre-warming are
	// both skipped for it.
	FlagNoResolve UpstreamFlags = 1 << iota
)

type timerKind uint8

const (
	timerNone timerKind = iota
	timerLazyResolve
	timerRevive
)

// Upstream is a single endpoint: a name, a weight, liveness counters, a
// sorted set of resolved addresses with per-address error counts, and a
// short stable uid used as a log correlation tag.
//
// An Upstream is only ever constructed by List.AddUpstream, ParseLine, or
// FromStrings; there is no exported constructor, since an Upstream's
// lifetime is owned by the list that created it.
type Upstream struct {
	mu sync.Mutex

	name  string
	uid   string
	flags UpstreamFlags

	weight    uint
	curWeight uint

	errors      uint
	checked     uint
	dnsRequests uint
	lastFail    time.Time

	addrs    []addrEntry
	cur      int
	newAddrs []addrEntry

	timer     interfaces.Timer
	timerKind timerKind

	data any

	// list is a weak back-reference: the list owns the upstream, not the
	// other way around. It is cleared by List.Close/Destroy so that
	// in-flight timer and DNS callbacks can detect the detach and
	// suppress their effect.
	list *List

	// activeIdx is list-membership bookkeeping and is guarded by the
	// owning list's mutex, not u.mu.
	activeIdx int
}

func newUpstream(name string, flags UpstreamFlags, weight uint, addrs []addrEntry) *Upstream {
	return &Upstream{
		name:      name,
		uid:       hashutil.UID(name),
		flags:     flags,
		weight:    weight,
		curWeight: weight,
		addrs:     addrs,
		activeIdx: -1,
	}
}

// Name returns the upstream's name, as given to AddUpstream — never empty.
func (u *Upstream) Name() string { return u.name }

// UID returns the upstream's short, stable, log-correlation tag.
func (u *Upstream) UID() string { return u.uid }

// Weight returns the upstream's configured weight.
func (u *Upstream) Weight() uint {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.weight
}

// SetWeight updates the upstream's configured weight. It does not reset
// the running weighted-round-robin counter.
func (u *Upstream) SetWeight(w uint) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.weight = w
}

// Data returns the user data last set by SetData, or nil.
func (u *Upstream) Data() any {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.data
}

// SetData attaches caller-owned user data to the upstream.
func (u *Upstream) SetData(ud any) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.data = ud
}

// Errors returns the current error-streak counter.
func (u *Upstream) Errors() uint {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.errors
}

// Checked returns the number of times this upstream has been returned by
// List.Get or List.GetForced.
func (u *Upstream) Checked() uint {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.checked
}

// AddrCur returns the address the internal cursor currently points at,
// without advancing it. ok is false only when the upstream has no
// addresses, which never happens for an upstream still registered in a
// list (construction rejects unresolvable names).
func (u *Upstream) AddrCur() (a Addr, ok bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.addrs) == 0 {
		return Addr{}, false
	}
	return u.addrs[u.cur].addr, true
}

// AddrNext advances the cursor to the next address to try, preferring
// addresses with no more recorded errors than the one just considered.
// The scan is bounded to one pass over addrs so a pathological error
// distribution can never spin it forever.
func (u *Upstream) AddrNext() (a Addr, ok bool) {
	u.mu.Lock()
	defer u.mu.Unlock()

	n := len(u.addrs)
	if n == 0 {
		return Addr{}, false
	}
	if n == 1 {
		return u.addrs[0].addr, true
	}

	cur := u.cur
	next := (cur + 1) % n
	for i := 0; i < n; i++ {
		if u.addrs[next].errors <= u.addrs[cur].errors {
			break
		}
		cur = next
		next = (cur + 1) % n
	}
	u.cur = next
	return u.addrs[u.cur].addr, true
}

// Fail reports that a use of this upstream failed. addrFailure additionally
// charges the error to the address AddrCur currently points at. Fail is a
// no-op once the upstream has been detached from its list (List.Close or
// List.Destroy).
func (u *Upstream) Fail(addrFailure bool) {
	u.mu.Lock()
	list := u.list
	u.mu.Unlock()
	if list == nil {
		return
	}
	list.fail(u, addrFailure)
}

// Ok reports that a use of this upstream succeeded, clearing its error
// streak if one was active. Ok is a no-op once the upstream has been
// detached from its list.
func (u *Upstream) Ok() {
	u.mu.Lock()
	list := u.list
	u.mu.Unlock()
	if list == nil {
		return
	}
	list.ok(u)
}

// armLazyResolveIfIdle arms a lazy-resolve timer if none is currently
// armed. Called when a Context transitions to bound for every upstream
// already registered against it.
func (u *Upstream) armLazyResolveIfIdle() {
	u.mu.Lock()
	idle := u.timer == nil
	noResolve := u.flags&FlagNoResolve != 0
	list := u.list
	u.mu.Unlock()

	if !idle || noResolve || list == nil {
		return
	}
	list.armLazyResolve(u)
}

// triggerResolve forces an unconditional DNS resolution pass, ignoring
// any currently armed timer. Used by Context.Reresolve.
func (u *Upstream) triggerResolve() {
	u.mu.Lock()
	list := u.list
	noResolve := u.flags&FlagNoResolve != 0
	u.mu.Unlock()

	if list == nil || noResolve {
		return
	}
	list.startResolve(u)
}

// detach clears the weak back-reference to list and cancels any armed
// timer, so that in-flight DNS or timer callbacks observe the detach and
// suppress their effect.
func (u *Upstream) detach() {
	u.mu.Lock()
	u.list = nil
	if u.timer != nil {
		u.timer.Stop()
		u.timer = nil
		u.timerKind = timerNone
	}
	u.mu.Unlock()
}
