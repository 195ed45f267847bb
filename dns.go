package upstream

import (
	"context"
	"net"

	"github.com/sentryfilter/upstream/internal/logging"
	"github.com/sentryfilter/upstream/pkg/interfaces"
)

var dnsLog = logging.Logger("dns")

// armLazyResolve arms a one-shot timer at jitter(lazy_resolve_time, 10%)
// that re-resolves up's address set and re-arms itself.
func (l *List) armLazyResolve(up *Upstream) {
	if l.ctx == nil {
		return
	}
	sched := l.ctx.schedulerHandle()
	if sched == nil {
		return
	}

	lim := l.effectiveLimits()
	d := l.ctx.jitterDuration(lim.LazyResolveTime, 0.1)
	timer := sched.AfterFunc(d, func() { l.onLazyResolveFire(up) })

	up.mu.Lock()
	if up.timer != nil {
		up.timer.Stop()
	}
	up.timer = timer
	up.timerKind = timerLazyResolve
	up.mu.Unlock()
}

func (l *List) onLazyResolveFire(up *Upstream) {
	up.mu.Lock()
	detached := up.list != l
	up.timer = nil
	up.timerKind = timerNone
	up.mu.Unlock()
	if detached {
		return
	}

	l.startResolve(up)
	l.armLazyResolve(up)
}

// startResolve launches the A and AAAA lookups for up via the context's
// resolver, each retaining up (via the dnsWorker closure) and
// incrementing dns_requests until it completes.
func (l *List) startResolve(up *Upstream) {
	if l.ctx == nil {
		return
	}
	resolver := l.ctx.resolverHandle()
	if resolver == nil {
		return
	}

	up.mu.Lock()
	if up.flags&FlagNoResolve != 0 {
		up.mu.Unlock()
		return
	}
	up.dnsRequests += 2
	up.mu.Unlock()

	lim := l.effectiveLimits()
	go l.dnsWorker(up, resolver, lim, true)
	go l.dnsWorker(up, resolver, lim, false)
}

func (l *List) dnsWorker(up *Upstream, resolver interfaces.Resolver, lim Limits, lookupA bool) {
	ctx, cancel := context.WithTimeout(context.Background(), lim.DNSTimeout)
	defer cancel()

	var ips []net.IP
	var err error
	if lookupA {
		ips, err = resolver.LookupA(ctx, up.Name(), lim.DNSRetransmits)
	} else {
		ips, err = resolver.LookupAAAA(ctx, up.Name(), lim.DNSRetransmits)
	}
	if err != nil {
		dnsLog.Debug("lookup failed", "upstream", up.Name(), "uid", up.UID(), "a", lookupA, "err", err)
	}

	up.mu.Lock()
	detached := up.list != l
	if !detached && err == nil {
		for _, ip := range ips {
			up.newAddrs = append(up.newAddrs, addrEntry{addr: Addr{IP: ip}})
		}
	}
	up.dnsRequests--
	remaining := up.dnsRequests
	up.mu.Unlock()

	if detached || remaining != 0 {
		return
	}
	l.mergeAddrs(up)
}

// mergeAddrs merges a freshly resolved address set into up: port
// carry-over, the 10% amnesty roll, per-address error carry-over by
// numeric-equality match, re-sort. If both A and AAAA lookups failed,
// newAddrs is empty and addrs is left untouched — stale addresses beat no
// addresses.
func (l *List) mergeAddrs(up *Upstream) {
	up.mu.Lock()
	defer up.mu.Unlock()

	if up.list != l {
		up.newAddrs = nil
		return
	}
	if len(up.newAddrs) == 0 {
		up.newAddrs = nil
		return
	}

	var port uint16
	if len(up.addrs) > 0 {
		port = up.addrs[0].addr.Port
	}

	amnesty := l.ctx != nil && l.ctx.amnestyRoll()

	merged := make([]addrEntry, 0, len(up.newAddrs))
	for _, incoming := range up.newAddrs {
		incoming.addr.Port = port
		entry := addrEntry{addr: incoming.addr}
		if !amnesty {
			for _, old := range up.addrs {
				if old.addr.equalNoPort(incoming.addr) {
					entry.errors = old.errors
					break
				}
			}
		}
		merged = append(merged, entry)
	}

	sortAddrEntries(merged)
	up.addrs = merged
	up.cur = 0
	up.newAddrs = nil
}
