package upstream

import (
	"net"
	"sort"
	"strconv"
)

// Addr is a single resolved upstream endpoint address: either an IP with a
// port, or a UNIX domain socket path.
type Addr struct {
	IP   net.IP // nil for a UNIX address
	Port uint16
	Path string // set for a UNIX address; IP and Port are ignored
}

// IsUnix reports whether a is a UNIX domain socket address.
func (a Addr) IsUnix() bool { return a.Path != "" }

// String renders a as "host:port" or, for a UNIX address, its path.
func (a Addr) String() string {
	if a.IsUnix() {
		return a.Path
	}
	return net.JoinHostPort(a.IP.String(), strconv.Itoa(int(a.Port)))
}

// familyWeight ranks address families for the UNIX > IPv4 > IPv6 sort
// order.
func (a Addr) familyWeight() int {
	switch {
	case a.IsUnix():
		return 2
	case a.IP.To4() != nil:
		return 1
	default:
		return 0
	}
}

// equalNoPort reports whether a and b name the same address, ignoring
// port, so an incoming DNS answer can be matched against an existing
// entry regardless of the port carried over separately.
func (a Addr) equalNoPort(b Addr) bool {
	if a.IsUnix() != b.IsUnix() {
		return false
	}
	if a.IsUnix() {
		return a.Path == b.Path
	}
	return a.IP.Equal(b.IP)
}

// addrEntry pairs an Addr with its per-address error count, the unit
// addr_next rotates over.
type addrEntry struct {
	addr   Addr
	errors uint
}

// sortAddrEntries sorts by descending family weight (UNIX > IPv4 > IPv6),
// stably preserving relative order within a family. Re-applied after
// every DNS merge.
func sortAddrEntries(entries []addrEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].addr.familyWeight() > entries[j].addr.familyWeight()
	})
}
