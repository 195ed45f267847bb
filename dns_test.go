package upstream

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMergeAddrsCarriesOverPortAndErrors: the incoming addresses inherit
// the existing port, and an address that numerically matches an
// existing one keeps its error count (when the amnesty roll does not
// fire).
func TestMergeAddrsCarriesOverPortAndErrors(t *testing.T) {
	l := NewList(nil) // ctx == nil: amnesty never rolls

	up := newUpstream("svc.internal", 0, 1, []addrEntry{
		{addr: Addr{IP: net.ParseIP("192.0.2.1"), Port: 8080}, errors: 3},
		{addr: Addr{IP: net.ParseIP("192.0.2.2"), Port: 8080}, errors: 0},
	})
	up.list = l

	up.newAddrs = []addrEntry{
		{addr: Addr{IP: net.ParseIP("192.0.2.1")}}, // reappears, no port set yet
		{addr: Addr{IP: net.ParseIP("192.0.2.3")}}, // new address, no prior entry
	}

	l.mergeAddrs(up)

	require.Len(t, up.addrs, 2)
	byIP := map[string]addrEntry{}
	for _, e := range up.addrs {
		byIP[e.addr.IP.String()] = e
	}

	assert.Equal(t, uint16(8080), byIP["192.0.2.1"].addr.Port)
	assert.Equal(t, uint(3), byIP["192.0.2.1"].errors)
	assert.Equal(t, uint16(8080), byIP["192.0.2.3"].addr.Port)
	assert.Equal(t, uint(0), byIP["192.0.2.3"].errors)
}

// TestMergeAddrsKeepsStaleSetOnTotalFailure covers the case where both
// A and AAAA lookups failed: newAddrs is empty, and the existing
// address set must be left untouched rather than emptied.
func TestMergeAddrsKeepsStaleSetOnTotalFailure(t *testing.T) {
	l := NewList(nil)
	up := newUpstream("svc.internal", 0, 1, []addrEntry{
		{addr: Addr{IP: net.ParseIP("192.0.2.1"), Port: 80}},
	})
	up.list = l
	up.newAddrs = nil

	l.mergeAddrs(up)

	require.Len(t, up.addrs, 1)
	assert.Equal(t, "192.0.2.1", up.addrs[0].addr.IP.String())
}

// TestMergeAddrsIgnoredAfterDetach: a merge landing after the upstream
// detached from its list must not mutate addrs.
func TestMergeAddrsIgnoredAfterDetach(t *testing.T) {
	l := NewList(nil)
	other := NewList(nil)
	up := newUpstream("svc.internal", 0, 1, []addrEntry{
		{addr: Addr{IP: net.ParseIP("192.0.2.1"), Port: 80}},
	})
	up.list = other // detached from l's point of view

	up.newAddrs = []addrEntry{{addr: Addr{IP: net.ParseIP("192.0.2.9")}}}
	l.mergeAddrs(up)

	require.Len(t, up.addrs, 1)
	assert.Equal(t, "192.0.2.1", up.addrs[0].addr.IP.String())
	assert.Nil(t, up.newAddrs)
}

// TestSortAddrEntriesAfterMerge: every merge re-sorts the address list.
func TestSortAddrEntriesAfterMerge(t *testing.T) {
	l := NewList(nil)
	up := newUpstream("svc.internal", 0, 1, nil)
	up.list = l

	up.newAddrs = []addrEntry{
		{addr: Addr{IP: net.ParseIP("2001:db8::1")}},
		{addr: Addr{IP: net.ParseIP("192.0.2.1")}},
	}
	l.mergeAddrs(up)

	require.Len(t, up.addrs, 2)
	assert.NotNil(t, up.addrs[0].addr.IP.To4(), "IPv4 must sort before IPv6")
}
