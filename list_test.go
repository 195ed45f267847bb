package upstream

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddUpstreamLiteralIPAndUnix(t *testing.T) {
	l := NewList(nil)

	require.True(t, l.AddUpstream("192.0.2.10:443", 0, ParseModeDefault, nil))
	require.True(t, l.AddUpstream("unix:/var/run/app.sock", 0, ParseModeDefault, nil))
	assert.Equal(t, 2, l.Count())
	assert.Equal(t, 2, l.AliveCount())
}

func TestAddUpstreamRejectsEmptySpec(t *testing.T) {
	l := NewList(nil)
	assert.False(t, l.AddUpstream("", 0, ParseModeDefault, nil))
	assert.Equal(t, 0, l.Count())
}

func TestAddUpstreamErrReturnsErrEmptySpec(t *testing.T) {
	l := NewList(nil)
	up, err := l.AddUpstreamErr("", 0, ParseModeDefault, nil)
	assert.Nil(t, up)
	assert.True(t, errors.Is(err, ErrEmptySpec))
}

func TestAddUpstreamNameserverModeRejectsHostname(t *testing.T) {
	l := NewList(nil)
	assert.False(t, l.AddUpstream("resolver.example.com", 53, ParseModeNameserver, nil))
	assert.True(t, l.AddUpstream("192.0.2.53", 53, ParseModeNameserver, nil))
}

func TestMasterSlaveFirstMemberDefaultsToWeightOne(t *testing.T) {
	l := NewList(nil)
	l.SetRotation(RotMasterSlave)

	require.True(t, l.AddUpstream("10.0.0.1:80", 0, ParseModeDefault, nil))
	ups := l.Stats().PerUpstream
	require.Len(t, ups, 1)
	assert.Equal(t, uint(1), ups[0].Weight)
}

func TestCloseRemovesUpstreamAndReindexesAliveSet(t *testing.T) {
	l := NewList(nil)
	require.True(t, l.AddUpstream("10.0.0.1:80", 0, ParseModeDefault, nil))
	require.True(t, l.AddUpstream("10.0.0.2:80", 0, ParseModeDefault, nil))
	require.True(t, l.AddUpstream("10.0.0.3:80", 0, ParseModeDefault, nil))

	var middle *Upstream
	l.Foreach(func(u *Upstream) {
		if u.Name() == "10.0.0.2" {
			middle = u
		}
	})
	require.NotNil(t, middle)

	l.Close(middle)
	assert.Equal(t, 2, l.Count())
	assert.Equal(t, 2, l.AliveCount())

	names := map[string]bool{}
	l.Foreach(func(u *Upstream) { names[u.Name()] = true })
	assert.False(t, names["10.0.0.2"])
}

func TestDestroyEmptiesListAndRunsWatcherDestructors(t *testing.T) {
	l := NewList(nil)
	require.True(t, l.AddUpstream("10.0.0.1:80", 0, ParseModeDefault, nil))

	destroyed := false
	l.AddWatch(EventAll, func(WatchEvent, *Upstream, uint, any) {}, nil, func(any) {
		destroyed = true
	})

	l.Destroy()
	assert.Equal(t, 0, l.Count())
	assert.True(t, destroyed)
}

func TestStatsReflectsWeightAndLiveness(t *testing.T) {
	l := NewList(nil)
	require.True(t, l.AddUpstream("10.0.0.1:80:7", 0, ParseModeDefault, nil))

	stats := l.Stats()
	require.Equal(t, 1, stats.Total)
	require.Len(t, stats.PerUpstream, 1)
	assert.Equal(t, uint(7), stats.PerUpstream[0].Weight)
	assert.True(t, stats.PerUpstream[0].Alive)
}
