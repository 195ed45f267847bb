package upstream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddWatchPanicsOnEmptyMask(t *testing.T) {
	l := NewList(nil)
	assert.PanicsWithValue(t, ErrEmptyMask, func() {
		l.AddWatch(0, func(WatchEvent, *Upstream, uint, any) {}, nil, nil)
	})
}

func TestWatchDeliversOnlyMaskedEvents(t *testing.T) {
	l := NewList(nil)

	var got []WatchEvent
	unregister := l.AddWatch(EventOnline|EventFailure, func(ev WatchEvent, up *Upstream, errs uint, ud any) {
		got = append(got, ev)
	}, nil, nil)
	defer unregister()

	require.True(t, l.AddUpstream("10.0.0.1:80", 0, ParseModeDefault, nil)) // EventOnline
	up := l.Get(RotSequential, nil)
	require.NotNil(t, up)

	up.Fail(false) // EventFailure
	up.Ok()        // EventSuccess, not in mask

	assert.Equal(t, []WatchEvent{EventOnline, EventFailure}, got)
}

func TestUnregisterStopsDeliveryAndRunsDestroy(t *testing.T) {
	l := NewList(nil)

	destroyed := false
	calls := 0
	unregister := l.AddWatch(EventAll, func(WatchEvent, *Upstream, uint, any) {
		calls++
	}, "payload", func(ud any) {
		destroyed = true
		assert.Equal(t, "payload", ud)
	})

	require.True(t, l.AddUpstream("10.0.0.1:80", 0, ParseModeDefault, nil))
	assert.Equal(t, 1, calls)

	unregister()
	assert.True(t, destroyed)

	require.True(t, l.AddUpstream("10.0.0.2:80", 0, ParseModeDefault, nil))
	assert.Equal(t, 1, calls, "no further delivery after unregister")
}

func TestOfflineEventCarriesErrorCount(t *testing.T) {
	l := NewList(nil)

	var lastErrs uint
	var lastEvent WatchEvent
	l.AddWatch(EventOffline, func(ev WatchEvent, up *Upstream, errs uint, ud any) {
		lastEvent = ev
		lastErrs = errs
	}, nil, nil)

	require.True(t, l.AddUpstream("10.0.0.1:80", 0, ParseModeDefault, nil))
	up := l.Get(RotSequential, nil)
	require.NotNil(t, up)

	l.setInactive(up)
	assert.Equal(t, EventOffline, lastEvent)
	assert.Equal(t, up.Errors(), lastErrs)
}
