package upstream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpstreamAccessors(t *testing.T) {
	l := NewList(nil)
	require.True(t, l.AddUpstream("10.0.0.1:80:3", 0, ParseModeDefault, "payload"))
	up := l.Get(RotSequential, nil)
	require.NotNil(t, up)

	assert.Equal(t, "10.0.0.1", up.Name())
	assert.NotEmpty(t, up.UID())
	assert.Equal(t, uint(3), up.Weight())
	assert.Equal(t, "payload", up.Data())
	assert.Equal(t, uint(0), up.Errors())
	assert.Equal(t, uint(1), up.Checked())

	up.SetWeight(9)
	assert.Equal(t, uint(9), up.Weight())

	up.SetData("other")
	assert.Equal(t, "other", up.Data())
}

func TestTriggerResolveSkipsNoResolveUpstream(t *testing.T) {
	l := NewList(nil)
	require.True(t, l.AddUpstream("10.0.0.1:80", 0, ParseModeDefault, nil)) // literal IP -> FlagNoResolve
	up := l.Get(RotSequential, nil)
	require.NotNil(t, up)

	assert.NotPanics(t, func() { up.triggerResolve() })
}

func TestDetachClearsListAndTimer(t *testing.T) {
	l := NewList(nil)
	require.True(t, l.AddUpstream("10.0.0.1:80", 0, ParseModeDefault, nil))
	up := l.Get(RotSequential, nil)
	require.NotNil(t, up)

	up.detach()

	up.mu.Lock()
	list := up.list
	timer := up.timer
	up.mu.Unlock()

	assert.Nil(t, list)
	assert.Nil(t, timer)
}
