package upstream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLineSplitsOnSeparators(t *testing.T) {
	l := NewList(nil)
	ok := l.ParseLine("10.0.0.1, 10.0.0.2; 10.0.0.3\t10.0.0.4", 80, nil)
	require.True(t, ok)
	assert.Equal(t, 4, l.Count())
}

func TestParseLineAppliesPolicyPrefix(t *testing.T) {
	l := NewList(nil)
	ok := l.ParseLine("hash:10.0.0.1,10.0.0.2", 80, nil)
	require.True(t, ok)

	l.mu.Lock()
	alg := l.rotAlg
	l.mu.Unlock()
	assert.Equal(t, RotHashed, alg)
}

func TestParseLineLenTruncatesInput(t *testing.T) {
	l := NewList(nil)
	ok := l.ParseLineLen("10.0.0.1,10.0.0.2,10.0.0.3", 9, 80, nil)
	require.True(t, ok)
	assert.Equal(t, 1, l.Count())
}

func TestFromStringsAcceptsPartialSuccess(t *testing.T) {
	l := NewList(nil)
	ok := l.FromStrings([]string{"10.0.0.1", "", "10.0.0.2"}, 80, nil)
	require.True(t, ok)
	assert.Equal(t, 2, l.Count())
}

func TestParseLineRejectsAllInvalidEntries(t *testing.T) {
	l := NewList(nil)
	assert.False(t, l.ParseLine(" , ;", 80, nil))
}
