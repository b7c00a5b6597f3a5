package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWorkInterval(t *testing.T) {
	t.Parallel()

	w := WorkInterval{Start: 3, End: 7}
	require.Equal(t, 4, w.Len())
	require.False(t, w.IsIdle())
	require.True(t, w.Contains(3))
	require.True(t, w.Contains(6))
	require.False(t, w.Contains(7))
	require.False(t, w.Contains(2))
	require.Equal(t, "[3,7)", w.String())

	idle := WorkInterval{}
	require.True(t, idle.IsIdle())
	require.False(t, idle.Contains(0))

	inverted := WorkInterval{Start: 5, End: 2}
	require.Equal(t, 0, inverted.Len())
}

func TestRoundID(t *testing.T) {
	t.Parallel()

	a := RoundID("run-1", "s15.0.dat")
	b := RoundID("run-1", "s15.0.dat")
	require.Equal(t, a, b)
	require.Len(t, a, 16)
	require.NotContains(t, a, ".")

	require.NotEqual(t, a, RoundID("run-2", "s15.0.dat"))
	require.NotEqual(t, RoundID("ab", "c"), RoundID("a", "bc"))
}
