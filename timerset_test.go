package aiocore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimerSetOrdersByDeadline(t *testing.T) {
	ts := newTimerSet()
	now := time.Now()

	a := &Timer{}
	b := &Timer{}
	c := &Timer{}

	ts.add(now.Add(30*time.Millisecond), a)
	ts.add(now.Add(10*time.Millisecond), b)
	ts.add(now.Add(20*time.Millisecond), c)

	first, ok := ts.event(now.Add(100 * time.Millisecond))
	require.True(t, ok)
	require.Same(t, b, first)

	second, ok := ts.event(now.Add(100 * time.Millisecond))
	require.True(t, ok)
	require.Same(t, c, second)

	third, ok := ts.event(now.Add(100 * time.Millisecond))
	require.True(t, ok)
	require.Same(t, a, third)

	_, ok = ts.event(now.Add(100 * time.Millisecond))
	require.False(t, ok)
}

func TestTimerSetTiesBreakByInsertionOrder(t *testing.T) {
	ts := newTimerSet()
	deadline := time.Now()

	a := &Timer{}
	b := &Timer{}

	ts.add(deadline, a)
	ts.add(deadline, b)

	first, ok := ts.event(deadline.Add(time.Millisecond))
	require.True(t, ok)
	require.Same(t, a, first)

	second, ok := ts.event(deadline.Add(time.Millisecond))
	require.True(t, ok)
	require.Same(t, b, second)
}

func TestTimerSetEventDoesNotFireEarly(t *testing.T) {
	ts := newTimerSet()
	now := time.Now()
	a := &Timer{}
	ts.add(now.Add(time.Hour), a)

	_, ok := ts.event(now)
	require.False(t, ok)
}

func TestTimerSetRemoveReportsEarliestChange(t *testing.T) {
	ts := newTimerSet()
	now := time.Now()

	a := &Timer{}
	b := &Timer{}
	ts.add(now.Add(10*time.Millisecond), a)
	ts.add(now.Add(20*time.Millisecond), b)

	require.True(t, ts.remove(a))
	// b is now the sole remaining entry, so it is the earliest by construction.
	require.True(t, ts.remove(b))
}

func TestTimerSetTimeoutRoundsUpSubMillisecond(t *testing.T) {
	ts := newTimerSet()
	a := &Timer{}
	ts.add(time.Now().Add(200*time.Microsecond), a)
	require.Equal(t, 1, ts.timeout())
}

func TestTimerSetTimeoutNegativeWhenEmpty(t *testing.T) {
	ts := newTimerSet()
	require.Equal(t, -1, ts.timeout())
}
