package aiocore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpQueueFIFOOrder(t *testing.T) {
	q := newOpQueue()
	reqs := []*opRequest{
		{op: opAdd},
		{op: opSetIn},
		{op: opSetOut},
	}
	for _, r := range reqs {
		require.True(t, q.push(r))
	}

	out := q.drain()
	require.Len(t, out, 3)
	require.Same(t, reqs[0], out[0])
	require.Same(t, reqs[1], out[1])
	require.Same(t, reqs[2], out[2])
}

func TestOpQueuePushRejectsAlreadyPending(t *testing.T) {
	q := newOpQueue()
	r := &opRequest{op: opAdd}

	require.True(t, q.push(r))
	require.False(t, q.push(r)) // already queued, same node reused

	out := q.drain()
	require.Len(t, out, 1)
}

func TestOpQueueDrainResetsPendingFlag(t *testing.T) {
	q := newOpQueue()
	r := &opRequest{op: opAdd}

	require.True(t, q.push(r))
	q.drain()

	// after drain, the node is reusable.
	require.True(t, q.push(r))
	require.Len(t, q.drain(), 1)
}

func TestOpQueueDrainEmptyReturnsNil(t *testing.T) {
	q := newOpQueue()
	require.Nil(t, q.drain())
}
