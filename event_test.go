package aiocore

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEventSignalDeliversEvent(t *testing.T) {
	p, err := Init()
	require.NoError(t, err)
	defer p.Term()

	fired := make(chan struct{}, 1)
	ev := InitEvent(p, &testSink{onEvent: func() { fired <- struct{}{} }})

	ev.Signal()

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("event never delivered")
	}
}

func TestEventSignalFromManyGoroutinesDeliversAll(t *testing.T) {
	p, err := Init()
	require.NoError(t, err)
	defer p.Term()

	const n = 50
	var count int64
	done := make(chan struct{})
	ev := InitEvent(p, &testSink{onEvent: func() {
		if atomic.AddInt64(&count, 1) == n {
			close(done)
		}
	}})

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ev.Signal()
		}()
	}
	wg.Wait()

	select {
	case <-done:
		require.EqualValues(t, n, atomic.LoadInt64(&count))
	case <-time.After(2 * time.Second):
		t.Fatalf("only %d/%d events delivered", atomic.LoadInt64(&count), n)
	}
}

func TestEventSignalFromSingleGoroutinePreservesOrder(t *testing.T) {
	p, err := Init()
	require.NoError(t, err)
	defer p.Term()

	var mu sync.Mutex
	var order []int
	done := make(chan struct{})

	// one Event per signal, each recording its own index, so the delivery
	// order is observable.
	evs := make([]*Event, 10)
	for i := range evs {
		i := i
		evs[i] = InitEvent(p, &testSink{onEvent: func() {
			mu.Lock()
			order = append(order, i)
			if len(order) == 10 {
				close(done)
			}
			mu.Unlock()
		}})
	}

	for _, ev := range evs {
		ev.Signal()
	}

	select {
	case <-done:
		for i, v := range order {
			require.Equal(t, i, v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("not all events delivered")
	}
}
