package aiocore

import (
	"container/list"
	"sync"
)

// eventQueue is the per-Port FIFO of user-raised events, guarded by its own
// mutex (events_sync in spec.md §3/§5), distinct from the operation queue's
// lock and from Port.mu.
type eventQueue struct {
	mu sync.Mutex
	l  list.List
}

func newEventQueue() *eventQueue {
	q := &eventQueue{}
	q.l.Init()
	return q
}

// push enqueues ev at the back of the queue. Events from a single goroutine
// are delivered in enqueue order (spec.md §5); this holds because push
// always appends and drain always pops from the front.
func (q *eventQueue) push(ev *Event) {
	q.mu.Lock()
	q.l.PushBack(ev)
	q.mu.Unlock()
}

// drain removes and returns every currently queued event, in FIFO order.
func (q *eventQueue) drain() []*Event {
	q.mu.Lock()
	if q.l.Len() == 0 {
		q.mu.Unlock()
		return nil
	}
	out := make([]*Event, 0, q.l.Len())
	for e := q.l.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(*Event))
	}
	q.l.Init()
	q.mu.Unlock()
	return out
}
