package aiocore

import (
	"container/heap"
	"sync/atomic"
	"time"
)

// timerItem is one scheduled deadline, grounded on the teacher's timedHeap
// entries (watcher.go): a deadline, an owning handle, and a cached heap
// index so removal (timer.Stop, or rescheduling via timer.Start) is
// O(log n) instead of a linear scan.
type timerItem struct {
	deadline time.Time
	owner    *Timer
	index    int
}

// timerHeap implements container/heap.Interface over timerItem, ordered by
// deadline with ties broken by insertion order (spec.md §5: "ties broken by
// insertion order" — guaranteed here because container/heap is not a stable
// sort, so ties are broken instead by a monotonically increasing sequence
// number recorded at push time).
type timerHeap struct {
	items []*timerItem
	seq   []uint64
}

func (h *timerHeap) Len() int { return len(h.items) }

func (h *timerHeap) Less(i, j int) bool {
	if h.items[i].deadline.Equal(h.items[j].deadline) {
		return h.seq[i] < h.seq[j]
	}
	return h.items[i].deadline.Before(h.items[j].deadline)
}

func (h *timerHeap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.seq[i], h.seq[j] = h.seq[j], h.seq[i]
	h.items[i].index = i
	h.items[j].index = j
}

func (h *timerHeap) Push(x any) {
	it := x.(*timerItem)
	it.index = len(h.items)
	h.items = append(h.items, it)
	h.seq = append(h.seq, nextTimerSeq())
}

func (h *timerHeap) Pop() any {
	n := len(h.items)
	it := h.items[n-1]
	h.items[n-1] = nil
	h.items = h.items[:n-1]
	h.seq = h.seq[:n-1]
	it.index = -1
	return it
}

// timerSeqCounter hands out insertion-order tie-breakers. It is shared by
// the timer sets of every Port, each guarded by a different lock, so it is
// advanced atomically.
var timerSeqCounter uint64

func nextTimerSeq() uint64 {
	return atomic.AddUint64(&timerSeqCounter, 1)
}

// timerSet is the ordered set of deadlines described in spec.md §4.2. Its
// methods are called with the owning Port's lock held, by the worker
// goroutine and by Timer.Start/Stop on the calling goroutine.
type timerSet struct {
	h timerHeap
}

func newTimerSet() *timerSet {
	return &timerSet{}
}

// add schedules owner to expire at deadline, returning true if this became
// the new earliest deadline (spec.md §4.2).
func (s *timerSet) add(deadline time.Time, owner *Timer) (becameEarliest bool) {
	wasEmpty := s.h.Len() == 0
	item := &timerItem{deadline: deadline, owner: owner}
	heap.Push(&s.h, item)
	owner.item = item
	if wasEmpty {
		return true
	}
	return s.h.items[0] == item
}

// remove cancels owner's scheduled deadline, returning true if doing so
// changed the earliest deadline (spec.md §4.2).
func (s *timerSet) remove(owner *Timer) (wasFirst bool) {
	item := owner.item
	if item == nil || item.index < 0 {
		return false
	}
	wasFirst = item.index == 0
	heap.Remove(&s.h, item.index)
	owner.item = nil
	return wasFirst
}

// timeout returns the number of milliseconds until the earliest deadline,
// or -1 if no timer is scheduled (spec.md §4.2).
func (s *timerSet) timeout() int {
	if s.h.Len() == 0 {
		return -1
	}
	d := time.Until(s.h.items[0].deadline)
	if d <= 0 {
		return 0
	}
	ms := d.Milliseconds()
	if ms == 0 {
		// round up so a sub-millisecond remaining deadline still gets a
		// non-zero poller timeout, avoiding a busy-spin.
		return 1
	}
	return int(ms)
}

// event pops and returns the owner of the earliest timer if it has
// expired, or (nil, false) otherwise (spec.md §4.2).
func (s *timerSet) event(now time.Time) (*Timer, bool) {
	if s.h.Len() == 0 {
		return nil, false
	}
	item := s.h.items[0]
	if now.Before(item.deadline) {
		return nil, false
	}
	heap.Pop(&s.h)
	item.owner.item = nil
	return item.owner, true
}
