package aiocore

import "time"

// Timer is the standalone timer handle of spec.md §4.9: Start arms a
// one-shot deadline, firing Sink.Timeout no earlier than requested. Start
// may be called again on an already-armed Timer, replacing the deadline.
type Timer struct {
	port *Port

	sink sinkHolder

	item   *timerItem
	active bool
}

// InitTimer creates a Timer bound to port and sink (spec.md §4.9).
func InitTimer(port *Port, sink Sink) *Timer {
	t := &Timer{port: port}
	t.sink.set(sink)
	return t
}

// Term stops the timer if armed and releases it. Term does not itself
// deliver Sink.Closed; spec.md §4.9 gives Timer no close callback.
func (t *Timer) Term() {
	t.Stop()
}

// Start arms (or re-arms) the timer for ms milliseconds from now.
func (t *Timer) Start(ms int) {
	t.port.lockedF(func() {
		if t.active {
			t.port.timers.remove(t)
		}
		deadline := time.Now().Add(time.Duration(ms) * time.Millisecond)
		wasEarliest := t.port.timers.add(deadline, t)
		t.active = true
		if wasEarliest && !t.port.isWorker() {
			_ = t.port.wake.signal()
		}
	})
}

// Stop disarms the timer if armed; a no-op otherwise.
func (t *Timer) Stop() {
	t.port.lockedF(func() {
		if !t.active {
			return
		}
		wasEarliest := t.port.timers.remove(t)
		t.active = false
		if wasEarliest && !t.port.isWorker() {
			_ = t.port.wake.signal()
		}
	})
}
