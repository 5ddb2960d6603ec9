package aiocore

// wakeChannel is the cross-thread signaling primitive of spec.md §4.3: a
// pollable descriptor any goroutine can signal to interrupt the worker's
// poller.wait, with coalescing semantics (repeated signals before the next
// unsignal collapse to one wake).
type wakeChannel interface {
	// fd is the descriptor to register with the poller as IN-ready.
	fd() int

	// signal pulses the channel. Idempotent: a signal already pending
	// before the next unsignal does not queue a second wake (spec.md
	// invariant 4).
	signal() error

	// unsignal clears a pending signal after the worker has observed it.
	unsignal() error

	close() error
}
