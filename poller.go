package aiocore

// pollOp is the readiness direction reported by the poller for a ready
// descriptor (spec.md §4.1).
type pollOp int

const (
	pollIn pollOp = 1 << iota
	pollOut
	pollErr
)

// pollHandle identifies a registered descriptor to the poller. It is a
// small integer index into the Port's live-handle table rather than a raw
// pointer, so the poller package stays allocation-free per readiness cycle
// (spec.md §9 "dispatch by embedded node" re-architected as a tagged
// index rather than pointer arithmetic over an embedded list node).
type pollHandle int

// poller is the readiness-poller contract of spec.md §4.1. Implementations
// live in poller_linux.go (epoll) and poller_kqueue.go (kqueue); both are
// driven exclusively by the owning Port's worker goroutine (spec.md
// invariant 1).
type poller interface {
	// add registers fd under handle with no interest armed yet.
	add(fd int, handle pollHandle) error

	// remove detaches handle; its readiness will never be reported again.
	remove(handle pollHandle) error

	setIn(handle pollHandle) error
	resetIn(handle pollHandle) error
	setOut(handle pollHandle) error
	resetOut(handle pollHandle) error

	// wait blocks up to timeoutMS (or indefinitely if negative) for any
	// armed interest to become ready, or for the wake channel's descriptor.
	// It transparently restarts on signal interruption (spec.md §9).
	wait(timeoutMS int) error

	// event drains one ready (op, handle) tuple per call; ok is false once
	// the current batch is exhausted.
	event() (op pollOp, handle pollHandle, ok bool)

	// close releases the poller's own resources (epoll/kqueue descriptor).
	close() error
}
