package aiocore

// Sink is the polymorphic callback set a handle's owner provides. Only the
// capabilities a given handle can actually reach need be implemented
// meaningfully; the rest may be no-ops (spec.md §3: "any may be absent if
// the handle never reaches that completion").
//
// Sink methods are invoked while the handle's Port holds its internal lock,
// on the worker goroutine or, for an operation that completes immediately
// (e.g. a zero-length Recv), synchronously on the goroutine that requested
// it. Closed for a USock that was never registered is invoked on the
// closing goroutine without the lock. A given Sink is never re-entered
// concurrently with itself (spec.md §5).
type Sink interface {
	// Connected fires once a USock's non-blocking connect completes
	// successfully.
	Connected()

	// Accepted fires once a listening USock accepts a new connection. The
	// sink owns newfd and is responsible for wrapping it as a child USock
	// via USock.InitChild.
	Accepted(newfd int)

	// Sent fires once an outstanding Send fully completes.
	Sent()

	// Received fires once an outstanding Recv fully completes.
	Received()

	// Err fires for any failure of a Connect, Accept, Send or Recv
	// (connection reset, connect refusal, poller error on the handle's
	// descriptor). Bind and Listen return their errors directly instead.
	Err(err error)

	// Timeout fires when a bound Timer expires.
	Timeout()

	// Event fires when a bound Event is signaled and drained.
	Event()

	// Closed fires exactly once, after a USock has been fully torn down
	// (descriptor closed, batch buffer freed). No further Sink calls occur
	// for that handle afterward (spec.md invariant 3).
	Closed()
}

// sinkHolder indirects a Sink pointer so an owning finite-state-machine can
// atomically rebind which Sink a handle dispatches to — e.g. when a
// connecting endpoint becomes a running one — without copying the handle or
// racing the worker goroutine's dispatch. The replacement must happen while
// holding the owning Port's lock (Port.Lock/Unlock), matching spec.md §3's
// "the sink pointer is held indirectly ... so the owner can atomically
// rebind the sink".
type sinkHolder struct {
	sink Sink
}

func (h *sinkHolder) get() Sink {
	return h.sink
}

func (h *sinkHolder) set(s Sink) {
	h.sink = s
}
