package aiocore

// Event is the cross-thread signal handle of spec.md §4.9: any goroutine
// may call Signal; the worker delivers exactly one Sink.Event callback per
// Signal, in the order Signal was called (spec.md §8 "N-thread signal ->
// N ordered callbacks").
type Event struct {
	port *Port
	sink sinkHolder
}

// InitEvent creates an Event bound to port and sink.
func InitEvent(port *Port, sink Sink) *Event {
	e := &Event{port: port}
	e.sink.set(sink)
	return e
}

// Term releases the event. Like Timer, Event has no close callback.
func (e *Event) Term() {}

// Signal enqueues one delivery of Sink.Event, waking the worker if the
// caller isn't already it.
func (e *Event) Signal() {
	e.port.enqueueEvent(e)
}
