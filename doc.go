// Package aiocore is an asynchronous I/O engine for building scalability
// protocols on top of non-blocking stream sockets, timers and cross-thread
// events.
//
// aiocore acts in proactor mode: a single worker goroutine owns a readiness
// poller, a timer set, and two cross-thread FIFOs (an operation queue and an
// event queue). Callers on any goroutine may create handles (USock, Timer,
// Event) bound to a Port and a Sink, and request operations on them; if the
// caller is not the worker goroutine the request is forwarded through the
// operation queue and the worker is woken via a pollable wake channel.
// Completions are delivered by calling back into the handle's Sink: on the
// worker goroutine, or synchronously on the requesting goroutine when an
// operation completes immediately.
//
// Transport-specific endpoint state machines (connect-with-backoff,
// accept-and-run, protocol framing) and messaging-protocol semantics are
// layered on top of this package and are out of its scope.
package aiocore
