package aiocore

import (
	"errors"

	pkgerrors "github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Sentinel errors returned via Sink.Err or synchronously from the operation
// that failed. Callers may compare against these with errors.Is. ErrConnReset
// is delivered as is, without the errno that produced it; errors that are
// passed through unclassified are wrapped with github.com/pkg/errors, so
// their originating errno is recoverable with Cause.
var (
	// ErrConnReset is the normalized code for any of the "connection is
	// gone" errno classes on read or write (spec.md §7).
	ErrConnReset = errors.New("aiocore: connection reset")

	// ErrClosed names the error for an operation on a closed or closing
	// handle. No function in this package returns it.
	ErrClosed = errors.New("aiocore: handle closed")

	// ErrWatcherClosed names the error for a Port operation after Term. No
	// function in this package returns it.
	ErrWatcherClosed = errors.New("aiocore: port closed")

	// ErrUnsupported names the error for a descriptor aiocore cannot
	// handle. No function in this package returns it.
	ErrUnsupported = errors.New("aiocore: unsupported connection type")
)

// invariant panics on programmer error, per spec.md §7: "Invariant
// violation ... fatal assertion — the core treats these as programmer
// errors by the caller."
func invariant(cond bool, msg string) {
	if !cond {
		panic("aiocore: invariant violation: " + msg)
	}
}

// classifyReadError maps a read(2)/recvmsg(2) errno to either "would
// block" (errWouldBlock, caller retries later), ErrConnReset, or a
// passthrough wrapped error. A nil err stays nil.
func classifyReadError(err error) error {
	if err == nil {
		return nil
	}
	switch err {
	case unix.EAGAIN, unix.EWOULDBLOCK:
		return errWouldBlock
	case unix.ECONNRESET, unix.ENOTCONN, unix.ECONNREFUSED, unix.ETIMEDOUT, unix.EHOSTUNREACH:
		return ErrConnReset
	default:
		return pkgerrors.Wrap(err, "aiocore: read")
	}
}

// classifyWriteError maps a write(2)/sendmsg(2) errno the same way, using
// the write-side errno set from spec.md §7.
func classifyWriteError(err error) error {
	if err == nil {
		return nil
	}
	switch err {
	case unix.EAGAIN, unix.EWOULDBLOCK:
		return errWouldBlock
	case unix.ECONNRESET, unix.ETIMEDOUT, unix.EPIPE:
		return ErrConnReset
	default:
		return pkgerrors.Wrap(err, "aiocore: write")
	}
}

// isTransientAcceptError reports whether err belongs to the
// accept-transient class (spec.md §7/§4.8): swallowed, accept stays armed.
func isTransientAcceptError(err error) bool {
	switch err {
	case unix.ECONNABORTED, unix.EPROTO, unix.ENOBUFS, unix.ENOMEM, unix.EMFILE, unix.ENFILE:
		return true
	default:
		return false
	}
}

// errWouldBlock is an internal sentinel distinguishing "no progress yet,
// stay armed" from a real completion; it is never exposed to sinks.
var errWouldBlock = errors.New("aiocore: would block")
