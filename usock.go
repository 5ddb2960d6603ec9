package aiocore

import (
	pkgerrors "github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// lifecycle is the USock state machine of spec.md §4.5: unregistered ->
// registered -> closing -> closed.
type lifecycle int

const (
	lifecycleUnregistered lifecycle = iota
	lifecycleRegistered
	lifecycleClosing
	lifecycleClosed
)

// inboundState is the inbound sub-state of spec.md §3.
type inboundState int

const (
	inboundIdle inboundState = iota
	inboundReceiving
	inboundAccepting
)

// outboundState is the outbound sub-state of spec.md §3.
type outboundState int

const (
	outboundIdle outboundState = iota
	outboundSending
	outboundConnecting
)

// USock is the user-level non-blocking stream socket of spec.md §3/§4.5-4.8.
// Exactly one kernel descriptor is owned per USock.
type USock struct {
	port *Port

	family   int
	sockType int
	protocol int

	fd         int
	handle     pollHandle
	registered bool
	life       lifecycle

	sinkHolder sinkHolder

	inState inboundState
	// recvUser is the caller-supplied remaining destination for an
	// in-progress Recv (spec.md §4.8 step 6's "pointer advanced, length
	// remaining"); it is re-sliced as bytes are copied in.
	recvUser []byte

	// batch is the lazily-allocated receive staging buffer (spec.md
	// §3/§9: allocated on first receive, never at Init).
	batch    []byte
	batchLen int
	batchPos int

	outState outboundState
	// sendIov is the internal copy of the caller's scatter/gather list,
	// capped at Port.cfg.MaxIOVCnt with zero-length entries elided
	// (spec.md §3); it is drained in place as sendRaw makes progress.
	sendIov [][]byte

	// opReqs are the four statically-reserved queue nodes of spec.md §3
	// ("Operation request"), one per opcode, so enqueueing from a
	// non-worker goroutine never allocates.
	opReqs [4]opRequest
}

// InitUSock creates a non-blocking stream socket bound to port, notifying
// sink of completions. It sets close-on-exec, non-blocking, kernel
// send/receive buffer sizes, and the TCP/IPv6 tuning of spec.md §6, then
// returns the USock in the unregistered state.
func InitUSock(port *Port, family, sockType, protocol int, sink Sink) (*USock, error) {
	fd, err := unix.Socket(family, sockType, protocol)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "aiocore: socket")
	}
	s, err := newUSockFromFD(port, fd, family, sockType, protocol, sink)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	return s, nil
}

// InitChild wraps an already-accepted descriptor (delivered via
// Sink.Accepted) as a new USock sharing parent's family/type/protocol and
// port, per spec.md §6.
func InitChild(parent *USock, acceptedFD int, sink Sink) (*USock, error) {
	return newUSockFromFD(parent.port, acceptedFD, parent.family, parent.sockType, parent.protocol, sink)
}

func newUSockFromFD(port *Port, fd, family, sockType, protocol int, sink Sink) (*USock, error) {
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, pkgerrors.Wrap(err, "aiocore: set nonblock")
	}
	unix.CloseOnExec(fd)

	s := &USock{
		port:     port,
		family:   family,
		sockType: sockType,
		protocol: protocol,
		fd:       fd,
		life:     lifecycleUnregistered,
	}
	s.sinkHolder.set(sink)
	for i := range s.opReqs {
		s.opReqs[i] = opRequest{op: opcode(i), sock: s}
	}

	cfg := port.cfg
	if sockType == unix.SOCK_STREAM {
		_ = tuneNoDelay(fd)
		_ = tuneDelayedAck(fd)
	}
	if family == unix.AF_INET6 {
		_ = setDualStack(fd)
	}
	if cfg.SendBufferSize >= 0 {
		_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDBUF, cfg.SendBufferSize)
	}
	if cfg.RecvBufferSize >= 0 {
		_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, cfg.RecvBufferSize)
	}
	_ = tuneNoSigPipe(fd)

	// Every USock, including an accepted child, must be registered with the
	// poller before any IN/OUT interest can be armed on it (spec.md §4.5) —
	// Listen and Connect already rely on this same call for their own fds.
	s.ensureRegistered()

	return s, nil
}

// SetSink atomically rebinds the sink a USock dispatches to. Called from a
// non-worker goroutine it takes the owning Port's lock itself, so the
// caller must not already hold it via Port.Lock (spec.md §3).
func (s *USock) SetSink(sink Sink) {
	if s.port.isWorker() {
		s.sinkHolder.set(sink)
		return
	}
	s.port.mu.Lock()
	s.sinkHolder.set(sink)
	s.port.mu.Unlock()
}

// Bind sets address-reuse and calls the kernel bind (spec.md §4.6).
func (s *USock) Bind(sa unix.Sockaddr) error {
	if err := unix.SetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return pkgerrors.Wrap(err, "aiocore: setsockopt SO_REUSEADDR")
	}
	if err := unix.Bind(s.fd, sa); err != nil {
		return pkgerrors.Wrap(err, "aiocore: bind")
	}
	return nil
}

// Listen calls the kernel listen then registers the socket with the poller
// (spec.md §4.6), synchronously if called on the worker goroutine, or via
// an ADD request otherwise.
func (s *USock) Listen(backlog int) error {
	if err := unix.Listen(s.fd, backlog); err != nil {
		return pkgerrors.Wrap(err, "aiocore: listen")
	}
	s.ensureRegistered()
	return nil
}

// ensureRegistered registers s with the poller if it isn't already,
// directly when on the worker goroutine, otherwise via the ADD opcode.
func (s *USock) ensureRegistered() {
	if s.registered {
		return
	}
	if s.port.isWorker() {
		h := s.port.registerHandle(s)
		s.handle = h
		s.registered = true
		s.life = lifecycleRegistered
		_ = s.port.poller.add(s.fd, h)
		return
	}
	s.port.enqueueOp(&s.opReqs[opAdd])
}

// Close tears down s, per spec.md §4.5: synchronously if unregistered or
// already on the worker goroutine, otherwise by enqueueing REMOVE and
// waking the worker. Exactly one Sink.Closed call results (spec.md
// invariant 3). Closing a USock that is already closing or closed panics
// (invariant violation).
func (s *USock) Close() {
	onWorker := s.port.isWorker()
	if !onWorker {
		s.port.mu.Lock()
	}
	unlock := func() {
		if !onWorker {
			s.port.mu.Unlock()
		}
	}
	alreadyClosing := s.life == lifecycleClosing || s.life == lifecycleClosed
	if alreadyClosing {
		unlock()
		invariant(false, "close: handle already closing or closed")
	}
	if !s.registered {
		s.life = lifecycleClosed
		unlock()
		s.teardown()
		return
	}
	s.life = lifecycleClosing
	if onWorker {
		_ = s.port.poller.remove(s.handle)
		s.port.unregisterHandle(s.handle)
		s.teardown()
		return
	}
	unlock()
	s.port.enqueueOp(&s.opReqs[opRemove])
}

// teardown closes the descriptor, frees the batch buffer, and invokes
// Sink.Closed. Called exactly once per USock (spec.md invariant 3).
func (s *USock) teardown() {
	unix.Close(s.fd)
	s.batch = nil
	s.life = lifecycleClosed
	if sink := s.sinkHolder.get(); sink != nil {
		sink.Closed()
	}
}
