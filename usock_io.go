package aiocore

import (
	"golang.org/x/sys/unix"
)

// locked runs f with the owning Port's lock held, unless the calling
// goroutine already is the worker goroutine (in which case the dispatch
// loop already holds it) — spec.md §4.4/§5's mutual-exclusion contract.
func (s *USock) locked(f func()) {
	if s.port.isWorker() {
		f()
		return
	}
	s.port.mu.Lock()
	f()
	s.port.mu.Unlock()
}

// armIn/armOut arm IN/OUT interest, directly if already on the worker
// goroutine, otherwise via the operation queue (spec.md §4.1/§4.6-4.8).
func (s *USock) armIn() {
	if s.port.isWorker() {
		_ = s.port.poller.setIn(s.handle)
		return
	}
	s.port.enqueueOp(&s.opReqs[opSetIn])
}

func (s *USock) armOut() {
	if s.port.isWorker() {
		_ = s.port.poller.setOut(s.handle)
		return
	}
	s.port.enqueueOp(&s.opReqs[opSetOut])
}

// disarmIn/disarmOut are only ever invoked from inside the worker's
// dispatch of a completion (spec.md §3 Operation request lists no
// "reset" opcode: disarming only ever happens on the worker thread that
// just observed the readiness, so no cross-thread forwarding is needed).
func (s *USock) disarmIn()  { _ = s.port.poller.resetIn(s.handle) }
func (s *USock) disarmOut() { _ = s.port.poller.resetOut(s.handle) }

// Connect attempts a non-blocking connect (spec.md §4.6).
func (s *USock) Connect(sa unix.Sockaddr) {
	s.locked(func() { s.connectLocked(sa) })
}

func (s *USock) connectLocked(sa unix.Sockaddr) {
	invariant(s.outState == outboundIdle, "connect: outbound operation already in progress")

	err := unix.Connect(s.fd, sa)
	switch err {
	case nil:
		s.ensureRegistered()
		if sink := s.sinkHolder.get(); sink != nil {
			sink.Connected()
		}
	case unix.EINPROGRESS, unix.EALREADY:
		s.outState = outboundConnecting
		s.ensureRegistered()
		s.armOut()
	default:
		if sink := s.sinkHolder.get(); sink != nil {
			sink.Err(classifyWriteError(err))
		}
	}
}

// Accept arms IN to wait for an incoming connection (spec.md §4.6).
func (s *USock) Accept() {
	s.locked(func() { s.acceptLocked() })
}

func (s *USock) acceptLocked() {
	invariant(s.inState == inboundIdle, "accept: inbound operation already in progress")
	s.inState = inboundAccepting
	s.armIn()
}

// continueAccept is invoked from the worker's dispatch when an
// accept-in-progress USock sees IN-ready (spec.md §4.8).
func (s *USock) continueAccept() {
	for {
		nfd, err := acceptConn(s.fd)
		if err == nil {
			s.inState = inboundIdle
			s.disarmIn()
			if sink := s.sinkHolder.get(); sink != nil {
				sink.Accepted(nfd)
			}
			return
		}
		if err == unix.EINTR {
			continue
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return // stay armed, nothing to accept yet
		}
		if isTransientAcceptError(err) {
			return // swallowed; accept stays armed (spec.md §4.8/§7)
		}
		s.inState = inboundIdle
		s.disarmIn()
		if sink := s.sinkHolder.get(); sink != nil {
			sink.Err(classifyReadError(err))
		}
		return
	}
}

// Send submits iov for writing. Zero-length entries are elided; an iov of
// more than Port.cfg.MaxIOVCnt entries panics (spec.md §4.7, §8 boundary).
func (s *USock) Send(iov [][]byte) {
	s.locked(func() { s.sendLocked(iov) })
}

func (s *USock) sendLocked(iov [][]byte) {
	invariant(s.outState == outboundIdle, "send: outbound operation already in progress")
	invariant(len(iov) <= s.port.cfg.MaxIOVCnt, "send: iovcnt exceeds MaxIOVCnt")

	copied := make([][]byte, 0, len(iov))
	for _, b := range iov {
		if len(b) > 0 {
			copied = append(copied, b)
		}
	}
	s.sendIov = copied
	s.continueSend()
}

// sendRaw drains s.sendIov in place, one head buffer at a time, treating
// EAGAIN as "no progress" and classifying terminal errors per spec.md §4.7.
func (s *USock) sendRaw() error {
	for len(s.sendIov) > 0 {
		if len(s.sendIov[0]) == 0 {
			s.sendIov = s.sendIov[1:]
			continue
		}
		n, err := unix.Sendmsg(s.fd, s.sendIov[0], nil, nil, sendFlags())
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			ce := classifyWriteError(err)
			if ce == errWouldBlock {
				return errWouldBlock
			}
			return ce
		}
		s.sendIov[0] = s.sendIov[0][n:]
		if len(s.sendIov[0]) == 0 {
			s.sendIov = s.sendIov[1:]
		}
	}
	return nil
}

// continueSend retries sendRaw, either on the first synchronous attempt or
// when the worker observes OUT-ready for a send-in-progress USock.
func (s *USock) continueSend() {
	err := s.sendRaw()
	if err == errWouldBlock {
		if s.outState != outboundSending {
			s.outState = outboundSending
			s.armOut()
		}
		return
	}

	wasArmed := s.outState == outboundSending
	s.outState = outboundIdle
	if wasArmed {
		s.disarmOut()
	}

	sink := s.sinkHolder.get()
	if err != nil {
		if sink != nil {
			sink.Err(err)
		}
		return
	}
	if sink != nil {
		sink.Sent()
	}
}

// Recv requests that buf be filled before completing (spec.md §4.8). An
// empty buf completes immediately.
func (s *USock) Recv(buf []byte) {
	s.locked(func() { s.recvLocked(buf) })
}

func (s *USock) recvLocked(buf []byte) {
	invariant(s.inState == inboundIdle, "recv: inbound operation already in progress")
	if s.batch == nil {
		s.batch = make([]byte, s.port.cfg.BatchSize)
	}
	s.recvUser = buf
	s.continueRecv()
}

// continueRecv implements spec.md §4.8 steps 2-6: serve from the batch
// buffer first, then either read straight into the caller's buffer (need
// bigger than the batch) or refill the batch (need smaller), repeating
// until the caller's request is satisfied, blocked, or failed.
func (s *USock) continueRecv() {
	for len(s.recvUser) > 0 {
		if s.batchPos < s.batchLen {
			n := copy(s.recvUser, s.batch[s.batchPos:s.batchLen])
			s.batchPos += n
			s.recvUser = s.recvUser[n:]
			continue
		}

		var n int
		var err error
		direct := len(s.recvUser) > len(s.batch)
		if direct {
			n, err = unix.Read(s.fd, s.recvUser)
		} else {
			n, err = unix.Read(s.fd, s.batch)
			s.batchPos, s.batchLen = 0, 0
		}

		if err != nil {
			if err == unix.EINTR {
				continue
			}
			ce := classifyReadError(err)
			if ce == errWouldBlock {
				s.inState = inboundReceiving
				s.armIn()
				return
			}
			s.finishRecv(ce)
			return
		}
		if n == 0 {
			s.finishRecv(ErrConnReset)
			return
		}

		if direct {
			s.recvUser = s.recvUser[n:]
		} else {
			s.batchLen = n
		}
	}
	s.finishRecv(nil)
}

func (s *USock) finishRecv(err error) {
	wasArmed := s.inState == inboundReceiving
	s.inState = inboundIdle
	if wasArmed {
		s.disarmIn()
	}
	sink := s.sinkHolder.get()
	if err != nil {
		if sink != nil {
			sink.Err(err)
		}
		return
	}
	if sink != nil {
		sink.Received()
	}
}

// dispatchSocketEvent routes one readiness tuple to sock's inbound/outbound
// sub-state machine (spec.md §4.4 step 6, §4.7, §4.8). Only called from the
// worker goroutine while Port.mu is held.
func (p *Port) dispatchSocketEvent(sock *USock, op pollOp) {
	if op&pollOut != 0 {
		switch sock.outState {
		case outboundConnecting:
			sock.disarmOut()
			sock.outState = outboundIdle
			errno, _ := unix.GetsockoptInt(sock.fd, unix.SOL_SOCKET, unix.SO_ERROR)
			sink := sock.sinkHolder.get()
			if errno == 0 {
				if sink != nil {
					sink.Connected()
				}
			} else if sink != nil {
				sink.Err(classifyWriteError(unix.Errno(errno)))
			}
		case outboundSending:
			sock.continueSend()
		}
	}

	if op&pollIn != 0 {
		switch sock.inState {
		case inboundAccepting:
			sock.continueAccept()
		case inboundReceiving:
			sock.continueRecv()
		}
	}

	if op&pollErr != 0 && sock.inState == inboundIdle && sock.outState == outboundIdle {
		if sink := sock.sinkHolder.get(); sink != nil {
			sink.Err(ErrConnReset)
		}
	}
}
