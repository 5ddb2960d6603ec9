//go:build linux

package aiocore

import (
	"sync"

	pkgerrors "github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// epollReg tracks the armed state of one registered descriptor, grounded on
// eventloop/poller_linux.go's fdInfo (callback/events/active) shape,
// reshaped around pollHandle instead of a callback.
type epollReg struct {
	fd  int
	in  bool
	out bool
}

// epollPoller implements poller (spec.md §4.1) using epoll in
// edge-triggered mode, grounded on eventloop/poller_linux.go's use of
// golang.org/x/sys/unix (EpollCreate1/EpollCtl/EpollWait/EpollEvent).
type epollPoller struct {
	epfd int

	mu   sync.Mutex
	regs map[pollHandle]*epollReg

	events  []unix.EpollEvent
	readyIx int
	readyN  int
}

func newPoller(batchSize int) (poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "aiocore: epoll_create1")
	}
	if batchSize <= 0 {
		batchSize = defaultPollBatchSize
	}
	return &epollPoller{
		epfd:   epfd,
		regs:   make(map[pollHandle]*epollReg),
		events: make([]unix.EpollEvent, batchSize),
	}, nil
}

func (p *epollPoller) epollEvents(r *epollReg) uint32 {
	ev := uint32(unix.EPOLLET | unix.EPOLLRDHUP)
	if r.in {
		ev |= unix.EPOLLIN
	}
	if r.out {
		ev |= unix.EPOLLOUT
	}
	return ev
}

func (p *epollPoller) add(fd int, handle pollHandle) error {
	p.mu.Lock()
	r := &epollReg{fd: fd}
	p.regs[handle] = r
	p.mu.Unlock()

	ev := &unix.EpollEvent{Events: p.epollEvents(r), Fd: int32(handle)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, ev); err != nil {
		p.mu.Lock()
		delete(p.regs, handle)
		p.mu.Unlock()
		return pkgerrors.Wrap(err, "aiocore: epoll_ctl add")
	}
	return nil
}

func (p *epollPoller) remove(handle pollHandle) error {
	p.mu.Lock()
	r, ok := p.regs[handle]
	if ok {
		delete(p.regs, handle)
	}
	p.mu.Unlock()
	if !ok {
		return nil
	}
	// EPOLL_CTL_DEL ignores the event argument on modern kernels but older
	// kernels require a non-nil pointer.
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, r.fd, &unix.EpollEvent{}); err != nil {
		return pkgerrors.Wrap(err, "aiocore: epoll_ctl del")
	}
	return nil
}

func (p *epollPoller) modify(handle pollHandle, mutate func(*epollReg)) error {
	p.mu.Lock()
	r, ok := p.regs[handle]
	if !ok {
		p.mu.Unlock()
		return nil
	}
	mutate(r)
	ev := &unix.EpollEvent{Events: p.epollEvents(r), Fd: int32(handle)}
	fd := r.fd
	p.mu.Unlock()

	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, ev); err != nil {
		return pkgerrors.Wrap(err, "aiocore: epoll_ctl mod")
	}
	return nil
}

func (p *epollPoller) setIn(handle pollHandle) error {
	return p.modify(handle, func(r *epollReg) { r.in = true })
}

func (p *epollPoller) resetIn(handle pollHandle) error {
	return p.modify(handle, func(r *epollReg) { r.in = false })
}

func (p *epollPoller) setOut(handle pollHandle) error {
	return p.modify(handle, func(r *epollReg) { r.out = true })
}

func (p *epollPoller) resetOut(handle pollHandle) error {
	return p.modify(handle, func(r *epollReg) { r.out = false })
}

func (p *epollPoller) wait(timeoutMS int) error {
	for {
		n, err := unix.EpollWait(p.epfd, p.events, timeoutMS)
		if err != nil {
			if err == unix.EINTR {
				// Signal-interrupted wait must be retried transparently
				// before any other work (spec.md §9).
				continue
			}
			return pkgerrors.Wrap(err, "aiocore: epoll_wait")
		}
		p.readyIx = 0
		p.readyN = n
		return nil
	}
}

func (p *epollPoller) event() (pollOp, pollHandle, bool) {
	if p.readyIx >= p.readyN {
		return 0, 0, false
	}
	ev := p.events[p.readyIx]
	p.readyIx++

	var op pollOp
	if ev.Events&(unix.EPOLLIN|unix.EPOLLRDHUP) != 0 {
		op |= pollIn
	}
	if ev.Events&unix.EPOLLOUT != 0 {
		op |= pollOut
	}
	if ev.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
		op |= pollErr
	}
	return op, pollHandle(ev.Fd), true
}

func (p *epollPoller) close() error {
	return unix.Close(p.epfd)
}
