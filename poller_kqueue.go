//go:build darwin || dragonfly || freebsd || netbsd || openbsd

package aiocore

import (
	"sync"

	pkgerrors "github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// kqueueReg mirrors epollReg for the kqueue backend, grounded on
// eventloop/poller_darwin.go's fdInfo shape.
type kqueueReg struct {
	fd  int
	in  bool
	out bool
}

// kqueuePoller implements poller (spec.md §4.1) using kqueue, matching the
// teacher's own build-tag list (darwin, netbsd, freebsd, openbsd,
// dragonfly) in socket515-gaio/watcher.go's header.
type kqueuePoller struct {
	kq int

	mu    sync.Mutex
	regs  map[pollHandle]*kqueueReg
	byFD  map[int]pollHandle
	batch []unix.Kevent_t

	events  []unix.Kevent_t
	readyIx int
	readyN  int
}

func newPoller(batchSize int) (poller, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "aiocore: kqueue")
	}
	unix.CloseOnExec(kq)
	if batchSize <= 0 {
		batchSize = defaultPollBatchSize
	}
	return &kqueuePoller{
		kq:     kq,
		regs:   make(map[pollHandle]*kqueueReg),
		byFD:   make(map[int]pollHandle),
		events: make([]unix.Kevent_t, batchSize),
	}, nil
}

func (p *kqueuePoller) add(fd int, handle pollHandle) error {
	p.mu.Lock()
	p.regs[handle] = &kqueueReg{fd: fd}
	p.byFD[fd] = handle
	p.mu.Unlock()
	return nil
}

func (p *kqueuePoller) remove(handle pollHandle) error {
	p.mu.Lock()
	r, ok := p.regs[handle]
	if !ok {
		p.mu.Unlock()
		return nil
	}
	delete(p.regs, handle)
	delete(p.byFD, r.fd)
	p.mu.Unlock()

	var changes []unix.Kevent_t
	if r.in {
		changes = append(changes, kevent(r.fd, unix.EVFILT_READ, unix.EV_DELETE))
	}
	if r.out {
		changes = append(changes, kevent(r.fd, unix.EVFILT_WRITE, unix.EV_DELETE))
	}
	if len(changes) == 0 {
		return nil
	}
	_, err := unix.Kevent(p.kq, changes, nil, nil)
	if err != nil {
		return pkgerrors.Wrap(err, "aiocore: kevent delete")
	}
	return nil
}

func kevent(fd int, filter int16, flags uint16) unix.Kevent_t {
	return unix.Kevent_t{
		Ident:  uint64(fd),
		Filter: filter,
		Flags:  flags,
	}
}

func (p *kqueuePoller) toggle(handle pollHandle, filter int16, want bool, setField func(*kqueueReg, bool)) error {
	p.mu.Lock()
	r, ok := p.regs[handle]
	if !ok {
		p.mu.Unlock()
		return nil
	}
	current := false
	if filter == unix.EVFILT_READ {
		current = r.in
	} else {
		current = r.out
	}
	if current == want {
		p.mu.Unlock()
		return nil
	}
	setField(r, want)
	fd := r.fd
	p.mu.Unlock()

	flags := uint16(unix.EV_DELETE)
	if want {
		flags = unix.EV_ADD | unix.EV_CLEAR
	}
	_, err := unix.Kevent(p.kq, []unix.Kevent_t{kevent(fd, filter, flags)}, nil, nil)
	if err != nil {
		return pkgerrors.Wrap(err, "aiocore: kevent toggle")
	}
	return nil
}

func (p *kqueuePoller) setIn(handle pollHandle) error {
	return p.toggle(handle, unix.EVFILT_READ, true, func(r *kqueueReg, v bool) { r.in = v })
}

func (p *kqueuePoller) resetIn(handle pollHandle) error {
	return p.toggle(handle, unix.EVFILT_READ, false, func(r *kqueueReg, v bool) { r.in = v })
}

func (p *kqueuePoller) setOut(handle pollHandle) error {
	return p.toggle(handle, unix.EVFILT_WRITE, true, func(r *kqueueReg, v bool) { r.out = v })
}

func (p *kqueuePoller) resetOut(handle pollHandle) error {
	return p.toggle(handle, unix.EVFILT_WRITE, false, func(r *kqueueReg, v bool) { r.out = v })
}

func (p *kqueuePoller) wait(timeoutMS int) error {
	var ts *unix.Timespec
	for {
		if timeoutMS >= 0 {
			t := unix.NsecToTimespec(int64(timeoutMS) * int64(1e6))
			ts = &t
		} else {
			ts = nil
		}
		n, err := unix.Kevent(p.kq, nil, p.events, ts)
		if err != nil {
			if err == unix.EINTR {
				// Signal-interrupted wait must be retried transparently
				// before any other work (spec.md §9).
				continue
			}
			return pkgerrors.Wrap(err, "aiocore: kevent wait")
		}
		p.readyIx = 0
		p.readyN = n
		return nil
	}
}

func (p *kqueuePoller) event() (pollOp, pollHandle, bool) {
	if p.readyIx >= p.readyN {
		return 0, 0, false
	}
	ev := p.events[p.readyIx]
	p.readyIx++

	p.mu.Lock()
	handle, ok := p.byFD[int(ev.Ident)]
	p.mu.Unlock()
	if !ok {
		return p.event()
	}

	var op pollOp
	switch ev.Filter {
	case unix.EVFILT_READ:
		op |= pollIn
	case unix.EVFILT_WRITE:
		op |= pollOut
	}
	if ev.Flags&unix.EV_EOF != 0 || ev.Flags&unix.EV_ERROR != 0 {
		op |= pollErr
	}
	return op, handle, true
}

func (p *kqueuePoller) close() error {
	return unix.Close(p.kq)
}
