//go:build linux

package aiocore

import (
	"sync/atomic"

	pkgerrors "github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// eventfdWake implements wakeChannel with a Linux eventfd, grounded on
// eventloop/wakeup_linux.go's createWakeFd/drainWakeUpPipe.
type eventfdWake struct {
	efd     int
	pending atomic.Bool
}

func newWakeChannel() (wakeChannel, error) {
	fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "aiocore: eventfd")
	}
	return &eventfdWake{efd: fd}, nil
}

func (w *eventfdWake) fd() int { return w.efd }

func (w *eventfdWake) signal() error {
	if !w.pending.CompareAndSwap(false, true) {
		return nil
	}
	var val [8]byte
	val[0] = 1
	_, err := unix.Write(w.efd, val[:])
	if err != nil && err != unix.EAGAIN {
		return pkgerrors.Wrap(err, "aiocore: eventfd write")
	}
	return nil
}

func (w *eventfdWake) unsignal() error {
	w.pending.Store(false)
	var buf [8]byte
	for {
		_, err := unix.Read(w.efd, buf[:])
		if err != nil {
			break
		}
	}
	return nil
}

func (w *eventfdWake) close() error {
	return unix.Close(w.efd)
}
