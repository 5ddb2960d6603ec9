//go:build darwin || dragonfly || freebsd || netbsd || openbsd

package aiocore

import (
	"sync/atomic"
	"syscall"

	pkgerrors "github.com/pkg/errors"
)

// pipeWake implements wakeChannel with a self-pipe, grounded on
// eventloop/wakeup_darwin.go's createWakeFd (non-blocking, close-on-exec
// syscall.Pipe).
type pipeWake struct {
	r, w    int
	pending atomic.Bool
}

func newWakeChannel() (wakeChannel, error) {
	var fds [2]int
	if err := syscall.Pipe(fds[:]); err != nil {
		return nil, pkgerrors.Wrap(err, "aiocore: pipe")
	}
	syscall.CloseOnExec(fds[0])
	syscall.CloseOnExec(fds[1])
	if err := syscall.SetNonblock(fds[0], true); err != nil {
		syscall.Close(fds[0])
		syscall.Close(fds[1])
		return nil, pkgerrors.Wrap(err, "aiocore: pipe nonblock")
	}
	if err := syscall.SetNonblock(fds[1], true); err != nil {
		syscall.Close(fds[0])
		syscall.Close(fds[1])
		return nil, pkgerrors.Wrap(err, "aiocore: pipe nonblock")
	}
	return &pipeWake{r: fds[0], w: fds[1]}, nil
}

func (w *pipeWake) fd() int { return w.r }

func (w *pipeWake) signal() error {
	if !w.pending.CompareAndSwap(false, true) {
		return nil
	}
	_, err := syscall.Write(w.w, []byte{1})
	if err != nil && err != syscall.EAGAIN {
		return pkgerrors.Wrap(err, "aiocore: pipe write")
	}
	return nil
}

func (w *pipeWake) unsignal() error {
	w.pending.Store(false)
	var buf [64]byte
	for {
		_, err := syscall.Read(w.r, buf[:])
		if err != nil {
			break
		}
	}
	return nil
}

func (w *pipeWake) close() error {
	syscall.Close(w.r)
	syscall.Close(w.w)
	return nil
}
