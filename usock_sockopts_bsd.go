//go:build darwin || dragonfly || freebsd || netbsd || openbsd

package aiocore

import "golang.org/x/sys/unix"

// tuneNoDelay disables Nagle's algorithm (spec.md §6).
func tuneNoDelay(fd int) error {
	return unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
}

// tuneDelayedAck is a no-op: these kernels have no TCP_QUICKACK-equivalent
// knob (spec.md §6 "where available").
func tuneDelayedAck(fd int) error { return nil }

// tuneNoSigPipe requests SO_NOSIGPIPE at the socket level, this family's
// equivalent of Linux's per-call MSG_NOSIGNAL (spec.md §6).
func tuneNoSigPipe(fd int) error {
	return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_NOSIGPIPE, 1)
}

// setDualStack enables IPv6 dual-stack (spec.md §6).
func setDualStack(fd int) error {
	return unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, 0)
}

// sendFlags: broken-pipe suppression already happens via SO_NOSIGPIPE at
// the socket level, so no per-send flag is needed.
func sendFlags() int { return 0 }

// acceptConn accepts one connection, then applies non-blocking and
// close-on-exec since this family has no accept4 equivalent (spec.md
// §4.6/§4.8).
func acceptConn(fd int) (int, error) {
	nfd, _, err := unix.Accept(fd)
	if err != nil {
		return -1, err
	}
	if err := unix.SetNonblock(nfd, true); err != nil {
		unix.Close(nfd)
		return -1, err
	}
	unix.CloseOnExec(nfd)
	return nfd, nil
}
