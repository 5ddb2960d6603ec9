//go:build linux

package aiocore

import "golang.org/x/sys/unix"

// tuneNoDelay disables Nagle's algorithm (spec.md §6).
func tuneNoDelay(fd int) error {
	return unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
}

// tuneDelayedAck disables delayed ACKs where supported (Linux TCP_QUICKACK,
// spec.md §6 "where available").
func tuneDelayedAck(fd int) error {
	return unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_QUICKACK, 1)
}

// tuneNoSigPipe is a no-op on Linux; broken-pipe suppression is requested
// per-call via sendFlags' MSG_NOSIGNAL instead (spec.md §6).
func tuneNoSigPipe(fd int) error { return nil }

// setDualStack enables IPv6 dual-stack (spec.md §6).
func setDualStack(fd int) error {
	return unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, 0)
}

// sendFlags returns the flags passed to sendmsg to suppress SIGPIPE
// (spec.md §6 "no-signal flag where available").
func sendFlags() int { return unix.MSG_NOSIGNAL }

// acceptConn accepts one connection with non-blocking and close-on-exec
// already applied atomically via accept4 (spec.md §4.6/§4.8).
func acceptConn(fd int) (int, error) {
	return unix.Accept4(fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
}
