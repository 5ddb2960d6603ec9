package aiocore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func mustListener(t *testing.T, port *Port, sink Sink) (*USock, unix.SockaddrInet4) {
	t.Helper()
	l, err := InitUSock(port, unix.AF_INET, unix.SOCK_STREAM, 0, sink)
	require.NoError(t, err)

	addr := unix.SockaddrInet4{Addr: [4]byte{127, 0, 0, 1}, Port: 0}
	require.NoError(t, l.Bind(&addr))
	require.NoError(t, l.Listen(128))

	sa, err := unix.Getsockname(l.fd)
	require.NoError(t, err)
	bound := sa.(*unix.SockaddrInet4)
	return l, *bound
}

// TestEchoRoundTrip wires up a listener and a client over loopback TCP and
// exercises the full Connect -> Accept -> Send -> Recv -> Close sequence
// (spec.md §4.6-4.8), grounded on the teacher's TestEcho shape
// (aio_test.go) but rewritten against this package's Sink-based API.
func TestEchoRoundTrip(t *testing.T) {
	p, err := Init()
	require.NoError(t, err)
	defer p.Term()

	const payload = "ping!"
	received := make(chan string, 1)
	closed := make(chan struct{}, 2)

	serverSink := &testSink{}
	listener, addr := mustListener(t, p, serverSink)

	serverSink.onAccepted = func(fd int) {
		buf := make([]byte, len(payload))
		childSink := &testSink{}
		child, err := InitChild(listener, fd, childSink)
		require.NoError(t, err)

		childSink.onReceived = func() {
			received <- string(buf)
			child.Close()
		}
		childSink.onClosed = func() { closed <- struct{}{} }

		child.Recv(buf)
	}
	listener.Accept()

	clientSink := &testSink{}
	client, err := InitUSock(p, unix.AF_INET, unix.SOCK_STREAM, 0, clientSink)
	require.NoError(t, err)

	clientSink.onConnected = func() {
		client.Send([][]byte{[]byte(payload)})
	}
	clientSink.onSent = func() {
		// nothing further to send; wait for the server's Recv to complete
		// and close us in turn via the assertions below.
	}
	clientSink.onClosed = func() { closed <- struct{}{} }

	client.Connect(&addr)

	select {
	case got := <-received:
		require.Equal(t, payload, got)
	case <-time.After(2 * time.Second):
		t.Fatal("payload never received")
	}

	client.Close()
	listener.Close()

	for i := 0; i < 2; i++ {
		select {
		case <-closed:
		case <-time.After(2 * time.Second):
			t.Fatal("not all handles closed")
		}
	}
}

func TestRecvZeroLengthCompletesImmediately(t *testing.T) {
	p, err := Init()
	require.NoError(t, err)
	defer p.Term()

	serverSink := &testSink{}
	listener, addr := mustListener(t, p, serverSink)
	defer listener.Close()

	accepted := make(chan int, 1)
	serverSink.onAccepted = func(fd int) { accepted <- fd }
	listener.Accept()

	clientSink := &testSink{}
	client, err := InitUSock(p, unix.AF_INET, unix.SOCK_STREAM, 0, clientSink)
	require.NoError(t, err)
	defer client.Close()

	connected := make(chan struct{}, 1)
	clientSink.onConnected = func() { connected <- struct{}{} }
	client.Connect(&addr)

	select {
	case <-connected:
	case <-time.After(2 * time.Second):
		t.Fatal("client never connected")
	}

	var fd int
	select {
	case fd = <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("server never accepted")
	}

	childSink := &testSink{}
	child, err := InitChild(listener, fd, childSink)
	require.NoError(t, err)
	defer child.Close()

	zeroReceived := make(chan struct{}, 1)
	childSink.onReceived = func() { zeroReceived <- struct{}{} }
	child.Recv(nil)

	select {
	case <-zeroReceived:
	case <-time.After(time.Second):
		t.Fatal("zero-length recv never completed")
	}
}

func TestSendAllZeroLengthIovecsCompletesImmediately(t *testing.T) {
	p, err := Init()
	require.NoError(t, err)
	defer p.Term()

	serverSink := &testSink{}
	listener, addr := mustListener(t, p, serverSink)
	defer listener.Close()

	clientSink := &testSink{}
	client, err := InitUSock(p, unix.AF_INET, unix.SOCK_STREAM, 0, clientSink)
	require.NoError(t, err)
	defer client.Close()

	sent := make(chan struct{}, 1)
	clientSink.onConnected = func() {
		client.Send([][]byte{nil, {}, nil})
	}
	clientSink.onSent = func() { sent <- struct{}{} }
	client.Connect(&addr)

	select {
	case <-sent:
	case <-time.After(2 * time.Second):
		t.Fatal("all-empty send never completed")
	}
}

func TestCloseDeliversExactlyOneClosed(t *testing.T) {
	p, err := Init()
	require.NoError(t, err)
	defer p.Term()

	var count int
	done := make(chan struct{})
	sink := &testSink{onClosed: func() {
		count++
		close(done)
	}}

	sock, err := InitUSock(p, unix.AF_INET, unix.SOCK_STREAM, 0, sink)
	require.NoError(t, err)

	sock.Close()
	// closing an already-closed USock is an invariant violation
	require.Panics(t, func() { sock.Close() })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("close never delivered")
	}
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, 1, count)
}

func TestDoubleRecvPanicsOnInvariantViolation(t *testing.T) {
	p, err := Init()
	require.NoError(t, err)
	defer p.Term()

	serverSink := &testSink{}
	listener, addr := mustListener(t, p, serverSink)
	defer listener.Close()

	clientSink := &testSink{}
	client, err := InitUSock(p, unix.AF_INET, unix.SOCK_STREAM, 0, clientSink)
	require.NoError(t, err)
	defer client.Close()

	connected := make(chan struct{}, 1)
	clientSink.onConnected = func() { connected <- struct{}{} }
	client.Connect(&addr)

	select {
	case <-connected:
	case <-time.After(2 * time.Second):
		t.Fatal("client never connected")
	}

	// No data has been sent, so the first Recv blocks (goes to
	// inboundReceiving) rather than completing synchronously; a second
	// Recv while one is outstanding must panic (spec.md §7).
	p.Lock()
	defer p.Unlock()
	client.recvLocked(make([]byte, 4))
	require.Equal(t, inboundReceiving, client.inState)
	require.Panics(t, func() { client.recvLocked(make([]byte, 4)) })
}
