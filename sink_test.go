package aiocore

// testSink is a configurable Sink for tests: every callback is a function
// field, nil-safe, so a test only wires up the completions it cares about
// (spec.md §3: "any may be absent").
type testSink struct {
	onConnected func()
	onAccepted  func(fd int)
	onSent      func()
	onReceived  func()
	onErr       func(err error)
	onTimeout   func()
	onEvent     func()
	onClosed    func()
}

func (s *testSink) Connected() {
	if s.onConnected != nil {
		s.onConnected()
	}
}

func (s *testSink) Accepted(fd int) {
	if s.onAccepted != nil {
		s.onAccepted(fd)
	}
}

func (s *testSink) Sent() {
	if s.onSent != nil {
		s.onSent()
	}
}

func (s *testSink) Received() {
	if s.onReceived != nil {
		s.onReceived()
	}
}

func (s *testSink) Err(err error) {
	if s.onErr != nil {
		s.onErr(err)
	}
}

func (s *testSink) Timeout() {
	if s.onTimeout != nil {
		s.onTimeout()
	}
}

func (s *testSink) Event() {
	if s.onEvent != nil {
		s.onEvent()
	}
}

func (s *testSink) Closed() {
	if s.onClosed != nil {
		s.onClosed()
	}
}
