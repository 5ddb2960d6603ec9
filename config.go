package aiocore

// defaultBatchSize is the receive batch-buffer size (spec.md §6 BATCH_SIZE).
const defaultBatchSize = 64 * 1024

// defaultMaxIOVCnt bounds the scatter/gather entries per send (spec.md §6
// MAX_IOVCNT).
const defaultMaxIOVCnt = 64

// defaultPollBatchSize bounds how many readiness events are drained from
// the poller per wait() cycle.
const defaultPollBatchSize = 128

// Config configures a Port. NewConfig replaces a non-positive BatchSize,
// MaxIOVCnt or PollBatchSize and a nil Logger with defaults; the buffer
// sizes are kept as given.
type Config struct {
	// BatchSize is the size of each USock's lazily-allocated receive batch
	// buffer.
	BatchSize int

	// MaxIOVCnt caps the scatter/gather entries accepted per Send.
	MaxIOVCnt int

	// SendBufferSize and RecvBufferSize are passed to the kernel as
	// SO_SNDBUF/SO_RCVBUF. Negative means "leave the OS default"; zero is
	// passed to the kernel as is.
	SendBufferSize int
	RecvBufferSize int

	// PollBatchSize bounds events drained from the poller per wait cycle.
	PollBatchSize int

	// Logger receives the port's own lifecycle/diagnostic logging.
	Logger Logger
}

// Option mutates a Config under construction.
type Option func(*Config)

// WithBatchSize overrides the receive batch-buffer size.
func WithBatchSize(n int) Option {
	return func(c *Config) { c.BatchSize = n }
}

// WithMaxIOVCnt overrides the maximum scatter/gather entries per Send.
func WithMaxIOVCnt(n int) Option {
	return func(c *Config) { c.MaxIOVCnt = n }
}

// WithBufferSizes overrides the kernel send/receive buffer sizes. Pass a
// negative value to leave the OS default for that direction.
func WithBufferSizes(send, recv int) Option {
	return func(c *Config) {
		c.SendBufferSize = send
		c.RecvBufferSize = recv
	}
}

// WithLogger overrides the port's Logger.
func WithLogger(l Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// NewConfig builds a Config from opts, filling unset fields with defaults.
func NewConfig(opts ...Option) Config {
	c := Config{
		BatchSize:      defaultBatchSize,
		MaxIOVCnt:      defaultMaxIOVCnt,
		SendBufferSize: -1,
		RecvBufferSize: -1,
		PollBatchSize:  defaultPollBatchSize,
	}
	for _, opt := range opts {
		opt(&c)
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.MaxIOVCnt <= 0 {
		c.MaxIOVCnt = defaultMaxIOVCnt
	}
	if c.PollBatchSize <= 0 {
		c.PollBatchSize = defaultPollBatchSize
	}
	if c.Logger == nil {
		c.Logger = NewNoOpLogger()
	}
	return c
}
