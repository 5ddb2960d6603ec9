package aiocore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPortInitTerm(t *testing.T) {
	p, err := Init()
	require.NoError(t, err)
	require.NotNil(t, p)

	// give the worker goroutine a moment to install workerGID, then assert
	// this test goroutine is never mistaken for it.
	time.Sleep(10 * time.Millisecond)
	require.False(t, p.isWorker())

	p.Term()
}

func TestPortTermIsIdempotent(t *testing.T) {
	p, err := Init()
	require.NoError(t, err)

	p.Term()
	require.NotPanics(t, func() { p.Term() })
}

func TestPortWithLoggerOption(t *testing.T) {
	p, err := Init(WithLogger(NewStdLogger(discardWriter{}, LevelError)))
	require.NoError(t, err)
	defer p.Term()
	require.NotNil(t, p.logger())
}

// discardWriter is a minimal io.Writer sink for exercising NewStdLogger
// without pulling in os.DevNull or touching the filesystem.
type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
