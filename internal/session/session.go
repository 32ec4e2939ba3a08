// Package session binds an open line transport to the operator's I/O
// endpoints.
//
// Capabilities work against a Session rather than os.Stdin/os.Stdout
// directly, so they can be driven from a test buffer just as easily
// as from a terminal.
package session

import (
	"io"
	"sync"

	"piapi/internal/duplex"
	"piapi/util"
)

// Session is the runtime context of one console run.
type Session struct {
	Transport *duplex.Transport
	Stdin     io.Reader
	Stdout    io.Writer
	Logger    *util.Logger
}

// New creates a Session over t and the given I/O pair.
func New(t *duplex.Transport, stdin io.Reader, stdout io.Writer, logger *util.Logger) *Session {
	if logger == nil {
		logger = util.NewLogger(0)
	}
	return &Session{
		Transport: t,
		Stdin:     stdin,
		Stdout:    stdout,
		Logger:    logger,
	}
}

// SyncWriter serialises writes to w.  The console prompt and the
// receive loop print to the same terminal from different goroutines.
func SyncWriter(w io.Writer) io.Writer {
	if _, ok := w.(*syncWriter); ok {
		return w
	}
	return &syncWriter{w: w}
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
