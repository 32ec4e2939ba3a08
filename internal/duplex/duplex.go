// Package duplex runs one line-oriented channel in both directions at
// once: a background loop reads and dispatches inbound lines while the
// caller sends outbound lines.
//
// A Transport moves Open → Closing → Closed.  Close is the only
// cancellation primitive; it is idempotent, lets the in-flight write
// finish, waits at most one poll interval for the receive loop and
// then releases the channel.
package duplex

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	ncerr "piapi/internal/errors"
	"piapi/internal/metrics"
	"piapi/internal/transport"
	"piapi/util"
)

// State is the lifecycle state of a Transport.
type State int32

const (
	Open State = iota
	Closing
	Closed
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Handler receives inbound frames, one at a time, in arrival order.
type Handler func(Frame)

// Options configures a Transport.
type Options struct {
	Handler     Handler // nil logs each line
	Logger      *util.Logger
	Metrics     *metrics.Collector
	PollTimeout time.Duration // bounded wait per receive poll
	Terminator  string        // appended to every outbound line
	Endpoint    string        // used in errors and logs
}

// DefaultPollTimeout is used when Options.PollTimeout is zero.
const DefaultPollTimeout = time.Second

// Transport is a full-duplex line transport over a transport.Channel.
type Transport struct {
	ch      transport.Channel
	opts    Options
	logger  *util.Logger
	metrics *metrics.Collector

	state  atomic.Int32
	sendMu sync.Mutex

	stop    chan struct{} // closed when shutdown is requested
	done    chan struct{} // closed when the receive loop exits
	closed  chan struct{} // closed once the channel is released
	started atomic.Bool

	closeOnce sync.Once
	closeErr  error
}

// New wraps ch.  The receive loop does not run until Start.
func New(ch transport.Channel, opts Options) (*Transport, error) {
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = DefaultPollTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = util.NewLogger(0)
	}
	if err := ch.SetReadTimeout(opts.PollTimeout); err != nil {
		return nil, ncerr.Wrap("configure", opts.Endpoint, err)
	}

	t := &Transport{
		ch:      ch,
		opts:    opts,
		logger:  logger.With("duplex"),
		metrics: opts.Metrics,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		closed:  make(chan struct{}),
	}
	if t.opts.Handler == nil {
		t.opts.Handler = t.logFrame
	}
	return t, nil
}

// Start launches the receive loop.  Calling it again, or after Close,
// does nothing.
func (t *Transport) Start() {
	if t.State() != Open || !t.started.CompareAndSwap(false, true) {
		return
	}
	go t.receive()
}

// State returns the current lifecycle state.
func (t *Transport) State() State {
	return State(t.state.Load())
}

// Done is closed once the transport reaches Closed.
func (t *Transport) Done() <-chan struct{} {
	return t.closed
}

// Send writes line followed by the configured terminator.  A write
// failure is returned as *errors.TransportError and leaves the
// transport open; after shutdown every call fails with
// errors.ErrTransportClosed.
func (t *Transport) Send(line string) (Frame, error) {
	if t.State() != Open {
		return Frame{}, ncerr.ErrTransportClosed
	}

	raw := []byte(line + t.opts.Terminator)

	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	if t.State() != Open {
		return Frame{}, ncerr.ErrTransportClosed
	}
	if _, err := t.ch.Write(raw); err != nil {
		t.metrics.RecordError(err.Error())
		return Frame{}, ncerr.Wrap("write", t.opts.Endpoint, err)
	}

	t.metrics.FrameSent(len(raw))
	t.logger.Debug("> %q", line)
	return Frame{Direction: Outbound, Raw: raw, Text: line, At: time.Now()}, nil
}

// Close stops both directions and releases the channel.  It returns the
// channel's close error; later calls return the same value.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		t.state.Store(int32(Closing))
		close(t.stop)

		// Waits for an in-flight write; new sends see Closing.
		t.sendMu.Lock()
		if t.started.Load() {
			<-t.done
		}
		t.closeErr = t.ch.Close()
		t.sendMu.Unlock()

		t.state.Store(int32(Closed))
		close(t.closed)
		t.logger.Verbose("closed %s", t.opts.Endpoint)
	})
	return t.closeErr
}

func (t *Transport) stopping() bool {
	select {
	case <-t.stop:
		return true
	default:
		return false
	}
}

// receive polls the channel until shutdown.  A read that yields nothing
// is a no-op poll.  Read errors are logged and followed by one poll
// interval of back-off; the loop keeps running.
func (t *Transport) receive() {
	defer close(t.done)

	bufp := util.GetBuf()
	defer util.PutBuf(bufp)
	buf := *bufp

	var (
		asm     assembler
		lastErr string
	)
	for !t.stopping() {
		n, err := t.ch.Read(buf)
		if n > 0 {
			for _, raw := range asm.feed(buf[:n]) {
				if t.stopping() {
					return
				}
				t.dispatch(raw)
			}
		}
		if err == nil {
			lastErr = ""
			continue
		}
		if t.stopping() {
			return
		}

		t.metrics.RecordError(err.Error())
		if msg := err.Error(); msg != lastErr {
			t.logger.Warn("read %s: %v", t.opts.Endpoint, err)
			lastErr = msg
		} else {
			t.logger.Debug("read %s: %v", t.opts.Endpoint, err)
		}

		select {
		case <-t.stop:
			return
		case <-time.After(t.opts.PollTimeout):
		}
	}
}

func (t *Transport) dispatch(raw []byte) {
	text := decode(raw)
	if text == "" {
		return
	}
	t.metrics.FrameReceived(len(raw))
	t.opts.Handler(Frame{Direction: Inbound, Raw: raw, Text: text, At: time.Now()})
}

func (t *Transport) logFrame(f Frame) {
	t.logger.Info("< %s", f.Text)
}
