package transport

import (
	"context"
	"net"
	"sync"
	"time"

	"piapi/util"
)

// TCPDialer establishes plain TCP connections to a serial bridge.
type TCPDialer struct {
	Timeout time.Duration
}

// Dial connects to address over TCP.
func (d *TCPDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	dialer := net.Dialer{Timeout: d.Timeout}
	return dialer.DialContext(ctx, network, address)
}

// Close is a no-op for stateless TCP dialers.
func (d *TCPDialer) Close() error { return nil }

// connChannel turns a net.Conn into a Channel.  Conns that support
// deadlines get one armed before every Read.  Conns that do not, such
// as channels forwarded through an SSH gateway, are drained by a single
// reader goroutine and Read waits on it for at most the timeout.
type connChannel struct {
	conn net.Conn

	mu      sync.Mutex
	timeout time.Duration
	onClose func() error

	pumped  bool
	pump    sync.Once
	chunks  chan readResult
	pending []byte
	readErr error
	done    chan struct{}
	closed  sync.Once
}

type readResult struct {
	data []byte
	err  error
}

// NewConnChannel wraps conn.  Reads block until SetReadTimeout is called.
func NewConnChannel(conn net.Conn) Channel {
	return &connChannel{conn: conn, done: make(chan struct{})}
}

func (c *connChannel) SetReadTimeout(d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeout = d
	if d > 0 && !c.pumped && c.conn.SetReadDeadline(time.Time{}) != nil {
		c.pumped = true
		c.pump.Do(c.startPump)
	}
	return nil
}

func (c *connChannel) startPump() {
	c.chunks = make(chan readResult)
	go func() {
		for {
			buf := make([]byte, util.ReadBufSize)
			n, err := c.conn.Read(buf)
			if n > 0 {
				select {
				case c.chunks <- readResult{data: buf[:n]}:
				case <-c.done:
					return
				}
			}
			if err != nil {
				select {
				case c.chunks <- readResult{err: err}:
				case <-c.done:
				}
				return
			}
		}
	}()
}

func (c *connChannel) Read(p []byte) (int, error) {
	c.mu.Lock()
	d, pumped := c.timeout, c.pumped
	c.mu.Unlock()

	if pumped {
		return c.readPumped(p, d)
	}
	if d > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(d)); err != nil {
			return 0, err
		}
	}
	n, err := c.conn.Read(p)
	if err != nil && util.IsTimeout(err) {
		return n, nil
	}
	return n, err
}

// readPumped serves Read from the reader goroutine.  Only the receive
// loop reads, so pending needs no lock.
func (c *connChannel) readPumped(p []byte, d time.Duration) (int, error) {
	if len(c.pending) > 0 {
		n := copy(p, c.pending)
		c.pending = c.pending[n:]
		return n, nil
	}
	if c.readErr != nil {
		return 0, c.readErr
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case r := <-c.chunks:
		if r.err != nil {
			c.readErr = r.err
			return 0, r.err
		}
		n := copy(p, r.data)
		c.pending = r.data[n:]
		return n, nil
	case <-timer.C:
		return 0, nil
	case <-c.done:
		return 0, net.ErrClosed
	}
}

func (c *connChannel) Write(p []byte) (int, error) {
	return c.conn.Write(p)
}

func (c *connChannel) Close() error {
	c.closed.Do(func() { close(c.done) })
	err := c.conn.Close()
	if c.onClose != nil {
		if cerr := c.onClose(); err == nil {
			err = cerr
		}
	}
	return err
}
