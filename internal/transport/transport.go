// Package transport opens the byte channel that carries the line
// console: a local UART, a serial-over-TCP bridge, or such a bridge
// reached through an SSH gateway.  What travels over the channel is
// the duplex package's concern.
package transport

import (
	"context"
	"io"
	"net"
	"time"

	"piapi/config"
	ncerr "piapi/internal/errors"
	"piapi/internal/retry"
	"piapi/util"
)

// Channel is an open byte channel to the device shell.
type Channel interface {
	io.ReadWriteCloser

	// SetReadTimeout bounds every subsequent Read.  A Read that times
	// out returns (0, nil) so callers can poll for shutdown.
	SetReadTimeout(d time.Duration) error
}

// Dialer opens outbound connections to a TCP bridge.  Implementations
// are a plain TCP dialer and an SSH-tunnelled dialer.
type Dialer interface {
	// Dial establishes a connection to the given network address.
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// Close releases any long-lived resources held by the dialer
	// (e.g. an SSH session).  Stateless dialers return nil.
	Close() error
}

// Opener opens a Channel for one endpoint, retrying failures that are
// worth retrying.
type Opener struct {
	Endpoint    config.Endpoint
	Mode        SerialMode
	Dialer      Dialer // TCP endpoints only; nil means a plain TCPDialer
	DialTimeout time.Duration
	Retries     int // extra attempts after the first
	Logger      *util.Logger

	openSerial func(path string, mode SerialMode) (Channel, error)
}

// Open opens the channel.  Serial and TCP failures are wrapped in
// *errors.TransportError; only retryable ones consume the retry budget.
func (o *Opener) Open(ctx context.Context) (Channel, error) {
	logger := o.Logger
	if logger == nil {
		logger = util.NewLogger(0)
	}
	logger = logger.With("transport")

	b := retry.DefaultBackoff(o.Retries + 1)
	b.OnRetry = func(attempt int, err error, wait time.Duration) {
		logger.Warn("open %s failed (attempt %d): %v; retrying in %s", o.Endpoint, attempt, err, wait.Truncate(time.Millisecond))
	}

	var ch Channel
	err := b.Do(ctx, func(int) error {
		c, err := o.openOnce(ctx)
		if err != nil {
			if !ncerr.IsRetryable(err) {
				return retry.Permanent(err)
			}
			return err
		}
		ch = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Verbose("opened %s", o.Endpoint)
	return ch, nil
}

func (o *Opener) openOnce(ctx context.Context) (Channel, error) {
	switch o.Endpoint.Kind {
	case config.EndpointTCP:
		d := o.Dialer
		if d == nil {
			d = &TCPDialer{Timeout: o.DialTimeout}
		}
		conn, err := d.Dial(ctx, "tcp", o.Endpoint.Address)
		if err != nil {
			return nil, ncerr.Wrap("dial", o.Endpoint.String(), err)
		}
		return NewConnChannel(conn), nil

	default:
		open := o.openSerial
		if open == nil {
			open = OpenSerial
		}
		return open(o.Endpoint.Address, o.Mode)
	}
}
