package core

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"piapi/internal/capability"
	"piapi/internal/duplex"
	"piapi/internal/metrics"
	"piapi/internal/session"
	"piapi/internal/transport"
	"piapi/util"
)

// ConsoleMode opens the device channel, prints every line the device
// sends and forwards every line the operator types.
type ConsoleMode struct {
	Opener      *transport.Opener
	Capability  capability.Capability
	PollTimeout time.Duration
	Terminator  string
	Logger      *util.Logger
	Metrics     *metrics.Collector

	// Stdin/Stdout default to os.Stdin/os.Stdout when nil.
	// Override in tests for deterministic I/O.
	Stdin  io.Reader
	Stdout io.Writer
}

func (m *ConsoleMode) stdin() io.Reader {
	if m.Stdin != nil {
		return m.Stdin
	}
	return os.Stdin
}

func (m *ConsoleMode) stdout() io.Writer {
	if m.Stdout != nil {
		return m.Stdout
	}
	return os.Stdout
}

// Run opens the channel, starts the receive loop and hands the session
// to the capability.  The transport is closed when Run returns.
func (m *ConsoleMode) Run(ctx context.Context) error {
	logger := m.Logger
	if logger == nil {
		logger = util.NewLogger(0)
	}
	endpoint := m.Opener.Endpoint.String()

	ch, err := m.Opener.Open(ctx)
	if err != nil {
		if m.Opener.Dialer != nil {
			m.Opener.Dialer.Close()
		}
		return fmt.Errorf("open %s: %w", endpoint, err)
	}
	ch = transport.CloseWith(ch, m.Opener.Dialer)

	out := session.SyncWriter(m.stdout())
	tr, err := duplex.New(ch, duplex.Options{
		Handler:     capability.PrintHandler(out),
		Logger:      logger,
		Metrics:     m.Metrics,
		PollTimeout: m.PollTimeout,
		Terminator:  m.Terminator,
		Endpoint:    endpoint,
	})
	if err != nil {
		ch.Close()
		return err
	}
	tr.Start()
	defer tr.Close()

	logger.Info("connected to %s", endpoint)

	sess := session.New(tr, m.stdin(), out, logger)
	return m.Capability.Handle(ctx, sess)
}
