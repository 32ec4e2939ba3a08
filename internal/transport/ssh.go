package transport

import (
	"context"
	"fmt"
	"net"
	"sync"

	"piapi/tunnel"
	"piapi/util"
)

// SSHDialer reaches the bridge through an SSH gateway.  The gateway is
// connected lazily on the first Dial and torn down on Close.
type SSHDialer struct {
	tunnel    tunnel.Tunnel
	config    *tunnel.SSHConfig
	logger    *util.Logger
	mu        sync.Mutex
	connected bool
}

// NewSSHDialer creates a dialer that forwards connections through the
// gateway described by cfg.  Nothing is dialled until the first Dial.
func NewSSHDialer(cfg *tunnel.SSHConfig, logger *util.Logger) *SSHDialer {
	return newSSHDialer(tunnel.NewGateway(cfg, logger), cfg, logger)
}

func newSSHDialer(t tunnel.Tunnel, cfg *tunnel.SSHConfig, logger *util.Logger) *SSHDialer {
	return &SSHDialer{tunnel: t, config: cfg, logger: logger}
}

// connect establishes the gateway connection if it is not up.  A
// gateway that dropped since the last Dial is reconnected.
func (d *SSHDialer) connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected && d.tunnel.IsAlive() {
		return nil
	}

	d.logger.Verbose("connecting to SSH gateway %s@%s:%d",
		d.config.User, d.config.Host, d.config.Port)

	if err := d.tunnel.Connect(ctx); err != nil {
		return fmt.Errorf("gateway: %w", err)
	}

	d.connected = true
	d.logger.Verbose("SSH gateway connected")
	return nil
}

// Dial connects to address through the gateway.
func (d *SSHDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	if err := d.connect(ctx); err != nil {
		return nil, err
	}
	return d.tunnel.Dial(ctx, network, address)
}

// Close tears down the gateway connection.
func (d *SSHDialer) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		d.connected = false
		return d.tunnel.Close()
	}
	return nil
}

// CloseWith arranges for dialer to be closed together with ch.  It is
// used so that closing the console channel also drops the gateway.
func CloseWith(ch Channel, dialer Dialer) Channel {
	if cc, ok := ch.(*connChannel); ok && dialer != nil {
		cc.onClose = dialer.Close
	}
	return ch
}
