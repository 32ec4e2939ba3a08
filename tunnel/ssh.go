package tunnel

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	ncerr "piapi/internal/errors"
	"piapi/util"
)

// SSHConfig holds everything needed to log into the gateway.
type SSHConfig struct {
	User          string
	Host          string
	Port          int
	KeyPath       string
	PromptPass    bool
	UseAgent      bool
	StrictHostKey bool
	KnownHosts    string
	ConnTimeout   time.Duration

	// KeepAlive is the interval between keepalive@openssh.com probes.
	// Zero disables probing.
	KeepAlive time.Duration
}

// Gateway implements [Tunnel] over a single SSH client connection.
type Gateway struct {
	config *SSHConfig
	client *ssh.Client
	logger *util.Logger
	mu     sync.RWMutex
	alive  bool
	stop   chan struct{}
}

// NewGateway returns a gateway that is ready to [Gateway.Connect].
func NewGateway(cfg *SSHConfig, logger *util.Logger) *Gateway {
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.ConnTimeout == 0 {
		cfg.ConnTimeout = 30 * time.Second
	}
	return &Gateway{config: cfg, logger: logger.With("ssh")}
}

// Connect dials the gateway and completes the handshake.
func (g *Gateway) Connect(ctx context.Context) error {
	authMethods, err := BuildAuthMethods(g.config)
	if err != nil {
		return ncerr.WrapSSH("auth", g.config.Host, g.config.Port, fmt.Errorf("%w: %v", ncerr.ErrAuthFailed, err))
	}

	hkCallback, err := hostKeyCallback(g.config)
	if err != nil {
		return ncerr.WrapSSH("hostkey", g.config.Host, g.config.Port, err)
	}

	sshCfg := &ssh.ClientConfig{
		User:            g.config.User,
		Auth:            authMethods,
		HostKeyCallback: hkCallback,
		Timeout:         g.config.ConnTimeout,
	}

	addr := util.FormatAddr(g.config.Host, g.config.Port)
	g.logger.Debug("dialing %s as %s", addr, g.config.User)

	dialer := net.Dialer{Timeout: g.config.ConnTimeout}
	tcpConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return ncerr.Wrap("dial", addr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(tcpConn, addr, sshCfg)
	if err != nil {
		tcpConn.Close()
		return ncerr.WrapSSH("handshake", g.config.Host, g.config.Port, err)
	}

	client := ssh.NewClient(sshConn, chans, reqs)

	stop := make(chan struct{})

	g.mu.Lock()
	oldClient, oldStop := g.client, g.stop
	g.client = client
	g.alive = true
	g.stop = stop
	g.mu.Unlock()

	// A reconnect replaces a dead or stale client; release it and its
	// keepalive loop.
	if oldStop != nil {
		close(oldStop)
	}
	if oldClient != nil {
		oldClient.Close()
	}

	go g.monitor(client)
	if g.config.KeepAlive > 0 {
		go g.keepAlive(client, stop)
	}
	return nil
}

// Dial forwards a TCP connection to the bridge through the gateway.
func (g *Gateway) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	g.mu.RLock()
	client := g.client
	alive := g.alive
	g.mu.RUnlock()

	if !alive || client == nil {
		return nil, ncerr.ErrNotConnected
	}

	g.logger.Debug("forwarding %s %s", network, address)
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		c, err := client.Dial(network, address)
		ch <- result{c, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, ncerr.WrapSSH("dial", g.config.Host, g.config.Port, fmt.Errorf("forward to %s: %w", address, r.err))
		}
		return r.conn, nil
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.conn != nil {
				r.conn.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

// Close shuts down the SSH connection.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.alive = false
	if g.stop != nil {
		close(g.stop)
		g.stop = nil
	}
	if g.client != nil {
		err := g.client.Close()
		g.client = nil
		return err
	}
	return nil
}

// IsAlive reports whether the gateway is still connected.
func (g *Gateway) IsAlive() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.alive
}

// monitor blocks until the SSH connection closes and flips the alive flag.
func (g *Gateway) monitor(client *ssh.Client) {
	err := client.Wait()

	g.mu.Lock()
	if g.client == client {
		g.alive = false
	}
	g.mu.Unlock()

	if err != nil {
		g.logger.Debug("connection closed: %v", err)
	} else {
		g.logger.Debug("connection closed")
	}
}

// keepAlive probes the gateway so a dead link is noticed while the
// console is idle.  A failed probe closes the client, which unblocks
// monitor and every forwarded connection.
func (g *Gateway) keepAlive(client *ssh.Client, stop <-chan struct{}) {
	tick := time.NewTicker(g.config.KeepAlive)
	defer tick.Stop()

	for {
		select {
		case <-stop:
			return
		case <-tick.C:
			if _, _, err := client.SendRequest("keepalive@openssh.com", true, nil); err != nil {
				g.logger.Error("gateway %s lost: %v", g.config.Host, err)
				client.Close()
				return
			}
		}
	}
}
