package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags, config file parsing, and environment variable
// loading.

const (
	// DefaultListenAddr is where the API listens.
	DefaultListenAddr = ":5000"

	// DefaultMessage is the message held at start-up.
	DefaultMessage = "Welcome to 3ESE API!"

	// DefaultShutdownGrace bounds how long in-flight requests may run
	// after the shutdown signal.
	DefaultShutdownGrace = 5 * time.Second

	// DefaultReadHeaderTimeout limits slow request headers.
	DefaultReadHeaderTimeout = 10 * time.Second

	// DefaultMDNSService is the DNS-SD service type advertised with --mdns.
	DefaultMDNSService = "_piapi._tcp"

	// DefaultDevice is the primary UART on a Raspberry Pi header.
	DefaultDevice = "/dev/ttyAMA0"

	// DefaultBaudRate, DefaultParity, DefaultStopBits and
	// DefaultDataBits give 115200 8N1.
	DefaultBaudRate = 115200
	DefaultParity   = "none"
	DefaultStopBits = "1"
	DefaultDataBits = 8

	// DefaultPollTimeout bounds each receive poll.
	DefaultPollTimeout = time.Second

	// MaxPollTimeout caps --poll so shutdown stays responsive.
	MaxPollTimeout = 30 * time.Second

	// DefaultLineEnding terminates outbound lines.  The firmware shell
	// executes a command on carriage return.
	DefaultLineEnding = "cr"

	// DefaultSSHPort is the standard SSH port.
	DefaultSSHPort = 22

	// DefaultSSHKeepAlive is the interval between gateway keepalive
	// probes.
	DefaultSSHKeepAlive = 30 * time.Second

	// DefaultConnTimeout is the TCP/SSH connection timeout.
	DefaultConnTimeout = 30 * time.Second
)
