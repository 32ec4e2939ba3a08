// Package config defines the runtime configuration for piapi and
// provides helpers for parsing channel endpoints, serial framing and
// tunnel specifications.
package config

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	ncerr "piapi/internal/errors"
	"piapi/util"
)

// Config holds every tuneable for a piapi process.
type Config struct {
	// ── Mode ─────────────────────────────────────────────────────────
	Console    bool   // run the line console instead of the API
	ConfigFile string // TOML file overlaid before env and flags

	// ── API ──────────────────────────────────────────────────────────
	ListenAddr     string
	InitialMessage string
	ShutdownGrace  time.Duration
	MDNS           bool
	MDNSName       string

	// ── Line channel ─────────────────────────────────────────────────
	Device      string // serial path or tcp://host:port
	BaudRate    int
	Parity      string
	StopBits    string
	DataBits    int
	PollTimeout time.Duration
	LineEnding  string
	OpenRetries int

	// ── SSH tunnel (tcp:// endpoints only) ───────────────────────────
	TunnelSpec     string // raw user@host[:port] from -T
	TunnelEnabled  bool
	TunnelUser     string
	TunnelHost     string
	TunnelPort     int
	SSHKeyPath     string
	SSHPassword    bool
	UseSSHAgent    bool
	StrictHostKey  bool
	KnownHostsPath string

	// ── Output ───────────────────────────────────────────────────────
	Verbose int
}

// Default returns a Config populated from defaults.go.
func Default() *Config {
	return &Config{
		ListenAddr:     DefaultListenAddr,
		InitialMessage: DefaultMessage,
		ShutdownGrace:  DefaultShutdownGrace,
		Device:         DefaultDevice,
		BaudRate:       DefaultBaudRate,
		Parity:         DefaultParity,
		StopBits:       DefaultStopBits,
		DataBits:       DefaultDataBits,
		PollTimeout:    DefaultPollTimeout,
		LineEnding:     DefaultLineEnding,
	}
}

// ── Endpoint ─────────────────────────────────────────────────────────

// EndpointKind selects how the line channel is reached.
type EndpointKind int

const (
	// EndpointSerial is a local UART device such as /dev/ttyAMA0.
	EndpointSerial EndpointKind = iota
	// EndpointTCP is a serial-over-TCP bridge (ser2net and friends).
	EndpointTCP
)

// Endpoint is a parsed --device value.
type Endpoint struct {
	Kind    EndpointKind
	Address string // device path, or host:port for TCP
}

func (e Endpoint) String() string {
	if e.Kind == EndpointTCP {
		return "tcp://" + e.Address
	}
	return e.Address
}

const tcpScheme = "tcp://"

// ParseEndpoint accepts a device path ("/dev/ttyAMA0", "COM3") or a
// TCP bridge address ("tcp://host:port").
func ParseEndpoint(s string) (Endpoint, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Endpoint{}, fmt.Errorf("empty device")
	}
	if !strings.HasPrefix(s, tcpScheme) {
		return Endpoint{Kind: EndpointSerial, Address: s}, nil
	}

	addr := strings.TrimPrefix(s, tcpScheme)
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return Endpoint{}, fmt.Errorf("invalid bridge address %q: %w", addr, err)
	}
	if host == "" {
		return Endpoint{}, fmt.Errorf("bridge host is required in %q", s)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return Endpoint{}, fmt.Errorf("invalid bridge port %q", portStr)
	}
	return Endpoint{Kind: EndpointTCP, Address: util.FormatAddr(host, port)}, nil
}

// ── Serial framing ───────────────────────────────────────────────────

// Parity is the UART parity mode.
type Parity int

const (
	ParityNone Parity = iota
	ParityOdd
	ParityEven
	ParityMark
	ParitySpace
)

// ParseParity accepts none, odd, even, mark or space (or N/O/E/M/S).
func ParseParity(s string) (Parity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "n", "":
		return ParityNone, nil
	case "odd", "o":
		return ParityOdd, nil
	case "even", "e":
		return ParityEven, nil
	case "mark", "m":
		return ParityMark, nil
	case "space", "s":
		return ParitySpace, nil
	}
	return 0, fmt.Errorf("unknown parity %q", s)
}

// StopBits is the number of UART stop bits.
type StopBits int

const (
	StopBitsOne StopBits = iota
	StopBitsOnePointFive
	StopBitsTwo
)

// ParseStopBits accepts "1", "1.5" or "2".
func ParseStopBits(s string) (StopBits, error) {
	switch strings.TrimSpace(s) {
	case "1", "":
		return StopBitsOne, nil
	case "1.5":
		return StopBitsOnePointFive, nil
	case "2":
		return StopBitsTwo, nil
	}
	return 0, fmt.Errorf("unknown stop bits %q", s)
}

// ParseLineEnding maps a symbolic terminator name to the bytes
// appended to every outbound line.
func ParseLineEnding(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none":
		return "", nil
	case "cr", "":
		return "\r", nil
	case "lf":
		return "\n", nil
	case "crlf":
		return "\r\n", nil
	}
	return "", fmt.Errorf("unknown line ending %q", s)
}

// ── Tunnel-spec parser ───────────────────────────────────────────────

// tunnelRe matches [user@]host[:port].
var tunnelRe = regexp.MustCompile(`^(?:([^@]+)@)?([^:]+)(?::(\d+))?$`)

// ParseTunnelSpec extracts user, host, and port from a string such as
// "pi@gateway.lan:2222".  Port defaults to 22.
func ParseTunnelSpec(spec string) (user, host string, port int, err error) {
	m := tunnelRe.FindStringSubmatch(spec)
	if m == nil {
		return "", "", 0, fmt.Errorf("invalid tunnel spec %q – expected [user@]host[:port]", spec)
	}
	user = m[1]
	host = m[2]
	port = DefaultSSHPort
	if m[3] != "" {
		port, err = strconv.Atoi(m[3])
		if err != nil || port < 1 || port > 65535 {
			return "", "", 0, fmt.Errorf("invalid tunnel port %q", m[3])
		}
	}
	if host == "" {
		return "", "", 0, fmt.Errorf("tunnel host is required")
	}
	return user, host, port, nil
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if !c.Console {
		if c.TunnelEnabled {
			return &ncerr.ConfigError{
				Field:   "tunnel",
				Value:   c.TunnelSpec,
				Message: "only applies to the line console",
				Hint:    "add -c/--console, or drop -T",
			}
		}
		if _, err := util.SplitPort(c.ListenAddr); err != nil {
			return &ncerr.ConfigError{
				Field:   "listen",
				Value:   c.ListenAddr,
				Message: err.Error(),
				Hint:    "use [host]:port, e.g. :5000",
			}
		}
		if c.ShutdownGrace < 0 {
			return &ncerr.ConfigError{Field: "grace", Value: c.ShutdownGrace, Message: "must not be negative"}
		}
		return nil
	}

	ep, err := ParseEndpoint(c.Device)
	if err != nil {
		return &ncerr.ConfigError{
			Field:   "device",
			Value:   nilIfEmpty(c.Device),
			Message: err.Error(),
			Hint:    "use a device path such as /dev/ttyAMA0, or tcp://host:port for a serial bridge",
		}
	}
	if c.TunnelEnabled {
		if ep.Kind != EndpointTCP {
			return &ncerr.ConfigError{
				Field:   "tunnel",
				Value:   c.TunnelSpec,
				Message: "requires a tcp:// device",
				Hint:    "a local serial device cannot be reached through an SSH gateway",
			}
		}
		if c.TunnelHost == "" {
			return &ncerr.ConfigError{Field: "tunnel", Message: "tunnel host is required"}
		}
	}
	if c.BaudRate <= 0 {
		return &ncerr.ConfigError{Field: "baud", Value: c.BaudRate, Message: "must be positive", Hint: "the firmware shell runs at 115200"}
	}
	if c.DataBits < 5 || c.DataBits > 8 {
		return &ncerr.ConfigError{Field: "data-bits", Value: c.DataBits, Message: "must be between 5 and 8"}
	}
	if _, err := ParseParity(c.Parity); err != nil {
		return &ncerr.ConfigError{Field: "parity", Value: c.Parity, Message: err.Error(), Hint: "use none, odd, even, mark or space"}
	}
	if _, err := ParseStopBits(c.StopBits); err != nil {
		return &ncerr.ConfigError{Field: "stop-bits", Value: c.StopBits, Message: err.Error(), Hint: "use 1, 1.5 or 2"}
	}
	if _, err := ParseLineEnding(c.LineEnding); err != nil {
		return &ncerr.ConfigError{Field: "eol", Value: c.LineEnding, Message: err.Error(), Hint: "use none, cr, lf or crlf"}
	}
	if c.PollTimeout <= 0 || c.PollTimeout > MaxPollTimeout {
		return &ncerr.ConfigError{
			Field:   "poll",
			Value:   c.PollTimeout,
			Message: fmt.Sprintf("must be in (0, %s]", MaxPollTimeout),
			Hint:    "shutdown is observed once per poll interval",
		}
	}
	if c.OpenRetries < 0 {
		return &ncerr.ConfigError{Field: "open-retries", Value: c.OpenRetries, Message: "must not be negative"}
	}
	return nil
}

func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
