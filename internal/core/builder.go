package core

import (
	"io"

	"piapi/config"
	"piapi/internal/capability"
	"piapi/internal/metrics"
	"piapi/internal/transport"
	"piapi/tunnel"
	"piapi/util"
)

// Options carries the process-wide pieces a mode is built with.
type Options struct {
	Logger  *util.Logger
	Metrics *metrics.Collector
	Version string
	Prompt  bool // console prompt; only when stdin is a terminal

	Stdin  io.Reader
	Stdout io.Writer
}

// Build constructs the Mode selected by cfg.  cfg must already have
// passed Validate.
func Build(cfg *config.Config, opts Options) (Mode, error) {
	if opts.Logger == nil {
		opts.Logger = util.NewLogger(cfg.Verbose)
	}
	if cfg.Console {
		return buildConsole(cfg, opts)
	}
	return buildServe(cfg, opts), nil
}

// ── mode builders ────────────────────────────────────────────────────

func buildServe(cfg *config.Config, opts Options) Mode {
	return &ServeMode{
		Address:           cfg.ListenAddr,
		Message:           cfg.InitialMessage,
		Grace:             cfg.ShutdownGrace,
		ReadHeaderTimeout: config.DefaultReadHeaderTimeout,
		MDNS:              cfg.MDNS,
		MDNSName:          cfg.MDNSName,
		Version:           opts.Version,
		Logger:            opts.Logger,
		Metrics:           opts.Metrics,
	}
}

func buildConsole(cfg *config.Config, opts Options) (Mode, error) {
	ep, err := config.ParseEndpoint(cfg.Device)
	if err != nil {
		return nil, err
	}
	serialMode, err := transport.SerialModeFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	eol, err := config.ParseLineEnding(cfg.LineEnding)
	if err != nil {
		return nil, err
	}

	return &ConsoleMode{
		Opener: &transport.Opener{
			Endpoint:    ep,
			Mode:        serialMode,
			Dialer:      buildDialer(cfg, opts.Logger),
			DialTimeout: config.DefaultConnTimeout,
			Retries:     cfg.OpenRetries,
			Logger:      opts.Logger,
		},
		Capability:  &capability.Console{Prompt: opts.Prompt},
		PollTimeout: cfg.PollTimeout,
		Terminator:  eol,
		Logger:      opts.Logger,
		Metrics:     opts.Metrics,
		Stdin:       opts.Stdin,
		Stdout:      opts.Stdout,
	}, nil
}

// ── shared helpers ───────────────────────────────────────────────────

// buildDialer returns the SSH-tunnelled dialer when a gateway is
// configured, and nil (plain TCP) otherwise.
func buildDialer(cfg *config.Config, logger *util.Logger) transport.Dialer {
	if !cfg.TunnelEnabled {
		return nil
	}
	return transport.NewSSHDialer(&tunnel.SSHConfig{
		User:          cfg.TunnelUser,
		Host:          cfg.TunnelHost,
		Port:          cfg.TunnelPort,
		KeyPath:       cfg.SSHKeyPath,
		PromptPass:    cfg.SSHPassword,
		UseAgent:      cfg.UseSSHAgent,
		StrictHostKey: cfg.StrictHostKey,
		KnownHosts:    cfg.KnownHostsPath,
		ConnTimeout:   config.DefaultConnTimeout,
		KeepAlive:     config.DefaultSSHKeepAlive,
	}, logger)
}
