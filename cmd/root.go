// Package cmd wires up the CLI flags and dispatches to the core modes.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	flag "github.com/spf13/pflag"
	"golang.org/x/term"

	"piapi/config"
	"piapi/internal/core"
	"piapi/internal/metrics"
	"piapi/internal/transport"
	"piapi/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X piapi/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// stdout receives --version, --dry-run and --list-ports output.
var stdout io.Writer = os.Stdout //nolint:gochecknoglobals

// Execute parses args and runs the selected piapi mode until ctx is
// cancelled.
func Execute(ctx context.Context, args []string) error {
	// ── file, then environment ───────────────────────────────────
	cfg := config.Default()
	if path := configPath(args); path != "" {
		if err := config.LoadFile(path, cfg); err != nil {
			return err
		}
	}
	config.LoadFromEnv(cfg)

	// Flags are registered with the file/env values as defaults, so
	// only flags given on the command line override them.
	fs := flag.NewFlagSet("piapi", flag.ContinueOnError)

	// ── mode ─────────────────────────────────────────────────────
	fs.BoolVarP(&cfg.Console, "console", "c", cfg.Console, "Run the line console instead of the API")
	fs.StringVar(&cfg.ConfigFile, "config", cfg.ConfigFile, "TOML config file (also PIAPI_CONFIG)")

	// ── API ──────────────────────────────────────────────────────
	fs.StringVarP(&cfg.ListenAddr, "listen", "l", cfg.ListenAddr, "API listen address")
	fs.StringVar(&cfg.InitialMessage, "message", cfg.InitialMessage, "Initial message")
	fs.DurationVar(&cfg.ShutdownGrace, "grace", cfg.ShutdownGrace, "Time allowed for in-flight requests on shutdown")
	fs.BoolVar(&cfg.MDNS, "mdns", cfg.MDNS, "Advertise the API with mDNS")
	fs.StringVar(&cfg.MDNSName, "mdns-name", cfg.MDNSName, "mDNS instance name (default piapi-<hostname>)")

	// ── line channel ─────────────────────────────────────────────
	fs.StringVarP(&cfg.Device, "device", "d", cfg.Device, "Serial device, or tcp://host:port for a serial bridge")
	fs.IntVarP(&cfg.BaudRate, "baud", "b", cfg.BaudRate, "Baud rate")
	fs.StringVar(&cfg.Parity, "parity", cfg.Parity, "Parity: none, odd, even, mark, space")
	fs.StringVar(&cfg.StopBits, "stop-bits", cfg.StopBits, "Stop bits: 1, 1.5, 2")
	fs.IntVar(&cfg.DataBits, "data-bits", cfg.DataBits, "Data bits (5-8)")
	fs.DurationVar(&cfg.PollTimeout, "poll", cfg.PollTimeout, "Receive poll interval")
	fs.StringVar(&cfg.LineEnding, "eol", cfg.LineEnding, "Outbound line ending: none, cr, lf, crlf")
	fs.IntVar(&cfg.OpenRetries, "open-retries", cfg.OpenRetries, "Extra attempts to open a busy or missing device")

	// ── SSH tunnel ───────────────────────────────────────────────
	fs.StringVarP(&cfg.TunnelSpec, "tunnel", "T", cfg.TunnelSpec, "Reach a tcp:// bridge through SSH [user@]host[:port]")
	fs.StringVar(&cfg.SSHKeyPath, "ssh-key", cfg.SSHKeyPath, "SSH private key file")
	fs.BoolVar(&cfg.SSHPassword, "ssh-password", cfg.SSHPassword, "Prompt for SSH password")
	fs.BoolVar(&cfg.UseSSHAgent, "ssh-agent", cfg.UseSSHAgent, "Use SSH agent")
	fs.BoolVar(&cfg.StrictHostKey, "strict-hostkey", cfg.StrictHostKey, "Verify SSH host keys")
	fs.StringVar(&cfg.KnownHostsPath, "known-hosts", cfg.KnownHostsPath, "Custom known_hosts path")

	// ── output ───────────────────────────────────────────────────
	verbose := cfg.Verbose
	fs.CountVarP(&cfg.Verbose, "verbose", "v", "Increase verbosity (repeatable)")

	var showVersion, showHelp, dryRun, listPorts bool
	fs.BoolVar(&dryRun, "dry-run", false, "Validate the configuration and exit")
	fs.BoolVar(&listPorts, "list-ports", false, "List serial devices and exit")
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !fs.Changed("verbose") {
		cfg.Verbose = verbose
	}

	if showHelp {
		printUsage(fs)
		return nil
	}
	if showVersion {
		fmt.Fprintf(stdout, "piapi %s\n", version)
		return nil
	}
	if listPorts {
		return printPorts()
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected argument %q (use --help for usage)", fs.Arg(0))
	}

	// ── tunnel spec ──────────────────────────────────────────────
	if cfg.TunnelSpec != "" {
		user, host, port, err := config.ParseTunnelSpec(cfg.TunnelSpec)
		if err != nil {
			return fmt.Errorf("tunnel: %w", err)
		}
		cfg.TunnelEnabled = true
		cfg.TunnelUser = user
		cfg.TunnelHost = host
		cfg.TunnelPort = port
	}

	// ── validate ─────────────────────────────────────────────────
	if err := cfg.Validate(); err != nil {
		return err
	}
	if dryRun {
		printSummary(cfg)
		return nil
	}

	// ── build and run ────────────────────────────────────────────
	logger := util.NewLogger(cfg.Verbose)
	if cfg.ConfigFile != "" {
		logger.Verbose("config file %s", cfg.ConfigFile)
	}

	mode, err := core.Build(cfg, core.Options{
		Logger:  logger,
		Metrics: metrics.New(),
		Version: version,
		Prompt:  term.IsTerminal(int(os.Stdin.Fd())),
	})
	if err != nil {
		return err
	}
	return mode.Run(ctx)
}

// ── helpers ──────────────────────────────────────────────────────────

// configPath finds the config file before flags are parsed: --config
// wins over PIAPI_CONFIG.
func configPath(args []string) string {
	path := os.Getenv("PIAPI_CONFIG")
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			break
		}
		switch {
		case a == "--config" && i+1 < len(args):
			path = args[i+1]
			i++
		case strings.HasPrefix(a, "--config="):
			path = strings.TrimPrefix(a, "--config=")
		}
	}
	return path
}

func printPorts() error {
	ports, err := transport.ListPorts()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Fprintln(stdout, "no serial ports found")
		return nil
	}
	for _, p := range ports {
		fmt.Fprintln(stdout, p)
	}
	return nil
}

func printSummary(cfg *config.Config) {
	if !cfg.Console {
		fmt.Fprintf(stdout, "mode:     api\nlisten:   %s\nmessage:  %q\ngrace:    %s\n",
			cfg.ListenAddr, cfg.InitialMessage, cfg.ShutdownGrace)
		if cfg.MDNS {
			fmt.Fprintf(stdout, "mdns:     %s\n", config.DefaultMDNSService)
		}
		return
	}

	ep, _ := config.ParseEndpoint(cfg.Device)
	fmt.Fprintf(stdout, "mode:     console\ndevice:   %s\n", ep)
	if ep.Kind == config.EndpointSerial {
		parity, _ := config.ParseParity(cfg.Parity)
		fmt.Fprintf(stdout, "framing:  %d %d%c%s\n", cfg.BaudRate, cfg.DataBits,
			"NOEMS"[parity], cfg.StopBits)
	}
	fmt.Fprintf(stdout, "eol:      %s\npoll:     %s\n", cfg.LineEnding, cfg.PollTimeout)
	if cfg.TunnelEnabled {
		fmt.Fprintf(stdout, "tunnel:   %s@%s:%d\n", cfg.TunnelUser, cfg.TunnelHost, cfg.TunnelPort)
	}
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, `piapi – message API and UART console v%s

Serves a shared message over HTTP, or bridges the terminal to a
device shell on a serial line.

Usage:
  piapi [options]                             Serve the API
  piapi -c [-d device] [options]              Line console
  piapi -c -d tcp://host:port -T user@gw      Console through an SSH gateway

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Examples:
  piapi -l :8080                              Serve on port 8080
  curl localhost:5000/api/welcome/0           Read one character
  piapi -c -d /dev/ttyUSB0 -b 9600            Console on a USB adapter
  piapi -c -d tcp://10.0.0.7:4001 --eol crlf  Console over ser2net
  piapi --list-ports                          Show serial devices
`)
}
