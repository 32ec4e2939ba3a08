package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromEnv_Listen(t *testing.T) {
	t.Setenv("PIAPI_LISTEN", "127.0.0.1:8080")
	cfg := Default()
	LoadFromEnv(cfg)
	if cfg.ListenAddr != "127.0.0.1:8080" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
}

func TestLoadFromEnv_EmptyMessage(t *testing.T) {
	t.Setenv("PIAPI_MESSAGE", "")
	cfg := Default()
	LoadFromEnv(cfg)
	if cfg.InitialMessage != "" {
		t.Errorf("InitialMessage = %q, want empty", cfg.InitialMessage)
	}
}

func TestLoadFromEnv_Booleans(t *testing.T) {
	tests := []struct {
		key    string
		values []string
		get    func(*Config) bool
	}{
		{"PIAPI_CONSOLE", []string{"1", "true", "yes", "TRUE", "Yes"}, func(c *Config) bool { return c.Console }},
		{"PIAPI_MDNS", []string{"1", "true"}, func(c *Config) bool { return c.MDNS }},
		{"PIAPI_SSH_AGENT", []string{"true"}, func(c *Config) bool { return c.UseSSHAgent }},
		{"PIAPI_STRICT_HOSTKEY", []string{"1"}, func(c *Config) bool { return c.StrictHostKey }},
	}

	for _, tt := range tests {
		for _, v := range tt.values {
			t.Run(tt.key+"="+v, func(t *testing.T) {
				t.Setenv(tt.key, v)
				cfg := Default()
				LoadFromEnv(cfg)
				if !tt.get(cfg) {
					t.Errorf("%s=%s should set the field", tt.key, v)
				}
			})
		}
	}
}

func TestLoadFromEnv_UART(t *testing.T) {
	t.Setenv("PIAPI_DEVICE", "/dev/ttyUSB0")
	t.Setenv("PIAPI_BAUD", "9600")
	t.Setenv("PIAPI_PARITY", "even")
	t.Setenv("PIAPI_STOP_BITS", "2")
	t.Setenv("PIAPI_DATA_BITS", "7")
	t.Setenv("PIAPI_POLL_MS", "250")
	t.Setenv("PIAPI_EOL", "crlf")
	t.Setenv("PIAPI_OPEN_RETRIES", "3")

	cfg := Default()
	LoadFromEnv(cfg)

	if cfg.Device != "/dev/ttyUSB0" || cfg.BaudRate != 9600 {
		t.Errorf("device = %q baud = %d", cfg.Device, cfg.BaudRate)
	}
	if cfg.Parity != "even" || cfg.StopBits != "2" || cfg.DataBits != 7 {
		t.Errorf("framing = %s %s %d", cfg.Parity, cfg.StopBits, cfg.DataBits)
	}
	if cfg.PollTimeout != 250*time.Millisecond {
		t.Errorf("PollTimeout = %v", cfg.PollTimeout)
	}
	if cfg.LineEnding != "crlf" || cfg.OpenRetries != 3 {
		t.Errorf("eol = %s retries = %d", cfg.LineEnding, cfg.OpenRetries)
	}
}

func TestLoadFromEnv_SSHFields(t *testing.T) {
	t.Setenv("PIAPI_TUNNEL", "pi@gateway:2222")
	t.Setenv("PIAPI_SSH_KEY", "/home/pi/.ssh/id_ed25519")
	t.Setenv("PIAPI_SSH_PASSWORD", "true")
	t.Setenv("PIAPI_KNOWN_HOSTS", "/tmp/known")

	cfg := Default()
	LoadFromEnv(cfg)

	if cfg.TunnelSpec != "pi@gateway:2222" {
		t.Errorf("TunnelSpec = %q", cfg.TunnelSpec)
	}
	if cfg.SSHKeyPath != "/home/pi/.ssh/id_ed25519" || !cfg.SSHPassword {
		t.Errorf("key = %q password = %v", cfg.SSHKeyPath, cfg.SSHPassword)
	}
	if cfg.KnownHostsPath != "/tmp/known" {
		t.Errorf("KnownHostsPath = %q", cfg.KnownHostsPath)
	}
}

func TestLoadFromEnv_InvalidIntIgnored(t *testing.T) {
	t.Setenv("PIAPI_BAUD", "fast")
	cfg := Default()
	LoadFromEnv(cfg)
	if cfg.BaudRate != DefaultBaudRate {
		t.Errorf("BaudRate = %d, want default", cfg.BaudRate)
	}
}

func TestLoadFromEnv_NoOverrideWhenEmpty(t *testing.T) {
	os.Unsetenv("PIAPI_DEVICE")
	cfg := Default()
	cfg.Device = "tcp://bridge:7000"
	LoadFromEnv(cfg)
	if cfg.Device != "tcp://bridge:7000" {
		t.Errorf("Device should not be overridden when env is empty, got %q", cfg.Device)
	}
}

// ── LoadFile ─────────────────────────────────────────────────────────

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "piapi.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
verbose = 2

[api]
listen = "127.0.0.1:9000"
message = "hello"
grace = "2s"
mdns = true

[uart]
device = "tcp://bridge:7000"
baud = 57600
poll = "250ms"
eol = "lf"

[ssh]
tunnel = "pi@gw"
agent = true
`)
	cfg := Default()
	if err := LoadFile(path, cfg); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Verbose != 2 || cfg.ConfigFile != path {
		t.Errorf("verbose = %d file = %q", cfg.Verbose, cfg.ConfigFile)
	}
	if cfg.ListenAddr != "127.0.0.1:9000" || cfg.InitialMessage != "hello" || cfg.ShutdownGrace != 2*time.Second || !cfg.MDNS {
		t.Errorf("api section = %+v", cfg)
	}
	if cfg.Device != "tcp://bridge:7000" || cfg.BaudRate != 57600 || cfg.PollTimeout != 250*time.Millisecond || cfg.LineEnding != "lf" {
		t.Errorf("uart section = %+v", cfg)
	}
	if cfg.TunnelSpec != "pi@gw" || !cfg.UseSSHAgent {
		t.Errorf("ssh section = %+v", cfg)
	}
	// keys absent from the file keep their defaults
	if cfg.DataBits != DefaultDataBits || cfg.Parity != DefaultParity {
		t.Errorf("untouched keys changed: %d %s", cfg.DataBits, cfg.Parity)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	cfg := Default()
	if err := LoadFile(filepath.Join(t.TempDir(), "nope.toml"), cfg); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadFile_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "[api]\nlisten = \":7000\"\n")
	t.Setenv("PIAPI_LISTEN", ":8000")

	cfg := Default()
	if err := LoadFile(path, cfg); err != nil {
		t.Fatal(err)
	}
	LoadFromEnv(cfg)
	if cfg.ListenAddr != ":8000" {
		t.Errorf("ListenAddr = %q, want env to win", cfg.ListenAddr)
	}
}
