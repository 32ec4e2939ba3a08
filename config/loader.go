package config

// loader.go - configuration loading from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (this file)
//   3. Config file  (file.go)
//   4. Defaults   (defaults.go)

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the PIAPI_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value.  This should be called BEFORE
// CLI flag parsing so that flags take precedence.
func LoadFromEnv(cfg *Config) {
	if envBool("PIAPI_CONSOLE") {
		cfg.Console = true
	}

	// API
	if v := os.Getenv("PIAPI_LISTEN"); v != "" {
		cfg.ListenAddr = v
	}
	if v, ok := os.LookupEnv("PIAPI_MESSAGE"); ok {
		cfg.InitialMessage = v
	}
	if v := envInt("PIAPI_GRACE"); v > 0 {
		cfg.ShutdownGrace = time.Duration(v) * time.Second
	}
	if envBool("PIAPI_MDNS") {
		cfg.MDNS = true
	}
	if v := os.Getenv("PIAPI_MDNS_NAME"); v != "" {
		cfg.MDNSName = v
	}

	// Line channel
	if v := os.Getenv("PIAPI_DEVICE"); v != "" {
		cfg.Device = v
	}
	if v := envInt("PIAPI_BAUD"); v > 0 {
		cfg.BaudRate = v
	}
	if v := os.Getenv("PIAPI_PARITY"); v != "" {
		cfg.Parity = v
	}
	if v := os.Getenv("PIAPI_STOP_BITS"); v != "" {
		cfg.StopBits = v
	}
	if v := envInt("PIAPI_DATA_BITS"); v > 0 {
		cfg.DataBits = v
	}
	if v := envInt("PIAPI_POLL_MS"); v > 0 {
		cfg.PollTimeout = time.Duration(v) * time.Millisecond
	}
	if v := os.Getenv("PIAPI_EOL"); v != "" {
		cfg.LineEnding = v
	}
	if v := envInt("PIAPI_OPEN_RETRIES"); v > 0 {
		cfg.OpenRetries = v
	}

	// SSH tunnel
	if v := os.Getenv("PIAPI_TUNNEL"); v != "" {
		cfg.TunnelSpec = v
	}
	if v := os.Getenv("PIAPI_SSH_KEY"); v != "" {
		cfg.SSHKeyPath = v
	}
	if envBool("PIAPI_SSH_PASSWORD") {
		cfg.SSHPassword = true
	}
	if envBool("PIAPI_SSH_AGENT") {
		cfg.UseSSHAgent = true
	}
	if envBool("PIAPI_STRICT_HOSTKEY") {
		cfg.StrictHostKey = true
	}
	if v := os.Getenv("PIAPI_KNOWN_HOSTS"); v != "" {
		cfg.KnownHostsPath = v
	}

	// Output
	if v := envInt("PIAPI_VERBOSE"); v > 0 {
		cfg.Verbose = v
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}
