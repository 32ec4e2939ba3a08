package config

import (
	"errors"
	"strings"
	"testing"

	ncerr "piapi/internal/errors"
)

// TestValidate_ErrorMessages verifies that Validate returns actionable
// error messages with hints.
func TestValidate_ErrorMessages(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantSub string // substring expected in error
	}{
		{
			name:    "listen without port has hint",
			mutate:  func(c *Config) { c.ListenAddr = "localhost" },
			wantSub: "hint:",
		},
		{
			name:    "missing device names the flag",
			mutate:  func(c *Config) { c.Console = true; c.Device = "" },
			wantSub: "--device",
		},
		{
			name:    "tunnel without console",
			mutate:  func(c *Config) { c.TunnelEnabled = true; c.TunnelSpec = "pi@gw" },
			wantSub: "-c/--console",
		},
		{
			name:    "poll bound",
			mutate:  func(c *Config) { c.Console = true; c.PollTimeout = -1 },
			wantSub: "shutdown is observed once per poll interval",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q should contain %q", err.Error(), tt.wantSub)
			}
			var ce *ncerr.ConfigError
			if !errors.As(err, &ce) {
				t.Errorf("expected *ConfigError, got %T", err)
			}
		})
	}
}

// TestParseEndpoint_Fuzz covers edge-case bridge addresses.
func TestParseEndpoint_Fuzz(t *testing.T) {
	edgeCases := []string{
		"tcp://", "tcp://:", "tcp://h:", "tcp://h:-1", "tcp://h:65536",
		"tcp://h:65535", "tcp://h:1", " /dev/ttyUSB0 ", "tcp://[fe80::1]:22",
	}
	for _, s := range edgeCases {
		t.Run(s, func(t *testing.T) {
			ep, err := ParseEndpoint(s)
			if err != nil {
				return
			}
			if ep.Address == "" {
				t.Errorf("accepted %q with empty address", s)
			}
			if ep.Kind == EndpointTCP && !strings.Contains(ep.Address, ":") {
				t.Errorf("tcp endpoint %q lost its port", ep.Address)
			}
		})
	}
}
