package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// LoadFile overlays a TOML config file onto cfg.  Only keys present in
// the file override the existing value.
//
//	verbose = 1
//
//	[api]
//	listen    = ":5000"
//	message   = "Welcome to 3ESE API!"
//	grace     = "5s"
//	mdns      = true
//	mdns_name = "bench-pi"
//
//	[uart]
//	console      = false
//	device       = "/dev/ttyAMA0"
//	baud         = 115200
//	parity       = "none"
//	stop_bits    = "1"
//	data_bits    = 8
//	poll         = "1s"
//	eol          = "cr"
//	open_retries = 5
//
//	[ssh]
//	tunnel         = "pi@gateway.lan"
//	key            = "~/.ssh/id_ed25519"
//	password       = false
//	agent          = true
//	strict_hostkey = true
//	known_hosts    = "/etc/ssh/ssh_known_hosts"
func LoadFile(path string, cfg *Config) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}

	setInt(v, "verbose", &cfg.Verbose)

	setString(v, "api.listen", &cfg.ListenAddr)
	setString(v, "api.message", &cfg.InitialMessage)
	if v.IsSet("api.grace") {
		cfg.ShutdownGrace = v.GetDuration("api.grace")
	}
	setBool(v, "api.mdns", &cfg.MDNS)
	setString(v, "api.mdns_name", &cfg.MDNSName)

	setBool(v, "uart.console", &cfg.Console)
	setString(v, "uart.device", &cfg.Device)
	setInt(v, "uart.baud", &cfg.BaudRate)
	setString(v, "uart.parity", &cfg.Parity)
	setString(v, "uart.stop_bits", &cfg.StopBits)
	setInt(v, "uart.data_bits", &cfg.DataBits)
	if v.IsSet("uart.poll") {
		cfg.PollTimeout = v.GetDuration("uart.poll")
	}
	setString(v, "uart.eol", &cfg.LineEnding)
	setInt(v, "uart.open_retries", &cfg.OpenRetries)

	setString(v, "ssh.tunnel", &cfg.TunnelSpec)
	setString(v, "ssh.key", &cfg.SSHKeyPath)
	setBool(v, "ssh.password", &cfg.SSHPassword)
	setBool(v, "ssh.agent", &cfg.UseSSHAgent)
	setBool(v, "ssh.strict_hostkey", &cfg.StrictHostKey)
	setString(v, "ssh.known_hosts", &cfg.KnownHostsPath)

	cfg.ConfigFile = path
	return nil
}

func setString(v *viper.Viper, key string, dst *string) {
	if v.IsSet(key) {
		*dst = v.GetString(key)
	}
}

func setInt(v *viper.Viper, key string, dst *int) {
	if v.IsSet(key) {
		*dst = v.GetInt(key)
	}
}

func setBool(v *viper.Viper, key string, dst *bool) {
	if v.IsSet(key) {
		*dst = v.GetBool(key)
	}
}
