package util

import (
	"fmt"
	"net"
	"os"
	"strconv"
)

// FormatAddr returns "host:port".
func FormatAddr(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// SplitPort returns the numeric port of a listen address such as
// ":5000" or "0.0.0.0:8080".
func SplitPort(addr string) (int, error) {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, fmt.Errorf("address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(p)
	if err != nil || port < 0 || port > 65535 {
		return 0, fmt.Errorf("address %q: invalid port %q", addr, p)
	}
	return port, nil
}

// Hostname returns the short host name, or "localhost" if it cannot
// be determined.
func Hostname() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "localhost"
	}
	return h
}
