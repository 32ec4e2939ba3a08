// Package discovery advertises the API on the local network with
// multicast DNS so bench tools can find a board without knowing its
// address.
package discovery

import (
	"fmt"
	"strings"

	"github.com/grandcat/zeroconf"

	"piapi/config"
	"piapi/util"
)

const domain = "local."

// Advert describes one DNS-SD registration.
type Advert struct {
	Instance string
	Service  string
	Port     int
	Text     []string
}

// NewAdvert builds the registration for an API listening on listenAddr.
// An empty name falls back to "piapi-<hostname>".
func NewAdvert(name, listenAddr, version string) (Advert, error) {
	port, err := util.SplitPort(listenAddr)
	if err != nil {
		return Advert{}, err
	}
	if name == "" {
		name = defaultInstance()
	}
	return Advert{
		Instance: name,
		Service:  config.DefaultMDNSService,
		Port:     port,
		Text:     []string{"path=/api/welcome", "version=" + version},
	}, nil
}

func defaultInstance() string {
	host := util.Hostname()
	if i := strings.IndexByte(host, '.'); i > 0 {
		host = host[:i]
	}
	return "piapi-" + host
}

// Registration is a live advertisement.
type Registration struct {
	server *zeroconf.Server
	logger *util.Logger
	advert Advert
}

// Register starts answering mDNS queries for a on all interfaces.
func Register(a Advert, logger *util.Logger) (*Registration, error) {
	if logger == nil {
		logger = util.NewLogger(0)
	}
	logger = logger.With("mdns")

	server, err := zeroconf.Register(a.Instance, a.Service, domain, a.Port, a.Text, nil)
	if err != nil {
		return nil, fmt.Errorf("mdns register %s: %w", a.Service, err)
	}
	logger.Info("advertising %q as %s on port %d", a.Instance, a.Service, a.Port)
	return &Registration{server: server, logger: logger, advert: a}, nil
}

// Shutdown withdraws the advertisement.
func (r *Registration) Shutdown() {
	if r == nil || r.server == nil {
		return
	}
	r.server.Shutdown()
	r.logger.Verbose("withdrew %q", r.advert.Instance)
}
