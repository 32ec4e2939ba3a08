package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"piapi/config"
	"piapi/internal/api"
	"piapi/internal/command"
	"piapi/internal/discovery"
	"piapi/internal/metrics"
	"piapi/internal/store"
	"piapi/util"
)

// ServeMode runs the HTTP gateway over a fresh message store.
type ServeMode struct {
	Address           string
	Message           string
	Grace             time.Duration // in-flight requests may finish within this
	ReadHeaderTimeout time.Duration
	MDNS              bool
	MDNSName          string
	Version           string
	Logger            *util.Logger
	Metrics           *metrics.Collector

	// Listener, when set, is used instead of listening on Address.
	Listener net.Listener

	// Ready, when set, receives the bound address once the server
	// accepts connections.
	Ready func(net.Addr)
}

// Run serves until ctx is cancelled, then stops accepting, lets
// in-flight requests finish within Grace and disconnects watchers.
func (m *ServeMode) Run(ctx context.Context) error {
	logger := m.Logger
	if logger == nil {
		logger = util.NewLogger(0)
	}

	hub := api.NewHub(logger, m.Metrics)
	st := store.New(m.Message, store.WithObserver(hub.Publish))
	router := command.NewRouter(st, logger, m.Metrics)
	handler := api.NewServer(router, hub, logger, m.Metrics)

	ln := m.Listener
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", m.Address)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", m.Address, err)
		}
	}

	readHeader := m.ReadHeaderTimeout
	if readHeader <= 0 {
		readHeader = config.DefaultReadHeaderTimeout
	}
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: readHeader,
	}

	go hub.Run()
	defer hub.Stop()

	if m.MDNS {
		adv, err := discovery.NewAdvert(m.MDNSName, ln.Addr().String(), m.Version)
		if err != nil {
			ln.Close()
			return fmt.Errorf("mdns: %w", err)
		}
		reg, err := discovery.Register(adv, logger)
		if err != nil {
			// Serve without the advertisement.
			logger.Warn("%v", err)
		}
		defer reg.Shutdown()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	logger.Info("serving on %s", ln.Addr())
	if m.Ready != nil {
		m.Ready(ln.Addr())
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Verbose("shutting down (grace %s)", m.Grace)
	shutCtx, cancel := context.WithTimeout(context.Background(), m.Grace)
	defer cancel()

	// Watchers hold hijacked connections that Shutdown does not track.
	hub.Stop()
	if err := srv.Shutdown(shutCtx); err != nil {
		srv.Close()
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
