// Package core is the orchestration layer.  It composes the store,
// the HTTP gateway, the line transport and the operator console into
// complete operational modes, and provides a builder that selects the
// right mode from a Config.
//
// Architecture layers (bottom → top):
//
//	store → command → api            (serve)
//	transport → duplex → session → capability   (console)
//	core → cmd (CLI)
package core

import "context"

// Mode is one complete operational mode of piapi: serving the API, or
// running the line console.  Each mode owns its lifecycle from start-up
// to teardown and returns once ctx is cancelled or its work is done.
type Mode interface {
	Run(ctx context.Context) error
}
