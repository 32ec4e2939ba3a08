// Package capability defines what the operator does with an open line
// transport.  A Capability operates on a Session rather than on the
// channel itself, which keeps it testable and independent of whether
// the device is a UART or a TCP bridge.
package capability

import (
	"context"

	"piapi/internal/session"
)

// Capability drives one session.
type Capability interface {
	// Handle runs against sess.  It blocks until the operator is done,
	// the transport closes, or ctx is cancelled.
	Handle(ctx context.Context, sess *session.Session) error
}
