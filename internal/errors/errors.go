// Package errors provides domain-specific error types for piapi.
//
// The sentinels classify failures into the handful of kinds callers
// branch on (out of range, invalid command, decode failure, transport
// closed).  The structured types carry the context needed to log or
// report them: the operation, the index and length, the endpoint.
package errors

import (
	"errors"
	"fmt"
	"net"
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	ErrOutOfRange      = errors.New("index out of range")
	ErrInvalidCommand  = errors.New("invalid command")
	ErrDecodeFailure   = errors.New("malformed payload")
	ErrTransportClosed = errors.New("transport is closed")
	ErrNotConnected    = errors.New("not connected")
	ErrTimeout         = errors.New("operation timed out")
	ErrAuthFailed      = errors.New("authentication failed")
)

// ── Message errors ───────────────────────────────────────────────────

// RangeError reports an index outside the bounds of the message at the
// moment the operation was attempted.
type RangeError struct {
	Op     string // "get", "insert", "replace", "delete"
	Index  int
	Length int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s: index %d out of range for length %d", e.Op, e.Index, e.Length)
}

func (e *RangeError) Unwrap() error { return ErrOutOfRange }

// CommandError reports a command that is missing a field its verb
// requires.
type CommandError struct {
	Verb   string
	Reason string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s", e.Verb, e.Reason)
}

func (e *CommandError) Unwrap() error { return ErrInvalidCommand }

// DecodeError reports a request payload or selector that could not be
// decoded.  Field is empty when the body as a whole is unreadable.
type DecodeError struct {
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("decode: %v", e.Err)
	}
	return fmt.Sprintf("decode %s: %v", e.Field, e.Err)
}

// Is matches ErrDecodeFailure in addition to the wrapped error.
func (e *DecodeError) Is(target error) bool { return target == ErrDecodeFailure }

func (e *DecodeError) Unwrap() error { return e.Err }

// ── Transport errors ─────────────────────────────────────────────────

// TransportError represents a failure on the line channel.
type TransportError struct {
	Op        string // "open", "read", "write", "close"
	Endpoint  string // device path or tcp:// address
	Err       error
	Retryable bool
}

func (e *TransportError) Error() string {
	s := fmt.Sprintf("%s %s: %v", e.Op, e.Endpoint, e.Err)
	if e.Retryable {
		s += " (retryable)"
	}
	return s
}

func (e *TransportError) Unwrap() error { return e.Err }

// SSHError represents an SSH-specific failure with host context.
type SSHError struct {
	Op   string // "handshake", "auth", "hostkey", "dial"
	Host string
	Port int
	Err  error
}

func (e *SSHError) Error() string {
	return fmt.Sprintf("ssh %s %s:%d: %v", e.Op, e.Host, e.Port, e.Err)
}

func (e *SSHError) Unwrap() error { return e.Err }

// ConfigError represents an invalid configuration value.
type ConfigError struct {
	Field   string      // flag name without dashes
	Value   interface{} // the invalid value (nil if missing)
	Message string
	Hint    string // optional
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: --%s", e.Field)
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// ── Constructors ─────────────────────────────────────────────────────

// Wrap creates a TransportError, detecting retryability from the
// underlying error.
func Wrap(op, endpoint string, err error) *TransportError {
	return &TransportError{
		Op:        op,
		Endpoint:  endpoint,
		Err:       err,
		Retryable: classifyRetryable(err),
	}
}

// WrapSSH creates an SSHError.
func WrapSSH(op, host string, port int, err error) *SSHError {
	return &SSHError{Op: op, Host: host, Port: port, Err: err}
}

// ── Classification helpers ───────────────────────────────────────────

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}
	return classifyRetryable(err)
}

// classifyRetryable inspects standard library error types.  A refused
// or reset TCP bridge and a serial adapter that is not plugged in yet
// both surface as *net.OpError / *os.PathError; only the former carries
// a temporary hint, so device paths are retried by the caller's policy.
func classifyRetryable(err error) bool {
	if err == nil {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Op == "dial" {
			return true
		}
		return opErr.Temporary() //nolint:staticcheck // still the only portable hint
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.Temporary() //nolint:staticcheck
	}
	return false
}

// ── Re-exports for convenience ───────────────────────────────────────

// As is [errors.As].
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is is [errors.Is].
func Is(err, target error) bool { return errors.Is(err, target) }

// New is [errors.New].
func New(text string) error { return errors.New(text) }

// Unwrap is [errors.Unwrap].
func Unwrap(err error) error { return errors.Unwrap(err) }

// Join is [errors.Join].
func Join(errs ...error) error { return errors.Join(errs...) }
