package errors

import (
	"fmt"
	"io"
	"net"
	"testing"
)

func TestTransportError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  TransportError
		want string
	}{
		{
			name: "retryable",
			err:  TransportError{Op: "open", Endpoint: "tcp://bridge:4001", Err: io.EOF, Retryable: true},
			want: "open tcp://bridge:4001: EOF (retryable)",
		},
		{
			name: "non-retryable",
			err:  TransportError{Op: "write", Endpoint: "/dev/ttyAMA0", Err: fmt.Errorf("input/output error")},
			want: "write /dev/ttyAMA0: input/output error",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTransportError_Unwrap(t *testing.T) {
	err := &TransportError{Op: "read", Endpoint: "x", Err: io.EOF}
	if !Is(err, io.EOF) {
		t.Error("should unwrap to io.EOF")
	}
}

func TestRangeError(t *testing.T) {
	err := &RangeError{Op: "get", Index: 5, Length: 2}
	if got, want := err.Error(), "get: index 5 out of range for length 2"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if !Is(err, ErrOutOfRange) {
		t.Error("RangeError should match ErrOutOfRange")
	}
	if Is(err, ErrInvalidCommand) {
		t.Error("RangeError should not match ErrInvalidCommand")
	}
}

func TestCommandError(t *testing.T) {
	err := &CommandError{Verb: "insert", Reason: "missing word"}
	if got, want := err.Error(), "insert: missing word"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if !Is(err, ErrInvalidCommand) {
		t.Error("CommandError should match ErrInvalidCommand")
	}
}

func TestDecodeError(t *testing.T) {
	inner := fmt.Errorf("unexpected EOF")
	tests := []struct {
		name string
		err  *DecodeError
		want string
	}{
		{"body", &DecodeError{Err: inner}, "decode: unexpected EOF"},
		{"field", &DecodeError{Field: "letter", Err: inner}, "decode letter: unexpected EOF"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
			if !Is(tt.err, ErrDecodeFailure) {
				t.Error("should match ErrDecodeFailure")
			}
			if !Is(tt.err, inner) {
				t.Error("should unwrap to inner error")
			}
		})
	}
}

func TestSSHError_Format(t *testing.T) {
	err := WrapSSH("handshake", "gateway.lan", 22, fmt.Errorf("connection refused"))
	want := "ssh handshake gateway.lan:22: connection refused"
	if got := err.Error(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestConfigError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  ConfigError
		want string
	}{
		{
			name: "with value and hint",
			err: ConfigError{
				Field:   "parity",
				Value:   "weird",
				Message: "unknown parity",
				Hint:    "use none, odd, even, mark or space",
			},
			want: "config: --parity=weird: unknown parity\n  hint: use none, odd, even, mark or space",
		},
		{
			name: "missing value no hint",
			err: ConfigError{
				Field:   "device",
				Message: "required in console mode",
			},
			want: "config: --device: required in console mode",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("got:\n%s\nwant:\n%s", got, tt.want)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	inner := fmt.Errorf("no such file or directory")
	err := Wrap("open", "/dev/ttyUSB0", inner)

	if err.Op != "open" || err.Endpoint != "/dev/ttyUSB0" {
		t.Errorf("wrong fields: Op=%q Endpoint=%q", err.Op, err.Endpoint)
	}
	if err.Retryable {
		t.Error("plain error should not be retryable")
	}
	if !Is(err, inner) {
		t.Error("should unwrap to inner error")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"retryable transport", &TransportError{Op: "open", Endpoint: "x", Err: io.EOF, Retryable: true}, true},
		{"non-retryable transport", &TransportError{Op: "open", Endpoint: "x", Err: io.EOF}, false},
		{"dial refused", &net.OpError{Op: "dial", Net: "tcp", Err: fmt.Errorf("connection refused")}, true},
		{"plain error", fmt.Errorf("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSentinels(t *testing.T) {
	sentinels := []error{
		ErrOutOfRange, ErrInvalidCommand, ErrDecodeFailure,
		ErrTransportClosed, ErrNotConnected, ErrTimeout, ErrAuthFailed,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j && Is(a, b) {
				t.Errorf("sentinel %d and %d should not match", i, j)
			}
		}
	}
}
