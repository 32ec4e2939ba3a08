package transport

import (
	"errors"

	"go.bug.st/serial"

	"piapi/config"
	ncerr "piapi/internal/errors"
)

// SerialMode is the UART framing.
type SerialMode struct {
	BaudRate int
	DataBits int
	Parity   config.Parity
	StopBits config.StopBits
}

// DefaultSerialMode is 115200 8N1.
var DefaultSerialMode = SerialMode{
	BaudRate: config.DefaultBaudRate,
	DataBits: config.DefaultDataBits,
	Parity:   config.ParityNone,
	StopBits: config.StopBitsOne,
}

// SerialModeFromConfig resolves the framing flags of cfg.  cfg must
// already have passed Validate.
func SerialModeFromConfig(cfg *config.Config) (SerialMode, error) {
	parity, err := config.ParseParity(cfg.Parity)
	if err != nil {
		return SerialMode{}, err
	}
	stop, err := config.ParseStopBits(cfg.StopBits)
	if err != nil {
		return SerialMode{}, err
	}
	return SerialMode{
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
		Parity:   parity,
		StopBits: stop,
	}, nil
}

func (m SerialMode) toPort() *serial.Mode {
	out := &serial.Mode{BaudRate: m.BaudRate, DataBits: m.DataBits}
	switch m.Parity {
	case config.ParityOdd:
		out.Parity = serial.OddParity
	case config.ParityEven:
		out.Parity = serial.EvenParity
	case config.ParityMark:
		out.Parity = serial.MarkParity
	case config.ParitySpace:
		out.Parity = serial.SpaceParity
	default:
		out.Parity = serial.NoParity
	}
	switch m.StopBits {
	case config.StopBitsOnePointFive:
		out.StopBits = serial.OnePointFiveStopBits
	case config.StopBitsTwo:
		out.StopBits = serial.TwoStopBits
	default:
		out.StopBits = serial.OneStopBit
	}
	return out
}

// serialChannel adapts a serial.Port.  The port already returns (0, nil)
// when a read times out.
type serialChannel struct {
	serial.Port
}

var _ Channel = (*serialChannel)(nil)

// OpenSerial opens a local UART with the given framing.  Missing and
// busy devices are reported as retryable: a USB adapter may still be
// enumerating, or another process may be about to release it.
func OpenSerial(path string, mode SerialMode) (Channel, error) {
	port, err := serial.Open(path, mode.toPort())
	if err != nil {
		return nil, &ncerr.TransportError{
			Op:        "open",
			Endpoint:  path,
			Err:       err,
			Retryable: serialRetryable(err),
		}
	}
	return &serialChannel{Port: port}, nil
}

func serialRetryable(err error) bool {
	var pe *serial.PortError
	if !errors.As(err, &pe) {
		return false
	}
	switch pe.Code() {
	case serial.PortBusy, serial.PortNotFound:
		return true
	}
	return false
}

// ListPorts returns the serial devices present on this host.
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}
