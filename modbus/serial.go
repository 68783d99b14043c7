package modbus

import (
	"fmt"
	"time"

	"github.com/goburrow/serial"
)

// Parity describes the parity of a serial line.
type Parity string

// Parity settings.
const (
	ParityNone Parity = "N"
	ParityEven Parity = "E"
	ParityOdd  Parity = "O"
)

// FlowControl describes the flow control of a serial line.
type FlowControl uint8

// Flow control settings. Modbus RTU lines run without flow control, and
// FlowNone is the only setting the serial driver supports.
const (
	FlowNone FlowControl = iota
	FlowSoftware
	FlowHardware
)

const (
	// fastBaudRate is the baud rate above which fixed timings apply.
	fastBaudRate = 19200

	// fastCharTimeout and fastFrameGap are the fixed inter-character and
	// inter-frame timings above fastBaudRate.
	fastCharTimeout = 750 * time.Microsecond
	fastFrameGap    = 1750 * time.Microsecond

	// fallbackFrameGap is used if no baud rate is known.
	fallbackFrameGap = 100 * time.Millisecond
)

// SerialSettings describes the settings of a serial line.
type SerialSettings struct {
	// BaudRate is the line speed in bits per second.
	BaudRate int

	// DataBits is the number of data bits per character (5 to 8).
	DataBits int

	// Parity is the parity setting.
	Parity Parity

	// StopBits is the number of stop bits (1 or 2).
	StopBits int

	// FlowControl is the flow control setting.
	FlowControl FlowControl

	// Timeout is the per-byte read timeout. Silence for this long ends a
	// frame. If zero, it is derived from BaudRate.
	Timeout time.Duration
}

// DefaultSerialSettings returns the recommended Modbus RTU settings: 19200
// baud, 8 data bits, even parity, 1 stop bit, no flow control.
func DefaultSerialSettings() SerialSettings {
	return SerialSettings{
		BaudRate:    19200,
		DataBits:    8,
		Parity:      ParityEven,
		StopBits:    1,
		FlowControl: FlowNone,
	}
}

// Validate checks these settings.
func (s SerialSettings) Validate() error {
	if s.BaudRate <= 0 {
		return fmt.Errorf("baud rate %d: %w", s.BaudRate, ErrInvalidValue)
	}
	if s.DataBits < 5 || s.DataBits > 8 {
		return fmt.Errorf("data bits %d: %w", s.DataBits, ErrInvalidValue)
	}
	switch s.Parity {
	case ParityNone, ParityEven, ParityOdd:
	default:
		return fmt.Errorf("parity '%s': %w", s.Parity, ErrInvalidValue)
	}
	if s.StopBits != 1 && s.StopBits != 2 {
		return fmt.Errorf("stop bits %d: %w", s.StopBits, ErrInvalidValue)
	}
	if s.FlowControl != FlowNone {
		return fmt.Errorf("flow control %d not supported: %w", s.FlowControl,
			ErrInvalidValue)
	}
	if s.Timeout < 0 {
		return fmt.Errorf("timeout %s: %w", s.Timeout, ErrInvalidValue)
	}
	return nil
}

// charTime returns the transmission time of a single character. Modbus
// counts 11 bits per character regardless of the framing.
func (s SerialSettings) charTime() time.Duration {
	return 11 * time.Second / time.Duration(s.BaudRate)
}

// charTimeout returns the per-byte read timeout (1.5 character times).
func (s SerialSettings) charTimeout() time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	if s.BaudRate > fastBaudRate {
		return fastCharTimeout
	}
	return s.charTime() * 3 / 2
}

// frameGap returns the minimum line silence between frames (3.5 character
// times).
func (s SerialSettings) frameGap() time.Duration {
	switch {
	case s.BaudRate <= 0:
		return fallbackFrameGap
	case s.BaudRate > fastBaudRate:
		return fastFrameGap
	default:
		return s.charTime() * 7 / 2
	}
}

// config returns the driver configuration for the serial port at address.
func (s SerialSettings) config(address string) *serial.Config {
	return &serial.Config{
		Address:  address,
		BaudRate: s.BaudRate,
		DataBits: s.DataBits,
		StopBits: s.StopBits,
		Parity:   string(s.Parity),
		Timeout:  s.charTimeout(),
	}
}
