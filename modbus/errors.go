package modbus

import (
	"errors"
	"fmt"
)

// Errors reported by this package. Peer exceptions are reported as
// ExceptionCode, failures of the underlying link as *IOError or
// *SerialError.
var (
	// ErrInvalidValue reports a caller supplied value out of range, or an
	// operation invoked in the wrong role.
	ErrInvalidValue = errors.New("invalid value")

	// ErrTooShortData reports a stream buffer which does not hold a complete
	// frame yet.
	ErrTooShortData = errors.New("too short data in the buffer")

	// ErrInvalidData reports content violating the protocol.
	ErrInvalidData = errors.New("invalid data")

	// ErrInvalidDataLength reports a buffer length inconsistent with the
	// declared or required length.
	ErrInvalidDataLength = errors.New("invalid data length")

	// ErrInvalidFunction reports an unknown function code.
	ErrInvalidFunction = errors.New("invalid function code")

	// ErrInvalidResponse reports a response which does not fit the issued
	// request.
	ErrInvalidResponse = errors.New("invalid response")

	// ErrNoResponse reports a master side timeout without any received bytes.
	ErrNoResponse = errors.New("no response")

	// ErrInvalidRequest reports a malformed request on the server side.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrMissingReqHandler reports a request for which no handler exists.
	ErrMissingReqHandler = errors.New("missing request handler for given request")
)

// IOError wraps a failure of the underlying network connection.
type IOError struct {
	// Err is the original error.
	Err error
}

// Error implements error.
func (e *IOError) Error() string {
	return "I/O error: " + e.Err.Error()
}

// Unwrap returns the original error.
func (e *IOError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the original error was a timeout.
func (e *IOError) Timeout() bool {
	var te interface{ Timeout() bool }
	return errors.As(e.Err, &te) && te.Timeout()
}

// SerialError wraps a failure of the serial port.
type SerialError struct {
	// Err is the original error.
	Err error
}

// Error implements error.
func (e *SerialError) Error() string {
	return "serial error: " + e.Err.Error()
}

// Unwrap returns the original error.
func (e *SerialError) Unwrap() error {
	return e.Err
}

// DispatchError is returned when an incoming request cannot be decoded.
type DispatchError struct {
	// Function is the function code of the request. It is zero if the request
	// was empty.
	Function FunctionCode

	// Err is the decoder error.
	Err error
}

// Error implements error.
func (e *DispatchError) Error() string {
	return fmt.Sprintf("decode %s request: %s", e.Function, e.Err)
}

// Unwrap returns the decoder error.
func (e *DispatchError) Unwrap() error {
	return e.Err
}

// Exception returns the exception code a standard compliant server answers
// the failed request with.
func (e *DispatchError) Exception() ExceptionCode {
	if !e.Function.IsSupported() {
		return ExceptionIllegalFunction
	}
	return ExceptionIllegalDataValue
}
