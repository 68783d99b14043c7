package modbus

import (
	"fmt"
)

// ExceptionCode describes a Modbus exception response code.
// A peer answering with an exception is reported as an error of this type.
type ExceptionCode uint8

// Exception code constants.
const (
	ExceptionIllegalFunction                    ExceptionCode = 0x01
	ExceptionIllegalDataAddress                 ExceptionCode = 0x02
	ExceptionIllegalDataValue                   ExceptionCode = 0x03
	ExceptionServerDeviceFailure                ExceptionCode = 0x04
	ExceptionAcknowledge                        ExceptionCode = 0x05
	ExceptionServerDeviceBusy                   ExceptionCode = 0x06
	ExceptionMemoryParityError                  ExceptionCode = 0x08
	ExceptionGatewayPathUnavailable             ExceptionCode = 0x0A
	ExceptionGatewayTargetDeviceFailedToRespond ExceptionCode = 0x0B
)

// exceptionStrings maps known exceptions to a textual representation.
var exceptionStrings = map[ExceptionCode]string{
	ExceptionIllegalFunction:                    "illegal function",
	ExceptionIllegalDataAddress:                 "illegal data address",
	ExceptionIllegalDataValue:                   "illegal data value",
	ExceptionServerDeviceFailure:                "server device failure",
	ExceptionAcknowledge:                        "acknowledge",
	ExceptionServerDeviceBusy:                   "server device busy",
	ExceptionMemoryParityError:                  "memory parity error",
	ExceptionGatewayPathUnavailable:             "gateway path unavailable",
	ExceptionGatewayTargetDeviceFailedToRespond: "gateway target failed to respond",
}

// ParseExceptionCode converts b into a known exception code.
// Unknown codes yield ErrInvalidData.
func ParseExceptionCode(b byte) (ExceptionCode, error) {
	ec := ExceptionCode(b)
	if _, ok := exceptionStrings[ec]; !ok {
		return 0, fmt.Errorf("exception code %02X: %w", b, ErrInvalidData)
	}
	return ec, nil
}

// Error returns a textual representation of the exception represented by
// this exception code.
func (ec ExceptionCode) Error() string {
	s, ok := exceptionStrings[ec]
	if !ok {
		s = fmt.Sprintf("unknown exception %02X", uint8(ec))
	}
	return "Modbus exception: " + s
}

// ExceptionResponse is the response a server sends instead of the regular
// response if it cannot process a request.
type ExceptionResponse struct {
	// Function is the function code of the failed request, without the error
	// bit.
	Function FunctionCode

	// Code is the exception code.
	Code ExceptionCode
}

// FunctionCode implements Message. It returns the function code with the
// error bit set.
func (er ExceptionResponse) FunctionCode() FunctionCode {
	return er.Function.AsError()
}

// Encode implements Message.
func (er ExceptionResponse) Encode() ([]byte, error) {
	if er.Function.IsError() || er.Function == 0 {
		return nil, fmt.Errorf("exception for function %02X: %w",
			uint8(er.Function), ErrInvalidValue)
	}
	if _, ok := exceptionStrings[er.Code]; !ok {
		return nil, fmt.Errorf("exception code %02X: %w", uint8(er.Code),
			ErrInvalidValue)
	}
	return []byte{byte(er.Function.AsError()), byte(er.Code)}, nil
}

// DecodeExceptionResponse decodes an exception response to a request with
// function code fc. The PDU must be exactly two bytes long.
func DecodeExceptionResponse(pdu []byte, fc FunctionCode) (
	ExceptionResponse, error,
) {
	if len(pdu) != 2 {
		return ExceptionResponse{}, ErrInvalidDataLength
	}
	if FunctionCode(pdu[0]) != fc.AsError() {
		return ExceptionResponse{}, ErrInvalidData
	}
	code, err := ParseExceptionCode(pdu[1])
	if err != nil {
		return ExceptionResponse{}, err
	}
	return ExceptionResponse{Function: fc, Code: code}, nil
}
