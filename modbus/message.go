package modbus

import (
	"encoding/binary"
)

const (
	// MinPDUSize is the minimum PDU size, in bytes.
	MinPDUSize = 1

	// MaxPDUSize is the maximum PDU size, in bytes.
	MaxPDUSize = 253
)

// Message describes a Modbus protocol data unit.
type Message interface {
	// FunctionCode returns the function code sent with this message.
	FunctionCode() FunctionCode

	// Encode encodes this message into a PDU, starting with the function code.
	Encode() ([]byte, error)
}

// Response describes a response message.
type Response interface {
	Message
}

// Request describes a request message. Each request knows the type of its
// response.
type Request interface {
	Message

	// DecodeResponse decodes a response PDU to this request. If the PDU is an
	// exception response, the returned error is the ExceptionCode.
	DecodeResponse(pdu []byte) (Response, error)
}

// Setter describes a write request whose response must equal an expected
// value derived from the request.
type Setter interface {
	Request

	// ExpectedResponse returns the response a server acknowledges the request
	// with.
	ExpectedResponse() Response
}

// decodeResponse decodes pdu as a response to function fc. Exception
// responses are tried first.
func decodeResponse(
	pdu []byte, fc FunctionCode, decode func([]byte) (Response, error),
) (Response, error) {
	if er, err := DecodeExceptionResponse(pdu, fc); err == nil {
		return nil, er.Code
	}
	return decode(pdu)
}

// checkHeader checks that pdu is at least minLen bytes long and starts with
// fc.
func checkHeader(pdu []byte, fc FunctionCode, minLen int) error {
	if len(pdu) < minLen {
		return ErrInvalidDataLength
	}
	if FunctionCode(pdu[0]) != fc {
		return ErrInvalidData
	}
	return nil
}

// encodeAddressValue encodes the common request layout of function code,
// address and a second 16-bit word.
func encodeAddressValue(fc FunctionCode, addr, value uint16) []byte {
	pdu := make([]byte, 5)
	pdu[0] = byte(fc)
	binary.BigEndian.PutUint16(pdu[1:3], addr)
	binary.BigEndian.PutUint16(pdu[3:5], value)
	return pdu
}

// decodeAddressValue decodes a PDU of exactly five bytes produced by
// encodeAddressValue.
func decodeAddressValue(pdu []byte, fc FunctionCode) (
	addr, value uint16, err error,
) {
	if len(pdu) != 5 {
		return 0, 0, ErrInvalidDataLength
	}
	if err = checkHeader(pdu, fc, 5); err != nil {
		return 0, 0, err
	}
	return binary.BigEndian.Uint16(pdu[1:3]), binary.BigEndian.Uint16(pdu[3:5]),
		nil
}
