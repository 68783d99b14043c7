package modbus

import (
	"fmt"
)

// Wire values of a single coil.
const (
	coilOff uint16 = 0x0000
	coilOn  uint16 = 0xFF00
)

// WriteSingleCoilRequest sets the coil at Address to Value. The server
// echoes the request, so the same type serves as the response.
type WriteSingleCoilRequest struct {
	Address uint16
	Value   bool
}

// WriteSingleCoilResponse is the echo of a WriteSingleCoilRequest.
type WriteSingleCoilResponse = WriteSingleCoilRequest

// FunctionCode implements Message.
func (WriteSingleCoilRequest) FunctionCode() FunctionCode {
	return FunctionWriteSingleCoil
}

// Encode implements Message.
func (r WriteSingleCoilRequest) Encode() ([]byte, error) {
	value := coilOff
	if r.Value {
		value = coilOn
	}
	return encodeAddressValue(FunctionWriteSingleCoil, r.Address, value), nil
}

// DecodeResponse implements Request.
func (WriteSingleCoilRequest) DecodeResponse(pdu []byte) (Response, error) {
	return decodeResponse(pdu, FunctionWriteSingleCoil,
		func(pdu []byte) (Response, error) {
			rsp, err := DecodeWriteSingleCoilRequest(pdu)
			if err != nil {
				return nil, err
			}
			return rsp, nil
		})
}

// ExpectedResponse implements Setter.
func (r WriteSingleCoilRequest) ExpectedResponse() Response {
	return r
}

// DecodeWriteSingleCoilRequest decodes a WriteSingleCoil request or
// response PDU. Coil values other than 0x0000 and 0xFF00 are rejected with
// ErrInvalidData.
func DecodeWriteSingleCoilRequest(pdu []byte) (WriteSingleCoilRequest, error) {
	addr, value, err := decodeAddressValue(pdu, FunctionWriteSingleCoil)
	if err != nil {
		return WriteSingleCoilRequest{}, err
	}
	switch value {
	case coilOff:
		return WriteSingleCoilRequest{Address: addr}, nil
	case coilOn:
		return WriteSingleCoilRequest{Address: addr, Value: true}, nil
	default:
		return WriteSingleCoilRequest{}, fmt.Errorf("coil value %04X: %w",
			value, ErrInvalidData)
	}
}

// WriteSingleRegisterRequest sets the holding register at Address to Value.
// The server echoes the request, so the same type serves as the response.
type WriteSingleRegisterRequest struct {
	Address uint16
	Value   uint16
}

// WriteSingleRegisterResponse is the echo of a WriteSingleRegisterRequest.
type WriteSingleRegisterResponse = WriteSingleRegisterRequest

// FunctionCode implements Message.
func (WriteSingleRegisterRequest) FunctionCode() FunctionCode {
	return FunctionWriteSingleRegister
}

// Encode implements Message.
func (r WriteSingleRegisterRequest) Encode() ([]byte, error) {
	return encodeAddressValue(FunctionWriteSingleRegister, r.Address, r.Value),
		nil
}

// DecodeResponse implements Request.
func (WriteSingleRegisterRequest) DecodeResponse(pdu []byte) (
	Response, error,
) {
	return decodeResponse(pdu, FunctionWriteSingleRegister,
		func(pdu []byte) (Response, error) {
			rsp, err := DecodeWriteSingleRegisterRequest(pdu)
			if err != nil {
				return nil, err
			}
			return rsp, nil
		})
}

// ExpectedResponse implements Setter.
func (r WriteSingleRegisterRequest) ExpectedResponse() Response {
	return r
}

// DecodeWriteSingleRegisterRequest decodes a WriteSingleRegister request or
// response PDU.
func DecodeWriteSingleRegisterRequest(pdu []byte) (
	WriteSingleRegisterRequest, error,
) {
	addr, value, err := decodeAddressValue(pdu, FunctionWriteSingleRegister)
	if err != nil {
		return WriteSingleRegisterRequest{}, err
	}
	return WriteSingleRegisterRequest{Address: addr, Value: value}, nil
}
