package modbus

import (
	"encoding/binary"
	"fmt"
)

// maxWriteWords is the maximum number of words which can be written in a
// single WriteMultipleRegisters request.
const maxWriteWords = 123

// WriteMultipleRegistersRequest writes Values to consecutive holding
// registers starting at Address.
type WriteMultipleRegistersRequest struct {
	Address uint16
	Values  []uint16
}

// FunctionCode implements Message.
func (WriteMultipleRegistersRequest) FunctionCode() FunctionCode {
	return FunctionWriteMultipleRegisters
}

// Encode implements Message.
func (r WriteMultipleRegistersRequest) Encode() ([]byte, error) {
	n := len(r.Values)
	if n < 1 || n > maxWriteWords {
		return nil, fmt.Errorf("%s: quantity %d not in [1,%d]: %w",
			FunctionWriteMultipleRegisters, n, maxWriteWords, ErrInvalidValue)
	}
	pdu := make([]byte, 6+2*n)
	pdu[0] = byte(FunctionWriteMultipleRegisters)
	binary.BigEndian.PutUint16(pdu[1:3], r.Address)
	binary.BigEndian.PutUint16(pdu[3:5], uint16(n))
	pdu[5] = byte(2 * n)
	for i, v := range r.Values {
		binary.BigEndian.PutUint16(pdu[6+2*i:], v)
	}
	return pdu, nil
}

// DecodeResponse implements Request.
func (WriteMultipleRegistersRequest) DecodeResponse(pdu []byte) (
	Response, error,
) {
	return decodeResponse(pdu, FunctionWriteMultipleRegisters,
		func(pdu []byte) (Response, error) {
			rsp, err := DecodeWriteMultipleRegistersResponse(pdu)
			if err != nil {
				return nil, err
			}
			return rsp, nil
		})
}

// ExpectedResponse implements Setter. The server acknowledges the start
// address and the number of written registers.
func (r WriteMultipleRegistersRequest) ExpectedResponse() Response {
	return WriteMultipleRegistersResponse{
		Address:  r.Address,
		Quantity: uint16(len(r.Values)),
	}
}

// DecodeWriteMultipleRegistersRequest decodes a WriteMultipleRegisters
// request PDU.
func DecodeWriteMultipleRegistersRequest(pdu []byte) (
	WriteMultipleRegistersRequest, error,
) {
	if err := checkHeader(pdu, FunctionWriteMultipleRegisters, 6); err != nil {
		return WriteMultipleRegistersRequest{}, err
	}
	addr := binary.BigEndian.Uint16(pdu[1:3])
	n := int(binary.BigEndian.Uint16(pdu[3:5]))
	numBytes := int(pdu[5])
	if numBytes != 2*n {
		return WriteMultipleRegistersRequest{}, ErrInvalidDataLength
	}
	if n < 1 || n > maxWriteWords {
		return WriteMultipleRegistersRequest{}, fmt.Errorf(
			"%s: quantity %d not in [1,%d]: %w",
			FunctionWriteMultipleRegisters, n, maxWriteWords, ErrInvalidData)
	}
	if len(pdu) != 6+numBytes {
		return WriteMultipleRegistersRequest{}, ErrInvalidDataLength
	}
	values := make([]uint16, n)
	for i := range values {
		values[i] = binary.BigEndian.Uint16(pdu[6+2*i:])
	}
	return WriteMultipleRegistersRequest{Address: addr, Values: values}, nil
}

// WriteMultipleRegistersResponse acknowledges a WriteMultipleRegistersRequest.
type WriteMultipleRegistersResponse struct {
	Address  uint16
	Quantity uint16
}

// FunctionCode implements Message.
func (WriteMultipleRegistersResponse) FunctionCode() FunctionCode {
	return FunctionWriteMultipleRegisters
}

// Encode implements Message.
func (r WriteMultipleRegistersResponse) Encode() ([]byte, error) {
	if r.Quantity < 1 || r.Quantity > maxWriteWords {
		return nil, fmt.Errorf("%s: quantity %d not in [1,%d]: %w",
			FunctionWriteMultipleRegisters, r.Quantity, maxWriteWords,
			ErrInvalidValue)
	}
	return encodeAddressValue(FunctionWriteMultipleRegisters, r.Address,
		r.Quantity), nil
}

// DecodeWriteMultipleRegistersResponse decodes a WriteMultipleRegisters
// response PDU.
func DecodeWriteMultipleRegistersResponse(pdu []byte) (
	WriteMultipleRegistersResponse, error,
) {
	addr, n, err := decodeAddressQuantity(pdu, FunctionWriteMultipleRegisters,
		maxWriteWords)
	if err != nil {
		return WriteMultipleRegistersResponse{}, err
	}
	return WriteMultipleRegistersResponse{Address: addr, Quantity: n}, nil
}
