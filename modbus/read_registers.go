package modbus

import (
	"encoding/binary"
	"fmt"
)

// maxReadWords is the maximum number of words which can be read in a single
// ReadHoldingRegisters or ReadInputRegisters request.
const maxReadWords = 125

// encodeWordsResponse encodes a register read response.
func encodeWordsResponse(fc FunctionCode, words []uint16) ([]byte, error) {
	if len(words) < 1 || len(words) > maxReadWords {
		return nil, fmt.Errorf("%s: %d registers: %w", fc, len(words),
			ErrInvalidValue)
	}
	pdu := make([]byte, 2+2*len(words))
	pdu[0] = byte(fc)
	pdu[1] = byte(2 * len(words))
	for i, w := range words {
		binary.BigEndian.PutUint16(pdu[2+2*i:], w)
	}
	return pdu, nil
}

// decodeWordsResponse is the inverse of encodeWordsResponse.
func decodeWordsResponse(pdu []byte, fc FunctionCode) ([]uint16, error) {
	if err := checkHeader(pdu, fc, 2); err != nil {
		return nil, err
	}
	numBytes := int(pdu[1])
	if numBytes%2 != 0 {
		return nil, ErrInvalidData
	}
	if numBytes != len(pdu)-2 {
		return nil, ErrInvalidDataLength
	}
	words := make([]uint16, numBytes/2)
	for i := range words {
		words[i] = binary.BigEndian.Uint16(pdu[2+2*i:])
	}
	return words, nil
}

// checkWordCount checks that a register response carries n registers.
func checkWordCount(words []uint16, n uint16) error {
	if len(words) != int(n) {
		return fmt.Errorf("%d registers for quantity %d: %w", len(words), n,
			ErrInvalidResponse)
	}
	return nil
}

// ReadHoldingRegistersRequest reads Quantity holding registers starting at
// Address.
type ReadHoldingRegistersRequest struct {
	Address  uint16
	Quantity uint16
}

// FunctionCode implements Message.
func (ReadHoldingRegistersRequest) FunctionCode() FunctionCode {
	return FunctionReadHoldingRegisters
}

// Encode implements Message.
func (r ReadHoldingRegistersRequest) Encode() ([]byte, error) {
	return encodeAddressQuantity(FunctionReadHoldingRegisters, r.Address,
		r.Quantity, maxReadWords)
}

// DecodeResponse implements Request.
func (r ReadHoldingRegistersRequest) DecodeResponse(pdu []byte) (
	Response, error,
) {
	return decodeResponse(pdu, FunctionReadHoldingRegisters,
		func(pdu []byte) (Response, error) {
			rsp, err := DecodeReadHoldingRegistersResponse(pdu)
			if err != nil {
				return nil, err
			}
			if err := checkWordCount(rsp.Registers, r.Quantity); err != nil {
				return nil, err
			}
			return rsp, nil
		})
}

// DecodeReadHoldingRegistersRequest decodes a ReadHoldingRegisters request
// PDU.
func DecodeReadHoldingRegistersRequest(pdu []byte) (
	ReadHoldingRegistersRequest, error,
) {
	addr, n, err := decodeAddressQuantity(pdu, FunctionReadHoldingRegisters,
		maxReadWords)
	if err != nil {
		return ReadHoldingRegistersRequest{}, err
	}
	return ReadHoldingRegistersRequest{Address: addr, Quantity: n}, nil
}

// ReadHoldingRegistersResponse holds the register values of a
// ReadHoldingRegisters response.
type ReadHoldingRegistersResponse struct {
	Registers []uint16
}

// FunctionCode implements Message.
func (ReadHoldingRegistersResponse) FunctionCode() FunctionCode {
	return FunctionReadHoldingRegisters
}

// Encode implements Message.
func (r ReadHoldingRegistersResponse) Encode() ([]byte, error) {
	return encodeWordsResponse(FunctionReadHoldingRegisters, r.Registers)
}

// DecodeReadHoldingRegistersResponse decodes a ReadHoldingRegisters response
// PDU.
func DecodeReadHoldingRegistersResponse(pdu []byte) (
	ReadHoldingRegistersResponse, error,
) {
	regs, err := decodeWordsResponse(pdu, FunctionReadHoldingRegisters)
	if err != nil {
		return ReadHoldingRegistersResponse{}, err
	}
	return ReadHoldingRegistersResponse{Registers: regs}, nil
}

// ReadInputRegistersRequest reads Quantity input registers starting at
// Address.
type ReadInputRegistersRequest struct {
	Address  uint16
	Quantity uint16
}

// FunctionCode implements Message.
func (ReadInputRegistersRequest) FunctionCode() FunctionCode {
	return FunctionReadInputRegisters
}

// Encode implements Message.
func (r ReadInputRegistersRequest) Encode() ([]byte, error) {
	return encodeAddressQuantity(FunctionReadInputRegisters, r.Address,
		r.Quantity, maxReadWords)
}

// DecodeResponse implements Request.
func (r ReadInputRegistersRequest) DecodeResponse(pdu []byte) (
	Response, error,
) {
	return decodeResponse(pdu, FunctionReadInputRegisters,
		func(pdu []byte) (Response, error) {
			rsp, err := DecodeReadInputRegistersResponse(pdu)
			if err != nil {
				return nil, err
			}
			if err := checkWordCount(rsp.Registers, r.Quantity); err != nil {
				return nil, err
			}
			return rsp, nil
		})
}

// DecodeReadInputRegistersRequest decodes a ReadInputRegisters request PDU.
func DecodeReadInputRegistersRequest(pdu []byte) (
	ReadInputRegistersRequest, error,
) {
	addr, n, err := decodeAddressQuantity(pdu, FunctionReadInputRegisters,
		maxReadWords)
	if err != nil {
		return ReadInputRegistersRequest{}, err
	}
	return ReadInputRegistersRequest{Address: addr, Quantity: n}, nil
}

// ReadInputRegistersResponse holds the register values of a
// ReadInputRegisters response.
type ReadInputRegistersResponse struct {
	Registers []uint16
}

// FunctionCode implements Message.
func (ReadInputRegistersResponse) FunctionCode() FunctionCode {
	return FunctionReadInputRegisters
}

// Encode implements Message.
func (r ReadInputRegistersResponse) Encode() ([]byte, error) {
	return encodeWordsResponse(FunctionReadInputRegisters, r.Registers)
}

// DecodeReadInputRegistersResponse decodes a ReadInputRegisters response PDU.
func DecodeReadInputRegistersResponse(pdu []byte) (
	ReadInputRegistersResponse, error,
) {
	regs, err := decodeWordsResponse(pdu, FunctionReadInputRegisters)
	if err != nil {
		return ReadInputRegistersResponse{}, err
	}
	return ReadInputRegistersResponse{Registers: regs}, nil
}
