package modbus

import (
	"fmt"
)

// maxReadBits is the maximum number of bits which can be read in a single
// ReadCoils or ReadDiscreteInputs request.
const maxReadBits = 2000

// encodeAddressQuantity encodes a request with the common 4-byte
// structure (2 bytes start address, 2 bytes number of values to read).
func encodeAddressQuantity(fc FunctionCode, addr, n, maxN uint16) ([]byte, error) {
	if n < 1 || n > maxN {
		return nil, fmt.Errorf("%s: quantity %d not in [1,%d]: %w",
			fc, n, maxN, ErrInvalidValue)
	}
	return encodeAddressValue(fc, addr, n), nil
}

// decodeAddressQuantity is the inverse of encodeAddressQuantity.
func decodeAddressQuantity(pdu []byte, fc FunctionCode, maxN uint16) (
	addr, n uint16, err error,
) {
	addr, n, err = decodeAddressValue(pdu, fc)
	if err != nil {
		return 0, 0, err
	}
	if n < 1 || n > maxN {
		return 0, 0, fmt.Errorf("%s: quantity %d not in [1,%d]: %w",
			fc, n, maxN, ErrInvalidData)
	}
	return addr, n, nil
}

// encodeBitsResponse encodes a ReadCoils or ReadDiscreteInputs response.
func encodeBitsResponse(fc FunctionCode, bits []bool) ([]byte, error) {
	n := (len(bits) + 7) / 8
	if n == 0 || n > MaxPDUSize-2 {
		return nil, fmt.Errorf("%s: %d bits: %w", fc, len(bits), ErrInvalidValue)
	}
	pdu := make([]byte, 2, 2+n)
	pdu[0] = byte(fc)
	pdu[1] = byte(n)
	return append(pdu, packBits(bits)...), nil
}

// decodeBitsResponse is the inverse of encodeBitsResponse. All bits of the
// last byte are returned, including the padding.
func decodeBitsResponse(pdu []byte, fc FunctionCode) ([]bool, error) {
	if err := checkHeader(pdu, fc, 3); err != nil {
		return nil, err
	}
	if int(pdu[1])+2 != len(pdu) {
		return nil, ErrInvalidDataLength
	}
	return unpackBits(pdu[2:]), nil
}

// checkBitCount checks that a bit response carries the number of bytes
// needed for n bits.
func checkBitCount(bits []bool, n uint16) error {
	if len(bits) != 8*((int(n)+7)/8) {
		return fmt.Errorf("%d bits for quantity %d: %w", len(bits), n,
			ErrInvalidResponse)
	}
	return nil
}

// ReadCoilsRequest reads Quantity coils starting at Address.
type ReadCoilsRequest struct {
	Address  uint16
	Quantity uint16
}

// FunctionCode implements Message.
func (ReadCoilsRequest) FunctionCode() FunctionCode {
	return FunctionReadCoils
}

// Encode implements Message.
func (r ReadCoilsRequest) Encode() ([]byte, error) {
	return encodeAddressQuantity(FunctionReadCoils, r.Address, r.Quantity,
		maxReadBits)
}

// DecodeResponse implements Request. The response must carry exactly the
// bytes needed for r.Quantity coils.
func (r ReadCoilsRequest) DecodeResponse(pdu []byte) (Response, error) {
	return decodeResponse(pdu, FunctionReadCoils,
		func(pdu []byte) (Response, error) {
			rsp, err := DecodeReadCoilsResponse(pdu)
			if err != nil {
				return nil, err
			}
			if err := checkBitCount(rsp.Coils, r.Quantity); err != nil {
				return nil, err
			}
			return rsp, nil
		})
}

// DecodeReadCoilsRequest decodes a ReadCoils request PDU.
func DecodeReadCoilsRequest(pdu []byte) (ReadCoilsRequest, error) {
	addr, n, err := decodeAddressQuantity(pdu, FunctionReadCoils, maxReadBits)
	if err != nil {
		return ReadCoilsRequest{}, err
	}
	return ReadCoilsRequest{Address: addr, Quantity: n}, nil
}

// ReadCoilsResponse holds the coil states of a ReadCoils response.
// A decoded response holds a multiple of eight coils. Use Truncated to strip
// the padding.
type ReadCoilsResponse struct {
	Coils []bool
}

// FunctionCode implements Message.
func (ReadCoilsResponse) FunctionCode() FunctionCode {
	return FunctionReadCoils
}

// Encode implements Message.
func (r ReadCoilsResponse) Encode() ([]byte, error) {
	return encodeBitsResponse(FunctionReadCoils, r.Coils)
}

// Truncated returns the first n coils.
func (r ReadCoilsResponse) Truncated(n uint16) []bool {
	return truncateBits(r.Coils, n)
}

// DecodeReadCoilsResponse decodes a ReadCoils response PDU.
func DecodeReadCoilsResponse(pdu []byte) (ReadCoilsResponse, error) {
	coils, err := decodeBitsResponse(pdu, FunctionReadCoils)
	if err != nil {
		return ReadCoilsResponse{}, err
	}
	return ReadCoilsResponse{Coils: coils}, nil
}

// ReadDiscreteInputsRequest reads Quantity discrete inputs starting at
// Address.
type ReadDiscreteInputsRequest struct {
	Address  uint16
	Quantity uint16
}

// FunctionCode implements Message.
func (ReadDiscreteInputsRequest) FunctionCode() FunctionCode {
	return FunctionReadDiscreteInputs
}

// Encode implements Message.
func (r ReadDiscreteInputsRequest) Encode() ([]byte, error) {
	return encodeAddressQuantity(FunctionReadDiscreteInputs, r.Address, r.Quantity,
		maxReadBits)
}

// DecodeResponse implements Request.
func (r ReadDiscreteInputsRequest) DecodeResponse(pdu []byte) (
	Response, error,
) {
	return decodeResponse(pdu, FunctionReadDiscreteInputs,
		func(pdu []byte) (Response, error) {
			rsp, err := DecodeReadDiscreteInputsResponse(pdu)
			if err != nil {
				return nil, err
			}
			if err := checkBitCount(rsp.Inputs, r.Quantity); err != nil {
				return nil, err
			}
			return rsp, nil
		})
}

// DecodeReadDiscreteInputsRequest decodes a ReadDiscreteInputs request PDU.
func DecodeReadDiscreteInputsRequest(pdu []byte) (
	ReadDiscreteInputsRequest, error,
) {
	addr, n, err := decodeAddressQuantity(pdu, FunctionReadDiscreteInputs,
		maxReadBits)
	if err != nil {
		return ReadDiscreteInputsRequest{}, err
	}
	return ReadDiscreteInputsRequest{Address: addr, Quantity: n}, nil
}

// ReadDiscreteInputsResponse holds the input states of a ReadDiscreteInputs
// response. Like ReadCoilsResponse, a decoded response is padded to a
// multiple of eight inputs.
type ReadDiscreteInputsResponse struct {
	Inputs []bool
}

// FunctionCode implements Message.
func (ReadDiscreteInputsResponse) FunctionCode() FunctionCode {
	return FunctionReadDiscreteInputs
}

// Encode implements Message.
func (r ReadDiscreteInputsResponse) Encode() ([]byte, error) {
	return encodeBitsResponse(FunctionReadDiscreteInputs, r.Inputs)
}

// Truncated returns the first n inputs.
func (r ReadDiscreteInputsResponse) Truncated(n uint16) []bool {
	return truncateBits(r.Inputs, n)
}

// DecodeReadDiscreteInputsResponse decodes a ReadDiscreteInputs response PDU.
func DecodeReadDiscreteInputsResponse(pdu []byte) (
	ReadDiscreteInputsResponse, error,
) {
	inputs, err := decodeBitsResponse(pdu, FunctionReadDiscreteInputs)
	if err != nil {
		return ReadDiscreteInputsResponse{}, err
	}
	return ReadDiscreteInputsResponse{Inputs: inputs}, nil
}
