package modbus

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestReadCoilsRequestEncode(t *testing.T) {
	pdu, err := ReadCoilsRequest{Address: 0x1234, Quantity: 0x00CD}.Encode()
	assert.NilError(t, err)
	assert.DeepEqual(t, pdu, []byte{0x01, 0x12, 0x34, 0x00, 0xCD})

	req, err := DecodeReadCoilsRequest(pdu)
	assert.NilError(t, err)
	assert.Equal(t, req, ReadCoilsRequest{Address: 0x1234, Quantity: 0x00CD})
}

func TestReadBitsRequestQuantityBounds(t *testing.T) {
	for _, n := range []uint16{0, maxReadBits + 1, 0xFFFF} {
		_, err := ReadCoilsRequest{Quantity: n}.Encode()
		assert.ErrorIs(t, err, ErrInvalidValue)
		_, err = ReadDiscreteInputsRequest{Quantity: n}.Encode()
		assert.ErrorIs(t, err, ErrInvalidValue)
	}
	for _, n := range []uint16{1, maxReadBits} {
		_, err := ReadCoilsRequest{Quantity: n}.Encode()
		assert.NilError(t, err)
	}

	_, err := DecodeReadCoilsRequest([]byte{0x01, 0x00, 0x00, 0x00, 0x00})
	assert.ErrorIs(t, err, ErrInvalidData)
	_, err = DecodeReadCoilsRequest([]byte{0x01, 0x00, 0x00, 0x07, 0xD1})
	assert.ErrorIs(t, err, ErrInvalidData)
}

func TestReadCoilsRequestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		pdu  []byte
		err  error
	}{
		{"short", []byte{0x01, 0x00, 0x00, 0x00}, ErrInvalidDataLength},
		{"long", []byte{0x01, 0x00, 0x00, 0x00, 0x01, 0x00}, ErrInvalidDataLength},
		{"function", []byte{0x02, 0x00, 0x00, 0x00, 0x01}, ErrInvalidData},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeReadCoilsRequest(tc.pdu)
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestReadCoilsResponse(t *testing.T) {
	coils := []bool{
		true, false, true, true, false, false, true, true,
		true, true, false, true, false, true, true, false,
		true, false, true,
	}
	pdu, err := ReadCoilsResponse{Coils: coils}.Encode()
	assert.NilError(t, err)
	assert.DeepEqual(t, pdu, []byte{0x01, 0x03, 0xCD, 0x6B, 0x05})

	rsp, err := DecodeReadCoilsResponse(pdu)
	assert.NilError(t, err)
	assert.Equal(t, len(rsp.Coils), 24)
	assert.DeepEqual(t, rsp.Truncated(19), coils)
	for _, c := range rsp.Coils[19:] {
		assert.Assert(t, !c)
	}
}

func TestReadCoilsResponseEncodeBounds(t *testing.T) {
	_, err := ReadCoilsResponse{}.Encode()
	assert.ErrorIs(t, err, ErrInvalidValue)
	_, err = ReadCoilsResponse{Coils: make([]bool, 8*(MaxPDUSize-2))}.Encode()
	assert.NilError(t, err)
	_, err = ReadCoilsResponse{Coils: make([]bool, 8*(MaxPDUSize-2)+1)}.Encode()
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestReadCoilsResponseDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		pdu  []byte
		err  error
	}{
		{"short", []byte{0x01, 0x01}, ErrInvalidDataLength},
		{"function", []byte{0x02, 0x01, 0x00}, ErrInvalidData},
		{"count too high", []byte{0x01, 0x02, 0x00}, ErrInvalidDataLength},
		{"count too low", []byte{0x01, 0x01, 0x00, 0x00}, ErrInvalidDataLength},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeReadCoilsResponse(tc.pdu)
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestReadCoilsDecodeResponse(t *testing.T) {
	req := ReadCoilsRequest{Address: 0, Quantity: 10}

	rsp, err := req.DecodeResponse([]byte{0x01, 0x02, 0xFF, 0x03})
	assert.NilError(t, err)
	assert.Equal(t, len(rsp.(ReadCoilsResponse).Truncated(10)), 10)

	_, err = req.DecodeResponse([]byte{0x01, 0x01, 0xFF})
	assert.ErrorIs(t, err, ErrInvalidResponse)

	_, err = req.DecodeResponse([]byte{0x81, 0x02})
	assert.Equal(t, err, error(ExceptionIllegalDataAddress))

	// Unknown exception codes fall through to the regular decoder.
	_, err = req.DecodeResponse([]byte{0x81, 0x07})
	assert.ErrorIs(t, err, ErrInvalidDataLength)
}

func TestReadDiscreteInputs(t *testing.T) {
	pdu, err := ReadDiscreteInputsRequest{Address: 0x00C4, Quantity: 22}.Encode()
	assert.NilError(t, err)
	assert.DeepEqual(t, pdu, []byte{0x02, 0x00, 0xC4, 0x00, 0x16})
	req, err := DecodeReadDiscreteInputsRequest(pdu)
	assert.NilError(t, err)
	assert.Equal(t, req.Quantity, uint16(22))

	rsp, err := req.DecodeResponse([]byte{0x02, 0x03, 0xAC, 0xDB, 0x35})
	assert.NilError(t, err)
	inputs := rsp.(ReadDiscreteInputsResponse).Truncated(22)
	assert.DeepEqual(t, inputs, []bool{
		false, false, true, true, false, true, false, true,
		true, true, false, true, true, false, true, true,
		true, false, true, false, true, true,
	})

	pdu, err = ReadDiscreteInputsResponse{Inputs: inputs}.Encode()
	assert.NilError(t, err)
	assert.DeepEqual(t, pdu, []byte{0x02, 0x03, 0xAC, 0xDB, 0x35})

	_, err = DecodeReadDiscreteInputsResponse([]byte{0x01, 0x01, 0x00})
	assert.ErrorIs(t, err, ErrInvalidData)
}
