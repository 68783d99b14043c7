package modbus

import (
	"errors"
	"testing"

	"gotest.tools/v3/assert"
)

func TestDecodeRequest(t *testing.T) {
	tests := []struct {
		pdu  []byte
		want Request
	}{
		{[]byte{0x01, 0x12, 0x34, 0x00, 0xCD},
			ReadCoilsRequest{Address: 0x1234, Quantity: 0xCD}},
		{[]byte{0x02, 0x00, 0x01, 0x00, 0x02},
			ReadDiscreteInputsRequest{Address: 1, Quantity: 2}},
		{[]byte{0x03, 0x00, 0x01, 0x00, 0x7D},
			ReadHoldingRegistersRequest{Address: 1, Quantity: 125}},
		{[]byte{0x04, 0xAB, 0xCD, 0x00, 0x18},
			ReadInputRegistersRequest{Address: 0xABCD, Quantity: 0x18}},
		{[]byte{0x05, 0xDE, 0xAD, 0xFF, 0x00},
			WriteSingleCoilRequest{Address: 0xDEAD, Value: true}},
		{[]byte{0x06, 0xDE, 0xAD, 0xFA, 0xDE},
			WriteSingleRegisterRequest{Address: 0xDEAD, Value: 0xFADE}},
	}
	for _, tc := range tests {
		req, err := DecodeRequest(tc.pdu)
		assert.NilError(t, err)
		assert.Equal(t, req, tc.want)
	}

	req, err := DecodeRequest([]byte{0x10, 0x00, 0x01, 0x00, 0x01, 0x02, 0xBE, 0xEF})
	assert.NilError(t, err)
	assert.DeepEqual(t, req, WriteMultipleRegistersRequest{
		Address: 1,
		Values:  []uint16{0xBEEF},
	})
}

func TestDecodeRequestErrors(t *testing.T) {
	tests := []struct {
		name      string
		pdu       []byte
		err       error
		exception ExceptionCode
	}{
		{"empty", nil, ErrInvalidDataLength, ExceptionIllegalFunction},
		{"function only", []byte{0x03}, ErrInvalidDataLength,
			ExceptionIllegalDataValue},
		{"unsupported", []byte{0x2B, 0x0E, 0x01, 0x00}, ErrInvalidData,
			ExceptionIllegalFunction},
		{"malformed", []byte{0x05, 0x00, 0x00, 0x12, 0x34}, ErrInvalidData,
			ExceptionIllegalDataValue},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeRequest(tc.pdu)
			assert.ErrorIs(t, err, tc.err)
			var de *DispatchError
			assert.Assert(t, errors.As(err, &de))
			assert.Equal(t, de.Exception(), tc.exception)
		})
	}
}
