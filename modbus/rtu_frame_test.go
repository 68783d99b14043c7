package modbus

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestRTUFrameEncode(t *testing.T) {
	adu, err := RTUFrame{Address: 2, PDU: []byte{0x07}}.Encode()
	assert.NilError(t, err)
	assert.DeepEqual(t, adu, []byte{0x02, 0x07, 0x41, 0x12})

	adu, err = RTUFrame{
		Address: 1,
		PDU:     []byte{0x03, 0x00, 0x00, 0x00, 0x0A},
	}.Encode()
	assert.NilError(t, err)
	assert.DeepEqual(t, adu, []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x0A, 0xC5, 0xCD})
}

func TestRTUFrameDecode(t *testing.T) {
	frame, err := DecodeRTUFrame([]byte{0x02, 0x07, 0x41, 0x12})
	assert.NilError(t, err)
	assert.Equal(t, frame.Address, UnitID(2))
	assert.DeepEqual(t, frame.PDU, []byte{0x07})

	_, err = DecodeRTUFrame([]byte{0x02, 0x07, 0x41, 0x00})
	assert.ErrorIs(t, err, ErrInvalidData)
	_, err = DecodeRTUFrame([]byte{0x02, 0x07, 0x41})
	assert.ErrorIs(t, err, ErrInvalidDataLength)
	_, err = DecodeRTUFrame(make([]byte, maxRTUFrameLen+1))
	assert.ErrorIs(t, err, ErrInvalidDataLength)
}

func TestRTUFrameRoundTrip(t *testing.T) {
	for _, n := range []int{MinPDUSize, 2, 17, MaxPDUSize} {
		pdu := make([]byte, n)
		for i := range pdu {
			pdu[i] = byte(i*7 + n)
		}
		for _, unit := range []UnitID{UnitBroadcast, 1, 247, 255} {
			adu, err := RTUFrame{Address: unit, PDU: pdu}.Encode()
			assert.NilError(t, err)
			assert.Equal(t, len(adu), n+3)
			frame, err := DecodeRTUFrame(adu)
			assert.NilError(t, err)
			assert.Equal(t, frame.Address, unit)
			assert.DeepEqual(t, frame.PDU, pdu)
		}
	}
	_, err := RTUFrame{Address: 1}.Encode()
	assert.ErrorIs(t, err, ErrInvalidValue)
	_, err = RTUFrame{Address: 1, PDU: make([]byte, MaxPDUSize+1)}.Encode()
	assert.ErrorIs(t, err, ErrInvalidValue)
}
