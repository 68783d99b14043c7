package modbus

import (
	"encoding/binary"
	"fmt"
)

const (
	// minRTUFrameLen is the minimum RTU frame length: address, function code
	// and CRC.
	minRTUFrameLen = 1 + MinPDUSize + 2

	// maxRTUFrameLen is the maximum RTU frame length.
	maxRTUFrameLen = 1 + MaxPDUSize + 2
)

// RTUFrame is a Modbus RTU application data unit. The CRC is computed on
// encoding and checked on decoding.
type RTUFrame struct {
	// Address is the unit identifier of the server.
	Address UnitID

	// PDU is the protocol data unit.
	PDU []byte
}

// Encode encodes this frame. The CRC is appended low byte first.
func (f RTUFrame) Encode() ([]byte, error) {
	if len(f.PDU) < MinPDUSize || len(f.PDU) > MaxPDUSize {
		return nil, fmt.Errorf("PDU length %d: %w", len(f.PDU), ErrInvalidValue)
	}
	adu := make([]byte, 1, len(f.PDU)+3)
	adu[0] = byte(f.Address)
	adu = append(adu, f.PDU...)
	sum := crc(adu)
	return append(adu, byte(sum), byte(sum>>8)), nil
}

// DecodeRTUFrame decodes a complete RTU frame. The PDU of the returned frame
// aliases adu.
func DecodeRTUFrame(adu []byte) (RTUFrame, error) {
	if len(adu) < minRTUFrameLen || len(adu) > maxRTUFrameLen {
		return RTUFrame{}, fmt.Errorf("RTU frame length %d: %w", len(adu),
			ErrInvalidDataLength)
	}
	n := len(adu) - 2
	if got, want := binary.LittleEndian.Uint16(adu[n:]), crc(adu[:n]); got != want {
		return RTUFrame{}, fmt.Errorf("RTU frame CRC %04X, expected %04X: %w",
			got, want, ErrInvalidData)
	}
	return RTUFrame{Address: UnitID(adu[0]), PDU: adu[1:n]}, nil
}
