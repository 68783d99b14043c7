package modbus

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"
)

// mbapLen is the length of the Modbus application protocol header.
const mbapLen = 7

// mbapProtocolID is the protocol identifier of Modbus.
const mbapProtocolID = 0

// transactionCounter is the source of transaction identifiers for all
// frames created by NewTCPFrame in this process.
var transactionCounter uint32

// nextTransactionID returns the next transaction identifier. It wraps
// around after 0xFFFF.
func nextTransactionID() uint16 {
	return uint16(atomic.AddUint32(&transactionCounter, 1) - 1)
}

// mbap is the Modbus application protocol header.
type mbap [mbapLen]byte

// Validate validates the protocol identifier of this MBAP.
func (m *mbap) Validate() error {
	if id := binary.BigEndian.Uint16(m[2:4]); id != mbapProtocolID {
		return fmt.Errorf("MBAP protocol identifier %d: %w", id, ErrInvalidData)
	}
	return nil
}

// TransactionID returns the transaction identifier.
func (m *mbap) TransactionID() uint16 {
	return binary.BigEndian.Uint16(m[0:2])
}

// FrameLen returns the total frame length, header included, encoded in this
// MBAP.
func (m *mbap) FrameLen() int {
	// The length field counts the unit identifier, which is part of the header.
	return int(binary.BigEndian.Uint16(m[4:6])) + mbapLen - 1
}

// UnitID returns the unit identifier.
func (m *mbap) UnitID() UnitID {
	return UnitID(m[6])
}

// set fills in all fields of this MBAP. The specified PDU size is not
// checked for validity.
func (m *mbap) set(tid uint16, unit UnitID, pduLen int) {
	binary.BigEndian.PutUint16(m[0:2], tid)
	binary.BigEndian.PutUint16(m[2:4], mbapProtocolID)
	binary.BigEndian.PutUint16(m[4:6], uint16(pduLen+1))
	m[6] = byte(unit)
}

// TCPFrame is a Modbus/TCP application data unit.
type TCPFrame struct {
	// TransactionID identifies the transaction.
	TransactionID uint16

	// Unit is the unit identifier.
	Unit UnitID

	// PDU is the protocol data unit.
	PDU []byte
}

// NewTCPFrame returns a frame to unit carrying pdu, with a fresh transaction
// identifier.
func NewTCPFrame(unit UnitID, pdu []byte) TCPFrame {
	return TCPFrame{
		TransactionID: nextTransactionID(),
		Unit:          unit,
		PDU:           pdu,
	}
}

// Encode encodes this frame.
func (f TCPFrame) Encode() ([]byte, error) {
	if len(f.PDU) < MinPDUSize || len(f.PDU) > MaxPDUSize {
		return nil, fmt.Errorf("PDU length %d: %w", len(f.PDU), ErrInvalidValue)
	}
	var header mbap
	header.set(f.TransactionID, f.Unit, len(f.PDU))
	adu := make([]byte, 0, mbapLen+len(f.PDU))
	adu = append(adu, header[:]...)
	return append(adu, f.PDU...), nil
}

// DecodeTCPFrame decodes a frame from a buffer which grows as bytes arrive
// from a stream. It returns ErrTooShortData while the frame is incomplete, and
// ErrInvalidDataLength once buf holds more than the declared length. The PDU
// of the returned frame aliases buf.
func DecodeTCPFrame(buf []byte) (TCPFrame, error) {
	if len(buf) < mbapLen+MinPDUSize {
		return TCPFrame{}, ErrTooShortData
	}
	var header mbap
	copy(header[:], buf)
	if err := header.Validate(); err != nil {
		return TCPFrame{}, err
	}
	frameLen := header.FrameLen()
	if frameLen < mbapLen+MinPDUSize || frameLen > mbapLen+MaxPDUSize {
		return TCPFrame{}, fmt.Errorf("MBAP length %d: %w", frameLen-mbapLen+1,
			ErrInvalidDataLength)
	}
	switch {
	case len(buf) < frameLen:
		return TCPFrame{}, ErrTooShortData
	case len(buf) > frameLen:
		return TCPFrame{}, ErrInvalidDataLength
	}
	return TCPFrame{
		TransactionID: header.TransactionID(),
		Unit:          header.UnitID(),
		PDU:           buf[mbapLen:],
	}, nil
}
