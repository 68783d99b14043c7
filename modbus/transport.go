package modbus

import (
	"fmt"
	"reflect"
)

// Role is the role of a transport.
type Role uint8

// Roles. A new transport has no role until StartMaster or StartSlave is
// called.
const (
	RoleUnset Role = iota
	RoleMaster
	RoleSlave
)

// String renders this role.
func (r Role) String() string {
	switch r {
	case RoleUnset:
		return "unset"
	case RoleMaster:
		return "master"
	case RoleSlave:
		return "slave"
	default:
		return fmt.Sprintf("unknown role %d", uint8(r))
	}
}

// roleState tracks the role of a transport and, for slaves, the own unit ID.
type roleState struct {
	role Role
	unit UnitID
}

// setMaster switches to master mode.
func (rs *roleState) setMaster() {
	rs.role = RoleMaster
	rs.unit = 0
}

// setSlave switches to slave mode with the specified unit ID.
func (rs *roleState) setSlave(unit UnitID) error {
	if !unit.IsValidSerial() {
		return fmt.Errorf("slave unit ID %d: %w", unit, ErrInvalidValue)
	}
	rs.role = RoleSlave
	rs.unit = unit
	return nil
}

// require checks that the current role is r.
func (rs *roleState) require(r Role) error {
	if rs.role != r {
		return fmt.Errorf("operation requires role %s, have %s: %w", r, rs.role,
			ErrInvalidValue)
	}
	return nil
}

// Dst describes the destination of a request.
type Dst interface {
	// Unit returns the unit identifier of the destination. UnitBroadcast
	// marks a broadcast, which is not answered.
	Unit() UnitID
}

// Stream is the channel over which a single request/response cycle takes
// place.
type Stream interface {
	// Close releases the stream.
	Close() error
}

// Transport describes a Modbus link layer. A Transport is used by one
// goroutine at a time. Exchange, ExchangeSetter, ServeNext and Reply build
// the request/response choreography on top of it.
type Transport interface {
	// StartMaster switches the transport to master mode.
	StartMaster() error

	// StartSlave switches the transport to slave mode, answering as unit.
	// The unit must be in [UnitIndividualMin,UnitIndividualMax].
	StartSlave(unit UnitID) error

	// WriteRequestPDU sends a request PDU to dst. It returns the stream on
	// which the response arrives. Master mode only.
	WriteRequestPDU(dst Dst, pdu []byte) (Stream, error)

	// ReadResponsePDU reads the response PDU of dst from s. Master mode only.
	ReadResponsePDU(s Stream, dst Dst) ([]byte, error)

	// ReadRequestPDU blocks until a request for this unit arrives. It returns
	// the request PDU and the stream to reply on. Slave mode only.
	ReadRequestPDU() ([]byte, Stream, error)

	// WriteResponsePDU sends a response PDU on s. Slave mode only.
	WriteResponsePDU(s Stream, pdu []byte) error
}

// Exchange sends req to dst over t and waits for the response. For
// broadcasts, Exchange returns a nil response without waiting. A peer
// exception is returned as an ExceptionCode error.
func Exchange(t Transport, dst Dst, req Request) (Response, error) {
	pdu, err := req.Encode()
	if err != nil {
		return nil, err
	}
	s, err := t.WriteRequestPDU(dst, pdu)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	if dst.Unit().IsBroadcast() {
		return nil, nil
	}
	rsp, err := t.ReadResponsePDU(s, dst)
	if err != nil {
		return nil, err
	}
	return req.DecodeResponse(rsp)
}

// ExchangeSetter performs Exchange and checks that the response deeply
// equals req.ExpectedResponse(). A mismatch yields ErrInvalidData.
func ExchangeSetter(t Transport, dst Dst, req Setter) error {
	rsp, err := Exchange(t, dst, req)
	if err != nil {
		return err
	}
	if rsp == nil {
		return nil
	}
	if want := req.ExpectedResponse(); !reflect.DeepEqual(rsp, want) {
		return fmt.Errorf("%s: response %+v, expected %+v: %w",
			req.FunctionCode(), rsp, want, ErrInvalidData)
	}
	return nil
}

// ServeNext waits for the next request addressed to t. The caller must
// answer on the returned stream with Reply or ReplyException, or close it.
//
// If the request cannot be decoded, the error is a *DispatchError and the
// stream is still returned, so that the caller may reply with an exception.
func ServeNext(t Transport) (Request, Stream, error) {
	pdu, s, err := t.ReadRequestPDU()
	if err != nil {
		return nil, nil, err
	}
	req, err := DecodeRequest(pdu)
	if err != nil {
		return nil, s, err
	}
	return req, s, nil
}

// Reply encodes rsp and sends it on s. The stream is closed afterwards.
func Reply(t Transport, s Stream, rsp Response) error {
	if s == nil {
		return fmt.Errorf("nil stream: %w", ErrInvalidValue)
	}
	defer s.Close()
	pdu, err := rsp.Encode()
	if err != nil {
		return err
	}
	return t.WriteResponsePDU(s, pdu)
}

// ReplyException answers the request with function code fc on s with the
// specified exception. The stream is closed afterwards.
func ReplyException(
	t Transport, s Stream, fc FunctionCode, code ExceptionCode,
) error {
	return Reply(t, s, ExceptionResponse{Function: fc, Code: code})
}
