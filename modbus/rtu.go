package modbus

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/goburrow/serial"
	"github.com/rs/zerolog"
)

// rtuStream is the stream of an RTU request/response cycle. The line itself
// is shared, so the stream only remembers the addressed unit.
type rtuStream struct {
	unit UnitID
}

// Close implements Stream.
func (rtuStream) Close() error {
	return nil
}

// RTU is a Modbus RTU transport on a serial line. It is strictly half
// duplex: one request/response cycle at a time.
type RTU struct {
	// port is the serial port. Reads must time out after one character
	// timeout of silence.
	port io.ReadWriteCloser

	// role is the current role.
	role roleState

	// frameGap is the minimum line silence before transmitting.
	frameGap time.Duration

	// responseTimeout bounds the wait for the first response byte.
	responseTimeout time.Duration

	// acceptBroadcast determines whether ReadRequestPDU returns broadcasts.
	acceptBroadcast bool

	// lastActivity is the time the line was last busy, in either direction.
	lastActivity time.Time

	// now and sleep are the clock primitives.
	now   func() time.Time
	sleep func(time.Duration)

	log zerolog.Logger
}

// OpenRTU opens the serial port with the given name and returns an RTU
// transport on it.
func OpenRTU(name string, settings SerialSettings, opts ...Option) (
	*RTU, error,
) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	port, err := serial.Open(settings.config(name))
	if err != nil {
		return nil, &SerialError{Err: err}
	}
	r, err := NewRTU(port, settings, opts...)
	if err != nil {
		port.Close()
		return nil, err
	}
	return r, nil
}

// NewRTU returns an RTU transport on an already open port. The port must be
// configured with the per-byte timeout of settings, and a read timing out
// must return an error for which os.IsTimeout is true, or
// serial.ErrTimeout.
func NewRTU(port io.ReadWriteCloser, settings SerialSettings, opts ...Option) (
	*RTU, error,
) {
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}
	gap := o.frameGap
	if gap == 0 {
		gap = settings.frameGap()
	}
	r := &RTU{
		port:            port,
		frameGap:        gap,
		responseTimeout: o.responseTimeout,
		acceptBroadcast: o.acceptBroadcast,
		now:             time.Now,
		sleep:           time.Sleep,
		log:             o.newLogger("rtu"),
	}
	r.lastActivity = r.now()
	return r, nil
}

// Close closes the serial port.
func (r *RTU) Close() error {
	return r.port.Close()
}

// Role returns the current role.
func (r *RTU) Role() Role {
	return r.role.role
}

// StartMaster implements Transport.
func (r *RTU) StartMaster() error {
	r.role.setMaster()
	return nil
}

// StartSlave implements Transport.
func (r *RTU) StartSlave(unit UnitID) error {
	return r.role.setSlave(unit)
}

// WriteRequestPDU implements Transport. dst must be a UnitID.
func (r *RTU) WriteRequestPDU(dst Dst, pdu []byte) (Stream, error) {
	if err := r.role.require(RoleMaster); err != nil {
		return nil, err
	}
	unit := dst.Unit()
	if !unit.IsBroadcast() && !unit.IsValidSerial() {
		return nil, fmt.Errorf("destination unit %d: %w", unit, ErrInvalidValue)
	}
	if err := r.writeFrame(unit, pdu); err != nil {
		return nil, err
	}
	return rtuStream{unit: unit}, nil
}

// ReadResponsePDU implements Transport. A frame from another unit yields
// ErrInvalidData.
func (r *RTU) ReadResponsePDU(_ Stream, dst Dst) ([]byte, error) {
	if err := r.role.require(RoleMaster); err != nil {
		return nil, err
	}
	frame, err := r.readFrame(false)
	if err != nil {
		return nil, err
	}
	if frame.Address != dst.Unit() {
		return nil, fmt.Errorf("response from unit %d, expected %d: %w",
			frame.Address, dst.Unit(), ErrInvalidData)
	}
	return frame.PDU, nil
}

// ReadRequestPDU implements Transport. Frames for other units are dropped.
func (r *RTU) ReadRequestPDU() ([]byte, Stream, error) {
	if err := r.role.require(RoleSlave); err != nil {
		return nil, nil, err
	}
	for {
		frame, err := r.readFrame(true)
		if err != nil {
			return nil, nil, err
		}
		if frame.Address == r.role.unit ||
			(r.acceptBroadcast && frame.Address.IsBroadcast()) {
			return frame.PDU, rtuStream{unit: frame.Address}, nil
		}
		r.log.Debug().Uint8("unit", uint8(frame.Address)).
			Msg("dropped frame for other unit")
	}
}

// WriteResponsePDU implements Transport. Responses to broadcasts are
// suppressed.
func (r *RTU) WriteResponsePDU(s Stream, pdu []byte) error {
	if err := r.role.require(RoleSlave); err != nil {
		return err
	}
	rs, ok := s.(rtuStream)
	if !ok {
		return fmt.Errorf("stream %T: %w", s, ErrInvalidValue)
	}
	if rs.unit.IsBroadcast() {
		return nil
	}
	return r.writeFrame(r.role.unit, pdu)
}

// Exchange is Exchange on this transport.
func (r *RTU) Exchange(dst UnitID, req Request) (Response, error) {
	return Exchange(r, dst, req)
}

// ExchangeSetter is ExchangeSetter on this transport.
func (r *RTU) ExchangeSetter(dst UnitID, req Setter) error {
	return ExchangeSetter(r, dst, req)
}

// ServeNext is ServeNext on this transport.
func (r *RTU) ServeNext() (Request, Stream, error) {
	return ServeNext(r)
}

// Reply is Reply on this transport.
func (r *RTU) Reply(s Stream, rsp Response) error {
	return Reply(r, s, rsp)
}

// waitFrameGap sleeps until the line has been silent for the frame gap.
func (r *RTU) waitFrameGap() {
	if d := r.frameGap - r.now().Sub(r.lastActivity); d > 0 {
		r.sleep(d)
	}
}

// writeFrame transmits pdu to unit.
func (r *RTU) writeFrame(unit UnitID, pdu []byte) error {
	adu, err := RTUFrame{Address: unit, PDU: pdu}.Encode()
	if err != nil {
		return err
	}
	r.waitFrameGap()
	_, err = r.port.Write(adu)
	r.lastActivity = r.now()
	if err != nil {
		return &SerialError{Err: err}
	}
	r.log.Debug().Hex("adu", adu).Msg("sent frame")
	return nil
}

// isTimeout determines whether err reports a read timeout.
func isTimeout(err error) bool {
	return errors.Is(err, serial.ErrTimeout) || os.IsTimeout(err)
}

// readFrame reads a frame byte by byte until the line falls silent.
// If idle is false, silence before the first byte lasting the response
// timeout yields ErrNoResponse. Otherwise, readFrame waits indefinitely.
func (r *RTU) readFrame(idle bool) (RTUFrame, error) {
	var (
		buf      = make([]byte, 0, maxRTUFrameLen)
		b        [1]byte
		overrun  bool
		deadline = r.now().Add(r.responseTimeout)
	)
	for {
		n, err := r.port.Read(b[:])
		if n > 1 {
			panic(fmt.Sprintf("serial read returned %d bytes into 1 byte buffer", n))
		}
		if n == 1 {
			r.lastActivity = r.now()
			if len(buf) < maxRTUFrameLen {
				buf = append(buf, b[0])
			} else {
				overrun = true
			}
		}
		if err != nil && !isTimeout(err) {
			return RTUFrame{}, &SerialError{Err: err}
		}
		if n == 1 {
			continue
		}
		// The line is silent.
		if len(buf) == 0 {
			if idle || r.now().Before(deadline) {
				continue
			}
			return RTUFrame{}, ErrNoResponse
		}
		if overrun {
			r.log.Warn().Msg("dropped overlong frame")
			return RTUFrame{}, fmt.Errorf("RTU frame exceeds %d bytes: %w",
				maxRTUFrameLen, ErrInvalidDataLength)
		}
		r.log.Debug().Hex("adu", buf).Msg("received frame")
		return DecodeRTUFrame(buf)
	}
}
