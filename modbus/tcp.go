package modbus

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// TCPDst describes the destination of a Modbus/TCP request.
type TCPDst struct {
	// IP is the IP address of the server.
	IP net.IP

	// Port is the server port. If zero, the port of the transport is used.
	Port uint16

	// UnitID is the unit identifier sent in the MBAP header.
	UnitID UnitID
}

// Unit implements Dst.
func (d TCPDst) Unit() UnitID {
	return d.UnitID
}

// tcpStream is the connection of a single Modbus/TCP request/response
// cycle.
type tcpStream struct {
	// conn is the underlying connection.
	conn net.Conn

	// r reads from conn.
	r *bufio.Reader

	// header is the MBAP header of the request.
	header mbap
}

// Close implements Stream.
func (s *tcpStream) Close() error {
	return s.conn.Close()
}

// TCP is a Modbus/TCP transport. A master opens a new connection for each
// exchange. A slave accepts one connection per request.
type TCP struct {
	// role is the current role.
	role roleState

	// port is the default server port for masters.
	port uint16

	// listenAddress is the local address a slave listens on.
	listenAddress string

	// connectTimeout and readTimeout bound connection setup and reading a
	// frame.
	connectTimeout time.Duration
	readTimeout    time.Duration

	// mx protects listener, which may be closed while a slave waits for a
	// request.
	mx sync.Mutex

	// listener accepts connections in slave mode.
	listener net.Listener

	log zerolog.Logger
}

// NewTCP returns a new Modbus/TCP transport without a role.
func NewTCP(opts ...Option) (*TCP, error) {
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}
	return &TCP{
		port:           o.port,
		listenAddress:  o.listenAddress,
		connectTimeout: o.connectTimeout,
		readTimeout:    o.readTimeout,
		log:            o.newLogger("tcp"),
	}, nil
}

// Role returns the current role.
func (t *TCP) Role() Role {
	return t.role.role
}

// getListener returns the current listener, or nil.
func (t *TCP) getListener() net.Listener {
	t.mx.Lock()
	defer t.mx.Unlock()
	return t.listener
}

// Addr returns the address the slave listens on, or nil if not listening.
func (t *TCP) Addr() net.Addr {
	l := t.getListener()
	if l == nil {
		return nil
	}
	return l.Addr()
}

// Close stops listening. A slave blocked in ReadRequestPDU returns with an
// error wrapping net.ErrClosed. A closed transport may be started again.
func (t *TCP) Close() error {
	t.mx.Lock()
	defer t.mx.Unlock()
	if t.listener == nil {
		return nil
	}
	err := t.listener.Close()
	t.listener = nil
	if err != nil {
		return &IOError{Err: err}
	}
	return nil
}

// StartMaster implements Transport. A listening slave socket is closed.
func (t *TCP) StartMaster() error {
	t.role.setMaster()
	return t.Close()
}

// StartSlave implements Transport. It binds the listening socket unless
// already bound.
func (t *TCP) StartSlave(unit UnitID) error {
	if !unit.IsValidSerial() {
		return fmt.Errorf("slave unit ID %d: %w", unit, ErrInvalidValue)
	}
	t.mx.Lock()
	defer t.mx.Unlock()
	if t.listener == nil {
		l, err := net.Listen("tcp", t.listenAddress)
		if err != nil {
			return &IOError{Err: fmt.Errorf("listen on tcp socket '%s': %w",
				t.listenAddress, err)}
		}
		t.listener = l
		t.log.Info().Str("addr", l.Addr().String()).Msg("listening")
	}
	return t.role.setSlave(unit)
}

// WriteRequestPDU implements Transport. dst must be a TCPDst.
func (t *TCP) WriteRequestPDU(dst Dst, pdu []byte) (Stream, error) {
	if err := t.role.require(RoleMaster); err != nil {
		return nil, err
	}
	d, ok := dst.(TCPDst)
	if !ok {
		return nil, fmt.Errorf("destination %T: %w", dst, ErrInvalidValue)
	}
	port := d.Port
	if port == 0 {
		port = t.port
	}
	frame := NewTCPFrame(d.UnitID, pdu)
	adu, err := frame.Encode()
	if err != nil {
		return nil, err
	}
	addr := net.JoinHostPort(d.IP.String(), strconv.Itoa(int(port)))
	conn, err := net.DialTimeout("tcp", addr, t.connectTimeout)
	if err != nil {
		return nil, &IOError{Err: err}
	}
	s := &tcpStream{conn: conn, r: bufio.NewReaderSize(conn, mbapLen+MaxPDUSize)}
	copy(s.header[:], adu)
	if err := t.write(conn, adu); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// ReadResponsePDU implements Transport. A read timeout before the first
// byte yields ErrNoResponse. A frame from another unit yields
// ErrInvalidData.
func (t *TCP) ReadResponsePDU(s Stream, dst Dst) ([]byte, error) {
	if err := t.role.require(RoleMaster); err != nil {
		return nil, err
	}
	ts, ok := s.(*tcpStream)
	if !ok {
		return nil, fmt.Errorf("stream %T: %w", s, ErrInvalidValue)
	}
	frame, err := t.readFrame(ts, true)
	if err != nil {
		return nil, err
	}
	if frame.Unit != dst.Unit() {
		return nil, fmt.Errorf("response from unit %d, expected %d: %w",
			frame.Unit, dst.Unit(), ErrInvalidData)
	}
	return frame.PDU, nil
}

// ReadRequestPDU implements Transport. It accepts the next connection and
// reads a single request from it. A request for another unit yields
// ErrInvalidData.
func (t *TCP) ReadRequestPDU() ([]byte, Stream, error) {
	if err := t.role.require(RoleSlave); err != nil {
		return nil, nil, err
	}
	l := t.getListener()
	if l == nil {
		return nil, nil, fmt.Errorf("not listening: %w", net.ErrClosed)
	}
	conn, err := l.Accept()
	if err != nil {
		return nil, nil, &IOError{Err: err}
	}
	s := &tcpStream{conn: conn, r: bufio.NewReaderSize(conn, mbapLen+MaxPDUSize)}
	frame, err := t.readFrame(s, false)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	if frame.Unit != t.role.unit {
		conn.Close()
		return nil, nil, fmt.Errorf("request for unit %d: %w", frame.Unit,
			ErrInvalidData)
	}
	return frame.PDU, s, nil
}

// WriteResponsePDU implements Transport. The response carries the
// transaction identifier of the request.
func (t *TCP) WriteResponsePDU(s Stream, pdu []byte) error {
	if err := t.role.require(RoleSlave); err != nil {
		return err
	}
	ts, ok := s.(*tcpStream)
	if !ok {
		return fmt.Errorf("stream %T: %w", s, ErrInvalidValue)
	}
	frame := TCPFrame{
		TransactionID: ts.header.TransactionID(),
		Unit:          ts.header.UnitID(),
		PDU:           pdu,
	}
	adu, err := frame.Encode()
	if err != nil {
		return err
	}
	return t.write(ts.conn, adu)
}

// Exchange is Exchange on this transport.
func (t *TCP) Exchange(dst TCPDst, req Request) (Response, error) {
	return Exchange(t, dst, req)
}

// ExchangeSetter is ExchangeSetter on this transport.
func (t *TCP) ExchangeSetter(dst TCPDst, req Setter) error {
	return ExchangeSetter(t, dst, req)
}

// ServeNext is ServeNext on this transport.
func (t *TCP) ServeNext() (Request, Stream, error) {
	return ServeNext(t)
}

// Reply is Reply on this transport.
func (t *TCP) Reply(s Stream, rsp Response) error {
	return Reply(t, s, rsp)
}

// write writes adu to conn within the read timeout.
func (t *TCP) write(conn net.Conn, adu []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(t.readTimeout)); err != nil {
		return &IOError{Err: err}
	}
	if _, err := conn.Write(adu); err != nil {
		return &IOError{Err: err}
	}
	t.log.Debug().Hex("adu", adu).Msg("sent frame")
	return nil
}

// readFrame reads a single frame from s, decoding after every byte. The
// header of the frame is stored in s.
func (t *TCP) readFrame(s *tcpStream, master bool) (TCPFrame, error) {
	if err := s.conn.SetReadDeadline(time.Now().Add(t.readTimeout)); err != nil {
		return TCPFrame{}, &IOError{Err: err}
	}
	buf := make([]byte, 0, mbapLen+MaxPDUSize)
	for {
		b, err := s.r.ReadByte()
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			return TCPFrame{}, fmt.Errorf(
				"connection closed after %d bytes: %w", len(buf),
				ErrInvalidDataLength)
		case master && len(buf) == 0 && isTimeout(err):
			return TCPFrame{}, ErrNoResponse
		default:
			return TCPFrame{}, &IOError{Err: err}
		}
		buf = append(buf, b)
		frame, err := DecodeTCPFrame(buf)
		if errors.Is(err, ErrTooShortData) {
			continue
		}
		if err != nil {
			return TCPFrame{}, err
		}
		copy(s.header[:], buf)
		t.log.Debug().Hex("adu", buf).Msg("received frame")
		return frame, nil
	}
}
