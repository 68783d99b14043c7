package modbus

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	gbmodbus "github.com/goburrow/modbus"
	"gotest.tools/v3/assert"
)

// startTestSlave serves d as unit 1 on a loopback port. The slave is stopped
// on test cleanup.
func startTestSlave(t *testing.T, d *Data) *TCP {
	t.Helper()
	slave, err := NewTCP(WithListenAddress("127.0.0.1:0"))
	assert.NilError(t, err)
	assert.NilError(t, slave.StartSlave(1))
	srv := NewServer()
	assert.NilError(t, d.AddToServer(srv))
	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(context.Background(), slave)
	}()
	t.Cleanup(func() {
		assert.Check(t, slave.Close())
		assert.Check(t, errors.Is(<-done, net.ErrClosed))
	})
	return slave
}

func testDst(t *testing.T, addr net.Addr, unit UnitID) TCPDst {
	t.Helper()
	tcpAddr, ok := addr.(*net.TCPAddr)
	assert.Assert(t, ok)
	return TCPDst{
		IP:     net.IPv4(127, 0, 0, 1),
		Port:   uint16(tcpAddr.Port),
		UnitID: unit,
	}
}

func newTestMaster(t *testing.T, opts ...Option) *TCP {
	t.Helper()
	master, err := NewTCP(opts...)
	assert.NilError(t, err)
	assert.NilError(t, master.StartMaster())
	return master
}

func TestTCPExchange(t *testing.T) {
	d, err := NewData(DataModel{Ranges: []DataRange{
		{Type: DataTypeHoldingRegisters, Len: 16},
		{Type: DataTypeCoils, Len: 16},
	}})
	assert.NilError(t, err)
	slave := startTestSlave(t, d)
	master := newTestMaster(t)
	dst := testDst(t, slave.Addr(), 1)

	assert.NilError(t, WriteMultipleRegisters(master, dst, 2,
		[]uint16{0xCAFE, 0xBABE}))
	regs, err := ReadHoldingRegisters(master, dst, 1, 3)
	assert.NilError(t, err)
	assert.DeepEqual(t, regs, []uint16{0, 0xCAFE, 0xBABE})

	assert.NilError(t, master.ExchangeSetter(dst,
		WriteSingleCoilRequest{Address: 3, Value: true}))
	coils, err := ReadCoils(master, dst, 0, 5)
	assert.NilError(t, err)
	assert.DeepEqual(t, coils, []bool{false, false, false, true, false})

	_, err = master.Exchange(dst, ReadHoldingRegistersRequest{
		Address:  15,
		Quantity: 2,
	})
	assert.Equal(t, err, error(ExceptionIllegalDataAddress))
}

func TestTCPWrongUnit(t *testing.T) {
	d, err := NewData(DataModel{Ranges: []DataRange{
		{Type: DataTypeCoils, Len: 1},
	}})
	assert.NilError(t, err)
	slave := startTestSlave(t, d)
	master := newTestMaster(t)

	_, err = ReadCoils(master, testDst(t, slave.Addr(), 2), 0, 1)
	assert.ErrorIs(t, err, ErrInvalidDataLength)

	// The slave keeps serving.
	_, err = ReadCoils(master, testDst(t, slave.Addr(), 1), 0, 1)
	assert.NilError(t, err)
}

func TestTCPRoles(t *testing.T) {
	tr, err := NewTCP(WithListenAddress("127.0.0.1:0"))
	assert.NilError(t, err)
	assert.Equal(t, tr.Role(), RoleUnset)
	_, err = tr.Exchange(TCPDst{IP: net.IPv4(127, 0, 0, 1)},
		ReadCoilsRequest{Quantity: 1})
	assert.ErrorIs(t, err, ErrInvalidValue)

	assert.ErrorIs(t, tr.StartSlave(0), ErrInvalidValue)
	assert.Assert(t, tr.Addr() == nil)
	assert.NilError(t, tr.StartSlave(3))
	assert.Assert(t, tr.Addr() != nil)
	_, err = tr.Exchange(TCPDst{IP: net.IPv4(127, 0, 0, 1)},
		ReadCoilsRequest{Quantity: 1})
	assert.ErrorIs(t, err, ErrInvalidValue)

	assert.NilError(t, tr.StartMaster())
	assert.Assert(t, tr.Addr() == nil)
	_, _, err = tr.ServeNext()
	assert.ErrorIs(t, err, ErrInvalidValue)

	_, err = tr.WriteRequestPDU(UnitID(1), []byte{0x01, 0x00, 0x00, 0x00, 0x01})
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestTCPClosedSlave(t *testing.T) {
	tr, err := NewTCP(WithListenAddress("127.0.0.1:0"))
	assert.NilError(t, err)
	assert.NilError(t, tr.StartSlave(1))
	assert.NilError(t, tr.Close())
	assert.NilError(t, tr.Close())
	_, _, err = tr.ServeNext()
	assert.ErrorIs(t, err, net.ErrClosed)
}

// rawServer accepts a single connection, reads a request frame and passes
// the connection to serve.
func rawServer(t *testing.T, serve func(conn net.Conn, req []byte)) net.Addr {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NilError(t, err)
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		req := make([]byte, 12)
		if _, err := io.ReadFull(conn, req); err != nil {
			return
		}
		serve(conn, req)
	}()
	t.Cleanup(func() {
		l.Close()
		<-done
	})
	return l.Addr()
}

func TestTCPMasterErrors(t *testing.T) {
	tests := map[string]struct {
		serve func(conn net.Conn, req []byte)
		err   error
	}{
		"silent": {
			serve: func(conn net.Conn, _ []byte) {
				io.Copy(io.Discard, conn)
			},
			err: ErrNoResponse,
		},
		"protocol": {
			serve: func(conn net.Conn, req []byte) {
				conn.Write([]byte{req[0], req[1], 0x00, 0x01, 0x00, 0x04, 0x01,
					0x01, 0x01, 0x01})
			},
			err: ErrInvalidData,
		},
		"unit": {
			serve: func(conn net.Conn, req []byte) {
				conn.Write([]byte{req[0], req[1], 0x00, 0x00, 0x00, 0x04, 0x02,
					0x01, 0x01, 0x01})
			},
			err: ErrInvalidData,
		},
		"truncated": {
			serve: func(conn net.Conn, req []byte) {
				conn.Write([]byte{req[0], req[1], 0x00, 0x00, 0x00, 0x04, 0x01,
					0x01})
			},
			err: ErrInvalidDataLength,
		},
		"exception": {
			serve: func(conn net.Conn, req []byte) {
				conn.Write([]byte{req[0], req[1], 0x00, 0x00, 0x00, 0x03, 0x01,
					0x81, 0x06})
			},
			err: ExceptionServerDeviceBusy,
		},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			addr := rawServer(t, test.serve)
			master := newTestMaster(t, WithReadTimeout(100*time.Millisecond))
			_, err := ReadCoils(master, testDst(t, addr, 1), 0, 1)
			assert.ErrorIs(t, err, test.err)
		})
	}
}

func TestTCPRequestFrame(t *testing.T) {
	got := make(chan []byte, 1)
	addr := rawServer(t, func(conn net.Conn, req []byte) {
		got <- req
		conn.Write([]byte{req[0], req[1], 0x00, 0x00, 0x00, 0x04, 0x11,
			0x01, 0x01, 0x05})
	})
	master := newTestMaster(t)
	coils, err := ReadCoils(master, testDst(t, addr, 0x11), 0x0013, 3)
	assert.NilError(t, err)
	assert.DeepEqual(t, coils, []bool{true, false, true})
	assert.DeepEqual(t, (<-got)[2:], []byte{0x00, 0x00, 0x00, 0x06, 0x11,
		0x01, 0x00, 0x13, 0x00, 0x03})
}

// newGoburrowClient returns a client of another Modbus implementation.
// The slave closes the connection after each response, so every request
// uses a fresh handler.
func newGoburrowClient(t *testing.T, addr net.Addr) gbmodbus.Client {
	t.Helper()
	handler := gbmodbus.NewTCPClientHandler(addr.String())
	handler.SlaveId = 1
	handler.Timeout = time.Second
	t.Cleanup(func() {
		handler.Close()
	})
	return gbmodbus.NewClient(handler)
}

func TestTCPInterop(t *testing.T) {
	d, err := NewData(DataModel{Ranges: []DataRange{
		{Type: DataTypeCoils, Len: 16},
		{Type: DataTypeDiscreteInputs, Len: 8},
		{Type: DataTypeHoldingRegisters, Len: 8},
		{Type: DataTypeInputRegisters, Len: 8},
	}})
	assert.NilError(t, err)
	assert.NilError(t, d.SetBool(DataTypeDiscreteInputs, 2, true))
	assert.NilError(t, d.SetUint16s(DataTypeInputRegisters, 0, 0x1234, 0x5678))
	slave := startTestSlave(t, d)
	addr := slave.Addr()

	_, err = newGoburrowClient(t, addr).WriteMultipleRegisters(1, 2,
		[]byte{0x00, 0x0A, 0x01, 0x02})
	assert.NilError(t, err)
	results, err := newGoburrowClient(t, addr).ReadHoldingRegisters(0, 4)
	assert.NilError(t, err)
	assert.DeepEqual(t, results, []byte{0, 0, 0x00, 0x0A, 0x01, 0x02, 0, 0})

	_, err = newGoburrowClient(t, addr).WriteSingleRegister(0, 0xFFFF)
	assert.NilError(t, err)
	v, err := d.Uint16(DataTypeHoldingRegisters, 0)
	assert.NilError(t, err)
	assert.Equal(t, v, uint16(0xFFFF))

	_, err = newGoburrowClient(t, addr).WriteSingleCoil(9, 0xFF00)
	assert.NilError(t, err)
	results, err = newGoburrowClient(t, addr).ReadCoils(8, 3)
	assert.NilError(t, err)
	assert.DeepEqual(t, results, []byte{0x02})

	results, err = newGoburrowClient(t, addr).ReadDiscreteInputs(0, 8)
	assert.NilError(t, err)
	assert.DeepEqual(t, results, []byte{0x04})

	results, err = newGoburrowClient(t, addr).ReadInputRegisters(0, 2)
	assert.NilError(t, err)
	assert.DeepEqual(t, results, []byte{0x12, 0x34, 0x56, 0x78})

	_, err = newGoburrowClient(t, addr).ReadInputRegisters(7, 2)
	var mbErr *gbmodbus.ModbusError
	assert.Assert(t, errors.As(err, &mbErr))
	assert.Equal(t, mbErr.ExceptionCode, byte(ExceptionIllegalDataAddress))
}
