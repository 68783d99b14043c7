package modbus

import (
	"testing"
	"time"

	"gotest.tools/v3/assert"
)

func TestSerialSettingsValidate(t *testing.T) {
	assert.NilError(t, DefaultSerialSettings().Validate())

	tests := map[string]func(*SerialSettings){
		"baud rate":    func(s *SerialSettings) { s.BaudRate = 0 },
		"data bits":    func(s *SerialSettings) { s.DataBits = 9 },
		"parity":       func(s *SerialSettings) { s.Parity = "M" },
		"stop bits":    func(s *SerialSettings) { s.StopBits = 3 },
		"flow control": func(s *SerialSettings) { s.FlowControl = FlowHardware },
		"timeout":      func(s *SerialSettings) { s.Timeout = -time.Millisecond },
	}
	for name, modify := range tests {
		t.Run(name, func(t *testing.T) {
			s := DefaultSerialSettings()
			modify(&s)
			assert.ErrorIs(t, s.Validate(), ErrInvalidValue)
		})
	}
}

func TestSerialTimings(t *testing.T) {
	tests := []struct {
		baud        int
		timeout     time.Duration
		charTimeout time.Duration
		frameGap    time.Duration
	}{
		{baud: 9600, charTimeout: 1718749 * time.Nanosecond, frameGap: 4010415 * time.Nanosecond},
		{baud: 19200, charTimeout: 859374 * time.Nanosecond, frameGap: 2005206 * time.Nanosecond},
		{baud: 38400, charTimeout: 750 * time.Microsecond, frameGap: 1750 * time.Microsecond},
		{baud: 115200, timeout: 5 * time.Millisecond, charTimeout: 5 * time.Millisecond, frameGap: 1750 * time.Microsecond},
	}
	for _, test := range tests {
		s := SerialSettings{BaudRate: test.baud, Timeout: test.timeout}
		assert.Equal(t, s.charTimeout(), test.charTimeout, "baud %d", test.baud)
		assert.Equal(t, s.frameGap(), test.frameGap, "baud %d", test.baud)
	}
	assert.Equal(t, SerialSettings{}.frameGap(), 100*time.Millisecond)
}

func TestSerialConfig(t *testing.T) {
	cfg := DefaultSerialSettings().config("/dev/ttyUSB0")
	assert.Equal(t, cfg.Address, "/dev/ttyUSB0")
	assert.Equal(t, cfg.BaudRate, 19200)
	assert.Equal(t, cfg.DataBits, 8)
	assert.Equal(t, cfg.StopBits, 1)
	assert.Equal(t, cfg.Parity, "E")
	assert.Equal(t, cfg.Timeout, 859374*time.Nanosecond)
}
