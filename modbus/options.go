package modbus

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// DefaultTCPPort is the default Modbus/TCP port of this package.
	DefaultTCPPort = 5020

	// defaultBindAddress is the default address the TCP slave listens on.
	defaultBindAddress = "127.0.0.1"

	// defaultTCPTimeout is the default connect and read timeout for TCP.
	defaultTCPTimeout = time.Second

	// defaultResponseTimeout is the default time an RTU master waits for the
	// first byte of a response.
	defaultResponseTimeout = time.Second
)

// options describes options for Modbus transports.
type options struct {
	// port is the TCP port to connect to and listen on.
	port uint16

	// bindAddress is the IP address the TCP slave listens on.
	bindAddress string

	// listenAddress is the complete TCP slave listen address. It overrides
	// port and bindAddress.
	listenAddress string

	// connectTimeout is the TCP connect timeout.
	connectTimeout time.Duration

	// readTimeout is the TCP read timeout.
	readTimeout time.Duration

	// responseTimeout is the RTU master response timeout.
	responseTimeout time.Duration

	// frameGap is the minimum RTU line silence before transmitting.
	frameGap time.Duration

	// acceptBroadcast determines whether an RTU slave accepts broadcasts.
	acceptBroadcast bool

	// logger is the logger, if set.
	logger *zerolog.Logger
}

// Option describes an option to be passed to NewTCP or NewRTU.
type Option func(*options) error

// newOptions applies opts and fills in default values.
func newOptions(opts []Option) (*options, error) {
	o := &options{}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if o.port == 0 {
		o.port = DefaultTCPPort
	}
	if o.bindAddress == "" {
		o.bindAddress = defaultBindAddress
	}
	if o.listenAddress == "" {
		o.listenAddress = net.JoinHostPort(o.bindAddress,
			strconv.Itoa(int(o.port)))
	}
	if o.connectTimeout == 0 {
		o.connectTimeout = defaultTCPTimeout
	}
	if o.readTimeout == 0 {
		o.readTimeout = defaultTCPTimeout
	}
	if o.responseTimeout == 0 {
		o.responseTimeout = defaultResponseTimeout
	}
	return o, nil
}

// newLogger derives the logger of a transport of the given kind.
// Each transport is tagged with a random identifier.
func (o *options) newLogger(kind string) zerolog.Logger {
	l := zerolog.Nop()
	if o.logger != nil {
		l = *o.logger
	}
	return l.With().
		Str("transport", kind).
		Str("transport_id", uuid.New().String()).
		Logger()
}

// WithPort selects the TCP port a master connects to and a slave listens on.
func WithPort(port uint16) Option {
	return func(o *options) error {
		if port == 0 {
			return errors.New("zero port")
		}
		if o.port != 0 {
			return errors.New("duplicate specification of port")
		}
		o.port = port
		return nil
	}
}

// WithBindAddress selects the IP address a TCP slave listens on.
func WithBindAddress(addr string) Option {
	return func(o *options) error {
		if net.ParseIP(addr) == nil {
			return fmt.Errorf("invalid bind address '%s'", addr)
		}
		if o.bindAddress != "" {
			return errors.New("duplicate specification of bind address")
		}
		o.bindAddress = addr
		return nil
	}
}

// WithListenAddress instructs a TCP slave to listen on the specified local
// TCP address. It takes precedence over WithPort and WithBindAddress for the
// listener.
func WithListenAddress(addr string) Option {
	return func(o *options) error {
		if o.listenAddress != "" {
			return errors.New("duplicate specification of listen address")
		}
		if addr == "" {
			return errors.New("empty listen address")
		}
		o.listenAddress = addr
		return nil
	}
}

// WithConnectTimeout selects the TCP connect timeout of a master.
func WithConnectTimeout(timeout time.Duration) Option {
	return func(o *options) error {
		if timeout <= 0 {
			return fmt.Errorf("timeout must be positive, got %s", timeout)
		}
		if o.connectTimeout != 0 {
			return errors.New("WithConnectTimeout specified multiple times")
		}
		o.connectTimeout = timeout
		return nil
	}
}

// WithReadTimeout selects the TCP read timeout for a single frame.
func WithReadTimeout(timeout time.Duration) Option {
	return func(o *options) error {
		if timeout <= 0 {
			return fmt.Errorf("timeout must be positive, got %s", timeout)
		}
		if o.readTimeout != 0 {
			return errors.New("WithReadTimeout specified multiple times")
		}
		o.readTimeout = timeout
		return nil
	}
}

// WithResponseTimeout selects how long an RTU master waits for the first byte
// of a response before giving up with ErrNoResponse.
func WithResponseTimeout(timeout time.Duration) Option {
	return func(o *options) error {
		if timeout <= 0 {
			return fmt.Errorf("timeout must be positive, got %s", timeout)
		}
		if o.responseTimeout != 0 {
			return errors.New("WithResponseTimeout specified multiple times")
		}
		o.responseTimeout = timeout
		return nil
	}
}

// WithFrameGap overrides the minimum RTU line silence before a frame is
// transmitted. By default, it is derived from the baud rate.
func WithFrameGap(gap time.Duration) Option {
	return func(o *options) error {
		if gap <= 0 {
			return fmt.Errorf("frame gap must be positive, got %s", gap)
		}
		if o.frameGap != 0 {
			return errors.New("WithFrameGap specified multiple times")
		}
		o.frameGap = gap
		return nil
	}
}

// WithAcceptBroadcast determines whether an RTU slave passes broadcast
// requests to the caller. Broadcasts are never answered.
func WithAcceptBroadcast(accept bool) Option {
	return func(o *options) error {
		o.acceptBroadcast = accept
		return nil
	}
}

// WithLogger selects the logger of a transport. Without this option,
// transports do not log.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) error {
		if o.logger != nil {
			return errors.New("WithLogger specified multiple times")
		}
		o.logger = &logger
		return nil
	}
}
