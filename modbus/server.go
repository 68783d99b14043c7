package modbus

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog"
)

// Handler is the handler function type to handle Modbus requests.
// The handler should return the response on success. On error, the returned
// error should normally be an ExceptionCode. If it is not, the server
// responds with ExceptionServerDeviceFailure. If both response and error are
// nil, the request is not answered.
type Handler func(ctx context.Context, req Request) (Response, error)

// Server dispatches requests arriving on a slave transport to handlers.
type Server struct {
	// mx protects direct access to the server fields.
	mx sync.RWMutex

	// handlers maps function codes to their handler.
	handlers map[FunctionCode]Handler

	// fallback is used for function codes not in handlers.
	fallback Handler

	log zerolog.Logger
}

// ServerOption describes an option to be passed to NewServer.
type ServerOption func(*Server)

// WithServerLogger selects the logger of a server.
func WithServerLogger(logger zerolog.Logger) ServerOption {
	return func(s *Server) {
		s.log = logger
	}
}

// defaultHandler is the initial fallback handler. It simply returns
// ExceptionIllegalFunction.
func defaultHandler(context.Context, Request) (Response, error) {
	return nil, ExceptionIllegalFunction
}

// NewServer returns a new server.
// Initially, the response to all incoming requests is
// ExceptionIllegalFunction.
func NewServer(opts ...ServerOption) *Server {
	s := &Server{
		handlers: make(map[FunctionCode]Handler),
		fallback: defaultHandler,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetFallbackHandler sets the handler for requests without a specific
// handler. If h is nil, the default handler returning
// ExceptionIllegalFunction is restored.
func (s *Server) SetFallbackHandler(h Handler) {
	if h == nil {
		h = defaultHandler
	}
	s.mx.Lock()
	defer s.mx.Unlock()
	s.fallback = h
}

// SetHandler sets h as handler for the specified functions. If h is nil,
// existing handlers for the functions are deleted instead.
func (s *Server) SetHandler(h Handler, functions ...FunctionCode) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	if h == nil {
		for _, fc := range functions {
			delete(s.handlers, fc)
		}
		return nil
	}
	// Check for collisions and illegal values first, and then add the new
	// handlers.
	for _, fc := range functions {
		if !fc.IsSupported() {
			return fmt.Errorf("function code %d not supported", fc)
		}
		if s.handlers[fc] != nil {
			return fmt.Errorf("handler for function code %d already present", fc)
		}
	}
	for _, fc := range functions {
		s.handlers[fc] = h
	}
	return nil
}

// Handle passes req to the matching handler.
func (s *Server) Handle(ctx context.Context, req Request) (Response, error) {
	s.mx.RLock()
	h := s.handlers[req.FunctionCode()]
	if h == nil {
		h = s.fallback
	}
	s.mx.RUnlock()
	return h(ctx, req)
}

// ServeOne serves a single request arriving on t, which must be in slave
// mode. Undecodable requests are answered with an exception.
func (s *Server) ServeOne(ctx context.Context, t Transport) error {
	req, stream, err := ServeNext(t)
	if err != nil {
		var de *DispatchError
		if !errors.As(err, &de) || stream == nil {
			return err
		}
		s.log.Warn().Err(err).Msg("undecodable request")
		if de.Function == 0 || de.Function.IsError() {
			stream.Close()
			return nil
		}
		return ReplyException(t, stream, de.Function, de.Exception())
	}
	fc := req.FunctionCode()
	rsp, err := s.Handle(ctx, req)
	if err != nil {
		var code ExceptionCode
		if !errors.As(err, &code) || exceptionStrings[code] == "" {
			s.log.Error().Err(err).Stringer("function", fc).
				Msg("handler failed")
			code = ExceptionServerDeviceFailure
		}
		return ReplyException(t, stream, fc, code)
	}
	if rsp == nil {
		return stream.Close()
	}
	pdu, err := rsp.Encode()
	if err != nil {
		s.log.Error().Err(err).Stringer("function", fc).
			Msg("handler returned invalid response")
		return ReplyException(t, stream, fc, ExceptionServerDeviceFailure)
	}
	defer stream.Close()
	return t.WriteResponsePDU(stream, pdu)
}

// Serve serves requests arriving on t until ctx is done or t fails
// permanently. Errors of single requests are logged. Close the transport to
// stop a Serve blocked waiting for a request.
func (s *Server) Serve(ctx context.Context, t Transport) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := s.ServeOne(ctx, t)
		if err == nil {
			continue
		}
		if isPermanent(err) {
			return err
		}
		s.log.Warn().Err(err).Msg("request failed")
	}
}

// isPermanent determines whether err ends serving a transport.
func isPermanent(err error) bool {
	var se *SerialError
	return errors.Is(err, net.ErrClosed) || errors.Is(err, ErrInvalidValue) ||
		errors.As(err, &se)
}
