package server

import (
	"context"
	"net"
	"net/http"
	"runtime/debug"

	"github.com/google/uuid"
	"github.com/marmos91/keystone/internal/logger"
	"github.com/marmos91/keystone/internal/telemetry"
	"github.com/marmos91/keystone/pkg/handler"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// MaxRequestIDLength caps an incoming request id. Longer ids are replaced.
const MaxRequestIDLength = 128

// Service answers the requests of one connection. The protocol calls it
// parked, without holding a worker slot.
type Service interface {
	Call(ctx context.Context, req *http.Request) (*http.Response, error)
}

// ServiceFactory turns a shared handler factory into per-connection services.
type ServiceFactory struct {
	nh handler.NewHandler
}

// NewServiceFactory wraps nh. nh is shared by every connection and must be
// safe for concurrent use.
func NewServiceFactory(nh handler.NewHandler) *ServiceFactory {
	return &ServiceFactory{nh: nh}
}

// Connect builds the service for a connection from peer. It does no I/O.
func (f *ServiceFactory) Connect(peer net.Addr) *ConnService {
	return &ConnService{nh: f.nh, peer: peer}
}

// ConnService is the per-connection service. It is used by exactly one
// protocol task and therefore never called concurrently.
type ConnService struct {
	nh   handler.NewHandler
	peer net.Addr
}

// Peer returns the remote address the connection was accepted from.
func (s *ConnService) Peer() net.Addr {
	return s.peer
}

// Call asks the factory for a handler and runs it. Handler failures never
// escape: a factory error or a panic becomes a 500, a handler error becomes
// the status it carries (see handler.StatusOf). The returned error is
// always nil.
func (s *ConnService) Call(ctx context.Context, req *http.Request) (*http.Response, error) {
	id := req.Header.Get(RequestIDHeader)
	if !validRequestID(id) {
		id = uuid.NewString()
	}

	ctx = handler.WithRequestID(ctx, id)
	if s.peer != nil {
		ctx = handler.WithClientAddr(ctx, s.peer)
		req.RemoteAddr = s.peer.String()
	}
	lc := logger.FromContext(ctx).WithRequest(id, req.Method, req.URL.Path)
	ctx = logger.WithContext(ctx, lc.WithTrace(telemetry.TraceID(ctx), telemetry.SpanID(ctx)))
	telemetry.SetAttributes(ctx, telemetry.RequestID(id))

	resp := s.dispatch(ctx, req)
	if resp.Header == nil {
		resp.Header = make(http.Header)
	}
	if resp.Header.Get(RequestIDHeader) == "" {
		resp.Header.Set(RequestIDHeader, id)
	}
	if resp.Request == nil {
		resp.Request = req
	}
	return resp, nil
}

func (s *ConnService) dispatch(ctx context.Context, req *http.Request) (resp *http.Response) {
	h, err := s.nh.NewHandler()
	if err != nil {
		logger.ErrorCtx(ctx, "Handler factory failed", logger.Err(err))
		telemetry.RecordError(ctx, err)
		return handler.StatusResponse(req, http.StatusInternalServerError)
	}

	defer func() {
		if r := recover(); r != nil {
			logger.ErrorCtx(ctx, "Panic in handler",
				logger.KeyPanic, r,
				logger.KeyStack, string(debug.Stack()))
			resp = handler.StatusResponse(req, http.StatusInternalServerError)
		}
	}()

	resp, err = h.Handle(ctx, req)
	if err != nil {
		status := handler.StatusOf(err)
		if status >= http.StatusInternalServerError {
			logger.WarnCtx(ctx, "Handler failed", logger.Status(status), logger.Err(err))
			telemetry.RecordError(ctx, err)
		} else {
			logger.DebugCtx(ctx, "Handler rejected request", logger.Status(status), logger.Err(err))
		}
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		return handler.StatusResponse(req, status)
	}
	if resp == nil {
		logger.ErrorCtx(ctx, "Handler returned no response")
		return handler.StatusResponse(req, http.StatusInternalServerError)
	}
	return resp
}

// validRequestID accepts non-empty ids of visible ASCII up to
// MaxRequestIDLength bytes. Anything else goes into logs and spans as a
// fresh uuid instead.
func validRequestID(id string) bool {
	if id == "" || len(id) > MaxRequestIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < '!' || id[i] > '~' {
			return false
		}
	}
	return true
}
