package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"runtime/debug"
	"slices"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/marmos91/keystone/internal/logger"
	"github.com/marmos91/keystone/internal/telemetry"
	"github.com/marmos91/keystone/pkg/bufpool"
	"github.com/marmos91/keystone/pkg/executor"
	"github.com/marmos91/keystone/pkg/handler"
)

var (
	errServerClosing  = errors.New("server is shutting down")
	errHeaderTooLarge = errors.New("request header too large")
)

// headerSlack covers what bufio may read past the header before the limit
// applies.
const headerSlack = 4096

// rstAvoidanceDelay is how long a rejected connection keeps reading after
// its response, so unread input does not turn the close into a reset that
// destroys the response in flight.
const rstAvoidanceDelay = 500 * time.Millisecond

// connection is the state of one served socket.
type connection struct {
	p        *Protocol
	conn     net.Conn
	svc      Service
	tr       *tracker
	lr       *io.LimitedReader
	br       *bufio.Reader
	bw       *bufio.Writer
	idle     atomic.Bool
	requests int
}

func (p *Protocol) serve(ctx context.Context, conn net.Conn, svc Service, tr *tracker) (err error) {
	c := &connection{p: p, conn: conn, svc: svc, tr: tr}
	c.lr = &io.LimitedReader{R: conn, N: math.MaxInt64}
	c.br = bufpool.GetReader(c.lr, p.cfg.BufferSize)
	c.bw = bufpool.GetWriter(conn, p.cfg.BufferSize)

	peer := addrString(conn.RemoteAddr())
	lc := logger.NewLogContext(peer)
	lc.Worker = executor.WorkerName(ctx)
	ctx, span := telemetry.StartConnectionSpan(ctx, peer, addrString(conn.LocalAddr()))
	ctx = logger.WithContext(ctx, lc.WithTrace(telemetry.TraceID(ctx), telemetry.SpanID(ctx)))

	if tr != nil {
		tr.add(c)
	}
	if p.metrics != nil {
		p.metrics.RecordConnectionStart()
	}
	logger.DebugCtx(ctx, "Connection opened")

	defer func() {
		if r := recover(); r != nil {
			logger.ErrorCtx(ctx, "Panic in connection handler",
				logger.KeyPanic, r,
				logger.KeyStack, string(debug.Stack()))
			err = fmt.Errorf("panic serving %s: %v", peer, r)
		}
		if tr != nil {
			tr.remove(c)
		}
		_ = conn.Close()
		bufpool.PutReader(c.br)
		bufpool.PutWriter(c.bw)

		span.SetAttributes(telemetry.Requests(c.requests))
		telemetry.RecordError(ctx, err)
		span.End()
		if p.metrics != nil {
			p.metrics.RecordConnectionEnd(c.requests, time.Since(lc.StartTime))
		}
		logger.DebugCtx(ctx, "Connection closed",
			logger.KeyRequests, c.requests,
			logger.DurationMs(lc.DurationMs()),
			logger.Err(err))
	}()

	for {
		req, err := c.readRequest(ctx)
		if err != nil {
			return c.handleReadError(ctx, err)
		}
		keepAlive, err := c.serveRequest(ctx, req)
		if err != nil || !keepAlive {
			return err
		}
	}
}

// readRequest waits for the next request without holding a worker, then
// decodes its header under the read timeout and the header size limit.
func (c *connection) readRequest(ctx context.Context) (*http.Request, error) {
	cfg := c.p.cfg
	wait := cfg.IdleTimeout
	if c.requests == 0 {
		wait = cfg.ReadTimeout
	}

	// Deadline first, then idle, then the stop check: a concurrent
	// shutdown either sees this connection idle or is seen by it.
	setDeadline(c.conn.SetReadDeadline, wait)
	c.idle.Store(true)
	if c.tr.stopping() && c.br.Buffered() == 0 {
		return nil, errServerClosing
	}
	err := executor.Park(ctx, func() error {
		_, err := c.br.Peek(1)
		return err
	})
	c.idle.Store(false)
	if err != nil {
		return nil, err
	}

	setDeadline(c.conn.SetReadDeadline, cfg.ReadTimeout)
	c.lr.N = int64(cfg.MaxHeaderBytes) + headerSlack
	var req *http.Request
	err = executor.Park(ctx, func() (err error) {
		req, err = http.ReadRequest(c.br)
		return err
	})
	if err != nil {
		if c.lr.N <= 0 {
			return nil, errHeaderTooLarge
		}
		return nil, err
	}
	c.lr.N = math.MaxInt64
	return req, nil
}

func (c *connection) handleReadError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, errServerClosing):
		logger.DebugCtx(ctx, "Closing idle connection for shutdown")
		return nil
	case errors.Is(err, errHeaderTooLarge):
		c.reject(ctx, http.StatusRequestHeaderFieldsTooLarge)
		return fmt.Errorf("request from %s: %w", addrString(c.conn.RemoteAddr()), err)
	case isTimeout(err):
		logger.DebugCtx(ctx, "Connection read timed out", logger.Err(err))
		return nil
	case isPeerGone(err):
		return nil
	default:
		c.reject(ctx, http.StatusBadRequest)
		return fmt.Errorf("malformed request from %s: %w", addrString(c.conn.RemoteAddr()), err)
	}
}

// reject answers an undecodable request and leaves the connection to close.
func (c *connection) reject(ctx context.Context, status int) {
	if c.p.metrics != nil {
		c.p.metrics.RecordDecodeError()
	}
	resp := handler.StatusResponse(nil, status)
	resp.Close = true
	setDeadline(c.conn.SetWriteDeadline, c.p.cfg.WriteTimeout)
	if err := executor.Park(ctx, func() error { return c.writeResponse(resp) }); err != nil {
		logger.DebugCtx(ctx, "Failed to send rejection", logger.Status(status), logger.Err(err))
		return
	}
	c.closeWriteAndWait(ctx)
}

func (c *connection) closeWriteAndWait(ctx context.Context) {
	if cw, ok := c.conn.(interface{ CloseWrite() error }); ok {
		_ = cw.CloseWrite()
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(rstAvoidanceDelay))
	_ = executor.Park(ctx, func() error {
		_, err := io.Copy(io.Discard, c.conn)
		return err
	})
}

// serveRequest runs one request through the service and writes the
// response. It reports whether the connection can carry another request.
func (c *connection) serveRequest(ctx context.Context, req *http.Request) (bool, error) {
	start := time.Now()
	c.requests++
	cfg := c.p.cfg

	ctx, span := telemetry.StartRequestSpan(ctx, req)
	req = req.WithContext(ctx)

	if req.ProtoAtLeast(1, 1) && req.Header.Get("Expect") == "100-continue" {
		setDeadline(c.conn.SetWriteDeadline, cfg.WriteTimeout)
		if err := executor.Park(ctx, c.writeContinue); err != nil {
			telemetry.EndRequestSpan(span, 0)
			return false, c.writeError(ctx, err)
		}
	}

	// The handler runs parked: reading a slow body or waiting on other work
	// must not pin a worker.
	var resp *http.Response
	err := executor.Park(ctx, func() (err error) {
		resp, err = c.svc.Call(ctx, req)
		return err
	})
	if err != nil || resp == nil {
		logger.ErrorCtx(ctx, "Service call failed", logger.Method(req.Method), logger.Path(req.URL.Path), logger.Err(err))
		resp = handler.StatusResponse(req, http.StatusInternalServerError)
		resp.Close = true
	}
	if resp.Header == nil {
		resp.Header = make(http.Header)
	}
	defer func() {
		if resp.Body != nil {
			_ = resp.Body.Close()
		}
	}()

	keepAlive := !cfg.DisableKeepAlive && !req.Close && !resp.Close && !c.tr.stopping()
	if resp.ContentLength < 0 && !slices.Contains(resp.TransferEncoding, "chunked") {
		keepAlive = false
	}
	if keepAlive {
		keepAlive = c.drainBody(ctx, req)
	}

	resp.ProtoMajor, resp.ProtoMinor, resp.Proto = 1, 1, "HTTP/1.1"
	resp.Request = req
	resp.Close = !keepAlive
	if keepAlive && !req.ProtoAtLeast(1, 1) {
		resp.Header.Set("Connection", "keep-alive")
	}

	setDeadline(c.conn.SetWriteDeadline, cfg.WriteTimeout)
	err = executor.Park(ctx, func() error { return c.writeResponse(resp) })

	if c.p.metrics != nil {
		c.p.metrics.RecordRequest(req.Method, resp.StatusCode, time.Since(start))
	}
	telemetry.EndRequestSpan(span, resp.StatusCode)
	logger.DebugCtx(ctx, "Request served",
		logger.Method(req.Method),
		logger.Path(req.URL.Path),
		logger.Status(resp.StatusCode),
		logger.DurationMs(logger.Duration(start)))

	if err != nil {
		return false, c.writeError(ctx, err)
	}
	return keepAlive, nil
}

// drainBody discards what the handler left unread so the next request
// starts at a message boundary. Leftovers larger than MaxBodyDrain are not
// worth reading; the connection closes instead.
func (c *connection) drainBody(ctx context.Context, req *http.Request) bool {
	if req.Body == nil || req.Body == http.NoBody {
		return true
	}
	limit := c.p.cfg.MaxBodyDrain
	setDeadline(c.conn.SetReadDeadline, c.p.cfg.ReadTimeout)

	var n int64
	err := executor.Park(ctx, func() (err error) {
		n, err = io.CopyN(io.Discard, req.Body, limit+1)
		return err
	})
	return errors.Is(err, io.EOF) && n <= limit
}

func (c *connection) writeContinue() error {
	if _, err := c.bw.WriteString("HTTP/1.1 100 Continue\r\n\r\n"); err != nil {
		return err
	}
	return c.bw.Flush()
}

func (c *connection) writeResponse(resp *http.Response) error {
	if err := resp.Write(c.bw); err != nil {
		return err
	}
	return c.bw.Flush()
}

func (c *connection) writeError(ctx context.Context, err error) error {
	if isPeerGone(err) || isTimeout(err) {
		logger.DebugCtx(ctx, "Peer went away during write", logger.Err(err))
		return nil
	}
	return fmt.Errorf("write response to %s: %w", addrString(c.conn.RemoteAddr()), err)
}

// tracker follows the open connections of a server so shutdown can close
// idle ones immediately, force-close the rest after a timeout, and wait for
// them all to finish.
type tracker struct {
	mu    sync.Mutex
	conns map[*connection]struct{}
	wg    sync.WaitGroup
	stop  chan struct{}
	once  sync.Once
}

func newTracker() *tracker {
	return &tracker{conns: make(map[*connection]struct{}), stop: make(chan struct{})}
}

// reserve counts a connection before its task is spawned, so wait cannot
// miss a task that has not started yet. Every reserve is matched by remove
// or release.
func (t *tracker) reserve() {
	t.wg.Add(1)
}

func (t *tracker) release() {
	t.wg.Done()
}

func (t *tracker) add(c *connection) {
	t.mu.Lock()
	t.conns[c] = struct{}{}
	t.mu.Unlock()
}

func (t *tracker) remove(c *connection) {
	t.mu.Lock()
	delete(t.conns, c)
	t.mu.Unlock()
	t.wg.Done()
}

func (t *tracker) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.conns)
}

func (t *tracker) wait() {
	t.wg.Wait()
}

// stopping is nil-safe: connections served outside a Server never stop early.
func (t *tracker) stopping() bool {
	if t == nil {
		return false
	}
	select {
	case <-t.stop:
		return true
	default:
		return false
	}
}

// shutdown stops keep-alive and wakes connections waiting for a request.
// Connections busy with a request finish it and close afterwards.
func (t *tracker) shutdown() {
	t.once.Do(func() { close(t.stop) })

	t.mu.Lock()
	defer t.mu.Unlock()
	for c := range t.conns {
		if c.idle.Load() {
			_ = c.conn.SetReadDeadline(time.Now())
		}
	}
}

// forceClose closes every tracked socket and returns how many there were.
func (t *tracker) forceClose() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	for c := range t.conns {
		_ = c.conn.Close()
	}
	return len(t.conns)
}

func setDeadline(set func(time.Time) error, d time.Duration) {
	if d > 0 {
		_ = set(time.Now().Add(d))
		return
	}
	_ = set(time.Time{})
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func isPeerGone(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}

func addrString(a net.Addr) string {
	if a == nil {
		return ""
	}
	return a.String()
}
