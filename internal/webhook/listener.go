// Package webhook receives JSON event bodies over plain HTTP/1.1 framing on a
// raw TCP listener and hands them to a callback.
package webhook

import (
	"bufio"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/mauv0809/rating-ladder/internal/metrics"
	"golang.org/x/sync/semaphore"
)

// Listener accepts POST requests on a single path. Each connection carries
// exactly one request and is closed after the response.
type Listener struct {
	cfg     Config
	metrics metrics.Metrics

	cbMu     sync.RWMutex
	callback Callback

	mu         sync.Mutex
	ln         net.Listener
	sem        *semaphore.Weighted
	acceptDone chan struct{}
	conns      sync.WaitGroup
}

// Option customizes a Listener.
type Option func(*Listener)

// WithMetrics records one response counter per status code.
func WithMetrics(m metrics.Metrics) Option {
	return func(l *Listener) {
		l.metrics = m
	}
}

// New configures a listener without touching the network.
func New(cfg Config, opts ...Option) *Listener {
	l := &Listener{cfg: cfg.withDefaults()}
	for _, opt := range opts {
		opt(l)
	}
	if l.metrics == nil {
		l.metrics = metrics.NewMock()
	}
	return l
}

// SetCallback registers the body handler. It may be called while running.
func (l *Listener) SetCallback(cb Callback) {
	l.cbMu.Lock()
	defer l.cbMu.Unlock()
	l.callback = cb
}

// Start binds the socket and launches the accept loop. Bind errors are
// returned synchronously.
func (l *Listener) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln != nil {
		return ErrAlreadyRunning
	}

	addr := net.JoinHostPort(l.cfg.BindAddress, strconv.Itoa(l.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	l.ln = ln
	l.sem = semaphore.NewWeighted(int64(l.cfg.Backlog))
	l.acceptDone = make(chan struct{})
	go l.acceptLoop(ln, l.sem, l.acceptDone)

	log.Info("Webhook listener started", "addr", ln.Addr().String(), "path", l.cfg.Path,
		"backlog", l.cfg.Backlog, "max_body", l.cfg.MaxBodySize, "secret", l.cfg.SharedSecret != "")
	return nil
}

// Stop closes the socket and waits for the accept loop and in-flight
// requests to finish. It is a no-op when not running.
func (l *Listener) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln == nil {
		return
	}

	if err := l.ln.Close(); err != nil {
		log.Warn("Failed to close webhook listener", "error", err)
	}
	<-l.acceptDone
	l.conns.Wait()
	l.ln = nil
	log.Info("Webhook listener stopped")
}

// Running reports whether Start succeeded and Stop has not been called since.
func (l *Listener) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ln != nil
}

// Addr returns the bound address, or nil when not running.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

func (l *Listener) acceptLoop(ln net.Listener, sem *semaphore.Weighted, done chan struct{}) {
	defer close(done)
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Warn("Failed to accept webhook connection", "error", err)
			time.Sleep(10 * time.Millisecond)
			continue
		}

		l.conns.Add(1)
		if !sem.TryAcquire(1) {
			go func() {
				defer l.conns.Done()
				l.reject(conn, http.StatusServiceUnavailable)
			}()
			continue
		}
		go func() {
			defer l.conns.Done()
			defer sem.Release(1)
			l.serve(conn)
		}()
	}
}

func (l *Listener) reject(conn net.Conn, status int) {
	defer lingerClose(conn)
	_ = conn.SetDeadline(time.Now().Add(time.Second))
	log.Warn("Too many concurrent webhook requests", "remote", conn.RemoteAddr().String())
	l.respond(conn, "", status, nil)
}

func (l *Listener) serve(conn net.Conn) {
	defer lingerClose(conn)
	id := uuid.NewString()
	logger := log.With("request_id", id, "remote", conn.RemoteAddr().String())

	if err := conn.SetDeadline(time.Now().Add(l.cfg.Timeout)); err != nil {
		logger.Warn("Failed to set connection deadline", "error", err)
	}

	status, extra := l.handle(conn, logger)
	if status == 0 {
		return
	}
	if status == http.StatusRequestTimeout {
		_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
	}
	l.respond(conn, id, status, extra)
}

// handle reads and dispatches one request. A zero status means the peer went
// away before sending anything and no response is written.
func (l *Listener) handle(conn net.Conn, logger *log.Logger) (int, map[string]string) {
	limit := &io.LimitedReader{R: conn, N: maxHeaderBytes}
	br := bufio.NewReader(limit)

	req, err := readHead(br, limit)
	switch {
	case errors.Is(err, io.EOF):
		return 0, nil
	case errors.Is(err, errHeaderTooLarge):
		logger.Warn("Webhook request header too large")
		return http.StatusRequestHeaderFieldsTooLarge, nil
	case isTimeout(err):
		logger.Warn("Timed out reading webhook request")
		return http.StatusRequestTimeout, nil
	case err != nil:
		logger.Warn("Malformed webhook request", "error", err)
		return http.StatusBadRequest, nil
	}

	if req.path != l.cfg.Path {
		logger.Debug("Unknown webhook path", "path", req.path)
		return http.StatusNotFound, nil
	}
	if req.method != http.MethodPost {
		return http.StatusMethodNotAllowed, map[string]string{"Allow": http.MethodPost}
	}
	if l.cfg.SharedSecret != "" {
		token := req.header.Get(SecretHeader)
		if token == "" {
			logger.Warn("Webhook request without shared secret")
			return http.StatusUnauthorized, nil
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(l.cfg.SharedSecret)) != 1 {
			logger.Warn("Webhook request with wrong shared secret")
			return http.StatusForbidden, nil
		}
	}

	n, err := req.contentLength()
	if err != nil {
		logger.Warn("Invalid Content-Length", "error", err)
		return http.StatusBadRequest, nil
	}
	if n < 0 {
		return http.StatusLengthRequired, nil
	}
	if n > l.cfg.MaxBodySize {
		logger.Warn("Webhook body too large", "length", n, "max", l.cfg.MaxBodySize)
		return http.StatusRequestEntityTooLarge, nil
	}
	if !req.jsonContent() {
		return http.StatusUnsupportedMediaType, nil
	}

	limit.N = n
	body := make([]byte, n)
	if _, err := io.ReadFull(br, body); err != nil {
		if isTimeout(err) {
			logger.Warn("Timed out reading webhook body", "length", n)
			return http.StatusRequestTimeout, nil
		}
		logger.Warn("Short webhook body", "length", n, "error", err)
		return http.StatusBadRequest, nil
	}

	l.cbMu.RLock()
	cb := l.callback
	l.cbMu.RUnlock()
	if cb == nil {
		logger.Error("No webhook callback registered")
		return http.StatusServiceUnavailable, nil
	}

	ok, err := invoke(cb, body)
	if err != nil {
		logger.Error("Webhook callback panicked", "error", err)
		return http.StatusInternalServerError, nil
	}
	if !ok {
		return http.StatusUnprocessableEntity, nil
	}
	return http.StatusOK, nil
}

func (l *Listener) respond(conn net.Conn, id string, status int, extra map[string]string) {
	l.metrics.IncWebhookResponses(status)
	if err := writeResponse(conn, status, extra); err != nil {
		log.Warn("Failed to write webhook response", "request_id", id, "status", status, "error", err)
		return
	}
	log.Debug("Webhook response sent", "request_id", id, "status", status)
}

func invoke(cb Callback, body []byte) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("callback panic: %v", r)
		}
	}()
	return cb(body), nil
}

// lingerClose half-closes the connection and discards unread input so the
// peer reads the response before the socket is torn down.
func lingerClose(conn net.Conn) {
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.CloseWrite()
	}
	_ = conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
	_, _ = io.Copy(io.Discard, io.LimitReader(conn, 256<<10))
	conn.Close()
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
