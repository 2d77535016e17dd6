// SPDX-License-Identifier: GPL-3.0-or-later

package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/bassosimone/safeconn"
	"go.uber.org/multierr"
)

// Accept retry backoff bounds.
const (
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)

// Server serves one [Application] over HTTP/1.1, one connection at a time.
//
// Construct using [NewServer]. Several servers with different applications
// can coexist in the same process: a Server holds no global state.
type Server struct {
	// App is the application to serve.
	App Application

	// Config contains the common configuration.
	Config *Config

	// Logger is the [SLogger] to use.
	Logger SLogger
}

// NewServer returns a new [*Server] serving app.
func NewServer(cfg *Config, app Application, logger SLogger) *Server {
	return &Server{App: app, Config: cfg, Logger: logger}
}

// ListenAndServe binds address (e.g., ":8080") and serves until ctx is done.
//
// A failure to bind is returned immediately as [*BindError]. Otherwise, the
// return value is the same as [*Server.Serve].
func (s *Server) ListenAndServe(ctx context.Context, address string) error {
	listener, err := NewListenFunc(s.Config, s.Logger).Call(ctx, address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listener)
}

// Serve accepts connections from listener and handles them sequentially:
// the next connection is accepted only after the current one is closed.
//
// Failures of individual requests are logged and never stop the loop.
// Serve returns when ctx is done (returning ctx.Err()) or when the listener
// fails permanently. In both cases, the listener is closed.
func (s *Server) Serve(ctx context.Context, listener net.Listener) (err error) {
	stop := watchListener(ctx, listener)
	defer func() {
		stop()
		if closeErr := listener.Close(); !errors.Is(closeErr, net.ErrClosed) {
			err = multierr.Append(err, closeErr)
		}
	}()

	host, port, _ := net.SplitHostPort(listener.Addr().String())
	serverName, _ := NewServerNameFunc(s.Config, s.Logger).Call(ctx, host)
	s.Logger.Info(
		"serveStart",
		slog.String("localAddr", listener.Addr().String()),
		slog.String("serverName", serverName),
		slog.Time("t", s.Config.TimeNow()),
	)

	acceptOp := NewAcceptFunc(s.Config, s.Logger)
	backoff := time.Duration(0)
	for {
		conn, err := acceptOp.Call(ctx, listener)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			backoff = min(max(2*backoff, minAcceptBackoff), maxAcceptBackoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			continue
		}
		backoff = 0
		_ = s.handle(ctx, conn, serverName, port)
	}
}

// handle serves a single connection and closes it exactly once.
//
// The returned error is nil for served and empty requests; otherwise it
// is the error that made the gateway drop the connection. The error has
// already been logged, so callers may ignore it.
func (s *Server) handle(ctx context.Context, conn net.Conn, serverName, serverPort string) error {
	logger := newSpanLogger(s.Logger, NewSpanID())

	// Note: ObserveConnFunc and CancelWatchFunc never fail.
	connOp := Compose2(NewObserveConnFunc(s.Config, logger), NewCancelWatchFunc())
	conn, _ = connOp.Call(ctx, conn)
	defer conn.Close()

	requestOp := Compose4(
		NewReadRequestFunc(s.Config, logger),
		NewParseRequestFunc(s.Config, logger, serverName, serverPort),
		NewInvokeFunc(s.Config, logger, s.App),
		NewWriteResponseFunc(s.Config, logger),
	)

	t0 := s.Config.TimeNow()
	laddr, raddr := safeconn.LocalAddr(conn), safeconn.RemoteAddr(conn)
	logger.Info(
		"handleRequestStart",
		slog.String("localAddr", laddr),
		slog.String("remoteAddr", raddr),
		slog.Time("t", t0),
	)

	_, err := requestOp.Call(ctx, conn)
	if errors.Is(err, ErrEmptyRequest) {
		logger.Info(
			"emptyRequest",
			slog.String("localAddr", laddr),
			slog.String("remoteAddr", raddr),
			slog.Time("t", s.Config.TimeNow()),
		)
		err = nil
	}

	logger.Info(
		"handleRequestDone",
		slog.Any("err", err),
		slog.String("errClass", s.Config.ErrClassifier.Classify(err)),
		slog.String("localAddr", laddr),
		slog.String("remoteAddr", raddr),
		slog.Time("t0", t0),
		slog.Time("t", s.Config.TimeNow()),
	)
	return err
}
