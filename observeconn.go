//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/bassosimone/nop/blob/main/observeconn.go
//

package gateway

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/bassosimone/safeconn"
)

// NewObserveConnFunc returns a new [*ObserveConnFunc].
//
// The cfg argument contains the common configuration for gateway operations.
//
// The logger argument is the [SLogger] to use for structured logging.
func NewObserveConnFunc(cfg *Config, logger SLogger) *ObserveConnFunc {
	return &ObserveConnFunc{
		ErrClassifier: cfg.ErrClassifier,
		Logger:        logger,
		TimeNow:       cfg.TimeNow,
	}
}

// ObserveConnFunc wraps an accepted [net.Conn] so that closing it happens
// at most once and every I/O operation is logged.
//
// The close-once property is what lets the [*Server] guarantee that each
// accepted connection is closed exactly once: the first Close reaches the
// underlying connection, later calls return [net.ErrClosed].
//
// All fields are safe to modify after construction but before first use.
// Fields must not be mutated concurrently with calls to [Call].
type ObserveConnFunc struct {
	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewObserveConnFunc] from [Config.ErrClassifier].
	ErrClassifier ErrClassifier

	// Logger is the [SLogger] to use.
	//
	// Set by [NewObserveConnFunc] to the user-provided logger.
	Logger SLogger

	// TimeNow is the function to get the current time.
	//
	// Set by [NewObserveConnFunc] from [Config.TimeNow].
	TimeNow func() time.Time
}

var _ Func[net.Conn, net.Conn] = &ObserveConnFunc{}

// Call wraps conn. It never fails.
func (op *ObserveConnFunc) Call(ctx context.Context, conn net.Conn) (net.Conn, error) {
	observed := &observedConn{
		conn:  conn,
		endpt: newConnEndpoints(conn),
		op:    op,
	}
	return observed, nil
}

// connEndpoints caches the addresses of a connection for logging.
type connEndpoints struct {
	laddr    string
	protocol string
	raddr    string
}

func newConnEndpoints(conn net.Conn) connEndpoints {
	return connEndpoints{
		laddr:    safeconn.LocalAddr(conn),
		protocol: safeconn.Network(conn),
		raddr:    safeconn.RemoteAddr(conn),
	}
}

// attrs returns the attributes shared by all events about this connection
// followed by the given extra attributes.
func (e connEndpoints) attrs(extra ...any) []any {
	return append([]any{
		slog.String("localAddr", e.laddr),
		slog.String("protocol", e.protocol),
		slog.String("remoteAddr", e.raddr),
	}, extra...)
}

// observedConn is the [net.Conn] returned by [*ObserveConnFunc].
type observedConn struct {
	closeonce sync.Once
	conn      net.Conn
	endpt     connEndpoints
	op        *ObserveConnFunc
}

// Close implements [net.Conn].
//
// Subsequent calls return [net.ErrClosed] without touching the
// underlying connection.
func (c *observedConn) Close() (err error) {
	err = net.ErrClosed
	c.closeonce.Do(func() {
		t0 := c.op.TimeNow()
		c.op.Logger.Info("closeStart", c.endpt.attrs(slog.Time("t", t0))...)

		err = c.conn.Close()

		c.op.Logger.Info("closeDone", c.endpt.attrs(
			slog.Any("err", err),
			slog.String("errClass", c.op.ErrClassifier.Classify(err)),
			slog.Time("t0", t0),
			slog.Time("t", c.op.TimeNow()),
		)...)
	})
	return
}

// LocalAddr implements [net.Conn].
func (c *observedConn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// RemoteAddr implements [net.Conn].
func (c *observedConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Read implements [net.Conn].
func (c *observedConn) Read(buf []byte) (int, error) {
	t0 := c.op.TimeNow()
	c.op.Logger.Debug("readStart", c.endpt.attrs(
		slog.Int("ioBufferSize", len(buf)),
		slog.Time("t", t0),
	)...)

	count, err := c.conn.Read(buf)

	c.op.Logger.Debug("readDone", c.endpt.attrs(
		slog.Int("ioBytesCount", count),
		slog.Any("err", err),
		slog.String("errClass", c.op.ErrClassifier.Classify(err)),
		slog.Time("t0", t0),
		slog.Time("t", c.op.TimeNow()),
	)...)
	return count, err
}

// Write implements [net.Conn].
func (c *observedConn) Write(data []byte) (int, error) {
	t0 := c.op.TimeNow()
	c.op.Logger.Debug("writeStart", c.endpt.attrs(
		slog.Int("ioBufferSize", len(data)),
		slog.Time("t", t0),
	)...)

	count, err := c.conn.Write(data)

	c.op.Logger.Debug("writeDone", c.endpt.attrs(
		slog.Int("ioBytesCount", count),
		slog.Any("err", err),
		slog.String("errClass", c.op.ErrClassifier.Classify(err)),
		slog.Time("t0", t0),
		slog.Time("t", c.op.TimeNow()),
	)...)
	return count, err
}

// SetDeadline implements [net.Conn].
func (c *observedConn) SetDeadline(t time.Time) error {
	c.logDeadline("setDeadline", t)
	return c.conn.SetDeadline(t)
}

// SetReadDeadline implements [net.Conn].
func (c *observedConn) SetReadDeadline(t time.Time) error {
	c.logDeadline("setReadDeadline", t)
	return c.conn.SetReadDeadline(t)
}

// SetWriteDeadline implements [net.Conn].
func (c *observedConn) SetWriteDeadline(t time.Time) error {
	c.logDeadline("setWriteDeadline", t)
	return c.conn.SetWriteDeadline(t)
}

func (c *observedConn) logDeadline(msg string, deadline time.Time) {
	c.op.Logger.Debug(msg, c.endpt.attrs(
		slog.Time("deadline", deadline),
		slog.Time("t", c.op.TimeNow()),
	)...)
}
