// SPDX-License-Identifier: GPL-3.0-or-later

package gateway

import (
	"context"
	"net"
)

// NewCancelWatchFunc returns a new [*CancelWatchFunc].
func NewCancelWatchFunc() *CancelWatchFunc {
	return &CancelWatchFunc{}
}

// CancelWatchFunc arranges for a connection to be closed when the context
// is done. The [*Server] uses it so that cancelling the context passed to
// [*Server.Serve] interrupts a request blocked reading from a slow client.
//
// The returned connection wraps the input connection. Closing it
// unregisters the context watcher and closes the underlying connection,
// so no watcher outlives the request even if the context is never done.
//
// Combined with [ObserveConnFunc], the underlying connection is closed
// once: the watcher and the server may both call Close, but only the
// first call reaches the socket.
type CancelWatchFunc struct{}

var _ Func[net.Conn, net.Conn] = &CancelWatchFunc{}

// Call registers a context watcher using [context.AfterFunc].
func (op *CancelWatchFunc) Call(ctx context.Context, conn net.Conn) (net.Conn, error) {
	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	return &cancelWatchedConn{Conn: conn, stop: stop}, nil
}

// cancelWatchedConn wraps a [net.Conn] with a context cancellation watcher.
type cancelWatchedConn struct {
	net.Conn
	stop func() bool
}

// Close unregisters the context watcher and closes the underlying connection.
func (c *cancelWatchedConn) Close() error {
	c.stop()
	return c.Conn.Close()
}

// watchListener closes the listener when ctx is done, which unblocks a
// pending Accept. The returned function unregisters the watcher.
func watchListener(ctx context.Context, listener net.Listener) (stop func() bool) {
	return context.AfterFunc(ctx, func() {
		listener.Close()
	})
}
