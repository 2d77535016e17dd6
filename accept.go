// SPDX-License-Identifier: GPL-3.0-or-later

package gateway

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/bassosimone/safeconn"
)

// NewAcceptFunc returns a new [*AcceptFunc].
func NewAcceptFunc(cfg *Config, logger SLogger) *AcceptFunc {
	return &AcceptFunc{
		ErrClassifier: cfg.ErrClassifier,
		Logger:        logger,
		TimeNow:       cfg.TimeNow,
	}
}

// AcceptFunc performs one blocking Accept on a listener.
//
// Returns either a valid [net.Conn] or an error, never both. The caller
// owns the returned connection.
type AcceptFunc struct {
	// ErrClassifier classifies errors for structured logging.
	ErrClassifier ErrClassifier

	// Logger is the [SLogger] to use.
	Logger SLogger

	// TimeNow is the function to get the current time.
	TimeNow func() time.Time
}

var _ Func[net.Listener, net.Conn] = &AcceptFunc{}

// Call accepts the next connection.
func (op *AcceptFunc) Call(ctx context.Context, listener net.Listener) (net.Conn, error) {
	t0 := op.TimeNow()
	laddr := listener.Addr().String()
	op.Logger.Debug(
		"acceptStart",
		slog.String("localAddr", laddr),
		slog.Time("t", t0),
	)

	conn, err := listener.Accept()

	op.Logger.Info(
		"acceptDone",
		slog.Any("err", err),
		slog.String("errClass", op.ErrClassifier.Classify(err)),
		slog.String("localAddr", laddr),
		slog.String("protocol", safeconn.Network(conn)),
		slog.String("remoteAddr", safeconn.RemoteAddr(conn)),
		slog.Time("t0", t0),
		slog.Time("t", op.TimeNow()),
	)
	if err != nil {
		return nil, err
	}
	return conn, nil
}
