// SPDX-License-Identifier: GPL-3.0-or-later

package gateway

import (
	"context"
	"log/slog"
	"net"
	"time"
)

// NewListenFunc returns a new [*ListenFunc].
//
// The cfg argument contains the common configuration for gateway operations.
//
// The logger argument is the [SLogger] to use for structured logging.
func NewListenFunc(cfg *Config, logger SLogger) *ListenFunc {
	return &ListenFunc{
		ErrClassifier: cfg.ErrClassifier,
		ListenConfig:  cfg.ListenConfig,
		Logger:        logger,
		Network:       "tcp",
		TimeNow:       cfg.TimeNow,
	}
}

// ListenFunc binds a passive TCP socket to a "host:port" address.
//
// The host may be empty, meaning all local addresses. The listen backlog is
// chosen by the operating system (it is always at least 1). On Unix the
// standard library sets SO_REUSEADDR, so a restarted gateway can bind a port
// with connections still in TIME_WAIT.
//
// Bind failures are returned as [*BindError].
//
// All fields are safe to modify after construction but before first use.
// Fields must not be mutated concurrently with calls to [Call].
type ListenFunc struct {
	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewListenFunc] from [Config.ErrClassifier].
	ErrClassifier ErrClassifier

	// ListenConfig is the [ListenConfig] to use.
	//
	// Set by [NewListenFunc] from [Config.ListenConfig].
	ListenConfig ListenConfig

	// Logger is the [SLogger] to use.
	//
	// Set by [NewListenFunc] to the user-provided logger.
	Logger SLogger

	// Network is the network to listen on.
	//
	// Set by [NewListenFunc] to "tcp".
	Network string

	// TimeNow is the function to get the current time.
	//
	// Set by [NewListenFunc] from [Config.TimeNow].
	TimeNow func() time.Time
}

var _ Func[string, net.Listener] = &ListenFunc{}

// Call binds the given address and returns the listener.
func (op *ListenFunc) Call(ctx context.Context, address string) (net.Listener, error) {
	t0 := op.TimeNow()
	op.Logger.Info(
		"listenStart",
		slog.String("localAddr", address),
		slog.String("protocol", op.Network),
		slog.Time("t", t0),
	)

	listener, err := op.ListenConfig.Listen(ctx, op.Network, address)
	if err != nil {
		err = &BindError{Network: op.Network, Address: address, Err: err}
	}

	var boundAddr string
	if listener != nil {
		boundAddr = listener.Addr().String()
	}
	op.Logger.Info(
		"listenDone",
		slog.Any("err", err),
		slog.String("errClass", op.ErrClassifier.Classify(err)),
		slog.String("localAddr", boundAddr),
		slog.String("protocol", op.Network),
		slog.Time("t0", t0),
		slog.Time("t", op.TimeNow()),
	)
	if err != nil {
		return nil, err
	}
	return listener, nil
}
