// SPDX-License-Identifier: GPL-3.0-or-later

package gateway

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// NewServerNameFunc returns a new [*ServerNameFunc].
func NewServerNameFunc(cfg *Config, logger SLogger) *ServerNameFunc {
	return &ServerNameFunc{
		ErrClassifier: cfg.ErrClassifier,
		Hostname:      cfg.Hostname,
		Logger:        logger,
		Resolver:      cfg.Resolver,
		Timeout:       cfg.ServerNameTimeout,
		TimeNow:       cfg.TimeNow,
	}
}

// ServerNameFunc computes the fully qualified name of the listening host.
//
// An empty or unspecified host is replaced with the local host name. The
// name is resolved to its addresses and the first address is looked up in
// reverse: the first returned name containing a dot wins, then the first
// returned name, then the name we started from. Resolution failures are
// not errors: they just end the search. So does running out of Timeout.
//
// All fields are safe to modify after construction but before first use.
// Fields must not be mutated concurrently with calls to [Call].
type ServerNameFunc struct {
	// ErrClassifier classifies errors for structured logging.
	ErrClassifier ErrClassifier

	// Hostname returns the local host name.
	Hostname func() (string, error)

	// Logger is the [SLogger] to use.
	Logger SLogger

	// Resolver performs the forward and reverse lookups.
	Resolver Resolver

	// Timeout bounds the whole search. Zero means no timeout.
	//
	// Set by [NewServerNameFunc] from [Config.ServerNameTimeout].
	Timeout time.Duration

	// TimeNow is the function to get the current time.
	TimeNow func() time.Time
}

var _ Func[string, string] = &ServerNameFunc{}

// Call returns the fully qualified name for host. It never fails.
func (op *ServerNameFunc) Call(ctx context.Context, host string) (string, error) {
	t0 := op.TimeNow()
	op.Logger.Info("serverNameStart", slog.String("serverHost", host), slog.Time("t", t0))

	if op.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, op.Timeout)
		defer cancel()
	}
	name, err := op.resolve(ctx, host)

	op.Logger.Info(
		"serverNameDone",
		slog.Any("err", err),
		slog.String("errClass", op.ErrClassifier.Classify(err)),
		slog.String("serverHost", host),
		slog.String("serverName", name),
		slog.Time("t0", t0),
		slog.Time("t", op.TimeNow()),
	)
	return name, nil
}

func (op *ServerNameFunc) resolve(ctx context.Context, host string) (string, error) {
	name := strings.TrimSpace(host)
	switch name {
	case "", "0.0.0.0", "::":
		hostname, err := op.Hostname()
		if err != nil {
			return name, err
		}
		name = hostname
	}

	addrs, err := op.Resolver.LookupHost(ctx, name)
	if err != nil || len(addrs) <= 0 {
		return name, err
	}
	names, err := op.Resolver.LookupAddr(ctx, addrs[0])
	if err != nil || len(names) <= 0 {
		return name, err
	}
	for _, candidate := range names {
		candidate = strings.TrimSuffix(candidate, ".")
		if strings.Contains(candidate, ".") {
			return candidate, nil
		}
	}
	return strings.TrimSuffix(names[0], "."), nil
}
