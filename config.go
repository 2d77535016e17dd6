// SPDX-License-Identifier: GPL-3.0-or-later

package gateway

import (
	"context"
	"io"
	"net"
	"os"
	"time"
)

// Default values used by [NewConfig].
const (
	// DefaultReadBufferSize is the size of the single read performed
	// on each accepted connection.
	DefaultReadBufferSize = 1024

	// DefaultServerSoftware is the banner used for the Server header.
	DefaultServerSoftware = "WSGI Server"

	// DefaultServerNameTimeout bounds the server name lookup performed
	// before accepting the first connection.
	DefaultServerNameTimeout = 5 * time.Second
)

// ListenConfig abstracts the [*net.ListenConfig] behavior.
type ListenConfig interface {
	Listen(ctx context.Context, network, address string) (net.Listener, error)
}

// Dialer abstracts the [*net.Dialer] behavior.
//
// The gateway itself never dials. The dialer serves [*ConnectFunc], which
// backs the probe client and the [*DNSResolver].
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Resolver abstracts the subset of [*net.Resolver] used to compute the
// fully qualified server name.
type Resolver interface {
	LookupAddr(ctx context.Context, addr string) ([]string, error)
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// Config holds common configuration for gateway operations.
//
// Pass this to constructor functions to pre-wire dependencies.
// All fields have sensible defaults set by [NewConfig].
type Config struct {
	// Dialer is used by [*ConnectFunc].
	//
	// Set by [NewConfig] to [*net.Dialer].
	Dialer Dialer

	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewConfig] to [DefaultErrClassifier].
	ErrClassifier ErrClassifier

	// ErrorStream is exposed to the application as wsgi.errors.
	//
	// Set by [NewConfig] to [os.Stderr].
	ErrorStream io.Writer

	// Hostname returns the local host name, used when binding to the
	// unspecified address.
	//
	// Set by [NewConfig] to [os.Hostname].
	Hostname func() (string, error)

	// ListenConfig is used by [*ListenFunc].
	//
	// Set by [NewConfig] to [*net.ListenConfig].
	ListenConfig ListenConfig

	// ReadBufferSize is the maximum number of bytes read from a connection.
	//
	// Set by [NewConfig] to [DefaultReadBufferSize].
	ReadBufferSize int

	// ReadTimeout bounds the single read. Zero means no timeout.
	//
	// Set by [NewConfig] to zero.
	ReadTimeout time.Duration

	// Resolver resolves the fully qualified server name.
	//
	// Set by [NewConfig] to [net.DefaultResolver].
	Resolver Resolver

	// ServerNameTimeout bounds the server name lookup. Zero means no timeout.
	//
	// Set by [NewConfig] to [DefaultServerNameTimeout].
	ServerNameTimeout time.Duration

	// ServerSoftware is the banner for the Server header; the gateway
	// version is appended to it.
	//
	// Set by [NewConfig] to [DefaultServerSoftware].
	ServerSoftware string

	// TimeNow returns the current time.
	//
	// Set by [NewConfig] to [time.Now].
	TimeNow func() time.Time
}

// NewConfig creates a [*Config] with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Dialer:            &net.Dialer{},
		ErrClassifier:     DefaultErrClassifier,
		ErrorStream:       os.Stderr,
		Hostname:          os.Hostname,
		ListenConfig:      &net.ListenConfig{},
		ReadBufferSize:    DefaultReadBufferSize,
		ReadTimeout:       0,
		Resolver:          net.DefaultResolver,
		ServerNameTimeout: DefaultServerNameTimeout,
		ServerSoftware:    DefaultServerSoftware,
		TimeNow:           time.Now,
	}
}
