//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/bassosimone/nop/blob/main/httpconn.go
//

package gateway

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"time"

	"github.com/bassosimone/sud"
)

// HTTPConn performs a single HTTP/1.1 exchange with a gateway over an
// already established connection.
//
// The gateway closes every connection after one response, so keep-alives
// are disabled and the response body ends at EOF. The caller is
// responsible for calling [HTTPConn.Close] when done.
//
// Construct using [NewHTTPConnFunc].
type HTTPConn struct {
	conn          net.Conn
	txp           http.RoundTripper
	closeIdleFunc func()

	// ErrClassifier classifies errors for structured logging.
	ErrClassifier ErrClassifier

	// Logger is the [SLogger] to use.
	Logger SLogger

	// TimeNow is the function to get the current time.
	TimeNow func() time.Time
}

var _ http.RoundTripper = &HTTPConn{}

// RoundTrip implements [http.RoundTripper].
//
// The response body is wrapped to emit httpBodyStreamStart and
// httpBodyStreamDone events.
func (hc *HTTPConn) RoundTrip(req *http.Request) (*http.Response, error) {
	t0 := hc.TimeNow()
	deadline, _ := req.Context().Deadline()
	endpt := newConnEndpoints(hc.conn)
	hc.Logger.Info(
		"httpRoundTripStart",
		endpt.attrs(
			slog.Time("deadline", deadline),
			slog.String("httpMethod", req.Method),
			slog.String("httpUrl", req.URL.String()),
			slog.Any("httpRequestHeaders", req.Header),
			slog.Time("t", t0),
		)...,
	)

	resp, err := hc.txp.RoundTrip(req)

	var (
		statusCode int
		headers    http.Header
	)
	if resp != nil {
		statusCode, headers = resp.StatusCode, resp.Header
	}
	hc.Logger.Info(
		"httpRoundTripDone",
		endpt.attrs(
			slog.Time("deadline", deadline),
			slog.Any("err", err),
			slog.String("errClass", hc.ErrClassifier.Classify(err)),
			slog.String("httpMethod", req.Method),
			slog.String("httpUrl", req.URL.String()),
			slog.Any("httpResponseHeaders", headers),
			slog.Int("httpResponseStatusCode", statusCode),
			slog.Time("t0", t0),
			slog.Time("t", hc.TimeNow()),
		)...,
	)
	if err != nil {
		return nil, err
	}
	resp.Body = newObservedBody(hc, resp.Body)
	return resp, nil
}

// Get fetches path from the gateway and returns the response and its
// whole body. The body is closed before returning.
func (hc *HTTPConn) Get(ctx context.Context, path string) (*http.Response, []byte, error) {
	url := "http://" + hc.conn.RemoteAddr().String() + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, err
	}
	resp, err := hc.RoundTrip(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}
	return resp, body, nil
}

// Close releases the transport and closes the underlying connection.
func (hc *HTTPConn) Close() error {
	hc.closeIdleFunc()
	return hc.conn.Close()
}

// Conn returns the underlying [net.Conn].
func (hc *HTTPConn) Conn() net.Conn {
	return hc.conn
}

// NewHTTPConnFunc returns a new [*HTTPConnFunc].
func NewHTTPConnFunc(cfg *Config, logger SLogger) *HTTPConnFunc {
	return &HTTPConnFunc{
		ErrClassifier: cfg.ErrClassifier,
		Logger:        logger,
		TimeNow:       cfg.TimeNow,
	}
}

// HTTPConnFunc wraps a connection into an [*HTTPConn].
//
// The transport dials through a [sud.SingleUseDialer], so every request
// travels over the input connection and a second dial fails.
//
// All fields are safe to modify after construction but before first use.
// Fields must not be mutated concurrently with calls to [Call].
type HTTPConnFunc struct {
	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewHTTPConnFunc] from [Config.ErrClassifier].
	ErrClassifier ErrClassifier

	// Logger is the [SLogger] to use.
	//
	// Set by [NewHTTPConnFunc] to the user-provided logger.
	Logger SLogger

	// TimeNow is the function to get the current time.
	//
	// Set by [NewHTTPConnFunc] from [Config.TimeNow].
	TimeNow func() time.Time
}

var _ Func[net.Conn, *HTTPConn] = &HTTPConnFunc{}

// Call implements [Func]. It never fails.
func (op *HTTPConnFunc) Call(ctx context.Context, conn net.Conn) (*HTTPConn, error) {
	dialer := sud.NewSingleUseDialer(conn)
	txp := &http.Transport{
		DialContext:        dialer.DialContext,
		DisableCompression: true,
		DisableKeepAlives:  true,
		ForceAttemptHTTP2:  false,
	}
	hc := &HTTPConn{
		conn:          conn,
		txp:           txp,
		closeIdleFunc: txp.CloseIdleConnections,
		ErrClassifier: op.ErrClassifier,
		Logger:        op.Logger,
		TimeNow:       op.TimeNow,
	}
	return hc, nil
}

// NewProbeFunc returns a pipeline that connects to the gateway at
// endpoint and wraps the connection into an [*HTTPConn].
func NewProbeFunc(cfg *Config, endpoint netip.AddrPort, logger SLogger) Func[Unit, *HTTPConn] {
	dial := Compose3(
		NewConnectFunc(cfg, "tcp", logger),
		NewObserveConnFunc(cfg, logger),
		NewCancelWatchFunc(),
	)
	return Apply(Compose2(dial, NewHTTPConnFunc(cfg, logger)), endpoint)
}
