// SPDX-License-Identifier: GPL-3.0-or-later

package gateway

import (
	"fmt"
	"net/http"
	"time"
)

// Application is the single callable served by a [*Server].
//
// The calling convention has two phases. First the application calls
// start exactly once with the status line (e.g., "200 OK") and its
// headers. Then it returns the body as a sequence of chunks, which the
// gateway concatenates in order. Returning an error (or panicking) makes
// the gateway drop the connection without writing a response.
type Application interface {
	ServeGateway(env *Environ, start StartResponseFunc) ([][]byte, error)
}

// ApplicationFunc adapts a function to the [Application] interface.
type ApplicationFunc func(env *Environ, start StartResponseFunc) ([][]byte, error)

var _ Application = ApplicationFunc(nil)

// ServeGateway implements [Application].
func (f ApplicationFunc) ServeGateway(env *Environ, start StartResponseFunc) ([][]byte, error) {
	return f(env, start)
}

// StartResponseFunc is the response-start callback given to the [Application].
//
// It records the status line and headers; it does not write anything.
// The excInfo argument is the error that caused the application to start
// a different response (e.g., switching to a 500 after a failure). The
// gateway has not sent anything yet when the application returns, so a
// later call always replaces the earlier one and excInfo is not retained.
//
// The returned [WriteFunc] lets legacy applications push body bytes
// imperatively; those bytes precede the returned chunks.
type StartResponseFunc func(status string, headers []HeaderField, excInfo error) WriteFunc

// WriteFunc appends data to the response body.
type WriteFunc func(data []byte) error

// ResponseState is the status and headers recorded by a [StartResponseFunc].
//
// A fresh ResponseState is created for each request, so nothing recorded
// while serving one request is visible while serving the next one.
type ResponseState struct {
	// Status is the status line without the protocol version (e.g., "200 OK").
	Status string

	// Headers contains the application headers, in order, followed by the
	// headers added by the gateway.
	Headers []HeaderField

	// Written contains the chunks pushed through the [WriteFunc].
	Written [][]byte

	// started is true once the callback has been invoked.
	started bool
}

// Started returns whether the response-start callback was invoked.
func (rs *ResponseState) Started() bool {
	return rs.started
}

// newStartResponse returns the callback recording into state.
//
// Gateway headers (Date and Server) are appended after the application
// headers each time the callback is invoked.
func newStartResponse(state *ResponseState, serverSoftware string, timeNow func() time.Time) StartResponseFunc {
	return func(status string, headers []HeaderField, _ error) WriteFunc {
		state.Status = status
		state.Headers = append(append(make([]HeaderField, 0, len(headers)+2), headers...),
			HeaderField{Name: "Date", Value: timeNow().UTC().Format(http.TimeFormat)},
			HeaderField{Name: "Server", Value: serverBanner(serverSoftware)},
		)
		state.started = true
		return func(data []byte) error {
			state.Written = append(state.Written, append([]byte{}, data...))
			return nil
		}
	}
}

// serverBanner returns the Server header value.
func serverBanner(software string) string {
	return fmt.Sprintf("%s %d.%d", software, GatewayVersion[0], GatewayVersion[1])
}
