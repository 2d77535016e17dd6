// SPDX-License-Identifier: GPL-3.0-or-later

package gateway

import (
	"bytes"
	"fmt"
	"io"
	"maps"
	"net"
	"net/http"
	"net/url"
	"slices"
)

// HTTPHandlerApplication serves an [http.Handler] as an [Application].
//
// The handler runs to completion against a buffering [http.ResponseWriter];
// then the recorded status and headers are passed to the start-response
// callback and the buffered body becomes the only chunk. Since the
// handler's headers live in a map, they are emitted sorted by name.
type HTTPHandlerApplication struct {
	Handler http.Handler
}

var _ Application = &HTTPHandlerApplication{}

// NewHTTPHandlerApplication returns a new [*HTTPHandlerApplication].
func NewHTTPHandlerApplication(handler http.Handler) *HTTPHandlerApplication {
	return &HTTPHandlerApplication{Handler: handler}
}

// ServeGateway implements [Application].
func (app *HTTPHandlerApplication) ServeGateway(env *Environ, start StartResponseFunc) ([][]byte, error) {
	req, err := newHTTPRequest(env)
	if err != nil {
		return nil, err
	}

	rw := &bufferedResponseWriter{header: http.Header{}}
	app.Handler.ServeHTTP(rw, req)
	if rw.status == 0 {
		rw.status = http.StatusOK
	}

	var headers []HeaderField
	for _, name := range slices.Sorted(maps.Keys(rw.header)) {
		for _, value := range rw.header[name] {
			headers = append(headers, HeaderField{Name: name, Value: value})
		}
	}
	start(fmt.Sprintf("%d %s", rw.status, http.StatusText(rw.status)), headers, nil)
	return [][]byte{rw.body.Bytes()}, nil
}

// newHTTPRequest converts the call environment into an [*http.Request].
func newHTTPRequest(env *Environ) (*http.Request, error) {
	URL, err := url.ParseRequestURI(env.PathInfo)
	if err != nil {
		return nil, err
	}
	major, minor, ok := http.ParseHTTPVersion(env.ServerProtocol)
	if !ok {
		return nil, fmt.Errorf("gateway: unsupported protocol version: %q", env.ServerProtocol)
	}
	req := &http.Request{
		Method:     env.RequestMethod,
		URL:        URL,
		Proto:      env.ServerProtocol,
		ProtoMajor: major,
		ProtoMinor: minor,
		Header:     http.Header{},
		Body:       http.NoBody,
		Host:       net.JoinHostPort(env.ServerName, env.ServerPort),
		RemoteAddr: env.RemoteAddr,
		RequestURI: env.PathInfo,
	}
	for _, field := range env.Header {
		req.Header.Add(field.Name, field.Value)
	}
	if host := req.Header.Get("Host"); host != "" {
		req.Host = host
	}
	if env.Input != nil {
		req.Body = io.NopCloser(env.Input)
	}
	return req, nil
}

// bufferedResponseWriter is the [http.ResponseWriter] used by [*HTTPHandlerApplication].
type bufferedResponseWriter struct {
	body   bytes.Buffer
	header http.Header
	status int
}

var _ http.ResponseWriter = &bufferedResponseWriter{}

// Header implements [http.ResponseWriter].
func (w *bufferedResponseWriter) Header() http.Header {
	return w.header
}

// Write implements [http.ResponseWriter].
func (w *bufferedResponseWriter) Write(data []byte) (int, error) {
	if w.status == 0 {
		w.WriteHeader(http.StatusOK)
	}
	return w.body.Write(data)
}

// WriteHeader implements [http.ResponseWriter].
func (w *bufferedResponseWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
}
