// SPDX-License-Identifier: GPL-3.0-or-later

// Package gateway implements a minimal single-connection HTTP/1.1 server that
// dispatches each request to an application using a two-phase calling
// convention modeled on WSGI.
//
// # Calling Convention
//
// An [Application] receives an [*Environ] and a [StartResponseFunc]. It must
// call the start-response callback exactly once with a status line such as
// "200 OK" and an ordered list of [HeaderField] values, then return the body
// as a sequence of byte chunks. The gateway appends its own Date and Server
// headers after the application's headers, so the application cannot
// suppress them. Use [NewHTTPHandlerApplication] to serve an [http.Handler].
//
// # Request Pipeline
//
// Each accepted connection flows through a pipeline of [Func] stages
// composed with [Compose4]:
//
//   - [ReadRequestFunc]: performs a single bounded read and decodes UTF-8
//   - [ParseRequestFunc]: splits the request line and builds the [*Environ]
//   - [InvokeFunc]: calls the application, recovering panics
//   - [WriteResponseFunc]: serializes status, headers, and body in one write
//
// The [*Server] owns the connection: [ObserveConnFunc] makes closing it
// idempotent and [CancelWatchFunc] closes it when the serving context is
// done. Exactly one connection is handled at a time.
//
// A request that delivers zero bytes is answered with nothing. Any other
// failure is logged and the connection is closed without a response. Only
// failing to bind the listening socket stops [*Server.ListenAndServe].
//
// # Probe Client
//
// [NewProbeFunc] composes [ConnectFunc], [ObserveConnFunc], [CancelWatchFunc]
// and [HTTPConnFunc], then uses [Apply] to bind the gateway endpoint, so
// the resulting pipeline sends one request to that gateway.
// [DNSResolver] resolves the server name over UDP when the system resolver
// should not be used.
//
// # Observability
//
// All stages log through [SLogger], which [*slog.Logger] satisfies. By
// default logging is disabled.
//
// Stages emit span events in *Start/*Done pairs sharing localAddr,
// remoteAddr, protocol, and t; *Done events add t0, err, and errClass,
// where errClass comes from the configured [ErrClassifier]. Wire
// observations (httpRequest, httpResponse, dnsQuery, dnsResponse) carry
// the raw bytes. I/O events are emitted at [slog.LevelDebug]; everything
// else at [slog.LevelInfo]. Every event for a connection carries the same
// spanID, a UUIDv7 from [NewSpanID].
package gateway
