// SPDX-License-Identifier: GPL-3.0-or-later

package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"time"
	"unicode/utf8"
)

// RawRequest is the text received from a connection by [*ReadRequestFunc].
type RawRequest struct {
	// Conn is the connection the request was read from.
	Conn net.Conn

	// Text is the UTF-8 text received with the single read.
	Text string
}

// NewReadRequestFunc returns a new [*ReadRequestFunc].
//
// The cfg argument contains the common configuration for gateway operations.
//
// The logger argument is the [SLogger] to use for structured logging.
func NewReadRequestFunc(cfg *Config, logger SLogger) *ReadRequestFunc {
	return &ReadRequestFunc{
		BufferSize:    cfg.ReadBufferSize,
		ErrClassifier: cfg.ErrClassifier,
		Logger:        logger,
		ReadTimeout:   cfg.ReadTimeout,
		TimeNow:       cfg.TimeNow,
	}
}

// ReadRequestFunc performs exactly one read of at most BufferSize bytes.
//
// There is no loop: a request larger than the buffer is truncated and the
// remaining bytes are never read. When the read yields zero bytes (the peer
// connected and closed, as health checkers do) the result is
// [ErrEmptyRequest]. Bytes that are not valid UTF-8 yield [ErrInvalidEncoding].
//
// All fields are safe to modify after construction but before first use.
// Fields must not be mutated concurrently with calls to [Call].
type ReadRequestFunc struct {
	// BufferSize is the size of the read buffer.
	//
	// Set by [NewReadRequestFunc] from [Config.ReadBufferSize].
	BufferSize int

	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewReadRequestFunc] from [Config.ErrClassifier].
	ErrClassifier ErrClassifier

	// Logger is the [SLogger] to use.
	//
	// Set by [NewReadRequestFunc] to the user-provided logger.
	Logger SLogger

	// ReadTimeout bounds the read when positive.
	//
	// Set by [NewReadRequestFunc] from [Config.ReadTimeout].
	ReadTimeout time.Duration

	// TimeNow is the function to get the current time.
	//
	// Set by [NewReadRequestFunc] from [Config.TimeNow].
	TimeNow func() time.Time
}

var _ Func[net.Conn, *RawRequest] = &ReadRequestFunc{}

// Call reads the request from conn.
func (op *ReadRequestFunc) Call(ctx context.Context, conn net.Conn) (*RawRequest, error) {
	endpt := newConnEndpoints(conn)
	t0 := op.TimeNow()
	op.Logger.Info("readRequestStart", endpt.attrs(
		slog.Int("ioBufferSize", op.BufferSize),
		slog.Time("t", t0),
	)...)

	text, err := op.read(conn)

	op.Logger.Info("readRequestDone", endpt.attrs(
		slog.Int("ioBytesCount", len(text)),
		slog.Any("err", err),
		slog.String("errClass", op.ErrClassifier.Classify(err)),
		slog.Time("t0", t0),
		slog.Time("t", op.TimeNow()),
	)...)
	if err != nil {
		return nil, err
	}

	op.Logger.Info("httpRequest", endpt.attrs(
		slog.String("httpRawRequest", text),
		slog.Time("t", t0),
	)...)
	return &RawRequest{Conn: conn, Text: text}, nil
}

func (op *ReadRequestFunc) read(conn net.Conn) (string, error) {
	if op.ReadTimeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(op.ReadTimeout)); err != nil {
			return "", err
		}
	}
	buffer := make([]byte, op.BufferSize)
	count, err := conn.Read(buffer)
	switch {
	case count <= 0 && (err == nil || errors.Is(err, io.EOF)):
		return "", ErrEmptyRequest
	case count <= 0:
		return "", err
	}
	// Data that arrived together with an error (e.g., a reset right after
	// the request) is still a request: the error surfaces on write.
	data := buffer[:count]
	if count == len(buffer) {
		data = trimPartialRune(data)
	}
	if !utf8.Valid(data) {
		return "", ErrInvalidEncoding
	}
	return string(data), nil
}

// trimPartialRune removes a trailing UTF-8 sequence that the end of the
// buffer cut in half. Invalid trailing bytes are left for validation.
func trimPartialRune(data []byte) []byte {
	for idx := len(data) - 1; idx >= 0 && idx >= len(data)-(utf8.UTFMax-1); idx-- {
		if !utf8.RuneStart(data[idx]) {
			continue
		}
		if !utf8.FullRune(data[idx:]) {
			return data[:idx]
		}
		break
	}
	return data
}
