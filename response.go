// SPDX-License-Identifier: GPL-3.0-or-later

package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/net/http/httpguts"
)

// SerializeResponse builds the bytes of an HTTP/1.1 response:
//
//	HTTP/1.1 <status>\r\n
//	<name>: <value>\r\n   (one per header, in recorded order)
//	\r\n
//	<written bytes><chunk 1><chunk 2>...
//
// No Content-Length is computed: the end of the body is signalled by
// closing the connection. The function fails with [ErrResponseNeverStarted]
// when state was never populated, and with [ErrInvalidHeader] when a
// header could be used to inject extra lines in the response.
func SerializeResponse(state *ResponseState, body [][]byte) ([]byte, error) {
	if state == nil || !state.started {
		return nil, ErrResponseNeverStarted
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "HTTP/1.1 %s\r\n", state.Status)
	for _, field := range state.Headers {
		if !httpguts.ValidHeaderFieldName(field.Name) || !httpguts.ValidHeaderFieldValue(field.Value) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidHeader, field.Name)
		}
		fmt.Fprintf(&buf, "%s: %s\r\n", field.Name, field.Value)
	}
	buf.WriteString("\r\n")
	for _, chunk := range state.Written {
		buf.Write(chunk)
	}
	for _, chunk := range body {
		buf.Write(chunk)
	}
	return buf.Bytes(), nil
}

// NewWriteResponseFunc returns a new [*WriteResponseFunc].
func NewWriteResponseFunc(cfg *Config, logger SLogger) *WriteResponseFunc {
	return &WriteResponseFunc{
		ErrClassifier: cfg.ErrClassifier,
		Logger:        logger,
		TimeNow:       cfg.TimeNow,
	}
}

// WriteResponseFunc serializes a [*Response] and sends it with a single Write.
//
// A Write returning fewer bytes than requested without an error violates the
// [io.Writer] contract and is reported as [io.ErrShortWrite].
//
// All fields are safe to modify after construction but before first use.
// Fields must not be mutated concurrently with calls to [Call].
type WriteResponseFunc struct {
	// ErrClassifier classifies errors for structured logging.
	ErrClassifier ErrClassifier

	// Logger is the [SLogger] to use.
	Logger SLogger

	// TimeNow is the function to get the current time.
	TimeNow func() time.Time
}

var _ Func[*Response, Unit] = &WriteResponseFunc{}

// Call writes the response.
func (op *WriteResponseFunc) Call(ctx context.Context, resp *Response) (Unit, error) {
	endpt := newConnEndpoints(resp.Conn)
	t0 := op.TimeNow()
	op.Logger.Info("writeResponseStart", endpt.attrs(slog.Time("t", t0))...)

	count, err := op.write(resp)

	op.Logger.Info("writeResponseDone", endpt.attrs(
		slog.Int("ioBytesCount", count),
		slog.Any("err", err),
		slog.String("errClass", op.ErrClassifier.Classify(err)),
		slog.Time("t0", t0),
		slog.Time("t", op.TimeNow()),
	)...)
	return Unit{}, err
}

func (op *WriteResponseFunc) write(resp *Response) (int, error) {
	data, err := SerializeResponse(resp.State, resp.Body)
	if err != nil {
		return 0, err
	}
	op.Logger.Info("httpResponse", newConnEndpoints(resp.Conn).attrs(
		slog.String("httpRawResponse", string(data)),
		slog.Time("t", op.TimeNow()),
	)...)
	count, err := resp.Conn.Write(data)
	if err == nil && count < len(data) {
		err = io.ErrShortWrite
	}
	return count, err
}
