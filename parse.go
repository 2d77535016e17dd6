// SPDX-License-Identifier: GPL-3.0-or-later

package gateway

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"
	"unicode"
)

// RequestLine is the first line of an HTTP request.
type RequestLine struct {
	Method  string
	Path    string
	Version string
}

// requestLineBreaks are the characters ending the request line.
const requestLineBreaks = "\r\n\v\f\x1c\x1d\x1e\u0085\u2028\u2029"

// ParseRequestLine extracts the request line from the request text.
//
// The first line ends at the first line break: CR, LF, VT, FF, the FS,
// GS and RS separators, NEL, or the Unicode line and paragraph separators.
// It must split on whitespace into exactly three tokens; otherwise the
// error wraps [ErrMalformedRequestLine].
func ParseRequestLine(text string) (RequestLine, error) {
	line := text
	if idx := strings.IndexAny(text, requestLineBreaks); idx >= 0 {
		line = text[:idx]
	}
	tokens := strings.FieldsFunc(line, isRequestLineSpace)
	if len(tokens) != 3 {
		return RequestLine{}, fmt.Errorf("%w: %q", ErrMalformedRequestLine, line)
	}
	return RequestLine{Method: tokens[0], Path: tokens[1], Version: tokens[2]}, nil
}

// isRequestLineSpace reports whether r separates request line tokens: the
// Unicode white space plus the unit separator.
func isRequestLineSpace(r rune) bool {
	return unicode.IsSpace(r) || r == '\x1f'
}

// splitHeaderBlock returns the header lines following the request line and
// the body bytes following the blank line.
//
// Since the request comes from a single bounded read, the header block may
// be truncated: in such a case the incomplete last line is dropped and the
// body is empty. Lines without a colon are ignored.
func splitHeaderBlock(text string) (header []HeaderField, body string) {
	head := text
	switch idx := strings.Index(text, "\r\n\r\n"); {
	case idx >= 0:
		head, body = text[:idx], text[idx+4:]
	default:
		if idx := strings.Index(text, "\n\n"); idx >= 0 {
			head, body = text[:idx], text[idx+2:]
		} else if idx := strings.LastIndexByte(text, '\n'); idx >= 0 {
			head = text[:idx]
		} else {
			head = ""
		}
	}
	lines := strings.Split(head, "\n")
	for _, line := range lines[1:] {
		name, value, found := strings.Cut(strings.TrimRight(line, "\r"), ":")
		name = strings.TrimSpace(name)
		if !found || name == "" {
			continue
		}
		header = append(header, HeaderField{Name: name, Value: strings.TrimSpace(value)})
	}
	return header, body
}

// Request is a parsed request ready to be passed to the [Application].
type Request struct {
	// Conn is the connection the request was read from.
	Conn net.Conn

	// Line is the parsed request line.
	Line RequestLine

	// Environ is the call environment for the application.
	Environ *Environ
}

// NewParseRequestFunc returns a new [*ParseRequestFunc].
//
// The serverName and serverPort arguments identify the server in the
// call environment (see [*ServerNameFunc] for computing the former).
func NewParseRequestFunc(cfg *Config, logger SLogger, serverName, serverPort string) *ParseRequestFunc {
	return &ParseRequestFunc{
		ErrClassifier:  cfg.ErrClassifier,
		ErrorStream:    cfg.ErrorStream,
		Logger:         logger,
		ServerName:     serverName,
		ServerPort:     serverPort,
		ServerSoftware: cfg.ServerSoftware,
		TimeNow:        cfg.TimeNow,
	}
}

// ParseRequestFunc parses a [*RawRequest] and builds its [*Environ].
//
// All fields are safe to modify after construction but before first use.
// Fields must not be mutated concurrently with calls to [Call].
type ParseRequestFunc struct {
	// ErrClassifier classifies errors for structured logging.
	ErrClassifier ErrClassifier

	// ErrorStream becomes [Environ.Errors].
	ErrorStream io.Writer

	// Logger is the [SLogger] to use.
	Logger SLogger

	// ServerName becomes [Environ.ServerName].
	ServerName string

	// ServerPort becomes [Environ.ServerPort].
	ServerPort string

	// ServerSoftware becomes [Environ.ServerSoftware].
	ServerSoftware string

	// TimeNow is the function to get the current time.
	TimeNow func() time.Time
}

var _ Func[*RawRequest, *Request] = &ParseRequestFunc{}

// Call parses the request.
func (op *ParseRequestFunc) Call(ctx context.Context, raw *RawRequest) (*Request, error) {
	endpt := newConnEndpoints(raw.Conn)
	t0 := op.TimeNow()
	op.Logger.Info("parseRequestStart", endpt.attrs(slog.Time("t", t0))...)

	line, err := ParseRequestLine(raw.Text)

	op.Logger.Info("parseRequestDone", endpt.attrs(
		slog.Any("err", err),
		slog.String("errClass", op.ErrClassifier.Classify(err)),
		slog.String("httpMethod", line.Method),
		slog.String("httpPath", line.Path),
		slog.String("httpVersion", line.Version),
		slog.Time("t0", t0),
		slog.Time("t", op.TimeNow()),
	)...)
	if err != nil {
		return nil, err
	}

	req := &Request{Conn: raw.Conn, Line: line, Environ: op.newEnviron(raw, line)}
	return req, nil
}

func (op *ParseRequestFunc) newEnviron(raw *RawRequest, line RequestLine) *Environ {
	header, body := splitHeaderBlock(raw.Text)
	env := &Environ{
		Version:        GatewayVersion,
		URLScheme:      "http",
		Input:          strings.NewReader(body),
		Errors:         op.ErrorStream,
		MultiThread:    false,
		MultiProcess:   false,
		RunOnce:        false,
		RequestMethod:  line.Method,
		PathInfo:       line.Path,
		ServerName:     op.ServerName,
		ServerPort:     op.ServerPort,
		ServerProtocol: line.Version,
		ServerSoftware: op.ServerSoftware,
		RemoteAddr:     remoteIP(raw.Conn),
		Header:         header,
	}
	if _, query, found := strings.Cut(line.Path, "?"); found {
		env.QueryString = query
	}
	for _, field := range header {
		switch {
		case strings.EqualFold(field.Name, "Content-Type"):
			env.ContentType = field.Value
		case strings.EqualFold(field.Name, "Content-Length"):
			env.ContentLength = field.Value
		}
	}
	return env
}

// remoteIP returns the IP address of the peer, or the whole address
// when it has no port.
func remoteIP(conn net.Conn) string {
	addr := conn.RemoteAddr()
	if addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
