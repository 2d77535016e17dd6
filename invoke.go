// SPDX-License-Identifier: GPL-3.0-or-later

package gateway

import (
	"context"
	"log/slog"
	"net"
	"time"
)

// Response is the outcome of invoking the [Application] on a [*Request].
type Response struct {
	// Conn is the connection the response must be written to.
	Conn net.Conn

	// State is the status and headers recorded by the application.
	State *ResponseState

	// Body contains the chunks returned by the application.
	Body [][]byte
}

// NewInvokeFunc returns a new [*InvokeFunc] calling app.
func NewInvokeFunc(cfg *Config, logger SLogger, app Application) *InvokeFunc {
	return &InvokeFunc{
		App:            app,
		ErrClassifier:  cfg.ErrClassifier,
		Logger:         logger,
		ServerSoftware: cfg.ServerSoftware,
		TimeNow:        cfg.TimeNow,
	}
}

// InvokeFunc calls the [Application] with the request environment and a
// fresh response-start callback.
//
// Failures of the application, including panics, are returned as
// [*ApplicationError]. The returned [*Response] may still lack a started
// state; [SerializeResponse] reports that as [ErrResponseNeverStarted].
//
// All fields are safe to modify after construction but before first use.
// Fields must not be mutated concurrently with calls to [Call].
type InvokeFunc struct {
	// App is the application to invoke.
	App Application

	// ErrClassifier classifies errors for structured logging.
	ErrClassifier ErrClassifier

	// Logger is the [SLogger] to use.
	Logger SLogger

	// ServerSoftware is used for the Server header.
	ServerSoftware string

	// TimeNow is the function to get the current time. It also
	// provides the value of the Date header.
	TimeNow func() time.Time
}

var _ Func[*Request, *Response] = &InvokeFunc{}

// Call invokes the application.
func (op *InvokeFunc) Call(ctx context.Context, req *Request) (*Response, error) {
	endpt := newConnEndpoints(req.Conn)
	t0 := op.TimeNow()
	op.Logger.Info("invokeStart", endpt.attrs(
		slog.String("httpMethod", req.Environ.RequestMethod),
		slog.String("httpPath", req.Environ.PathInfo),
		slog.Time("t", t0),
	)...)

	state := &ResponseState{}
	body, err := op.invoke(req.Environ, newStartResponse(state, op.ServerSoftware, op.TimeNow))

	op.Logger.Info("invokeDone", endpt.attrs(
		slog.Any("err", err),
		slog.String("errClass", op.ErrClassifier.Classify(err)),
		slog.String("httpMethod", req.Environ.RequestMethod),
		slog.String("httpPath", req.Environ.PathInfo),
		slog.String("httpResponseStatus", state.Status),
		slog.Int("httpResponseChunks", len(body)),
		slog.Time("t0", t0),
		slog.Time("t", op.TimeNow()),
	)...)
	if err != nil {
		return nil, err
	}
	return &Response{Conn: req.Conn, State: state, Body: body}, nil
}

func (op *InvokeFunc) invoke(env *Environ, start StartResponseFunc) (body [][]byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			body, err = nil, &ApplicationError{Panic: r}
		}
	}()
	body, err = op.App.ServeGateway(env, start)
	if err != nil {
		return nil, &ApplicationError{Err: err}
	}
	return body, nil
}
