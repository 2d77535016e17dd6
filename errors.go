// SPDX-License-Identifier: GPL-3.0-or-later

package gateway

import (
	"fmt"

	"github.com/bassosimone/gateway/errclass"
)

// gatewayError is a sentinel error that knows its own class.
type gatewayError struct {
	class string
	msg   string
}

var _ errclass.Classer = &gatewayError{}

// Error implements error.
func (e *gatewayError) Error() string {
	return e.msg
}

// ErrClass implements [errclass.Classer].
func (e *gatewayError) ErrClass() string {
	return e.class
}

var (
	// ErrEmptyRequest indicates that the peer sent zero bytes before
	// closing or that the first read returned nothing. The server treats
	// this as a handled condition: nothing is written back.
	ErrEmptyRequest error = &gatewayError{errclass.EEMPTYREQUEST, "gateway: empty request"}

	// ErrMalformedRequestLine indicates that the first line of the request
	// does not contain exactly three whitespace-separated tokens.
	ErrMalformedRequestLine error = &gatewayError{errclass.EMALFORMED, "gateway: malformed request line"}

	// ErrResponseNeverStarted indicates that the application returned
	// without calling the start-response callback.
	ErrResponseNeverStarted error = &gatewayError{errclass.ENOTSTARTED, "gateway: response never started"}

	// ErrInvalidEncoding indicates that the request bytes are not valid UTF-8.
	ErrInvalidEncoding error = &gatewayError{errclass.EENCODING, "gateway: request is not valid UTF-8"}

	// ErrInvalidHeader indicates that the application supplied a header
	// whose name or value cannot be serialized on the wire.
	ErrInvalidHeader error = &gatewayError{errclass.EHEADER, "gateway: invalid response header"}
)

// ApplicationError wraps a failure of the [Application].
//
// Exactly one of Err and Panic is set: Err when the application returned
// an error, Panic when it panicked.
type ApplicationError struct {
	// Err is the error returned by the application.
	Err error

	// Panic is the value recovered from a panicking application.
	Panic any
}

var _ errclass.Classer = &ApplicationError{}

// Error implements error.
func (e *ApplicationError) Error() string {
	if e.Err != nil {
		return "gateway: application failed: " + e.Err.Error()
	}
	return fmt.Sprintf("gateway: application panicked: %v", e.Panic)
}

// Unwrap returns the underlying application error, if any.
func (e *ApplicationError) Unwrap() error {
	return e.Err
}

// ErrClass implements [errclass.Classer].
func (e *ApplicationError) ErrClass() string {
	return errclass.EAPPLICATION
}

// BindError is returned when the listener cannot bind its address.
//
// This is the only fatal error class: [*Server.ListenAndServe] returns it
// without ever entering the serve loop. Use [errclass.Classify] on the
// wrapped error to distinguish an occupied port (EADDRINUSE) from a
// privileged one (EACCES).
type BindError struct {
	// Network is the network we tried to listen on.
	Network string

	// Address is the address we tried to bind.
	Address string

	// Err is the underlying error.
	Err error
}

// Error implements error.
func (e *BindError) Error() string {
	return fmt.Sprintf("gateway: cannot bind %s/%s: %s", e.Address, e.Network, e.Err.Error())
}

// Unwrap returns the underlying error.
func (e *BindError) Unwrap() error {
	return e.Err
}
