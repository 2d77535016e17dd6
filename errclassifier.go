// SPDX-License-Identifier: GPL-3.0-or-later

package gateway

import "github.com/bassosimone/gateway/errclass"

// ErrClassifier classifies errors into categorical strings for analysis.
//
// Implementations map errors to short, descriptive labels (e.g., "EMALFORMED",
// "EADDRINUSE") that end up in the errClass field of *Done events.
type ErrClassifier interface {
	Classify(err error) string
}

// ErrClassifierFunc adapts a function to the [ErrClassifier] interface.
type ErrClassifierFunc func(error) string

var _ ErrClassifier = ErrClassifierFunc(nil)

// Classify implements [ErrClassifier].
func (f ErrClassifierFunc) Classify(err error) string {
	return f(err)
}

// DefaultErrClassifier classifies using [errclass.Classify].
var DefaultErrClassifier = ErrClassifierFunc(errclass.Classify)
