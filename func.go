// SPDX-License-Identifier: GPL-3.0-or-later

package gateway

import "context"

// Func is a generic operation that accepts an input and returns a result.
//
// Every stage of the gateway (listen, accept, read, parse, invoke, write)
// is a Func. Stages are composed using [Compose2], [Compose3], etc. so that
// the output of one stage flows into the input of the next.
//
// Resource ownership contract: the stages that handle an accepted connection
// never close it. The [*Server] owns each accepted connection and closes it
// exactly once when the composed pipeline returns, regardless of the outcome.
type Func[A, B any] interface {
	Call(ctx context.Context, input A) (B, error)
}

// FuncAdapter wraps a function as a [Func] implementation.
//
// Use this to create ad-hoc [Func] instances from closures, for example
// to observe the intermediate values of a pipeline in tests.
type FuncAdapter[A, B any] func(ctx context.Context, input A) (B, error)

// Call implements [Func].
func (f FuncAdapter[A, B]) Call(ctx context.Context, input A) (B, error) {
	return f(ctx, input)
}
