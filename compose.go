//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/bassosimone/nop/blob/main/compose.go
//

package gateway

import "context"

// Compose2 runs first and feeds its result to second.
//
// When first fails, second does not run and the zero value is returned
// along with the error. Every request and dial pipeline is built from it.
func Compose2[A, B, C any](first Func[A, B], second Func[B, C]) Func[A, C] {
	return &pipeline[A, B, C]{first: first, second: second}
}

type pipeline[A, B, C any] struct {
	first  Func[A, B]
	second Func[B, C]
}

func (p *pipeline[A, B, C]) Call(ctx context.Context, input A) (C, error) {
	middle, err := p.first.Call(ctx, input)
	if err != nil {
		var zero C
		return zero, err
	}
	return p.second.Call(ctx, middle)
}

// Compose3 is like [Compose2] with three stages.
func Compose3[A, B, C, D any](op1 Func[A, B], op2 Func[B, C], op3 Func[C, D]) Func[A, D] {
	return Compose2(Compose2(op1, op2), op3)
}

// Compose4 is like [Compose2] with four stages.
func Compose4[A, B, C, D, E any](op1 Func[A, B], op2 Func[B, C], op3 Func[C, D], op4 Func[D, E]) Func[A, E] {
	return Compose2(Compose3(op1, op2, op3), op4)
}

// Apply binds input to fn, yielding a [Func] taking [Unit].
//
// Dial pipelines take the endpoint they connect to; Apply fixes the
// endpoint once at construction time.
func Apply[A, B any](fn Func[A, B], input A) Func[Unit, B] {
	return FuncAdapter[Unit, B](func(ctx context.Context, _ Unit) (B, error) {
		return fn.Call(ctx, input)
	})
}
