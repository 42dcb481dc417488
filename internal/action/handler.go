package action

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/fuser/internal/decision"
	"github.com/roach88/fuser/internal/ir"
)

// ErrArity is returned when a command carries the wrong number of arguments.
var ErrArity = errors.New("action: wrong number of arguments")

// Handler executes one command variant.
type Handler interface {
	// Spec describes the command to the model.
	Spec() decision.HandlerSpec

	// Handle executes the command and returns the handler's output.
	Handle(ctx context.Context, cmd ir.Command) (any, error)
}

// Implementation executes a typed input.
type Implementation[I, O any] interface {
	Execute(ctx context.Context, in I) (O, error)
}

// ImplementationFunc adapts a function to Implementation.
type ImplementationFunc[I, O any] func(ctx context.Context, in I) (O, error)

// Execute implements Implementation.
func (f ImplementationFunc[I, O]) Execute(ctx context.Context, in I) (O, error) {
	return f(ctx, in)
}

// Decoder turns a command's positional arguments into a typed input.
type Decoder[I any] func(cmd ir.Command) (I, error)

// Bind builds a Handler from a spec, a decoder and an implementation.
func Bind[I, O any](spec decision.HandlerSpec, decode Decoder[I], impl Implementation[I, O]) Handler {
	return &bound[I, O]{spec: spec, decode: decode, impl: impl}
}

type bound[I, O any] struct {
	spec   decision.HandlerSpec
	decode Decoder[I]
	impl   Implementation[I, O]
}

func (b *bound[I, O]) Spec() decision.HandlerSpec {
	return b.spec
}

func (b *bound[I, O]) Handle(ctx context.Context, cmd ir.Command) (any, error) {
	if got, want := len(cmd.Arguments), b.spec.Arity(); got != want {
		return nil, fmt.Errorf("%s: %w: got %d, want %d", b.spec.Name, ErrArity, got, want)
	}
	in, err := b.decode(cmd)
	if err != nil {
		return nil, fmt.Errorf("%s: decode: %w", b.spec.Name, err)
	}
	return b.impl.Execute(ctx, in)
}

// Passthrough is the identity implementation: its output is its input.
type Passthrough[T any] struct{}

// Execute implements Implementation.
func (Passthrough[T]) Execute(_ context.Context, in T) (T, error) {
	return in, nil
}
