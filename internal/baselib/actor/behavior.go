package actor

import (
	"context"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// FunctionBehavior adapts a plain function to the ActorBehavior interface.
type FunctionBehavior[M Message, R any] struct {
	handler func(ctx context.Context, msg M) fn.Result[R]
}

// NewFunctionBehavior wraps f as an ActorBehavior.
func NewFunctionBehavior[M Message, R any](
	f func(ctx context.Context, msg M) fn.Result[R]) *FunctionBehavior[M, R] {

	return &FunctionBehavior[M, R]{handler: f}
}

// Receive calls the wrapped function.
func (b *FunctionBehavior[M, R]) Receive(ctx context.Context,
	msg M) fn.Result[R] {

	return b.handler(ctx, msg)
}
