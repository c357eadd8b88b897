// Package actorutil provides small helpers for calling actors from ordinary
// synchronous code.
package actorutil

import (
	"context"
	"fmt"
	"time"

	"github.com/roasbeef/pagesum/internal/baselib/actor"
)

// AskAwait sends an Ask to ref and blocks until the reply is available,
// returning the unpacked value or error.
func AskAwait[M actor.Message, R any](ctx context.Context,
	ref actor.ActorRef[M, R], msg M) (R, error) {

	return ref.Ask(ctx, msg).Await(ctx).Unpack()
}

// AskTimeout is AskAwait bounded by timeout. A zero timeout means no bound
// beyond ctx.
func AskTimeout[M actor.Message, R any](ctx context.Context,
	ref actor.ActorRef[M, R], msg M, timeout time.Duration) (R, error) {

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	return AskAwait(ctx, ref, msg)
}

// AskAwaitTyped is like AskTimeout but additionally asserts the reply to the
// concrete type T. This is the usual way to call an actor whose response is a
// sealed union.
func AskAwaitTyped[T any, M actor.Message, R any](ctx context.Context,
	ref actor.ActorRef[M, R], msg M, timeout time.Duration) (T, error) {

	var zero T

	resp, err := AskTimeout(ctx, ref, msg, timeout)
	if err != nil {
		return zero, err
	}

	typed, ok := any(resp).(T)
	if !ok {
		return zero, fmt.Errorf("unexpected response type: got %T, "+
			"want %T", resp, zero)
	}

	return typed, nil
}

// TellAll sends msg to every ref using fire-and-forget semantics.
func TellAll[M actor.Message](ctx context.Context,
	refs []actor.TellOnlyRef[M], msg M) {

	for _, ref := range refs {
		ref.Tell(ctx, msg)
	}
}
