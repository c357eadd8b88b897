package actor

import (
	"context"
	"sync"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// promiseImpl is a single-assignment cell that implements both Promise and
// Future.
type promiseImpl[T any] struct {
	done   chan struct{}
	once   sync.Once
	result fn.Result[T]
}

// NewPromise creates a new, uncompleted promise.
func NewPromise[T any]() Promise[T] {
	return &promiseImpl[T]{
		done: make(chan struct{}),
	}
}

// Future returns the read side of the promise.
func (p *promiseImpl[T]) Future() Future[T] {
	return p
}

// Complete sets the result exactly once.
func (p *promiseImpl[T]) Complete(result fn.Result[T]) bool {
	completed := false
	p.once.Do(func() {
		p.result = result
		close(p.done)
		completed = true
	})

	return completed
}

// Await blocks until the promise completes or ctx is done.
func (p *promiseImpl[T]) Await(ctx context.Context) fn.Result[T] {
	select {
	case <-p.done:
		return p.result

	case <-ctx.Done():
		return fn.Err[T](ctx.Err())
	}
}

// ThenApply chains a transformation onto the future.
func (p *promiseImpl[T]) ThenApply(ctx context.Context,
	f func(T) T) Future[T] {

	next := NewPromise[T]()
	go func() {
		val, err := p.Await(ctx).Unpack()
		if err != nil {
			next.Complete(fn.Err[T](err))
			return
		}

		next.Complete(fn.Ok(f(val)))
	}()

	return next.Future()
}

// OnComplete runs f in a new goroutine once the result is known.
func (p *promiseImpl[T]) OnComplete(ctx context.Context,
	f func(fn.Result[T])) {

	go func() {
		f(p.Await(ctx))
	}()
}

// CompletedFuture returns a future that is already resolved to result.
func CompletedFuture[T any](result fn.Result[T]) Future[T] {
	p := NewPromise[T]()
	p.Complete(result)

	return p.Future()
}
