package actor

import (
	"context"
	"iter"
	"sync"
	"sync/atomic"
)

// envelope carries a message together with the promise of an Ask (nil for a
// Tell) and the sender's context.
type envelope[M Message, R any] struct {
	message   M
	promise   Promise[R]
	callerCtx context.Context
}

// mailbox is a bounded FIFO queue backed by a buffered channel. Messages
// from a single sender are received in send order.
type mailbox[M Message, R any] struct {
	ch chan envelope[M, R]

	// mu guards against sending on a closed channel: senders hold the read
	// lock, close takes the write lock.
	mu        sync.RWMutex
	closed    atomic.Bool
	closeOnce sync.Once

	actorCtx context.Context
}

// newMailbox creates a mailbox with the given capacity, at least one.
func newMailbox[M Message, R any](actorCtx context.Context,
	capacity int) *mailbox[M, R] {

	if capacity <= 0 {
		capacity = 1
	}

	return &mailbox[M, R]{
		ch:       make(chan envelope[M, R], capacity),
		actorCtx: actorCtx,
	}
}

// send blocks until env is queued, ctx ends, or the actor stops.
func (m *mailbox[M, R]) send(ctx context.Context, env envelope[M, R]) bool {
	if ctx.Err() != nil || m.actorCtx.Err() != nil {
		return false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed.Load() {
		return false
	}

	select {
	case m.ch <- env:
		return true

	case <-ctx.Done():
		log.TraceS(ctx, "Mailbox send aborted by caller",
			"msg_type", env.message.MessageType())

		return false

	case <-m.actorCtx.Done():
		return false
	}
}

// receive yields queued envelopes until ctx is done or the mailbox closes.
func (m *mailbox[M, R]) receive(ctx context.Context) iter.Seq[envelope[M, R]] {
	return func(yield func(envelope[M, R]) bool) {
		for {
			// Check first so a ready message never races a
			// cancelled context.
			if ctx.Err() != nil {
				return
			}

			select {
			case env, ok := <-m.ch:
				if !ok || !yield(env) {
					return
				}

			case <-ctx.Done():
				return
			}
		}
	}
}

// close stops further sends. Safe to call more than once.
func (m *mailbox[M, R]) close() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		m.closed.Store(true)
		close(m.ch)
	})
}

// drain yields whatever is left after close.
func (m *mailbox[M, R]) drain() iter.Seq[envelope[M, R]] {
	return func(yield func(envelope[M, R]) bool) {
		if !m.closed.Load() {
			return
		}

		for env := range m.ch {
			if !yield(env) {
				return
			}
		}
	}
}
