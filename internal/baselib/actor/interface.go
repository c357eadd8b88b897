package actor

import (
	"context"
	"errors"

	"github.com/lightningnetwork/lnd/fn/v2"
)

var (
	// ErrActorTerminated indicates that an operation failed because the
	// target actor was terminated or in the process of shutting down.
	ErrActorTerminated = errors.New("actor terminated")

	// ErrServiceKeyTypeMismatch is returned when a service key name is
	// already registered with a different message or response type.
	ErrServiceKeyTypeMismatch = errors.New("service key type mismatch")
)

// BaseMessage can be embedded in message types defined outside the actor
// package to satisfy the Message interface's unexported marker method.
type BaseMessage struct{}

// messageMarker implements the unexported method for the Message interface.
func (BaseMessage) messageMarker() {}

// Message is a sealed interface for actor messages. Types outside this
// package satisfy it by embedding BaseMessage.
type Message interface {
	messageMarker()

	// MessageType returns the type name of the message, used for logging
	// and dead-letter accounting.
	MessageType() string
}

// Future is the read side of an asynchronous result.
type Future[T any] interface {
	// Await blocks until the result is available or the context is
	// cancelled.
	Await(ctx context.Context) fn.Result[T]

	// ThenApply returns a new future whose value is the result of this
	// one passed through f. Errors pass through untouched.
	ThenApply(ctx context.Context, f func(T) T) Future[T]

	// OnComplete registers a callback run once the result is ready, or
	// with the context error if ctx ends first.
	OnComplete(ctx context.Context, f func(fn.Result[T]))
}

// Promise is the write side of a Future.
type Promise[T any] interface {
	// Future returns the Future tied to this promise.
	Future() Future[T]

	// Complete sets the result. Only the first call wins; it reports
	// whether this call set the value.
	Complete(result fn.Result[T]) bool
}

// BaseActorRef is the non-generic root of all actor references, used where
// heterogeneous refs are stored together (the receptionist).
type BaseActorRef interface {
	// ID returns the unique identifier for this actor.
	ID() string
}

// TellOnlyRef is a reference that only supports fire-and-forget sends.
type TellOnlyRef[M Message] interface {
	BaseActorRef

	// Tell enqueues msg without waiting for a reply. The message may be
	// dropped if ctx is cancelled before it reaches the mailbox.
	Tell(ctx context.Context, msg M)
}

// ActorRef is a reference supporting both Tell and Ask.
type ActorRef[M Message, R any] interface {
	TellOnlyRef[M]

	// Ask enqueues msg and returns a Future completed with the actor's
	// reply, or with an error if the message could not be delivered.
	Ask(ctx context.Context, msg M) Future[R]
}

// ActorBehavior holds the message handling logic of an actor.
type ActorBehavior[M Message, R any] interface {
	// Receive processes one message. For Ask messages the context is
	// cancelled when either the actor stops or the caller's context ends.
	Receive(ctx context.Context, msg M) fn.Result[R]
}

// Stoppable may be implemented by behaviors that own external resources.
// OnStop runs once after the processing loop exits, bounded by the cleanup
// timeout carried in ctx.
type Stoppable interface {
	OnStop(ctx context.Context) error
}

// SystemContext is the narrow view of an ActorSystem needed by service keys.
type SystemContext interface {
	// Receptionist returns the system's receptionist.
	Receptionist() *Receptionist

	// DeadLetters returns the dead letter office.
	DeadLetters() ActorRef[Message, any]
}
