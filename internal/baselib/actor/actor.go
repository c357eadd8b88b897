package actor

import (
	"context"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// DefaultCleanupTimeout bounds the OnStop hook of a Stoppable behavior.
const DefaultCleanupTimeout = 5 * time.Second

// mergeContexts returns a context that is cancelled when either parent is,
// keeping the earlier of the two deadlines.
func mergeContexts(ctx1, ctx2 context.Context) (context.Context,
	context.CancelFunc) {

	base := ctx1
	d1, ok1 := ctx1.Deadline()
	if d2, ok2 := ctx2.Deadline(); ok2 && (!ok1 || d2.Before(d1)) {
		base = ctx2
	}

	merged, cancel := context.WithCancel(base)
	go func() {
		select {
		case <-ctx1.Done():
			cancel()
		case <-ctx2.Done():
			cancel()
		case <-merged.Done():
		}
	}()

	return merged, cancel
}

// ActorConfig holds the parameters for creating a new Actor.
type ActorConfig[M Message, R any] struct {
	// ID is the unique identifier for the actor.
	ID string

	// Behavior defines how the actor responds to messages.
	Behavior ActorBehavior[M, R]

	// DLO receives messages that could not be processed because the
	// actor stopped. May be nil.
	DLO ActorRef[Message, any]

	// MailboxSize is the buffer capacity of the actor's mailbox.
	MailboxSize int

	// Wg, when set, tracks the lifetime of the processing goroutine.
	Wg *sync.WaitGroup

	// CleanupTimeout overrides DefaultCleanupTimeout.
	CleanupTimeout fn.Option[time.Duration]
}

// Actor owns a behavior and feeds it messages from its mailbox, one at a time,
// on a dedicated goroutine.
type Actor[M Message, R any] struct {
	id       string
	behavior ActorBehavior[M, R]
	mailbox  *mailbox[M, R]

	ctx    context.Context
	cancel context.CancelFunc

	dlo            ActorRef[Message, any]
	wg             *sync.WaitGroup
	cleanupTimeout time.Duration

	startOnce sync.Once
	stopOnce  sync.Once

	ref *actorRef[M, R]
}

// NewActor creates an actor. Start must be called before it processes
// messages.
func NewActor[M Message, R any](cfg ActorConfig[M, R]) *Actor[M, R] {
	ctx, cancel := context.WithCancel(context.Background())

	a := &Actor[M, R]{
		id:             cfg.ID,
		behavior:       cfg.Behavior,
		mailbox:        newMailbox[M, R](ctx, cfg.MailboxSize),
		ctx:            ctx,
		cancel:         cancel,
		dlo:            cfg.DLO,
		wg:             cfg.Wg,
		cleanupTimeout: cfg.CleanupTimeout.UnwrapOr(DefaultCleanupTimeout),
	}
	a.ref = &actorRef[M, R]{actor: a}

	return a
}

// Start launches the processing goroutine. Extra calls are no-ops.
func (a *Actor[M, R]) Start() {
	a.startOnce.Do(func() {
		log.DebugS(a.ctx, "Starting actor", "actor_id", a.id)

		if a.wg != nil {
			a.wg.Add(1)
		}
		go a.process()
	})
}

// Stop cancels the actor's context. The goroutine then drains the mailbox to
// the DLO, fails pending Asks and runs OnStop.
func (a *Actor[M, R]) Stop() {
	a.stopOnce.Do(a.cancel)
}

// Ref returns the actor's reference.
func (a *Actor[M, R]) Ref() ActorRef[M, R] {
	return a.ref
}

// TellRef returns a tell-only view of the actor's reference.
func (a *Actor[M, R]) TellRef() TellOnlyRef[M] {
	return a.ref
}

func (a *Actor[M, R]) process() {
	if a.wg != nil {
		defer a.wg.Done()
	}

	for env := range a.mailbox.receive(a.ctx) {
		// Asks observe the caller's deadline as well as shutdown; Tells
		// are detached from the sender once queued.
		processCtx, cancel := a.ctx, context.CancelFunc(func() {})
		if env.promise != nil {
			processCtx, cancel = mergeContexts(a.ctx, env.callerCtx)
		}

		log.TraceS(processCtx, "Actor processing message",
			"actor_id", a.id,
			"msg_type", env.message.MessageType())

		result := a.behavior.Receive(processCtx, env.message)
		cancel()

		if env.promise != nil {
			env.promise.Complete(result)
		}
	}

	a.mailbox.close()

	drained := 0
	for env := range a.mailbox.drain() {
		drained++

		if a.dlo != nil {
			a.dlo.Tell(context.Background(), env.message)
		}
		if env.promise != nil {
			env.promise.Complete(fn.Err[R](ErrActorTerminated))
		}
	}

	if s, ok := a.behavior.(Stoppable); ok {
		ctx, cancel := context.WithTimeout(
			context.Background(), a.cleanupTimeout,
		)
		if err := s.OnStop(ctx); err != nil {
			log.WarnS(ctx, "Actor cleanup failed", err,
				"actor_id", a.id)
		}
		cancel()
	}

	log.DebugS(context.Background(), "Actor terminated",
		"actor_id", a.id, "drained_messages", drained)
}

// actorRef is the concrete ActorRef handed out by an Actor.
type actorRef[M Message, R any] struct {
	actor *Actor[M, R]
}

// ID returns the actor's identifier.
func (r *actorRef[M, R]) ID() string {
	return r.actor.id
}

// Tell enqueues msg without waiting for a reply. Messages refused because
// the actor stopped go to the DLO; messages refused because the caller gave
// up are dropped.
func (r *actorRef[M, R]) Tell(ctx context.Context, msg M) {
	ok := r.actor.mailbox.send(ctx, envelope[M, R]{
		message:   msg,
		callerCtx: ctx,
	})
	if ok {
		return
	}

	if (ctx.Err() == nil || r.actor.ctx.Err() != nil) && r.actor.dlo != nil {
		log.DebugS(ctx, "Tell refused, routing to DLO",
			"actor_id", r.actor.id,
			"msg_type", msg.MessageType())

		r.actor.dlo.Tell(context.Background(), msg)
	}
}

// Ask enqueues msg and returns a Future for the reply.
func (r *actorRef[M, R]) Ask(ctx context.Context, msg M) Future[R] {
	promise := NewPromise[R]()

	if r.actor.ctx.Err() != nil {
		promise.Complete(fn.Err[R](ErrActorTerminated))
		return promise.Future()
	}

	ok := r.actor.mailbox.send(ctx, envelope[M, R]{
		message:   msg,
		promise:   promise,
		callerCtx: ctx,
	})
	if !ok {
		err := ctx.Err()
		if err == nil || r.actor.ctx.Err() != nil {
			err = ErrActorTerminated
		}
		promise.Complete(fn.Err[R](err))
	}

	return promise.Future()
}
