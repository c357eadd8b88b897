package actor

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// stoppable is the slice of Actor the system needs for shutdown.
type stoppable interface {
	Stop()
}

// SystemConfig holds configuration parameters for the ActorSystem.
type SystemConfig struct {
	// MailboxCapacity is the default capacity for actor mailboxes.
	MailboxCapacity int
}

// DefaultConfig returns a default configuration for the ActorSystem.
func DefaultConfig() SystemConfig {
	return SystemConfig{
		MailboxCapacity: 100,
	}
}

// ActorSystem owns a set of actors, a receptionist for discovery, and a dead
// letter office for undeliverable messages.
type ActorSystem struct {
	receptionist *Receptionist
	deadLetters  ActorRef[Message, any]
	config       SystemConfig

	mu     sync.RWMutex
	actors map[string]stoppable

	ctx     context.Context
	cancel  context.CancelFunc
	actorWg sync.WaitGroup
}

// NewActorSystem creates a new actor system using the default configuration.
func NewActorSystem() *ActorSystem {
	return NewActorSystemWithConfig(DefaultConfig())
}

// NewActorSystemWithConfig creates a new actor system with custom
// configuration.
func NewActorSystemWithConfig(config SystemConfig) *ActorSystem {
	ctx, cancel := context.WithCancel(context.Background())

	system := &ActorSystem{
		receptionist: newReceptionist(),
		config:       config,
		actors:       make(map[string]stoppable),
		ctx:          ctx,
		cancel:       cancel,
	}

	dlo := NewActor(ActorConfig[Message, any]{
		ID: "dead-letters",
		Behavior: NewFunctionBehavior(
			func(ctx context.Context, msg Message) fn.Result[any] {
				log.DebugS(ctx, "Dead letter received",
					"msg_type", msg.MessageType())

				return fn.Err[any](errors.New(
					"message undeliverable: " +
						msg.MessageType(),
				))
			},
		),
		MailboxSize: config.MailboxCapacity,
		Wg:          &system.actorWg,
	})
	dlo.Start()

	system.deadLetters = dlo.Ref()
	system.actors[dlo.id] = dlo

	return system
}

// Receptionist returns the system's receptionist.
func (as *ActorSystem) Receptionist() *Receptionist {
	return as.receptionist
}

// DeadLetters returns the system's dead letter office.
func (as *ActorSystem) DeadLetters() ActorRef[Message, any] {
	return as.deadLetters
}

// RegisterOption configures RegisterWithSystem.
type RegisterOption func(*registerConfig)

type registerConfig struct {
	cleanupTimeout fn.Option[time.Duration]
	mailboxSize    fn.Option[int]
}

// WithCleanupTimeout overrides the OnStop cleanup timeout for the actor.
func WithCleanupTimeout(d time.Duration) RegisterOption {
	return func(cfg *registerConfig) {
		cfg.cleanupTimeout = fn.Some(d)
	}
}

// WithMailboxSize overrides the system-wide mailbox capacity for the actor.
func WithMailboxSize(n int) RegisterOption {
	return func(cfg *registerConfig) {
		cfg.mailboxSize = fn.Some(n)
	}
}

// stoppedRef returns a ref whose every call fails with ErrActorTerminated,
// used instead of nil when registration is refused.
func stoppedRef[M Message, R any](id string) ActorRef[M, R] {
	a := NewActor(ActorConfig[M, R]{ID: id})
	a.Stop()

	return a.Ref()
}

// RegisterWithSystem creates and starts an actor, adds it to the system and
// registers it with the receptionist under key.
func RegisterWithSystem[M Message, R any](as *ActorSystem, id string,
	key ServiceKey[M, R], behavior ActorBehavior[M, R],
	opts ...RegisterOption) ActorRef[M, R] {

	if as.ctx.Err() != nil {
		return stoppedRef[M, R](id)
	}

	var regCfg registerConfig
	for _, opt := range opts {
		opt(&regCfg)
	}

	a := NewActor(ActorConfig[M, R]{
		ID:             id,
		Behavior:       behavior,
		DLO:            as.deadLetters,
		MailboxSize:    regCfg.mailboxSize.UnwrapOr(as.config.MailboxCapacity),
		Wg:             &as.actorWg,
		CleanupTimeout: regCfg.cleanupTimeout,
	})

	if err := registerRef(as.receptionist, key, a.Ref()); err != nil {
		log.WarnS(as.ctx, "Actor registration refused", err,
			"actor_id", id, "service_key", key.name)

		return stoppedRef[M, R](id)
	}

	as.mu.Lock()
	as.actors[id] = a
	as.mu.Unlock()

	a.Start()

	log.DebugS(as.ctx, "Actor registered with system",
		"actor_id", id, "service_key", key.name)

	return a.Ref()
}

// StopAndRemoveActor stops the actor with the given id and forgets it. It
// reports whether the actor was known.
func (as *ActorSystem) StopAndRemoveActor(id string) bool {
	as.mu.Lock()
	a, ok := as.actors[id]
	delete(as.actors, id)
	as.mu.Unlock()

	if !ok {
		return false
	}

	a.Stop()
	as.receptionist.removeID(id)

	return true
}

// Shutdown stops every actor and waits for their goroutines to exit, or for
// ctx to end.
func (as *ActorSystem) Shutdown(ctx context.Context) error {
	// Cancel first so that no registration can sneak in after the snapshot.
	as.cancel()

	as.mu.Lock()
	actors := make([]stoppable, 0, len(as.actors))
	for _, a := range as.actors {
		actors = append(actors, a)
	}
	as.actors = make(map[string]stoppable)
	as.mu.Unlock()

	log.InfoS(ctx, "Actor system shutting down", "num_actors", len(actors))

	for _, a := range actors {
		a.Stop()
	}

	done := make(chan struct{})
	go func() {
		as.actorWg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.InfoS(ctx, "Actor system shutdown completed")
		return nil

	case <-ctx.Done():
		log.ErrorS(ctx, "Actor system shutdown incomplete", ctx.Err())
		return ctx.Err()
	}
}

// ServiceKey is a typed name under which actors are discovered.
type ServiceKey[M Message, R any] struct {
	name string
}

// NewServiceKey creates a new service key with the given name.
func NewServiceKey[M Message, R any](name string) ServiceKey[M, R] {
	return ServiceKey[M, R]{name: name}
}

// Name returns the key's name.
func (sk ServiceKey[M, R]) Name() string {
	return sk.name
}

// Spawn is shorthand for RegisterWithSystem.
func (sk ServiceKey[M, R]) Spawn(as *ActorSystem, id string,
	behavior ActorBehavior[M, R], opts ...RegisterOption) ActorRef[M, R] {

	return RegisterWithSystem(as, id, sk, behavior, opts...)
}

// Find returns every ref registered under the key.
func (sk ServiceKey[M, R]) Find(sys SystemContext) []ActorRef[M, R] {
	return FindInReceptionist(sys.Receptionist(), sk)
}

// Ref returns the first ref registered under the key, if any.
func (sk ServiceKey[M, R]) Ref(sys SystemContext) fn.Option[ActorRef[M, R]] {
	refs := sk.Find(sys)
	if len(refs) == 0 {
		return fn.None[ActorRef[M, R]]()
	}

	return fn.Some(refs[0])
}

// Broadcast Tells msg to every actor registered under the key and returns how
// many were addressed.
func (sk ServiceKey[M, R]) Broadcast(sys SystemContext, ctx context.Context,
	msg M) int {

	refs := sk.Find(sys)
	for _, ref := range refs {
		ref.Tell(ctx, msg)
	}

	return len(refs)
}

// serviceTypeInfo records the type signature registered under a name.
type serviceTypeInfo struct {
	msgType  string
	respType string
}

// Receptionist maps service names to actor refs.
type Receptionist struct {
	mu            sync.RWMutex
	registrations map[string][]BaseActorRef
	types         map[string]serviceTypeInfo
}

func newReceptionist() *Receptionist {
	return &Receptionist{
		registrations: make(map[string][]BaseActorRef),
		types:         make(map[string]serviceTypeInfo),
	}
}

// registerRef adds ref under key, refusing a name already bound to different
// types.
func registerRef[M Message, R any](r *Receptionist, key ServiceKey[M, R],
	ref ActorRef[M, R]) error {

	r.mu.Lock()
	defer r.mu.Unlock()

	want := serviceTypeInfo{
		msgType:  reflect.TypeOf((*M)(nil)).Elem().String(),
		respType: reflect.TypeOf((*R)(nil)).Elem().String(),
	}
	if have, ok := r.types[key.name]; ok && have != want {
		return fmt.Errorf("%w: service %q is (%s, %s), not (%s, %s)",
			ErrServiceKeyTypeMismatch, key.name, have.msgType,
			have.respType, want.msgType, want.respType)
	}

	r.types[key.name] = want
	r.registrations[key.name] = append(r.registrations[key.name], ref)

	return nil
}

// FindInReceptionist returns all refs registered under key.
func FindInReceptionist[M Message, R any](r *Receptionist,
	key ServiceKey[M, R]) []ActorRef[M, R] {

	r.mu.RLock()
	defer r.mu.RUnlock()

	base := r.registrations[key.name]
	refs := make([]ActorRef[M, R], 0, len(base))
	for _, b := range base {
		if ref, ok := b.(ActorRef[M, R]); ok {
			refs = append(refs, ref)
		}
	}

	return refs
}

// removeID drops every registration of the actor with the given id.
func (r *Receptionist) removeID(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, refs := range r.registrations {
		kept := refs[:0]
		for _, ref := range refs {
			if ref.ID() != id {
				kept = append(kept, ref)
			}
		}

		if len(kept) == 0 {
			delete(r.registrations, name)
			delete(r.types, name)
			continue
		}
		r.registrations[name] = kept
	}
}
