package extractor

import (
	"context"
	"fmt"

	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/roasbeef/pagesum/internal/baselib/actor"
	"github.com/roasbeef/pagesum/internal/transport"
)

// Actor serves extraction requests from the lifecycle controller. Failures
// travel in the response so the caller sees the reason.
type Actor struct {
	ex *Extractor
}

// NewActor wraps ex in an actor behavior.
func NewActor(ex *Extractor) *Actor {
	return &Actor{ex: ex}
}

// Receive implements actor.ActorBehavior.
func (a *Actor) Receive(ctx context.Context,
	msg transport.ExtractorRequest) fn.Result[transport.ExtractorResponse] {

	switch m := msg.(type) {
	case transport.ExtractRequest:
		res, err := a.ex.Extract(ctx, m.URL)
		if err != nil {
			return fn.Ok[transport.ExtractorResponse](
				transport.ExtractResponse{Error: err.Error()},
			)
		}

		return fn.Ok[transport.ExtractorResponse](transport.ExtractResponse{
			Content: res.Content,
			Title:   res.Title,
		})

	default:
		return fn.Err[transport.ExtractorResponse](fmt.Errorf("%w: %T",
			transport.ErrUnknownRequestType, msg))
	}
}

// Spawn registers an extractor actor with system.
func Spawn(system *actor.ActorSystem,
	ex *Extractor) actor.ActorRef[transport.ExtractorRequest, transport.ExtractorResponse] {

	return transport.ExtractorKey.Spawn(system, "extractor", NewActor(ex))
}
