package lifecycle

import (
	"context"
	"fmt"

	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/roasbeef/pagesum/internal/history"
)

// ItemFSM drives one summary item through its states.
type ItemFSM struct {
	state ItemState
	env   *ItemEnvironment
}

// NewItemFSM creates an FSM positioned at the persisted status of item.
func NewItemFSM(item history.SummaryItem, contentHash string) *ItemFSM {
	return &ItemFSM{
		state: StateFromStatus(item.Status),
		env: &ItemEnvironment{
			ItemID:      item.ID,
			ContentHash: contentHash,
		},
	}
}

// ProcessEvent applies event and returns the outbox events to dispatch. The
// state is unchanged when the event is rejected.
func (f *ItemFSM) ProcessEvent(ctx context.Context,
	event ItemEvent) ([]ItemOutboxEvent, error) {

	transition, err := f.state.ProcessEvent(ctx, event, f.env)
	if err != nil {
		return nil, fmt.Errorf("process event %T: %w", event, err)
	}

	f.state = transition.NextState

	return transition.OutboxEvents, nil
}

// Status returns the persisted status of the current state.
func (f *ItemFSM) Status() history.Status {
	return f.state.Status()
}

// Partial returns the text streamed so far. It is empty outside the
// in-progress state.
func (f *ItemFSM) Partial() string {
	if s, ok := f.state.(*StateInProgress); ok {
		return s.Partial
	}

	return ""
}

// FailureReason returns why generation failed when the item is in the error
// state.
func (f *ItemFSM) FailureReason() fn.Option[string] {
	if s, ok := f.state.(*StateError); ok {
		return fn.Some(s.Reason)
	}

	return fn.None[string]()
}
