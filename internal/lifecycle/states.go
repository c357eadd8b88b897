package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/roasbeef/pagesum/internal/content"
	"github.com/roasbeef/pagesum/internal/history"
)

const (
	// ErrorSummaryText replaces the summary of an item that failed.
	ErrorSummaryText = "요약 생성 중 오류가 발생했습니다."

	// InterruptedMessage is the error of an item found in progress after
	// a restart.
	InterruptedMessage = "interrupted, please retry"
)

// ErrInvalidTransition is returned when an event is not accepted by the
// current state.
var ErrInvalidTransition = errors.New("invalid item transition")

// ItemState is the sealed interface of the item states.
type ItemState interface {
	// ProcessEvent handles an event and returns the next state with the
	// outbox events to dispatch.
	ProcessEvent(ctx context.Context, event ItemEvent,
		env *ItemEnvironment) (*ItemTransition, error)

	// Status is the persisted status of the state.
	Status() history.Status

	// String returns the state name.
	String() string

	isItemState()
}

// ItemTransition is the result of processing an event.
type ItemTransition struct {
	NextState    ItemState
	OutboxEvents []ItemOutboxEvent
}

// ItemEnvironment is the context shared by all transitions of one item.
type ItemEnvironment struct {
	ItemID string

	// ContentHash is the cache key of the item content.
	ContentHash string
}

var (
	_ ItemState = (*StatePending)(nil)
	_ ItemState = (*StateInProgress)(nil)
	_ ItemState = (*StateDone)(nil)
	_ ItemState = (*StateError)(nil)
)

// StateFromStatus returns the state matching a persisted status. Unknown
// statuses map to pending.
func StateFromStatus(status history.Status) ItemState {
	switch status {
	case history.StatusInProgress:
		return &StateInProgress{}
	case history.StatusDone:
		return &StateDone{}
	case history.StatusError:
		return &StateError{}
	default:
		return &StatePending{}
	}
}

func invalid(event ItemEvent, state ItemState) error {
	return fmt.Errorf("%w: %T in state %s", ErrInvalidTransition, event,
		state)
}

// begin is the transition into in-progress shared by start and retry. The
// summary and error are cleared.
func begin(env *ItemEnvironment) *ItemTransition {
	return &ItemTransition{
		NextState: &StateInProgress{},
		OutboxEvents: []ItemOutboxEvent{
			PersistItem{
				ID:     env.ItemID,
				Status: history.StatusInProgress,
			},
			NotifyItem{ID: env.ItemID},
		},
	}
}

// fail is the transition into error.
func fail(env *ItemEnvironment, reason string) *ItemTransition {
	return &ItemTransition{
		NextState: &StateError{Reason: reason},
		OutboxEvents: []ItemOutboxEvent{
			PersistItem{
				ID:      env.ItemID,
				Summary: ErrorSummaryText,
				Status:  history.StatusError,
				Error:   reason,
			},
		},
	}
}

// StatePending is an item created but not yet summarized.
type StatePending struct{}

// ProcessEvent handles events in the pending state.
func (s *StatePending) ProcessEvent(_ context.Context, event ItemEvent,
	env *ItemEnvironment) (*ItemTransition, error) {

	switch event.(type) {
	case StartEvent:
		return begin(env), nil

	default:
		return nil, invalid(event, s)
	}
}

func (s *StatePending) Status() history.Status { return history.StatusPending }
func (s *StatePending) String() string         { return "pending" }
func (s *StatePending) isItemState()           {}

// StateInProgress is an item being generated. Only this state accepts
// stream events.
type StateInProgress struct {
	Partial string
}

// ProcessEvent handles events in the in-progress state.
func (s *StateInProgress) ProcessEvent(_ context.Context, event ItemEvent,
	env *ItemEnvironment) (*ItemTransition, error) {

	switch e := event.(type) {
	case PartialEvent:
		text := content.StripThinkTags(e.Text)

		return &ItemTransition{
			NextState: &StateInProgress{Partial: text},
			OutboxEvents: []ItemOutboxEvent{
				NotifyItem{ID: env.ItemID},
			},
		}, nil

	case CompleteEvent:
		summary := content.StripThinkTags(e.Summary)

		outbox := []ItemOutboxEvent{
			PersistItem{
				ID:      env.ItemID,
				Summary: summary,
				Status:  history.StatusDone,
			},
		}
		if !e.FromCache && env.ContentHash != "" && summary != "" {
			outbox = append(outbox, CacheSummary{
				Hash:    env.ContentHash,
				Summary: summary,
			})
		}

		return &ItemTransition{
			NextState:    &StateDone{},
			OutboxEvents: outbox,
		}, nil

	case FailEvent:
		return fail(env, e.Reason), nil

	case InterruptEvent:
		return fail(env, InterruptedMessage), nil

	default:
		return nil, invalid(event, s)
	}
}

func (s *StateInProgress) Status() history.Status {
	return history.StatusInProgress
}
func (s *StateInProgress) String() string { return "in-progress" }
func (s *StateInProgress) isItemState()   {}

// StateDone is an item with a final summary.
type StateDone struct{}

// ProcessEvent handles events in the done state.
func (s *StateDone) ProcessEvent(_ context.Context, event ItemEvent,
	env *ItemEnvironment) (*ItemTransition, error) {

	switch event.(type) {
	case RetryEvent:
		return begin(env), nil

	default:
		return nil, invalid(event, s)
	}
}

func (s *StateDone) Status() history.Status { return history.StatusDone }
func (s *StateDone) String() string         { return "done" }
func (s *StateDone) isItemState()           {}

// StateError is an item whose generation failed.
type StateError struct {
	Reason string
}

// ProcessEvent handles events in the error state.
func (s *StateError) ProcessEvent(_ context.Context, event ItemEvent,
	env *ItemEnvironment) (*ItemTransition, error) {

	switch event.(type) {
	case RetryEvent:
		return begin(env), nil

	default:
		return nil, invalid(event, s)
	}
}

func (s *StateError) Status() history.Status { return history.StatusError }
func (s *StateError) String() string         { return "error" }
func (s *StateError) isItemState()           {}
