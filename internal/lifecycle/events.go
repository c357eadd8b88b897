package lifecycle

import "github.com/roasbeef/pagesum/internal/history"

// ItemEvent triggers a state transition of a summary item.
type ItemEvent interface {
	itemEventMarker()
}

// Event types for the item FSM.
type (
	// StartEvent begins generation for a freshly created item.
	StartEvent struct{}

	// RetryEvent restarts generation for a finished item.
	RetryEvent struct{}

	// PartialEvent carries the cumulative text generated so far.
	PartialEvent struct {
		Text string
	}

	// CompleteEvent carries the final summary.
	CompleteEvent struct {
		Summary string

		// FromCache is set when the summary was served from the
		// content cache instead of the engine.
		FromCache bool
	}

	// FailEvent ends generation with an error.
	FailEvent struct {
		Reason string
	}

	// InterruptEvent marks generation lost to a restart.
	InterruptEvent struct{}
)

func (StartEvent) itemEventMarker()     {}
func (RetryEvent) itemEventMarker()     {}
func (PartialEvent) itemEventMarker()   {}
func (CompleteEvent) itemEventMarker()  {}
func (FailEvent) itemEventMarker()      {}
func (InterruptEvent) itemEventMarker() {}

// ItemOutboxEvent is a side effect requested by a transition.
type ItemOutboxEvent interface {
	outboxEventMarker()
}

type (
	// PersistItem writes the result fields of an item through the
	// coordinator.
	PersistItem struct {
		ID      string
		Summary string
		Status  history.Status
		Error   string
	}

	// NotifyItem publishes the in-memory partial projection of an item.
	// The text is read from the in-progress state.
	NotifyItem struct {
		ID string
	}

	// CacheSummary stores a finished summary under its content hash.
	CacheSummary struct {
		Hash    string
		Summary string
	}
)

func (PersistItem) outboxEventMarker()  {}
func (NotifyItem) outboxEventMarker()   {}
func (CacheSummary) outboxEventMarker() {}
