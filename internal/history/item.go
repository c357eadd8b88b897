package history

import "time"

// Status is the lifecycle state of a summary item.
type Status string

const (
	// StatusPending is set when the item is created and no generation has
	// started yet.
	StatusPending Status = "pending"

	// StatusInProgress is set while the engine streams the summary.
	StatusInProgress Status = "in-progress"

	// StatusDone marks a finished summary.
	StatusDone Status = "done"

	// StatusError marks a failed or interrupted generation.
	StatusError Status = "error"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusDone, StatusError:
		return true
	}

	return false
}

// SummaryItem is one summarization request and its result.
type SummaryItem struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	Timestamp time.Time `json:"timestamp"`
	Summary   string    `json:"summary"`
	Status    Status    `json:"status"`

	// Error is only set while Status is StatusError.
	Error string `json:"error,omitempty"`
}

// Draft is the caller supplied part of a new item. The manager assigns the
// id and the initial pending status.
type Draft struct {
	Content   string    `json:"content"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	Timestamp time.Time `json:"timestamp"`
}
