package transport

import "github.com/roasbeef/pagesum/internal/history"

// Broadcast is the sealed interface of notifications pushed to every
// listening panel.
type Broadcast interface {
	// BroadcastType returns the wire name of the notification.
	BroadcastType() string

	isBroadcast()
}

// HistoryUpdated announces a newly added item.
type HistoryUpdated struct {
	Item history.SummaryItem `json:"item"`
}

// BroadcastType implements Broadcast.
func (HistoryUpdated) BroadcastType() string { return TypeHistoryUpdated }
func (HistoryUpdated) isBroadcast()          {}

// SummaryUpdated announces new result fields of an item.
type SummaryUpdated struct {
	ID      string         `json:"id"`
	Summary string         `json:"summary"`
	Status  history.Status `json:"status"`
	Error   string         `json:"error,omitempty"`
}

// BroadcastType implements Broadcast.
func (SummaryUpdated) BroadcastType() string { return TypeSummaryUpdated }
func (SummaryUpdated) isBroadcast()          {}

// SummaryDeleted announces a removed item.
type SummaryDeleted struct {
	ID string `json:"id"`
}

// BroadcastType implements Broadcast.
func (SummaryDeleted) BroadcastType() string { return TypeSummaryDeleted }
func (SummaryDeleted) isBroadcast()          {}

// ModelLoadProgress reports engine load progress in [0, 1].
type ModelLoadProgress struct {
	Progress float64 `json:"progress"`
}

// BroadcastType implements Broadcast.
func (ModelLoadProgress) BroadcastType() string { return TypeModelLoadProgress }
func (ModelLoadProgress) isBroadcast()          {}

// SummaryPartial carries the cumulative text of an in-progress summary. It
// is never persisted.
type SummaryPartial struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// BroadcastType implements Broadcast.
func (SummaryPartial) BroadcastType() string { return TypeSummaryPartial }
func (SummaryPartial) isBroadcast()          {}
