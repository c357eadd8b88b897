package transport

import (
	"context"

	"github.com/roasbeef/pagesum/internal/history"
)

// Panel is the controller surface the gateway exposes to remote clients. It
// is implemented by the lifecycle controller.
type Panel interface {
	// SummarizeURL extracts and summarizes a page, returning the final
	// item.
	SummarizeURL(ctx context.Context, url string) (history.SummaryItem, error)

	// Retry regenerates the summary of an existing item.
	Retry(ctx context.Context, id string) (history.SummaryItem, error)

	// Delete removes an item unless it is being summarized.
	Delete(ctx context.Context, id string) error

	// Busy reports whether a summary is in progress.
	Busy() bool
}

// SummarizeURLPayload is the payload of a SUMMARIZE_URL command.
type SummarizeURLPayload struct {
	URL string `json:"url"`
}

// ItemIDPayload is the payload of commands addressing one item.
type ItemIDPayload struct {
	ID string `json:"id"`
}

// ItemResult is the reply payload of commands producing an item.
type ItemResult struct {
	Item history.SummaryItem `json:"item"`
}

// PanelStatus is the reply payload of a PANEL_STATUS command.
type PanelStatus struct {
	Busy bool `json:"busy"`
}
