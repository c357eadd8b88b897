// Package lifecycle drives summary items from creation to a final summary.
// A Controller owns the single-flight guard, the in-memory partial
// projection and the crash recovery rule; items move through an ItemFSM
// whose outbox events are dispatched to the coordinator.
package lifecycle

import (
	"time"

	"github.com/roasbeef/pagesum/internal/history"
	"github.com/roasbeef/pagesum/internal/transport"
)

// Config tunes a Controller.
type Config struct {
	// UseCache serves identical content from the summary cache without
	// calling the engine.
	UseCache bool

	// ExtractTimeout bounds the content extraction of a page.
	ExtractTimeout time.Duration

	// HistoryLimit is the number of items History returns.
	HistoryLimit int
}

// DefaultConfig returns the default controller settings.
func DefaultConfig() Config {
	return Config{
		UseCache:       true,
		ExtractTimeout: transport.DefaultExtractTimeout,
		HistoryLimit:   history.UIHistoryLimit,
	}
}
