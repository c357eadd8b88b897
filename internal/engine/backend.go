package engine

import (
	"context"
	"iter"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// Role is the author of a chat message.
type Role string

const (
	// RoleSystem carries the fixed instruction.
	RoleSystem Role = "system"

	// RoleUser carries the content to summarize.
	RoleUser Role = "user"
)

// Message is one chat turn sent to the model.
type Message struct {
	Role    Role
	Content string
}

// Sampling holds the generation parameters of a request.
type Sampling struct {
	Temperature float64
	MaxTokens   int
}

// Usage is the token accounting a backend may report at the end of a
// stream.
type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
}

// Chunk is one element of a completion stream. Delta may be empty for
// chunks that only carry usage.
type Chunk struct {
	Delta string
	Usage fn.Option[Usage]
}

// ProgressFunc receives model load progress in [0, 1].
type ProgressFunc func(progress float64)

// Backend creates engine sessions.
type Backend interface {
	// Open creates a new session, reporting load progress along the
	// way. It blocks until the session is usable or creation failed.
	Open(ctx context.Context, progress ProgressFunc) (Session, error)
}

// Session is a live model session.
type Session interface {
	// Stream runs a chat completion and yields its deltas. A non-nil
	// error ends the sequence.
	Stream(ctx context.Context, msgs []Message,
		sampling Sampling) iter.Seq2[Chunk, error]

	// Close releases the session.
	Close() error
}
