// Package engine owns the single model session used for summarization and
// hides session crashes from its callers.
package engine

const (
	// DefaultTemperature keeps summaries close to the source.
	DefaultTemperature = 0.3

	// DefaultMaxTokens bounds the length of a summary.
	DefaultMaxTokens = 800
)

// Config holds the generation settings of the manager.
type Config struct {
	// SystemPrompt overrides the built in instruction when set.
	SystemPrompt string

	// Temperature is the sampling temperature.
	Temperature float64

	// MaxTokens bounds the completion length.
	MaxTokens int
}

// DefaultConfig returns the standard generation settings.
func DefaultConfig() Config {
	return Config{
		SystemPrompt: SystemPrompt,
		Temperature:  DefaultTemperature,
		MaxTokens:    DefaultMaxTokens,
	}
}
