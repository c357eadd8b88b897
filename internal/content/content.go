// Package content holds the text rules shared by every stage of the
// pipeline: the content length cap, the content hash used as cache key, and
// the cleanup of model reasoning markup.
package content

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

const (
	// MaxLength is the hard cap, in characters, on text sent to the
	// engine.
	MaxLength = 3000

	// Ellipsis is appended to truncated text.
	Ellipsis = "..."
)

// Truncate cuts s to MaxLength characters, appending Ellipsis when anything
// was removed. It never rejects input.
func Truncate(s string) string {
	return TruncateTo(s, MaxLength)
}

// TruncateTo cuts s to n characters, appending Ellipsis when anything was
// removed.
func TruncateTo(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}

	return string(runes[:n]) + Ellipsis
}

// Hash returns the cache key for a piece of (already truncated) content.
func Hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

var (
	// thinkBlock matches a closed reasoning block.
	thinkBlock = regexp.MustCompile(`(?is)<think>.*?</think>`)

	// openThink matches an unterminated block at the end of a stream.
	openThink = regexp.MustCompile(`(?is)<think>.*$`)
)

// StripThinkTags removes <think>...</think> reasoning blocks, including a
// trailing block that has not been closed yet, and trims the result.
func StripThinkTags(s string) string {
	s = thinkBlock.ReplaceAllString(s, "")
	s = openThink.ReplaceAllString(s, "")

	return strings.TrimSpace(s)
}

// NormalizeSpace collapses every run of whitespace into a single space.
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
