package content

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestTruncate(t *testing.T) {
	t.Parallel()

	short := strings.Repeat("a", MaxLength)
	require.Equal(t, short, Truncate(short))

	long := strings.Repeat("가", MaxLength+10)
	got := Truncate(long)
	require.True(t, strings.HasSuffix(got, Ellipsis))
	require.Equal(t, MaxLength+len(Ellipsis), utf8.RuneCountInString(got))
}

// TestTruncateBounded checks the cap holds for arbitrary input.
func TestTruncateBounded(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.String().Draw(t, "s")
		n := rapid.IntRange(0, 64).Draw(t, "n")

		got := TruncateTo(s, n)
		if utf8.RuneCountInString(got) > n+len(Ellipsis) {
			t.Fatalf("truncated text too long: %q", got)
		}
		if utf8.RuneCountInString(s) <= n && got != s {
			t.Fatalf("short text modified: %q -> %q", s, got)
		}
	})
}

func TestHashStable(t *testing.T) {
	t.Parallel()

	require.Equal(t, Hash("x"), Hash("x"))
	require.NotEqual(t, Hash("x"), Hash("y"))
	require.Len(t, Hash(""), 64)
}

func TestStripThinkTags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"none", "  plain summary ", "plain summary"},
		{"closed", "<think>reasoning</think>\nAnswer.", "Answer."},
		{"multiline", "<THINK>a\nb\n</THINK>Answer", "Answer"},
		{"two blocks", "<think>a</think>One.<think>b</think> Two.", "One. Two."},
		{"unterminated", "Answer so far <think>still going", "Answer so far"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, StripThinkTags(tc.in))
		})
	}
}
