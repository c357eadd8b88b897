package lifecycle

import (
	"context"
	"testing"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"

	"github.com/roasbeef/pagesum/internal/history"
)

// outboxOf returns the outbox events of type T.
func outboxOf[T ItemOutboxEvent](outbox []ItemOutboxEvent) []T {
	var out []T
	for _, ev := range outbox {
		if e, ok := ev.(T); ok {
			out = append(out, e)
		}
	}

	return out
}

func newFSM(status history.Status) *ItemFSM {
	return NewItemFSM(
		history.SummaryItem{ID: "item-1", Status: status}, "hash-1",
	)
}

func TestItemFSMHappyPath(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fsm := newFSM(history.StatusPending)
	require.Equal(t, history.StatusPending, fsm.Status())

	outbox, err := fsm.ProcessEvent(ctx, StartEvent{})
	require.NoError(t, err)
	require.Equal(t, history.StatusInProgress, fsm.Status())

	persist := outboxOf[PersistItem](outbox)
	require.Len(t, persist, 1)
	require.Equal(t, PersistItem{
		ID: "item-1", Status: history.StatusInProgress,
	}, persist[0])

	outbox, err = fsm.ProcessEvent(ctx, PartialEvent{
		Text: "<think>hmm</think>part",
	})
	require.NoError(t, err)
	require.Empty(t, outboxOf[PersistItem](outbox))
	require.Equal(t, []NotifyItem{{ID: "item-1"}},
		outboxOf[NotifyItem](outbox))
	require.Equal(t, "part", fsm.Partial())
	require.True(t, fsm.FailureReason().IsNone())

	outbox, err = fsm.ProcessEvent(ctx, CompleteEvent{
		Summary: "<think>hmm</think> final ",
	})
	require.NoError(t, err)
	require.Equal(t, history.StatusDone, fsm.Status())
	require.Empty(t, fsm.Partial())
	require.Equal(t, []PersistItem{{
		ID: "item-1", Summary: "final", Status: history.StatusDone,
	}}, outboxOf[PersistItem](outbox))
	require.Equal(t, []CacheSummary{{Hash: "hash-1", Summary: "final"}},
		outboxOf[CacheSummary](outbox))
}

func TestItemFSMCachedCompletionNotRecached(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fsm := newFSM(history.StatusPending)

	_, err := fsm.ProcessEvent(ctx, StartEvent{})
	require.NoError(t, err)

	outbox, err := fsm.ProcessEvent(ctx, CompleteEvent{
		Summary: "cached", FromCache: true,
	})
	require.NoError(t, err)
	require.Empty(t, outboxOf[CacheSummary](outbox))
}

func TestItemFSMFailures(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	tests := []struct {
		name   string
		event  ItemEvent
		reason string
	}{
		{"fail", FailEvent{Reason: "boom"}, "boom"},
		{"interrupt", InterruptEvent{}, InterruptedMessage},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fsm := newFSM(history.StatusInProgress)

			outbox, err := fsm.ProcessEvent(ctx, tc.event)
			require.NoError(t, err)
			require.Equal(t, history.StatusError, fsm.Status())
			require.Equal(t, fn.Some(tc.reason), fsm.FailureReason())
			require.Equal(t, []PersistItem{{
				ID:      "item-1",
				Summary: ErrorSummaryText,
				Status:  history.StatusError,
				Error:   tc.reason,
			}}, outboxOf[PersistItem](outbox))
		})
	}
}

// TestItemFSMTransitionTable checks every (state, event) pair against the
// allowed transitions.
func TestItemFSMTransitionTable(t *testing.T) {
	t.Parallel()

	events := map[string]ItemEvent{
		"start":     StartEvent{},
		"retry":     RetryEvent{},
		"partial":   PartialEvent{Text: "x"},
		"complete":  CompleteEvent{Summary: "x"},
		"fail":      FailEvent{Reason: "x"},
		"interrupt": InterruptEvent{},
	}

	allowed := map[history.Status]map[string]history.Status{
		history.StatusPending: {
			"start": history.StatusInProgress,
		},
		history.StatusInProgress: {
			"partial":   history.StatusInProgress,
			"complete":  history.StatusDone,
			"fail":      history.StatusError,
			"interrupt": history.StatusError,
		},
		history.StatusDone: {
			"retry": history.StatusInProgress,
		},
		history.StatusError: {
			"retry": history.StatusInProgress,
		},
	}

	ctx := context.Background()
	for from, next := range allowed {
		for name, event := range events {
			fsm := newFSM(from)
			_, err := fsm.ProcessEvent(ctx, event)

			to, ok := next[name]
			if !ok {
				require.ErrorIs(t, err, ErrInvalidTransition,
					"%s on %s", name, from)
				require.Equal(t, from, fsm.Status())

				continue
			}

			require.NoError(t, err, "%s on %s", name, from)
			require.Equal(t, to, fsm.Status(), "%s on %s", name, from)
		}
	}
}

func TestStateFromStatusUnknown(t *testing.T) {
	t.Parallel()

	require.Equal(t, "pending", StateFromStatus("bogus").String())
}
