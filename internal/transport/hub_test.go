package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roasbeef/pagesum/internal/actorutil"
	"github.com/roasbeef/pagesum/internal/baselib/actor"
)

func newTestHub(t *testing.T) HubRef {
	t.Helper()

	system := actor.NewActorSystem()
	t.Cleanup(func() {
		_ = system.Shutdown(context.Background())
	})

	return HubKey.Spawn(system, "hub", NewBroadcastHub())
}

func TestHubDeliversInOrder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	hub := newTestHub(t)

	first, err := Subscribe(ctx, hub, 10)
	require.NoError(t, err)
	second, err := Subscribe(ctx, hub, 10)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		Publish(ctx, hub, ModelLoadProgress{Progress: float64(i) / 4})
	}

	for _, sub := range []*Subscription{first, second} {
		for i := 0; i < 5; i++ {
			select {
			case b := <-sub.C():
				require.Equal(t, ModelLoadProgress{
					Progress: float64(i) / 4,
				}, b)

			case <-time.After(time.Second):
				t.Fatal("broadcast not delivered")
			}
		}
	}
}

func TestHubUnsubscribe(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	hub := newTestHub(t)

	sub, err := Subscribe(ctx, hub, 1)
	require.NoError(t, err)
	sub.Cancel(ctx)

	resp, err := actorutil.AskAwaitTyped[PublishResponse](
		ctx, hub, HubRequest(PublishMsg{Broadcast: SummaryDeleted{ID: "x"}}),
		time.Second,
	)
	require.NoError(t, err)
	require.Zero(t, resp.DeliveredCount)
}

// TestHubSkipsSlowSubscriber checks a full subscriber does not block
// delivery to the others.
func TestHubSkipsSlowSubscriber(t *testing.T) {
	t.Parallel()

	h := NewBroadcastHub()
	slow := make(chan Broadcast)
	fast := make(chan Broadcast, 1)

	h.Receive(context.Background(), SubscribeMsg{
		SubscriberID: "slow", DeliveryChan: slow,
	})
	h.Receive(context.Background(), SubscribeMsg{
		SubscriberID: "fast", DeliveryChan: fast,
	})
	h.Receive(context.Background(), SubscribeMsg{
		SubscriberID: "fast", DeliveryChan: fast,
	})
	require.Equal(t, 2, h.SubscriberCount())

	resp, err := h.Receive(context.Background(), PublishMsg{
		Broadcast: SummaryDeleted{ID: "x"},
	}).Unpack()
	require.NoError(t, err)
	require.Equal(t, PublishResponse{DeliveredCount: 1}, resp)
	require.Equal(t, SummaryDeleted{ID: "x"}, <-fast)
}
