package actorutil

import (
	"context"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/roasbeef/pagesum/internal/baselib/actor"
	"github.com/stretchr/testify/require"
)

type ping struct {
	actor.BaseMessage
	delay time.Duration
}

func (ping) MessageType() string { return "ping" }

type reply interface{ isReply() }

type pong struct{ n int }

func (pong) isReply() {}

type other struct{}

func (other) isReply() {}

func spawnPinger(t *testing.T) actor.ActorRef[ping, reply] {
	t.Helper()

	system := actor.NewActorSystem()
	t.Cleanup(func() {
		_ = system.Shutdown(context.Background())
	})

	key := actor.NewServiceKey[ping, reply]("pinger")

	return key.Spawn(system, "pinger", actor.NewFunctionBehavior(
		func(ctx context.Context, msg ping) fn.Result[reply] {
			if msg.delay > 0 {
				select {
				case <-time.After(msg.delay):
				case <-ctx.Done():
					return fn.Err[reply](ctx.Err())
				}
			}

			return fn.Ok[reply](pong{n: 1})
		},
	))
}

// TestAskAwaitTyped verifies the typed assertion for union replies.
func TestAskAwaitTyped(t *testing.T) {
	t.Parallel()

	ref := spawnPinger(t)
	ctx := context.Background()

	p, err := AskAwaitTyped[pong](ctx, ref, ping{}, time.Second)
	require.NoError(t, err)
	require.Equal(t, 1, p.n)

	_, err = AskAwaitTyped[other](ctx, ref, ping{}, time.Second)
	require.ErrorContains(t, err, "unexpected response type")
}

// TestAskTimeoutExpires verifies the timeout bound.
func TestAskTimeoutExpires(t *testing.T) {
	t.Parallel()

	ref := spawnPinger(t)

	_, err := AskTimeout(
		context.Background(), ref, ping{delay: time.Second},
		20*time.Millisecond,
	)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
