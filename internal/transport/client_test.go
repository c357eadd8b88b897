package transport

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"

	"github.com/roasbeef/pagesum/internal/baselib/actor"
	"github.com/roasbeef/pagesum/internal/history"
)

// spawnCoordinator registers handler as the coordinator of a fresh system.
func spawnCoordinator(t *testing.T,
	handler func(context.Context, Request) fn.Result[Response]) CoordinatorRef {

	t.Helper()

	system := actor.NewActorSystem()
	t.Cleanup(func() {
		_ = system.Shutdown(context.Background())
	})

	return CoordinatorKey.Spawn(
		system, "coordinator", actor.NewFunctionBehavior(handler),
	)
}

func fastConfig() ClientConfig {
	return ClientConfig{
		CallTimeout:  time.Second,
		PingAttempts: 3,
		PingInterval: time.Millisecond,
	}
}

func TestClientHappyPath(t *testing.T) {
	t.Parallel()

	item := history.SummaryItem{ID: "id-1", Status: history.StatusPending}
	ref := spawnCoordinator(t, func(_ context.Context,
		req Request) fn.Result[Response] {

		switch r := req.(type) {
		case PingRequest:
			return fn.Ok[Response](PingResponse{Success: true})

		case GetHistoryRequest:
			return fn.Ok[Response](GetHistoryResponse{
				History: []history.SummaryItem{item},
			})

		case AddItemRequest:
			return fn.Ok[Response](AddItemResponse{
				Success: true, Item: item,
			})

		case GetCachedRequest:
			return fn.Ok[Response](GetCachedResponse{
				Found: r.Hash == "h", Summary: "cached",
			})

		case DeleteSummaryRequest:
			return fn.Ok[Response](DeleteSummaryResponse{
				Success: r.ID == item.ID,
			})

		default:
			return fn.Err[Response](ErrUnknownRequestType)
		}
	})

	ctx := context.Background()
	c := NewClient(fastConfig(), ref, nil)

	require.NoError(t, c.Ping(ctx))
	require.Equal(t, []history.SummaryItem{item}, c.GetHistory(ctx, 20))
	require.Equal(t, item, c.AddItem(ctx, history.Draft{}))
	require.Equal(t, "cached", c.GetCached(ctx, "h").UnwrapOr(""))
	require.True(t, c.GetCached(ctx, "other").IsNone())
	require.True(t, c.DeleteSummary(ctx, item.ID))
	require.False(t, c.DeleteSummary(ctx, "missing"))

	// Requests the fake does not handle fall back to defaults.
	require.False(t, c.Cleanup(ctx))
}

// TestClientSafeDefaults checks every wrapper resolves to a default when
// the coordinator is gone.
func TestClientSafeDefaults(t *testing.T) {
	t.Parallel()

	a := actor.NewActor(actor.ActorConfig[Request, Response]{ID: "dead"})
	a.Stop()

	ctx := context.Background()
	c := NewClient(fastConfig(), a.Ref(), nil)
	c.now = func() time.Time { return time.UnixMilli(1700000000123) }

	require.Empty(t, c.GetHistory(ctx, 0))
	require.NotNil(t, c.GetHistory(ctx, 0))
	require.True(t, c.GetItem(ctx, "x").IsNone())
	require.True(t, c.GetCached(ctx, "h").IsNone())
	require.False(t, c.SetCached(ctx, "h", "s"))
	require.False(t, c.UpdateSummary(ctx, "x", "", history.StatusDone, ""))
	require.False(t, c.DeleteSummary(ctx, "x"))
	require.False(t, c.Cleanup(ctx))
	require.False(t, c.ReleaseResources(ctx))

	placeholder := c.AddItem(ctx, history.Draft{Title: "t", URL: "u"})
	require.Equal(t, "temp_1700000000123", placeholder.ID)
	require.True(t, strings.HasPrefix(placeholder.ID, TempIDPrefix))
	require.Equal(t, history.StatusPending, placeholder.Status)
	require.Equal(t, "t", placeholder.Title)
}

func TestPingBoundedRetries(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	ref := spawnCoordinator(t, func(context.Context,
		Request) fn.Result[Response] {

		calls.Add(1)
		return fn.Err[Response](errors.New("not yet"))
	})

	c := NewClient(fastConfig(), ref, nil)
	err := c.Ping(context.Background())
	require.ErrorIs(t, err, ErrCoordinatorUnreachable)
	require.EqualValues(t, 3, calls.Load())
}

func TestPingEventuallySucceeds(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	ref := spawnCoordinator(t, func(context.Context,
		Request) fn.Result[Response] {

		if calls.Add(1) < 3 {
			return fn.Ok[Response](PingResponse{Success: false})
		}
		return fn.Ok[Response](PingResponse{Success: true})
	})

	c := NewClient(fastConfig(), ref, nil)
	require.NoError(t, c.Ping(context.Background()))
	require.EqualValues(t, 3, calls.Load())
}

func TestExtractClientTimeout(t *testing.T) {
	t.Parallel()

	system := actor.NewActorSystem()
	t.Cleanup(func() {
		_ = system.Shutdown(context.Background())
	})

	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	ref := ExtractorKey.Spawn(system, "extractor", actor.NewFunctionBehavior(
		func(_ context.Context, req ExtractorRequest) fn.Result[ExtractorResponse] {
			r := req.(ExtractRequest)
			if r.URL == "slow" {
				<-release
			}
			if r.URL == "broken" {
				return fn.Ok[ExtractorResponse](ExtractResponse{
					Error: "no content",
				})
			}

			return fn.Ok[ExtractorResponse](ExtractResponse{
				Content: "body", Title: "title",
			})
		},
	))

	ctx := context.Background()
	c := NewExtractClient(ref, 50*time.Millisecond)

	page, err := c.Extract(ctx, "fast")
	require.NoError(t, err)
	require.Equal(t, Page{Content: "body", Title: "title"}, page)

	_, err = c.Extract(ctx, "broken")
	require.EqualError(t, err, "no content")

	_, err = c.Extract(ctx, "slow")
	require.ErrorIs(t, err, ErrExtractTimeout)
}
