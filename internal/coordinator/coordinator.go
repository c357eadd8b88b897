// Package coordinator implements the long-lived actor that owns the summary
// history and cache, answers the transport requests and announces every
// change to the listening panels.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/roasbeef/pagesum/internal/baselib/actor"
	"github.com/roasbeef/pagesum/internal/history"
	"github.com/roasbeef/pagesum/internal/transport"
)

// Releaser is the part of the engine manager the coordinator drives.
type Releaser interface {
	// Teardown releases the engine session.
	Teardown()
}

// Config holds the coordinator settings.
type Config struct {
	// CleanupMaxAge is used by CLEANUP requests that carry no age.
	CleanupMaxAge time.Duration
}

// Coordinator is the actor behavior of the coordinator. All state lives in
// the history manager; Receive runs serially on the actor goroutine.
type Coordinator struct {
	cfg     Config
	history *history.Manager
	hub     transport.HubRef
	engine  fn.Option[Releaser]
	log     *slog.Logger
}

// New creates the coordinator behavior. engine may be None when the process
// hosts no engine.
func New(cfg Config, hist *history.Manager, hub transport.HubRef,
	engine fn.Option[Releaser], log *slog.Logger) *Coordinator {

	if log == nil {
		log = slog.Default()
	}
	if cfg.CleanupMaxAge <= 0 {
		cfg.CleanupMaxAge = history.DefaultCleanupMaxAge
	}

	return &Coordinator{
		cfg:     cfg,
		history: hist,
		hub:     hub,
		engine:  engine,
		log:     log.With("component", "coordinator"),
	}
}

// Receive implements actor.ActorBehavior. The history is loaded lazily and
// a failed load is retried on every request until it succeeds.
func (c *Coordinator) Receive(ctx context.Context,
	msg transport.Request) fn.Result[transport.Response] {

	if err := c.history.Init(ctx); err != nil {
		c.log.WarnContext(ctx, "History load failed, will retry",
			"request", msg.MessageType(), "error", err,
		)
	}

	switch m := msg.(type) {
	case transport.PingRequest:
		return ok(transport.PingResponse{Success: true})

	case transport.GetHistoryRequest:
		if !c.history.Loaded() {
			return fn.Err[transport.Response](
				transport.ErrHistoryNotLoaded,
			)
		}

		return ok(transport.GetHistoryResponse{
			History: c.history.GetHistory(m.Limit),
		})

	case transport.GetItemRequest:
		item := c.history.Get(m.ID)
		return ok(transport.GetItemResponse{
			Found: item.IsSome(),
			Item:  item.UnwrapOr(history.SummaryItem{}),
		})

	case transport.AddItemRequest:
		return ok(c.handleAddItem(ctx, m))

	case transport.UpdateSummaryRequest:
		return ok(c.handleUpdateSummary(ctx, m))

	case transport.DeleteSummaryRequest:
		return ok(c.handleDeleteSummary(ctx, m))

	case transport.GetCachedRequest:
		summary := c.history.GetCached(m.Hash)
		return ok(transport.GetCachedResponse{
			Found:   summary.IsSome(),
			Summary: summary.UnwrapOr(""),
		})

	case transport.SetCachedRequest:
		c.history.SetCached(ctx, m.Hash, m.Summary)
		return ok(transport.SetCachedResponse{Success: true})

	case transport.CleanupRequest:
		maxAge := m.MaxAge
		if maxAge <= 0 {
			maxAge = c.cfg.CleanupMaxAge
		}

		removed := c.history.Cleanup(ctx, maxAge)
		return ok(transport.CleanupResponse{
			Success: true, Removed: removed,
		})

	case transport.ReleaseResourcesRequest:
		c.engine.WhenSome(func(r Releaser) {
			r.Teardown()
		})
		c.log.InfoContext(ctx, "Released engine resources")

		return ok(transport.ReleaseResourcesResponse{Success: true})

	default:
		return fn.Err[transport.Response](fmt.Errorf("%w: %T",
			transport.ErrUnknownRequestType, msg))
	}
}

func ok(resp transport.Response) fn.Result[transport.Response] {
	return fn.Ok(resp)
}

func (c *Coordinator) handleAddItem(ctx context.Context,
	req transport.AddItemRequest) transport.AddItemResponse {

	item := c.history.AddItem(ctx, req.Item)
	c.publish(ctx, transport.HistoryUpdated{Item: item})

	c.log.DebugContext(ctx, "Summary item added", "id", item.ID,
		"url", item.URL)

	return transport.AddItemResponse{Success: true, Item: item}
}

// handleUpdateSummary applies an update. Updates for ids that no longer
// exist succeed silently and are not announced.
func (c *Coordinator) handleUpdateSummary(ctx context.Context,
	req transport.UpdateSummaryRequest) transport.UpdateSummaryResponse {

	updated := c.history.UpdateItem(
		ctx, req.ID, req.Summary, req.Status, req.Error,
	)
	updated.WhenSome(func(item history.SummaryItem) {
		c.publish(ctx, transport.SummaryUpdated{
			ID:      item.ID,
			Summary: item.Summary,
			Status:  item.Status,
			Error:   item.Error,
		})
	})

	return transport.UpdateSummaryResponse{Success: true}
}

func (c *Coordinator) handleDeleteSummary(ctx context.Context,
	req transport.DeleteSummaryRequest) transport.DeleteSummaryResponse {

	deleted := c.history.DeleteItem(ctx, req.ID)
	if deleted {
		c.publish(ctx, transport.SummaryDeleted{ID: req.ID})
	}

	return transport.DeleteSummaryResponse{Success: deleted}
}

func (c *Coordinator) publish(ctx context.Context, b transport.Broadcast) {
	transport.Publish(ctx, c.hub, b)
}

// Spawn registers a broadcast hub and a coordinator with system and returns
// both refs. The history is loaded before the coordinator starts.
func Spawn(ctx context.Context, system *actor.ActorSystem, cfg Config,
	hist *history.Manager, engine fn.Option[Releaser],
	log *slog.Logger) (transport.CoordinatorRef, transport.HubRef) {

	hub := transport.HubKey.Spawn(
		system, "broadcast-hub", transport.NewBroadcastHub(),
	)

	coord := New(cfg, hist, hub, engine, log)
	if err := hist.Init(ctx); err != nil {
		coord.log.WarnContext(ctx, "Initial history load failed",
			"error", err,
		)
	}

	ref := transport.CoordinatorKey.Spawn(system, "coordinator", coord)

	return ref, hub
}

var _ actor.ActorBehavior[transport.Request, transport.Response] = (*Coordinator)(nil)
