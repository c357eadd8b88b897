package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/roasbeef/pagesum/internal/actorutil"
	"github.com/roasbeef/pagesum/internal/baselib/actor"
	"github.com/roasbeef/pagesum/internal/history"
	"github.com/roasbeef/pagesum/internal/metrics"
)

const (
	// DefaultCallTimeout bounds every coordinator round trip.
	DefaultCallTimeout = 5 * time.Second

	// DefaultPingAttempts is the number of liveness probes before the
	// coordinator is declared unreachable.
	DefaultPingAttempts = 15

	// DefaultPingInterval is the pause between liveness probes.
	DefaultPingInterval = time.Second

	// TempIDPrefix marks placeholder items created when the coordinator
	// could not be reached.
	TempIDPrefix = "temp_"
)

// ErrCoordinatorUnreachable is returned by Ping once every attempt failed.
var ErrCoordinatorUnreachable = errors.New("coordinator unreachable")

// ClientConfig holds the timing of a Client.
type ClientConfig struct {
	CallTimeout  time.Duration
	PingAttempts int
	PingInterval time.Duration
}

// DefaultClientConfig returns the standard client timing.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		CallTimeout:  DefaultCallTimeout,
		PingAttempts: DefaultPingAttempts,
		PingInterval: DefaultPingInterval,
	}
}

// CoordinatorRef is the typed actor reference of the coordinator.
type CoordinatorRef = actor.ActorRef[Request, Response]

// Client wraps the coordinator requests in typed calls. Apart from Ping,
// no call returns a transport error: failures are logged and resolve to a
// safe default.
type Client struct {
	cfg ClientConfig
	ref CoordinatorRef
	log *slog.Logger

	// now is swapped out by tests.
	now func() time.Time
}

// NewClient creates a client for the coordinator at ref.
func NewClient(cfg ClientConfig, ref CoordinatorRef, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if cfg.PingAttempts <= 0 {
		cfg.PingAttempts = DefaultPingAttempts
	}

	return &Client{
		cfg: cfg,
		ref: ref,
		log: log.With("component", "transport"),
		now: time.Now,
	}
}

// call performs one request and asserts the reply type.
func call[T Response](ctx context.Context, c *Client, req Request) (T, error) {
	resp, err := actorutil.AskAwaitTyped[T](
		ctx, c.ref, req, c.cfg.CallTimeout,
	)
	if err != nil {
		metrics.TransportFailures.WithLabelValues(req.MessageType()).Inc()
		c.log.WarnContext(ctx, "Coordinator request failed",
			"type", req.MessageType(), "error", err,
		)
	}

	return resp, err
}

// Ping probes the coordinator until it answers, up to the configured number
// of attempts.
func (c *Client) Ping(ctx context.Context) error {
	var (
		ping    Request = PingRequest{}
		lastErr error
	)
	for attempt := 1; attempt <= c.cfg.PingAttempts; attempt++ {
		resp, err := actorutil.AskAwaitTyped[PingResponse](
			ctx, c.ref, ping, c.cfg.CallTimeout,
		)
		if err == nil && resp.Success {
			return nil
		}
		lastErr = err

		c.log.DebugContext(ctx, "Ping failed", "attempt", attempt,
			"error", err)

		if attempt == c.cfg.PingAttempts {
			break
		}

		select {
		case <-time.After(c.cfg.PingInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return fmt.Errorf("%w after %d attempts: %v",
		ErrCoordinatorUnreachable, c.cfg.PingAttempts, lastErr)
}

// ListHistory returns up to limit items. Unlike GetHistory it reports
// failures, including a coordinator that has not loaded its history.
func (c *Client) ListHistory(ctx context.Context,
	limit int) ([]history.SummaryItem, error) {

	resp, err := call[GetHistoryResponse](
		ctx, c, GetHistoryRequest{Limit: limit},
	)
	if err != nil {
		return nil, err
	}
	if resp.History == nil {
		return []history.SummaryItem{}, nil
	}

	return resp.History, nil
}

// GetHistory returns up to limit items, or none on failure.
func (c *Client) GetHistory(ctx context.Context,
	limit int) []history.SummaryItem {

	items, err := c.ListHistory(ctx, limit)
	if err != nil {
		return []history.SummaryItem{}
	}

	return items
}

// GetItem returns the item with the given id.
func (c *Client) GetItem(ctx context.Context,
	id string) fn.Option[history.SummaryItem] {

	resp, err := call[GetItemResponse](ctx, c, GetItemRequest{ID: id})
	if err != nil || !resp.Found {
		return fn.None[history.SummaryItem]()
	}

	return fn.Some(resp.Item)
}

// AddItem creates a pending item. When the coordinator cannot be reached
// a local placeholder with a temp_ id is returned so the caller can still
// show progress.
func (c *Client) AddItem(ctx context.Context,
	draft history.Draft) history.SummaryItem {

	resp, err := call[AddItemResponse](ctx, c, AddItemRequest{Item: draft})
	if err == nil && resp.Success {
		return resp.Item
	}

	now := c.now()
	ts := draft.Timestamp
	if ts.IsZero() {
		ts = now
	}

	return history.SummaryItem{
		ID:        TempIDPrefix + strconv.FormatInt(now.UnixMilli(), 10),
		Content:   draft.Content,
		Title:     draft.Title,
		URL:       draft.URL,
		Timestamp: ts,
		Status:    history.StatusPending,
	}
}

// UpdateSummary writes the result fields of an item.
func (c *Client) UpdateSummary(ctx context.Context, id, summary string,
	status history.Status, errMsg string) bool {

	resp, err := call[UpdateSummaryResponse](ctx, c, UpdateSummaryRequest{
		ID:      id,
		Summary: summary,
		Status:  status,
		Error:   errMsg,
	})

	return err == nil && resp.Success
}

// DeleteSummary removes an item, reporting whether it existed.
func (c *Client) DeleteSummary(ctx context.Context, id string) bool {
	resp, err := call[DeleteSummaryResponse](
		ctx, c, DeleteSummaryRequest{ID: id},
	)

	return err == nil && resp.Success
}

// GetCached returns the cached summary for a content hash.
func (c *Client) GetCached(ctx context.Context, hash string) fn.Option[string] {
	resp, err := call[GetCachedResponse](ctx, c, GetCachedRequest{Hash: hash})
	if err != nil || !resp.Found {
		return fn.None[string]()
	}

	return fn.Some(resp.Summary)
}

// SetCached stores a summary under a content hash.
func (c *Client) SetCached(ctx context.Context, hash, summary string) bool {
	resp, err := call[SetCachedResponse](ctx, c, SetCachedRequest{
		Hash:    hash,
		Summary: summary,
	})

	return err == nil && resp.Success
}

// Cleanup asks the coordinator to drop old items.
func (c *Client) Cleanup(ctx context.Context) bool {
	resp, err := call[CleanupResponse](ctx, c, CleanupRequest{})
	return err == nil && resp.Success
}

// ReleaseResources asks the coordinator to tear down the engine session.
func (c *Client) ReleaseResources(ctx context.Context) bool {
	resp, err := call[ReleaseResourcesResponse](
		ctx, c, ReleaseResourcesRequest{},
	)

	return err == nil && resp.Success
}
