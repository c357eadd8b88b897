package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/roasbeef/pagesum/internal/content"
	"github.com/roasbeef/pagesum/internal/engine"
	"github.com/roasbeef/pagesum/internal/history"
	"github.com/roasbeef/pagesum/internal/metrics"
	"github.com/roasbeef/pagesum/internal/transport"
)

var (
	// ErrBusy is returned while another item is being summarized.
	ErrBusy = errors.New("a summary is already in progress")

	// ErrItemBusy is returned when deleting an item that is in progress.
	ErrItemBusy = errors.New("item is being summarized")

	// ErrItemNotFound is returned for unknown item ids.
	ErrItemNotFound = errors.New("item not found")

	// ErrEmptyContent is returned when a page yields no text.
	ErrEmptyContent = errors.New("no content extracted")
)

// Coordinator is the coordinator surface the controller uses. It is
// satisfied by *transport.Client.
type Coordinator interface {
	ListHistory(ctx context.Context, limit int) ([]history.SummaryItem, error)
	GetHistory(ctx context.Context, limit int) []history.SummaryItem
	GetItem(ctx context.Context, id string) fn.Option[history.SummaryItem]
	AddItem(ctx context.Context, draft history.Draft) history.SummaryItem
	UpdateSummary(ctx context.Context, id, summary string,
		status history.Status, errMsg string) bool
	DeleteSummary(ctx context.Context, id string) bool
	GetCached(ctx context.Context, hash string) fn.Option[string]
	SetCached(ctx context.Context, hash, summary string) bool
	ReleaseResources(ctx context.Context) bool
}

// Engine generates summaries. It is satisfied by *engine.Manager.
type Engine interface {
	EnsureReady(ctx context.Context) error
	Summarize(ctx context.Context, text string) <-chan engine.Event
}

// Extractor returns the main content of a page. It is satisfied by
// *transport.ExtractClient.
type Extractor interface {
	Extract(ctx context.Context, url string) (transport.Page, error)
}

// Observer is told about partial summaries as they stream.
type Observer interface {
	OnPartial(ctx context.Context, id, text string)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, id, text string)

// OnPartial calls f.
func (f ObserverFunc) OnPartial(ctx context.Context, id, text string) {
	f(ctx, id, text)
}

// HubObserver publishes partials as SummaryPartial broadcasts.
func HubObserver(hub transport.HubRef) Observer {
	return ObserverFunc(func(ctx context.Context, id, text string) {
		transport.Publish(ctx, hub, transport.SummaryPartial{
			ID: id, Text: text,
		})
	})
}

// Controller runs summary requests end to end. At most one item is in
// progress at any time.
type Controller struct {
	cfg       Config
	coord     Coordinator
	engine    Engine
	extractor Extractor
	observer  fn.Option[Observer]
	log       *slog.Logger

	now func() time.Time

	recoverMu sync.Mutex
	recovered fn.Option[int]

	mu       sync.Mutex
	busy     bool
	activeID string
	partials map[string]string
}

// NewController creates a controller. observer may be None.
func NewController(cfg Config, coord Coordinator, eng Engine,
	extractor Extractor, observer fn.Option[Observer],
	log *slog.Logger) *Controller {

	if log == nil {
		log = slog.Default()
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = history.UIHistoryLimit
	}

	return &Controller{
		cfg:       cfg,
		coord:     coord,
		engine:    eng,
		extractor: extractor,
		observer:  observer,
		log:       log.With("component", "lifecycle"),
		now:       time.Now,
		partials:  make(map[string]string),
	}
}

// Recover moves every item left in progress by a previous run to error. It
// runs until it has seen the coordinator's history once; later calls return
// the first count. A failure leaves recovery pending for the next call.
func (c *Controller) Recover(ctx context.Context) (int, error) {
	c.recoverMu.Lock()
	defer c.recoverMu.Unlock()

	if c.recovered.IsSome() {
		return c.recovered.UnwrapOr(0), nil
	}

	items, err := c.coord.ListHistory(ctx, 0)
	if err != nil {
		return 0, fmt.Errorf("list history: %w", err)
	}

	var count int
	for _, item := range items {
		if item.Status != history.StatusInProgress || c.isActive(item.ID) {
			continue
		}

		fsm := NewItemFSM(item, "")
		if _, err := c.apply(ctx, fsm, &item, InterruptEvent{}); err != nil {
			c.log.WarnContext(ctx, "Recovery transition failed",
				"id", item.ID, "error", err)
			continue
		}

		metrics.SummariesFailed.WithLabelValues("interrupted").Inc()
		count++
	}

	if count > 0 {
		c.log.InfoContext(ctx, "Recovered interrupted summaries",
			"count", count)
	}
	c.recovered = fn.Some(count)

	return count, nil
}

// recoverPending runs Recover ahead of a user action. Failures are logged and
// retried by the next action.
func (c *Controller) recoverPending(ctx context.Context) {
	if _, err := c.Recover(ctx); err != nil {
		c.log.WarnContext(ctx, "Crash recovery deferred", "error", err)
	}
}

// Busy reports whether a summary is in progress.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.busy
}

// ActiveID returns the id of the item in progress.
func (c *Controller) ActiveID() fn.Option[string] {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.activeID == "" {
		return fn.None[string]()
	}

	return fn.Some(c.activeID)
}

// Partial returns the streamed, not yet persisted text of an item.
func (c *Controller) Partial(id string) fn.Option[string] {
	c.mu.Lock()
	defer c.mu.Unlock()

	text, ok := c.partials[id]
	if !ok {
		return fn.None[string]()
	}

	return fn.Some(text)
}

// History returns the most recent items.
func (c *Controller) History(ctx context.Context) []history.SummaryItem {
	c.recoverPending(ctx)
	return c.coord.GetHistory(ctx, c.cfg.HistoryLimit)
}

// acquire takes the single-flight guard.
func (c *Controller) acquire() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.busy {
		return ErrBusy
	}
	c.busy = true

	return nil
}

func (c *Controller) setActive(id string) {
	c.mu.Lock()
	c.activeID = id
	c.mu.Unlock()
}

func (c *Controller) isActive(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.activeID == id
}

func (c *Controller) release() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.activeID != "" {
		delete(c.partials, c.activeID)
	}
	c.busy = false
	c.activeID = ""
}

// SummarizeURL extracts the page at url and summarizes it.
func (c *Controller) SummarizeURL(ctx context.Context,
	url string) (history.SummaryItem, error) {

	return c.ExtractAndSummarize(ctx, url)
}

// ExtractAndSummarize extracts the main content of url, records a new item
// and generates its summary. Extraction failures create no item.
func (c *Controller) ExtractAndSummarize(ctx context.Context,
	url string) (history.SummaryItem, error) {

	c.recoverPending(ctx)

	if err := c.acquire(); err != nil {
		return history.SummaryItem{}, err
	}
	defer c.release()

	extractCtx := ctx
	if c.cfg.ExtractTimeout > 0 {
		var cancel context.CancelFunc
		extractCtx, cancel = context.WithTimeout(
			ctx, c.cfg.ExtractTimeout,
		)
		defer cancel()
	}

	page, err := c.extractor.Extract(extractCtx, url)
	switch {
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		err = transport.ErrExtractTimeout
		fallthrough

	case err != nil:
		metrics.SummariesFailed.WithLabelValues("extract").Inc()
		c.log.WarnContext(ctx, "Content extraction failed", "url", url,
			"error", err)

		return history.SummaryItem{}, fmt.Errorf("extract content: %w",
			err)
	}

	if strings.TrimSpace(page.Content) == "" {
		metrics.SummariesFailed.WithLabelValues("extract").Inc()
		return history.SummaryItem{}, ErrEmptyContent
	}

	text := content.Truncate(page.Content)
	item := c.coord.AddItem(ctx, history.Draft{
		Content:   text,
		Title:     page.Title,
		URL:       url,
		Timestamp: c.now(),
	})

	return c.generate(ctx, item, StartEvent{}, c.cfg.UseCache)
}

// StartSummary generates the summary of a pending item.
func (c *Controller) StartSummary(ctx context.Context,
	item history.SummaryItem) (history.SummaryItem, error) {

	c.recoverPending(ctx)

	if err := c.acquire(); err != nil {
		return item, err
	}
	defer c.release()

	return c.generate(ctx, item, StartEvent{}, c.cfg.UseCache)
}

// Retry regenerates the summary of a finished item. The cache is bypassed.
func (c *Controller) Retry(ctx context.Context,
	id string) (history.SummaryItem, error) {

	c.recoverPending(ctx)

	if err := c.acquire(); err != nil {
		return history.SummaryItem{}, err
	}
	defer c.release()

	item, err := c.coord.GetItem(ctx, id).UnwrapOrErr(ErrItemNotFound)
	if err != nil {
		return history.SummaryItem{}, fmt.Errorf("%w: %s", err, id)
	}

	start := ItemEvent(RetryEvent{})
	if item.Status == history.StatusPending {
		start = StartEvent{}
	}

	return c.generate(ctx, item, start, false)
}

// Delete removes an item. Items in progress cannot be deleted.
func (c *Controller) Delete(ctx context.Context, id string) error {
	c.recoverPending(ctx)

	if c.isActive(id) {
		return ErrItemBusy
	}

	item := c.coord.GetItem(ctx, id)
	if item.IsSome() &&
		item.UnsafeFromSome().Status == history.StatusInProgress {

		return ErrItemBusy
	}

	if !c.coord.DeleteSummary(ctx, id) {
		return fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}

	return nil
}

// ReleaseResources asks the coordinator to release the engine session.
func (c *Controller) ReleaseResources(ctx context.Context) bool {
	return c.coord.ReleaseResources(ctx)
}

// generate runs one item from start to a terminal state. The caller holds
// the single-flight guard. Generation failures end in the error state and
// are not returned.
func (c *Controller) generate(ctx context.Context, item history.SummaryItem,
	start ItemEvent, useCache bool) (history.SummaryItem, error) {

	hash := content.Hash(item.Content)
	fsm := NewItemFSM(item, hash)

	if _, err := c.apply(ctx, fsm, &item, start); err != nil {
		return item, err
	}
	c.setActive(item.ID)
	metrics.SummariesStarted.Inc()

	c.log.InfoContext(ctx, "Summary started", "id", item.ID,
		"url", item.URL)

	// Terminal writes must land even if the caller went away.
	finalCtx := context.WithoutCancel(ctx)

	if useCache {
		cached := c.coord.GetCached(ctx, hash)
		if cached.IsSome() {
			_, err := c.apply(finalCtx, fsm, &item, CompleteEvent{
				Summary: cached.UnsafeFromSome(), FromCache: true,
			})
			metrics.SummariesCompleted.WithLabelValues("cache").Inc()

			c.log.InfoContext(ctx, "Summary served from cache",
				"id", item.ID)

			return item, err
		}
	}

	if err := c.engine.EnsureReady(ctx); err != nil {
		metrics.SummariesFailed.WithLabelValues("engine_not_ready").Inc()
		c.log.WarnContext(ctx, "Engine not ready", "id", item.ID,
			"error", err)

		_, applyErr := c.apply(finalCtx, fsm, &item, FailEvent{
			Reason: err.Error(),
		})
		c.logFailure(ctx, fsm)

		return item, applyErr
	}

	for ev := range c.engine.Summarize(ctx, item.Content) {
		switch e := ev.(type) {
		case engine.PartialEvent:
			_, err := c.apply(ctx, fsm, &item, PartialEvent{
				Text: e.Text,
			})
			if err != nil {
				return item, err
			}

		case engine.DoneEvent:
			_, err := c.apply(finalCtx, fsm, &item, CompleteEvent{
				Summary: e.Text,
			})
			metrics.SummariesCompleted.WithLabelValues("engine").Inc()

			c.log.InfoContext(ctx, "Summary completed", "id", item.ID,
				"chars", len([]rune(item.Summary)))

			return item, err

		case engine.ErrorEvent:
			metrics.SummariesFailed.WithLabelValues("stream").Inc()

			_, err := c.apply(finalCtx, fsm, &item, FailEvent{
				Reason: e.Err.Error(),
			})
			c.logFailure(ctx, fsm)

			return item, err
		}
	}

	// The stream closed without a terminal event: the context ended.
	metrics.SummariesFailed.WithLabelValues("interrupted").Inc()
	_, err := c.apply(finalCtx, fsm, &item, InterruptEvent{})
	c.logFailure(ctx, fsm)

	return item, err
}

// logFailure logs the reason of an item that ended in the error state.
func (c *Controller) logFailure(ctx context.Context, fsm *ItemFSM) {
	fsm.FailureReason().WhenSome(func(reason string) {
		c.log.WarnContext(ctx, "Summary failed", "id", fsm.env.ItemID,
			"status", fsm.Status(), "reason", reason)
	})
}

// apply runs event through fsm, dispatches the outbox and mirrors the
// result onto item.
func (c *Controller) apply(ctx context.Context, fsm *ItemFSM,
	item *history.SummaryItem, event ItemEvent) ([]ItemOutboxEvent, error) {

	outbox, err := fsm.ProcessEvent(ctx, event)
	if err != nil {
		return nil, err
	}

	for _, ev := range outbox {
		c.dispatch(ctx, fsm, item, ev)
	}

	return outbox, nil
}

func (c *Controller) dispatch(ctx context.Context, fsm *ItemFSM,
	item *history.SummaryItem, ev ItemOutboxEvent) {

	switch e := ev.(type) {
	case PersistItem:
		item.Summary = e.Summary
		item.Status = e.Status
		item.Error = e.Error

		if !c.coord.UpdateSummary(ctx, e.ID, e.Summary, e.Status, e.Error) {
			c.log.WarnContext(ctx, "Item update not acknowledged",
				"id", e.ID, "status", e.Status)
		}

	case NotifyItem:
		text := fsm.Partial()

		c.mu.Lock()
		c.partials[e.ID] = text
		c.mu.Unlock()

		c.observer.WhenSome(func(o Observer) {
			o.OnPartial(ctx, e.ID, text)
		})

	case CacheSummary:
		if !c.coord.SetCached(ctx, e.Hash, e.Summary) {
			c.log.WarnContext(ctx, "Summary not cached", "id", item.ID)
		}
	}
}

// CopyText formats an item for the clipboard.
func CopyText(item history.SummaryItem) string {
	return item.Summary + "\n\n\n\n출처: " + item.Title + "\n" + item.URL
}

var _ transport.Panel = (*Controller)(nil)
