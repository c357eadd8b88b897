package lifecycle

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"

	"github.com/roasbeef/pagesum/internal/baselib/actor"
	"github.com/roasbeef/pagesum/internal/content"
	"github.com/roasbeef/pagesum/internal/coordinator"
	"github.com/roasbeef/pagesum/internal/engine"
	"github.com/roasbeef/pagesum/internal/history"
	"github.com/roasbeef/pagesum/internal/store"
	"github.com/roasbeef/pagesum/internal/transport"
)

// fakeEngine replays a fixed event script. When gate is set every stream
// waits for it to close before sending.
type fakeEngine struct {
	readyErr error
	script   []engine.Event
	gate     chan struct{}

	calls   atomic.Int32
	started chan struct{}
}

func newFakeEngine(script ...engine.Event) *fakeEngine {
	return &fakeEngine{script: script, started: make(chan struct{}, 8)}
}

func (f *fakeEngine) EnsureReady(context.Context) error {
	return f.readyErr
}

func (f *fakeEngine) Summarize(ctx context.Context,
	_ string) <-chan engine.Event {

	f.calls.Add(1)
	f.started <- struct{}{}

	events := make(chan engine.Event)
	go func() {
		defer close(events)

		if f.gate != nil {
			select {
			case <-f.gate:
			case <-ctx.Done():
				return
			}
		}

		for _, ev := range f.script {
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return events
}

// fakeExtractor serves pages by url.
type fakeExtractor struct {
	pages map[string]transport.Page
	block bool
}

func (f *fakeExtractor) Extract(ctx context.Context,
	url string) (transport.Page, error) {

	if f.block {
		<-ctx.Done()
		return transport.Page{}, ctx.Err()
	}

	page, ok := f.pages[url]
	if !ok {
		return transport.Page{}, errors.New("no such page")
	}

	return page, nil
}

// partialRecorder collects observed partials.
type partialRecorder struct {
	mu    sync.Mutex
	texts []string
}

func (r *partialRecorder) OnPartial(_ context.Context, _, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.texts = append(r.texts, text)
}

func (r *partialRecorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.texts...)
}

type harness struct {
	ctrl      *Controller
	client    *transport.Client
	engine    *fakeEngine
	extractor *fakeExtractor
	partials  *partialRecorder
}

const pageURL = "https://example.com/article"

// newHarness wires a controller to a real coordinator over kv.
func newHarness(t *testing.T, kv store.KVStore, eng *fakeEngine,
	cfg Config) *harness {

	t.Helper()

	system := actor.NewActorSystem()
	t.Cleanup(func() {
		_ = system.Shutdown(context.Background())
	})

	hist := history.NewManager(history.DefaultConfig(), kv, nil)
	ref, _ := coordinator.Spawn(
		context.Background(), system, coordinator.Config{}, hist,
		fn.None[coordinator.Releaser](), nil,
	)
	client := transport.NewClient(transport.ClientConfig{
		CallTimeout:  time.Second,
		PingAttempts: 1,
		PingInterval: time.Millisecond,
	}, ref, nil)

	ex := &fakeExtractor{pages: map[string]transport.Page{
		pageURL: {Content: "Some article body.", Title: "Article"},
	}}
	rec := &partialRecorder{}

	ctrl := NewController(
		cfg, client, eng, ex, fn.Some[Observer](rec), nil,
	)

	return &harness{
		ctrl: ctrl, client: client, engine: eng, extractor: ex,
		partials: rec,
	}
}

func successScript() []engine.Event {
	return []engine.Event{
		engine.PartialEvent{Text: "<think>plan"},
		engine.PartialEvent{Text: "<think>plan</think>Sum"},
		engine.PartialEvent{Text: "<think>plan</think>Summary"},
		engine.DoneEvent{Text: "<think>plan</think>Summary"},
	}
}

func TestExtractAndSummarize(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(
		t, store.NewMemStore(), newFakeEngine(successScript()...),
		DefaultConfig(),
	)

	item, err := h.ctrl.ExtractAndSummarize(ctx, pageURL)
	require.NoError(t, err)
	require.Equal(t, history.StatusDone, item.Status)
	require.Equal(t, "Summary", item.Summary)
	require.Empty(t, item.Error)

	// The first notification clears the projection.
	require.Equal(t, []string{"", "", "Sum", "Summary"}, h.partials.all())
	require.True(t, h.ctrl.Partial(item.ID).IsNone())
	require.False(t, h.ctrl.Busy())

	stored := h.client.GetItem(ctx, item.ID).UnsafeFromSome()
	require.Equal(t, "Summary", stored.Summary)
	require.Equal(t, history.StatusDone, stored.Status)
	require.Equal(t, "Article", stored.Title)
	require.Equal(t, pageURL, stored.URL)

	cached := h.client.GetCached(ctx, content.Hash("Some article body."))
	require.Equal(t, "Summary", cached.UnwrapOr(""))

	require.Len(t, h.ctrl.History(ctx), 1)
}

func TestExtractAndSummarizeUsesCache(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(
		t, store.NewMemStore(), newFakeEngine(successScript()...),
		DefaultConfig(),
	)

	first, err := h.ctrl.ExtractAndSummarize(ctx, pageURL)
	require.NoError(t, err)

	second, err := h.ctrl.ExtractAndSummarize(ctx, pageURL)
	require.NoError(t, err)

	require.NotEqual(t, first.ID, second.ID)
	require.Equal(t, history.StatusDone, second.Status)
	require.Equal(t, first.Summary, second.Summary)
	require.EqualValues(t, 1, h.engine.calls.Load())

	// Retry bypasses the cache.
	retried, err := h.ctrl.Retry(ctx, second.ID)
	require.NoError(t, err)
	require.Equal(t, history.StatusDone, retried.Status)
	require.EqualValues(t, 2, h.engine.calls.Load())
}

func TestExtractAndSummarizeCacheDisabled(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.UseCache = false
	h := newHarness(
		t, store.NewMemStore(), newFakeEngine(successScript()...), cfg,
	)

	for i := 0; i < 2; i++ {
		_, err := h.ctrl.ExtractAndSummarize(ctx, pageURL)
		require.NoError(t, err)
	}
	require.EqualValues(t, 2, h.engine.calls.Load())
}

func TestSingleFlight(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	eng := newFakeEngine(successScript()...)
	eng.gate = make(chan struct{})
	h := newHarness(t, store.NewMemStore(), eng, DefaultConfig())

	done := h.client.AddItem(ctx, history.Draft{Content: "other"})
	require.True(t, h.client.UpdateSummary(
		ctx, done.ID, "old", history.StatusDone, "",
	))

	type result struct {
		item history.SummaryItem
		err  error
	}
	results := make(chan result, 1)
	go func() {
		item, err := h.ctrl.ExtractAndSummarize(ctx, pageURL)
		results <- result{item, err}
	}()

	select {
	case <-eng.started:
	case <-time.After(2 * time.Second):
		t.Fatal("summary never started")
	}

	require.True(t, h.ctrl.Busy())
	activeID := h.ctrl.ActiveID().UnsafeFromSome()

	_, err := h.ctrl.ExtractAndSummarize(ctx, pageURL)
	require.ErrorIs(t, err, ErrBusy)

	_, err = h.ctrl.Retry(ctx, done.ID)
	require.ErrorIs(t, err, ErrBusy)

	require.ErrorIs(t, h.ctrl.Delete(ctx, activeID), ErrItemBusy)

	// Exactly one item is in progress.
	inProgress := 0
	for _, item := range h.client.GetHistory(ctx, 0) {
		if item.Status == history.StatusInProgress {
			inProgress++
		}
	}
	require.Equal(t, 1, inProgress)

	close(eng.gate)

	res := <-results
	require.NoError(t, res.err)
	require.Equal(t, history.StatusDone, res.item.Status)
	require.False(t, h.ctrl.Busy())
	require.True(t, h.ctrl.ActiveID().IsNone())

	require.NoError(t, h.ctrl.Delete(ctx, activeID))
}

func TestExtractionTimeout(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.ExtractTimeout = 20 * time.Millisecond
	h := newHarness(
		t, store.NewMemStore(), newFakeEngine(successScript()...), cfg,
	)
	h.extractor.block = true

	_, err := h.ctrl.ExtractAndSummarize(ctx, pageURL)
	require.ErrorIs(t, err, transport.ErrExtractTimeout)

	require.False(t, h.ctrl.Busy())
	require.Empty(t, h.client.GetHistory(ctx, 0))
	require.Zero(t, h.engine.calls.Load())
}

func TestExtractionFailures(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(
		t, store.NewMemStore(), newFakeEngine(successScript()...),
		DefaultConfig(),
	)
	h.extractor.pages["https://example.com/empty"] = transport.Page{
		Content: "  ",
	}

	_, err := h.ctrl.ExtractAndSummarize(ctx, "https://example.com/none")
	require.ErrorContains(t, err, "no such page")

	_, err = h.ctrl.ExtractAndSummarize(ctx, "https://example.com/empty")
	require.ErrorIs(t, err, ErrEmptyContent)

	require.Empty(t, h.client.GetHistory(ctx, 0))
	require.False(t, h.ctrl.Busy())
}

func TestEngineNotReady(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	eng := newFakeEngine(successScript()...)
	eng.readyErr = engine.ErrAlreadyInitializing
	h := newHarness(t, store.NewMemStore(), eng, DefaultConfig())

	item, err := h.ctrl.ExtractAndSummarize(ctx, pageURL)
	require.NoError(t, err)
	require.Equal(t, history.StatusError, item.Status)
	require.Equal(t, ErrorSummaryText, item.Summary)
	require.Equal(t, engine.ErrAlreadyInitializing.Error(), item.Error)
	require.Zero(t, eng.calls.Load())
	require.False(t, h.ctrl.Busy())

	// The controller is immediately re-triggerable.
	eng.readyErr = nil
	retried, err := h.ctrl.Retry(ctx, item.ID)
	require.NoError(t, err)
	require.Equal(t, history.StatusDone, retried.Status)
	require.Empty(t, retried.Error)
}

func TestStreamError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	eng := newFakeEngine(
		engine.PartialEvent{Text: "half"},
		engine.ErrorEvent{Err: errors.New("device lost")},
	)
	h := newHarness(t, store.NewMemStore(), eng, DefaultConfig())

	item, err := h.ctrl.ExtractAndSummarize(ctx, pageURL)
	require.NoError(t, err)
	require.Equal(t, history.StatusError, item.Status)
	require.Equal(t, "device lost", item.Error)

	stored := h.client.GetItem(ctx, item.ID).UnsafeFromSome()
	require.Equal(t, ErrorSummaryText, stored.Summary)

	// Nothing was cached for the failed content.
	cached := h.client.GetCached(ctx, content.Hash("Some article body."))
	require.True(t, cached.IsNone())
}

func TestStreamClosedWithoutResult(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(
		t, store.NewMemStore(),
		newFakeEngine(engine.PartialEvent{Text: "half"}),
		DefaultConfig(),
	)

	item, err := h.ctrl.ExtractAndSummarize(ctx, pageURL)
	require.NoError(t, err)
	require.Equal(t, history.StatusError, item.Status)
	require.Equal(t, InterruptedMessage, item.Error)
}

// TestRecoverInterrupted simulates a restart while an item was in progress.
func TestRecoverInterrupted(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	kv := store.NewMemStore()

	before := newHarness(t, kv, newFakeEngine(), DefaultConfig())
	stuck := before.client.AddItem(ctx, history.Draft{Content: "x"})
	require.True(t, before.client.UpdateSummary(
		ctx, stuck.ID, "", history.StatusInProgress, "",
	))
	finished := before.client.AddItem(ctx, history.Draft{Content: "y"})
	require.True(t, before.client.UpdateSummary(
		ctx, finished.ID, "kept", history.StatusDone, "",
	))

	after := newHarness(t, kv, newFakeEngine(), DefaultConfig())
	n, err := after.ctrl.Recover(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = after.ctrl.Recover(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	got := after.client.GetItem(ctx, stuck.ID).UnsafeFromSome()
	require.Equal(t, history.StatusError, got.Status)
	require.Equal(t, InterruptedMessage, got.Error)

	kept := after.client.GetItem(ctx, finished.ID).UnsafeFromSome()
	require.Equal(t, history.StatusDone, kept.Status)
	require.Equal(t, "kept", kept.Summary)
}

// flakyHistory fails the first history listings.
type flakyHistory struct {
	*transport.Client

	failures atomic.Int32
}

func (f *flakyHistory) ListHistory(ctx context.Context,
	limit int) ([]history.SummaryItem, error) {

	if f.failures.Add(-1) >= 0 {
		return nil, transport.ErrHistoryNotLoaded
	}

	return f.Client.ListHistory(ctx, limit)
}

// TestRecoverRetriedAfterFailure checks recovery stays pending until the
// coordinator has returned its history.
func TestRecoverRetriedAfterFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, store.NewMemStore(), newFakeEngine(), DefaultConfig())

	stuck := h.client.AddItem(ctx, history.Draft{Content: "x"})
	require.True(t, h.client.UpdateSummary(
		ctx, stuck.ID, "", history.StatusInProgress, "",
	))

	coord := &flakyHistory{Client: h.client}
	coord.failures.Store(1)
	ctrl := NewController(
		DefaultConfig(), coord, h.engine, h.extractor,
		fn.None[Observer](), nil,
	)

	// A user action that runs while the history is unavailable must not
	// use up recovery.
	require.Len(t, ctrl.History(ctx), 1)

	n, err := ctrl.Recover(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	got := h.client.GetItem(ctx, stuck.ID).UnsafeFromSome()
	require.Equal(t, history.StatusError, got.Status)
	require.Equal(t, InterruptedMessage, got.Error)
}

func TestRetryUnknownAndDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(
		t, store.NewMemStore(), newFakeEngine(successScript()...),
		DefaultConfig(),
	)

	_, err := h.ctrl.Retry(ctx, "missing")
	require.ErrorIs(t, err, ErrItemNotFound)
	require.ErrorIs(t, h.ctrl.Delete(ctx, "missing"), ErrItemNotFound)

	item, err := h.ctrl.ExtractAndSummarize(ctx, pageURL)
	require.NoError(t, err)
	require.NoError(t, h.ctrl.Delete(ctx, item.ID))
	require.Empty(t, h.ctrl.History(ctx))
}

func TestStartSummaryPendingOnly(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(
		t, store.NewMemStore(), newFakeEngine(successScript()...),
		DefaultConfig(),
	)

	item := h.client.AddItem(ctx, history.Draft{Content: "body"})
	done, err := h.ctrl.StartSummary(ctx, item)
	require.NoError(t, err)
	require.Equal(t, history.StatusDone, done.Status)

	_, err = h.ctrl.StartSummary(ctx, done)
	require.ErrorIs(t, err, ErrInvalidTransition)
	require.False(t, h.ctrl.Busy())
}

func TestCopyText(t *testing.T) {
	t.Parallel()

	got := CopyText(history.SummaryItem{
		Summary: "요약", Title: "제목", URL: "https://example.com",
	})
	require.Equal(t, "요약\n\n\n\n출처: 제목\nhttps://example.com", got)
}
