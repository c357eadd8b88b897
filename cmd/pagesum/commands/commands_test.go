package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"

	"github.com/roasbeef/pagesum/internal/baselib/actor"
	"github.com/roasbeef/pagesum/internal/coordinator"
	"github.com/roasbeef/pagesum/internal/history"
	"github.com/roasbeef/pagesum/internal/store"
	"github.com/roasbeef/pagesum/internal/transport"
)

// fakePanel records the ids it was asked to delete.
type fakePanel struct {
	deleted []string
}

func (p *fakePanel) SummarizeURL(_ context.Context,
	url string) (history.SummaryItem, error) {

	return history.SummaryItem{
		ID: "summarized", URL: url, Title: "Page",
		Status: history.StatusDone, Summary: "요약입니다.",
	}, nil
}

func (p *fakePanel) Retry(_ context.Context,
	id string) (history.SummaryItem, error) {

	return history.SummaryItem{ID: id, Status: history.StatusDone}, nil
}

func (p *fakePanel) Delete(_ context.Context, id string) error {
	p.deleted = append(p.deleted, id)
	return nil
}

func (p *fakePanel) Busy() bool {
	return false
}

// startDaemon runs a gateway over a real coordinator and returns a client
// for seeding state.
func startDaemon(t *testing.T, panel transport.Panel) *transport.Client {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	system := actor.NewActorSystem()

	hist := history.NewManager(history.DefaultConfig(), store.NewMemStore(), nil)
	ref, hub := coordinator.Spawn(
		ctx, system, coordinator.Config{}, hist,
		fn.None[coordinator.Releaser](), nil,
	)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	gw := transport.NewGateway(
		transport.GatewayConfig{}, ref, hub, panel, nil,
	)
	done := make(chan error, 1)
	go func() {
		done <- gw.Serve(ctx, lis)
	}()

	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
		_ = system.Shutdown(context.Background())
	})

	gatewayURL = "ws://" + lis.Addr().String() + "/ws"

	return transport.NewClient(transport.DefaultClientConfig(), ref, nil)
}

// execute runs the CLI with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	// Flag values outlive a run, so reset the ones tests toggle.
	outputFormat, copyFormat, stream = "text", false, true

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--gateway", gatewayURL}, args...))

	err := rootCmd.Execute()

	return out.String(), err
}

func TestHistoryShowAndDelete(t *testing.T) {
	panel := &fakePanel{}
	client := startDaemon(t, panel)

	item := client.AddItem(context.Background(), history.Draft{
		Content: "Body", Title: "Launch notes",
		URL: "https://example.com/launch", Timestamp: time.Now(),
	})
	require.NotContains(t, item.ID, transport.TempIDPrefix)

	out, err := execute(t, "history")
	require.NoError(t, err)
	require.Contains(t, out, "Launch notes")
	require.Contains(t, out, shortID(item.ID))

	out, err = execute(t, "show", item.ID[:6])
	require.NoError(t, err)
	require.Contains(t, out, "https://example.com/launch")
	require.Contains(t, out, string(history.StatusPending))

	out, err = execute(t, "--format", "json", "history")
	require.NoError(t, err)

	var items []history.SummaryItem
	require.NoError(t, json.Unmarshal([]byte(out), &items))
	require.Len(t, items, 1)
	require.Equal(t, item.ID, items[0].ID)

	_, err = execute(t, "delete", item.ID[:6])
	require.NoError(t, err)
	require.Equal(t, []string{item.ID}, panel.deleted)

	_, err = execute(t, "show", "nope")
	require.ErrorContains(t, err, "no summary")
}

func TestSummarizeAndStatus(t *testing.T) {
	startDaemon(t, &fakePanel{})

	out, err := execute(t, "summarize", "--stream=false",
		"https://example.com/page")
	require.NoError(t, err)
	require.Contains(t, out, "요약입니다.")

	out, err = execute(t, "summarize", "--stream=false", "--copy",
		"https://example.com/page")
	require.NoError(t, err)
	require.Contains(t, out, "출처: Page\nhttps://example.com/page")

	out, err = execute(t, "status")
	require.NoError(t, err)
	require.Contains(t, out, "idle")

	out, err = execute(t, "cleanup")
	require.NoError(t, err)
	require.Contains(t, out, "Removed 0 summaries")
}

func TestDaemonUnreachable(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()
	require.NoError(t, lis.Close())

	attempts, interval := connectAttempts, connectInterval
	connectAttempts, connectInterval = 3, 10*time.Millisecond
	t.Cleanup(func() {
		connectAttempts, connectInterval = attempts, interval
	})

	gatewayURL = "ws://" + addr + "/ws"

	start := time.Now()
	_, err = execute(t, "history")
	require.ErrorIs(t, err, transport.ErrCoordinatorUnreachable)
	require.ErrorContains(t, err, "daemon unreachable at "+gatewayURL)
	require.ErrorContains(t, err, "after 3 attempts")
	require.GreaterOrEqual(t, time.Since(start), 2*connectInterval)

	_, err = execute(t, "watch")
	require.ErrorIs(t, err, transport.ErrCoordinatorUnreachable)
}

func TestConnectPingsDaemon(t *testing.T) {
	startDaemon(t, &fakePanel{})

	rc, err := connectRetry(context.Background())
	require.NoError(t, err)
	require.NoError(t, rc.Close())
}

func TestPartialPrinter(t *testing.T) {
	var out bytes.Buffer
	p := &partialPrinter{w: &out}

	p.print(transport.SummaryPartial{ID: "a", Text: ""})
	p.print(transport.SummaryPartial{ID: "a", Text: "Sum"})
	p.print(transport.SummaryPartial{ID: "b", Text: "other"})
	p.print(transport.SummaryPartial{ID: "a", Text: "Summary"})
	require.Equal(t, "Summary", out.String())

	p.print(transport.SummaryPartial{ID: "a", Text: "New"})
	require.Equal(t, "Summary\nNew", out.String())
}

func TestPrintBroadcast(t *testing.T) {
	outputFormat = "text"
	t.Cleanup(func() {
		outputFormat = "text"
	})

	env, err := transport.BroadcastEnvelope(transport.SummaryUpdated{
		ID: "0123456789", Status: history.StatusDone,
	})
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, printBroadcast(&out, env))
	require.Equal(t, "updated  01234567  done\n", out.String())

	env, err = transport.BroadcastEnvelope(transport.ModelLoadProgress{
		Progress: 0.5,
	})
	require.NoError(t, err)

	out.Reset()
	require.NoError(t, printBroadcast(&out, env))
	require.Equal(t, "loading   50%\n", out.String())
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "short", truncate("short", 10))
	require.Equal(t, "a b", truncate("  a\n b ", 10))
	require.Equal(t, "가나다...", truncate("가나다라마바사", 6))
}
