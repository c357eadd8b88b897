package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/roasbeef/pagesum/internal/history"
	"github.com/roasbeef/pagesum/internal/lifecycle"
	"github.com/roasbeef/pagesum/internal/transport"
)

var (
	// connectAttempts is how often dial tries to reach the daemon.
	connectAttempts = transport.DefaultPingAttempts

	// connectInterval is the pause between connection attempts.
	connectInterval = transport.DefaultPingInterval
)

// dial connects to the daemon and returns a context bounded by the call
// timeout. The caller closes the client and cancels the context.
func dial(ctx context.Context) (*transport.RemoteClient, context.Context,
	context.CancelFunc, error) {

	rc, err := connectRetry(ctx)
	if err != nil {
		return nil, nil, nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, callTimeout)

	return rc, callCtx, cancel, nil
}

// connectRetry dials the gateway until the daemon answers a PING, up to
// connectAttempts times.
func connectRetry(ctx context.Context) (*transport.RemoteClient, error) {
	var lastErr error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		rc, err := connect(ctx)
		if err == nil {
			return rc, nil
		}
		lastErr = err

		if attempt == connectAttempts {
			break
		}

		select {
		case <-time.After(connectInterval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("daemon unreachable at %s after %d attempts: "+
		"%w: %v", gatewayURL, connectAttempts,
		transport.ErrCoordinatorUnreachable, lastErr)
}

// connect makes a single dial and PING round trip.
func connect(ctx context.Context) (*transport.RemoteClient, error) {
	attemptCtx, cancel := context.WithTimeout(
		ctx, transport.DefaultCallTimeout,
	)
	defer cancel()

	rc, err := transport.Dial(attemptCtx, gatewayURL)
	if err != nil {
		return nil, err
	}

	resp, err := transport.CallInto[transport.PingResponse](
		attemptCtx, rc, transport.TypePing, transport.PingRequest{},
	)
	if err == nil && !resp.Success {
		err = errors.New("ping rejected")
	}
	if err != nil {
		_ = rc.Close()
		return nil, err
	}

	return rc, nil
}

// withClient runs f with a connected client.
func withClient(ctx context.Context,
	f func(ctx context.Context, rc *transport.RemoteClient) error) error {

	rc, callCtx, cancel, err := dial(ctx)
	if err != nil {
		return err
	}
	defer cancel()
	defer rc.Close()

	return f(callCtx, rc)
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}

// formatItem renders an item in full for text output.
func formatItem(w io.Writer, item history.SummaryItem) {
	fmt.Fprintf(w, "ID:      %s\n", item.ID)
	fmt.Fprintf(w, "Title:   %s\n", item.Title)
	fmt.Fprintf(w, "URL:     %s\n", item.URL)
	fmt.Fprintf(w, "Status:  %s\n", item.Status)
	fmt.Fprintf(w, "Created: %s\n", item.Timestamp.Format("2006-01-02 15:04"))
	if item.Error != "" {
		fmt.Fprintf(w, "Error:   %s\n", item.Error)
	}
	if item.Summary != "" {
		fmt.Fprintf(w, "\n%s\n", item.Summary)
	}
}

// formatHistoryLine renders one item as a single line.
func formatHistoryLine(w io.Writer, item history.SummaryItem) {
	fmt.Fprintf(w, "%s  %-11s  %s  %s\n", shortID(item.ID), item.Status,
		item.Timestamp.Format("01-02 15:04"), truncate(item.Title, 60))
}

// printItem writes an item in the selected format.
func printItem(w io.Writer, item history.SummaryItem, copyText bool) error {
	switch {
	case outputFormat == "json":
		return printJSON(w, item)

	case copyText:
		fmt.Fprintln(w, lifecycle.CopyText(item))

	default:
		formatItem(w, item)
	}

	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}

	return id
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}

	return string(r[:n-3]) + "..."
}

// resolveID expands an id prefix to a full item id using the history.
func resolveID(ctx context.Context, rc *transport.RemoteClient,
	prefix string) (string, error) {

	resp, err := transport.CallInto[transport.GetHistoryResponse](
		ctx, rc, transport.TypeGetHistory, transport.GetHistoryRequest{},
	)
	if err != nil {
		return "", err
	}

	var matches []string
	for _, item := range resp.History {
		if item.ID == prefix {
			return item.ID, nil
		}
		if strings.HasPrefix(item.ID, prefix) {
			matches = append(matches, item.ID)
		}
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no summary with id %q", prefix)

	case 1:
		return matches[0], nil

	default:
		return "", fmt.Errorf("id prefix %q is ambiguous (%d matches)",
			prefix, len(matches))
	}
}
