package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roasbeef/pagesum/internal/transport"
)

var (
	// stream prints partial summaries while waiting for the result.
	stream bool

	// copyFormat prints the summary with its source attribution.
	copyFormat bool
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize <url>",
	Short: "Extract and summarize a web page",
	Long: `Ask the daemon to fetch a page, extract its main content and
summarize it. Only one summary runs at a time; the command fails if the
daemon is busy.`,
	Args: cobra.ExactArgs(1),
	RunE: runSummarize,
}

func init() {
	summarizeCmd.Flags().BoolVar(
		&stream, "stream", true,
		"Print the summary as it is generated",
	)
	summarizeCmd.Flags().BoolVar(
		&copyFormat, "copy", false,
		"Print the summary with its source for pasting",
	)
}

func runSummarize(cmd *cobra.Command, args []string) error {
	return withClient(cmd.Context(), func(ctx context.Context,
		rc *transport.RemoteClient) error {

		streaming := stream && outputFormat != "json" && !copyFormat

		var streamed bool
		streamDone := make(chan struct{})
		if streaming {
			tail := &partialPrinter{w: cmd.OutOrStdout()}
			go func() {
				defer close(streamDone)
				streamed = tail.follow(ctx, rc)
			}()
		} else {
			close(streamDone)
		}

		resp, err := transport.CallInto[transport.ItemResult](
			ctx, rc, transport.TypeSummarizeURL,
			transport.SummarizeURLPayload{URL: args[0]},
		)

		// Closing the client ends the follower.
		rc.Close()
		<-streamDone

		if err != nil {
			return err
		}

		if streamed {
			fmt.Fprintln(cmd.OutOrStdout())
			fmt.Fprintf(cmd.OutOrStdout(), "[%s %s]\n",
				shortID(resp.Item.ID), resp.Item.Status)

			return nil
		}

		return printItem(cmd.OutOrStdout(), resp.Item, copyFormat)
	})
}

// partialPrinter prints the growth of streamed summary text. It follows the
// first item that produces a partial.
type partialPrinter struct {
	w       io.Writer
	id      string
	printed string
}

// follow prints partials until the client closes. It reports whether
// anything was printed.
func (p *partialPrinter) follow(ctx context.Context,
	rc *transport.RemoteClient) bool {

	for {
		select {
		case env := <-rc.Broadcasts():
			if env.Type != transport.TypeSummaryPartial {
				continue
			}

			var partial transport.SummaryPartial
			if err := json.Unmarshal(env.Payload, &partial); err != nil {
				continue
			}
			p.print(partial)

		case <-rc.Done():
			return p.printed != ""

		case <-ctx.Done():
			return p.printed != ""
		}
	}
}

func (p *partialPrinter) print(partial transport.SummaryPartial) {
	if p.id == "" {
		p.id = partial.ID
	}
	if partial.ID != p.id {
		return
	}

	if !strings.HasPrefix(partial.Text, p.printed) {
		// The text was rewritten, start a fresh line.
		fmt.Fprintln(p.w)
		p.printed = ""
	}

	fmt.Fprint(p.w, partial.Text[len(p.printed):])
	p.printed = partial.Text
}
