package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roasbeef/pagesum/internal/transport"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print daemon broadcasts as they arrive",
	Long: `Stay connected to the gateway and print every broadcast: history
changes, summary updates, streamed partials and engine load progress.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	rc, err := connectRetry(ctx)
	if err != nil {
		return err
	}
	defer rc.Close()

	out := cmd.OutOrStdout()
	for {
		select {
		case env := <-rc.Broadcasts():
			if err := printBroadcast(out, env); err != nil {
				return err
			}

		case <-rc.Done():
			return fmt.Errorf("gateway closed the connection")

		case <-ctx.Done():
			return nil
		}
	}
}

// printBroadcast renders one broadcast envelope.
func printBroadcast(w io.Writer, env transport.Envelope) error {
	if outputFormat == "json" {
		return json.NewEncoder(w).Encode(env)
	}

	switch env.Type {
	case transport.TypeSummaryUpdated:
		var b transport.SummaryUpdated
		if err := json.Unmarshal(env.Payload, &b); err != nil {
			return err
		}
		fmt.Fprintf(w, "updated  %s  %s\n", shortID(b.ID), b.Status)

	case transport.TypeSummaryDeleted:
		var b transport.SummaryDeleted
		if err := json.Unmarshal(env.Payload, &b); err != nil {
			return err
		}
		fmt.Fprintf(w, "deleted  %s\n", shortID(b.ID))

	case transport.TypeSummaryPartial:
		var b transport.SummaryPartial
		if err := json.Unmarshal(env.Payload, &b); err != nil {
			return err
		}
		fmt.Fprintf(w, "partial  %s  %d chars\n", shortID(b.ID),
			len([]rune(b.Text)))

	case transport.TypeModelLoadProgress:
		var b transport.ModelLoadProgress
		if err := json.Unmarshal(env.Payload, &b); err != nil {
			return err
		}
		fmt.Fprintf(w, "loading  %3.0f%%\n", b.Progress*100)

	case transport.TypeHistoryUpdated:
		var b transport.HistoryUpdated
		if err := json.Unmarshal(env.Payload, &b); err != nil {
			return err
		}
		fmt.Fprintf(w, "added    %s  %s\n", shortID(b.Item.ID),
			truncate(b.Item.Title, 60))

	default:
		fmt.Fprintf(w, "%s\n", env.Type)
	}

	return nil
}
