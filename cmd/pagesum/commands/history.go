package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roasbeef/pagesum/internal/transport"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:     "history",
	Aliases: []string{"ls"},
	Short:   "List recent summaries, newest first",
	Args:    cobra.NoArgs,
	RunE:    runHistory,
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one summary",
	Long:  `Show one summary. The id may be any unique prefix.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	historyCmd.Flags().IntVarP(
		&historyLimit, "limit", "n", 10,
		"Maximum number of items, 0 for all",
	)
	showCmd.Flags().BoolVar(
		&copyFormat, "copy", false,
		"Print the summary with its source for pasting",
	)
}

func runHistory(cmd *cobra.Command, args []string) error {
	return withClient(cmd.Context(), func(ctx context.Context,
		rc *transport.RemoteClient) error {

		resp, err := transport.CallInto[transport.GetHistoryResponse](
			ctx, rc, transport.TypeGetHistory,
			transport.GetHistoryRequest{Limit: historyLimit},
		)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if outputFormat == "json" {
			return printJSON(out, resp.History)
		}

		if len(resp.History) == 0 {
			fmt.Fprintln(out, "No summaries yet.")
			return nil
		}

		for _, item := range resp.History {
			formatHistoryLine(out, item)
		}

		return nil
	})
}

func runShow(cmd *cobra.Command, args []string) error {
	return withClient(cmd.Context(), func(ctx context.Context,
		rc *transport.RemoteClient) error {

		id, err := resolveID(ctx, rc, args[0])
		if err != nil {
			return err
		}

		resp, err := transport.CallInto[transport.GetItemResponse](
			ctx, rc, transport.TypeGetItem,
			transport.GetItemRequest{ID: id},
		)
		if err != nil {
			return err
		}
		if !resp.Found {
			return fmt.Errorf("no summary with id %q", id)
		}

		return printItem(cmd.OutOrStdout(), resp.Item, copyFormat)
	})
}
