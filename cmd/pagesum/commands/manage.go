package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roasbeef/pagesum/internal/transport"
)

var cleanupMaxAge time.Duration

var retryCmd = &cobra.Command{
	Use:   "retry <id>",
	Short: "Regenerate a summary",
	Long: `Regenerate the summary of an existing item, skipping the summary
cache. The id may be any unique prefix.`,
	Args: cobra.ExactArgs(1),
	RunE: runRetry,
}

var deleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a summary",
	Long: `Delete a summary from the history. A summary that is being
generated cannot be deleted.`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove old summaries",
	Args:  cobra.NoArgs,
	RunE:  runCleanup,
}

var releaseCmd = &cobra.Command{
	Use:   "release",
	Short: "Release the generation engine",
	Long:  `Tear down the engine session. The next summary loads it again.`,
	Args:  cobra.NoArgs,
	RunE:  runRelease,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the daemon is summarizing",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	cleanupCmd.Flags().DurationVar(
		&cleanupMaxAge, "max-age", 0,
		"Remove items older than this (default: daemon setting)",
	)
}

func runRetry(cmd *cobra.Command, args []string) error {
	return withClient(cmd.Context(), func(ctx context.Context,
		rc *transport.RemoteClient) error {

		id, err := resolveID(ctx, rc, args[0])
		if err != nil {
			return err
		}

		resp, err := transport.CallInto[transport.ItemResult](
			ctx, rc, transport.TypeRetrySummary,
			transport.ItemIDPayload{ID: id},
		)
		if err != nil {
			return err
		}

		return printItem(cmd.OutOrStdout(), resp.Item, false)
	})
}

func runDelete(cmd *cobra.Command, args []string) error {
	return withClient(cmd.Context(), func(ctx context.Context,
		rc *transport.RemoteClient) error {

		id, err := resolveID(ctx, rc, args[0])
		if err != nil {
			return err
		}

		_, err = rc.Call(
			ctx, transport.TypeRemoveSummary,
			transport.ItemIDPayload{ID: id},
		)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)

		return nil
	})
}

func runCleanup(cmd *cobra.Command, args []string) error {
	return withClient(cmd.Context(), func(ctx context.Context,
		rc *transport.RemoteClient) error {

		resp, err := transport.CallInto[transport.CleanupResponse](
			ctx, rc, transport.TypeCleanup,
			transport.CleanupRequest{MaxAge: cleanupMaxAge},
		)
		if err != nil {
			return err
		}

		if outputFormat == "json" {
			return printJSON(cmd.OutOrStdout(), resp)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d summaries\n",
			resp.Removed)

		return nil
	})
}

func runRelease(cmd *cobra.Command, args []string) error {
	return withClient(cmd.Context(), func(ctx context.Context,
		rc *transport.RemoteClient) error {

		resp, err := transport.CallInto[transport.ReleaseResourcesResponse](
			ctx, rc, transport.TypeReleaseResources,
			transport.ReleaseResourcesRequest{},
		)
		if err != nil {
			return err
		}
		if !resp.Success {
			return errors.New("daemon did not release the engine")
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Engine released")

		return nil
	})
}

func runStatus(cmd *cobra.Command, args []string) error {
	return withClient(cmd.Context(), func(ctx context.Context,
		rc *transport.RemoteClient) error {

		status, err := transport.CallInto[transport.PanelStatus](
			ctx, rc, transport.TypePanelStatus, struct{}{},
		)
		if err != nil {
			return err
		}

		if outputFormat == "json" {
			return printJSON(cmd.OutOrStdout(), status)
		}

		if status.Busy {
			fmt.Fprintln(cmd.OutOrStdout(), "busy")
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "idle")
		}

		return nil
	})
}
