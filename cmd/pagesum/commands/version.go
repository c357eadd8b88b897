package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roasbeef/pagesum/internal/build"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display version information",
	Long:  `Display the version, commit hash, and build metadata for pagesum.`,
	Run:   runVersion,
}

// runVersion prints the version and build information.
func runVersion(cmd *cobra.Command, args []string) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "pagesum version %s", build.Version())

	if commit := build.CommitHash(); commit != "" {
		fmt.Fprintf(out, " commit=%s", commit)
	}

	fmt.Fprintf(out, " go=%s", build.GoVersion())

	if tags := build.Tags(); len(tags) > 0 {
		fmt.Fprintf(out, " tags=%s", strings.Join(tags, ","))
	}

	fmt.Fprintln(out)
}
