package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/clipwatch/formguard"
)

// checkURLCmd runs the submission guard's URL rule over its arguments.
var checkURLCmd = &cobra.Command{
	Use:   "check-url <url>...",
	Short: "Check whether URLs would pass the submission guard",
	Long: `Check each argument against the YouTube URL rule used by the form guard.

Exit codes:
  0 - every URL is valid
  1 - at least one URL is invalid

Example:
  clipwatch check-url https://youtu.be/abc123 https://vimeo.com/42`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheckURL,
}

func init() {
	rootCmd.AddCommand(checkURLCmd)
}

func runCheckURL(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	invalid := 0
	for _, u := range args {
		if formguard.IsYouTubeURL(u) {
			fmt.Fprintf(out, "valid    %s\n", u)
			continue
		}
		invalid++
		fmt.Fprintf(out, "invalid  %s\n", u)
	}

	if invalid > 0 {
		return fmt.Errorf("%d of %d urls are invalid", invalid, len(args))
	}
	return nil
}
