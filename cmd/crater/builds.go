package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/crater/internal/client"
	"github.com/alfredjeanlab/crater/internal/ui"
)

var crateBuildCmd = &cobra.Command{
	Use:     "crate-build <toolchain>",
	Short:   "Schedule a build of every crate with a toolchain",
	GroupID: "builds",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mostRecent, _ := cmd.Flags().GetBool("most-recent-only")
		cutoff, err := cutoffFlag(cmd)
		if err != nil {
			return err
		}
		req := &client.CrateBuildRequest{Toolchain: args[0], MostRecentOnly: mostRecent}
		if !cutoff.IsZero() {
			req.Cutoff = cutoff.Format(time.DateOnly)
		}
		resp, err := craterClient.CrateBuild(cmd.Context(), req)
		if err != nil {
			return fmt.Errorf("crate build: %w", err)
		}
		if jsonOutput {
			return printJSON(resp)
		}
		fmt.Printf("scheduled %s builds with %s\n", ui.RenderAccent(fmt.Sprint(resp.Tasks)), resp.Toolchain)
		return nil
	},
}

var customBuildCmd = &cobra.Command{
	Use:     "custom-build <url> <sha>",
	Short:   "Request a compiler build from a git repository at a commit",
	GroupID: "builds",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		custom, err := craterClient.CustomBuild(cmd.Context(), args[0], args[1])
		if err != nil {
			return fmt.Errorf("custom build: %w", err)
		}
		if jsonOutput {
			return printJSON(custom)
		}
		fmt.Printf("requested %s (task %s)\n", ui.RenderAccent(custom.Toolchain), custom.TaskID)
		return nil
	},
}

var customBuildsCmd = &cobra.Command{
	Use:   "list",
	Short: "List requested custom builds",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		customs, err := craterClient.ListCustomBuilds(cmd.Context())
		if err != nil {
			return fmt.Errorf("list custom builds: %w", err)
		}
		if jsonOutput {
			return printJSON(customs)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TOOLCHAIN\tTASK\tURL")
		for _, c := range customs {
			fmt.Fprintf(w, "%s\t%s\t%s\n", c.Toolchain, c.TaskID, c.URL)
		}
		return w.Flush()
	},
}

func init() {
	crateBuildCmd.Flags().Bool("most-recent-only", false, "build only the newest version of each crate")
	crateBuildCmd.Flags().String("cutoff", "", "skip crate versions published before this date (YYYY-MM-DD, default: server setting)")

	customBuildCmd.AddCommand(customBuildsCmd)
}
