package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/crater/internal/report"
)

var reportCmd = &cobra.Command{
	Use:     "report",
	Short:   "Generate regression reports",
	GroupID: "reports",
}

var reportComparisonCmd = &cobra.Command{
	Use:   "comparison <from> <to>",
	Short: "Compare the build results of two toolchains",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rep, err := craterClient.ComparisonReport(cmd.Context(), args[0], args[1])
		if err != nil {
			return fmt.Errorf("comparison report: %w", err)
		}
		if jsonOutput {
			return printJSON(rep)
		}
		return report.RenderComparison(os.Stdout, rep)
	},
}

var reportWeeklyCmd = &cobra.Command{
	Use:   "weekly",
	Short: "Compare stable to beta and beta to nightly as of a date",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		date, _ := cmd.Flags().GetString("date")
		rep, err := craterClient.WeeklyReport(cmd.Context(), date)
		if err != nil {
			return fmt.Errorf("weekly report: %w", err)
		}
		if jsonOutput {
			return printJSON(rep)
		}
		return report.RenderWeekly(os.Stdout, rep)
	},
}

var reportCurrentCmd = &cobra.Command{
	Use:   "current",
	Short: "Show the newest toolchain of each channel before a date",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		date, _ := cmd.Flags().GetString("date")
		rep, err := craterClient.CurrentToolchains(cmd.Context(), date)
		if err != nil {
			return fmt.Errorf("current report: %w", err)
		}
		if jsonOutput {
			return printJSON(rep)
		}
		return report.RenderCurrent(os.Stdout, rep)
	},
}

var reportPopularityCmd = &cobra.Command{
	Use:   "popularity",
	Short: "Rank packages by transitive dependents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		if limit < 0 {
			return fmt.Errorf("--limit must not be negative")
		}
		rep, err := craterClient.PopularityReport(cmd.Context(), limit)
		if err != nil {
			return fmt.Errorf("popularity report: %w", err)
		}
		if jsonOutput {
			return printJSON(rep)
		}
		return report.RenderPopularity(os.Stdout, rep)
	},
}

var reportToolchainCmd = &cobra.Command{
	Use:   "toolchain <toolchain>",
	Short: "Summarize the build results of one toolchain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rep, err := craterClient.ToolchainReport(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("toolchain report: %w", err)
		}
		if jsonOutput {
			return printJSON(rep)
		}
		return report.RenderToolchain(os.Stdout, rep)
	},
}

func init() {
	reportWeeklyCmd.Flags().String("date", "", "report date (YYYY-MM-DD, default today)")
	reportCurrentCmd.Flags().String("date", "", "report date (YYYY-MM-DD, default today)")
	reportPopularityCmd.Flags().Int("limit", 0, "number of packages to show (0 for all)")

	reportCmd.AddCommand(reportComparisonCmd)
	reportCmd.AddCommand(reportWeeklyCmd)
	reportCmd.AddCommand(reportCurrentCmd)
	reportCmd.AddCommand(reportPopularityCmd)
	reportCmd.AddCommand(reportToolchainCmd)
}
