package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/crater/internal/client"
	"github.com/alfredjeanlab/crater/internal/ui"
)

var (
	serverURL  string
	authToken  string
	jsonOutput bool
	noColor    bool

	craterClient client.CraterClient
)

func defaultServerURL() string {
	if s := os.Getenv("CRATER_URL"); s != "" {
		return s
	}
	if u := activeRemoteURL(); u != "" {
		return u
	}
	return "http://localhost:8080"
}

func defaultToken() string {
	if s := os.Getenv("CRATER_TOKEN"); s != "" {
		return s
	}
	return activeRemoteToken()
}

var rootCmd = &cobra.Command{
	Use:   "crater <command>",
	Short: "Regression testing for the crate ecosystem",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ui.Setup(noColor)
		craterClient = client.NewHTTPClient(serverURL, authToken)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if craterClient != nil {
			craterClient.Close()
		}
	},
	SilenceUsage: true,
}

// skipClient overrides the root pre-run for commands that do not talk to a
// crater server.
func skipClient(cmd *cobra.Command, args []string) error {
	ui.Setup(noColor)
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "url", defaultServerURL(), "crater server URL")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", defaultToken(), "bearer token")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddGroup(
		&cobra.Group{ID: "reports", Title: "Reports:"},
		&cobra.Group{ID: "builds", Title: "Builds:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)
	cobra.EnableCommandSorting = false

	// Reports
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(toolchainsCmd)
	rootCmd.AddCommand(resultsCmd)

	// Builds
	rootCmd.AddCommand(crateBuildCmd)
	rootCmd.AddCommand(customBuildCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(tasksCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(remoteCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
