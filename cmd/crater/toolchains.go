package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/crater/internal/model"
	"github.com/alfredjeanlab/crater/internal/ui"
)

var toolchainsCmd = &cobra.Command{
	Use:     "toolchains",
	Short:   "List published toolchains and those with results",
	GroupID: "reports",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := craterClient.ListToolchains(cmd.Context())
		if err != nil {
			return fmt.Errorf("list toolchains: %w", err)
		}
		if jsonOutput {
			return printJSON(resp)
		}

		withResults := make(map[string]bool, len(resp.WithResults))
		for _, tc := range resp.WithResults {
			withResults[tc] = true
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CHANNEL\tRELEASES\tLATEST\tWITH RESULTS")
		for _, ch := range model.ReleaseChannels {
			dates := resp.Available.Dates(ch)
			latest := "-"
			if len(dates) > 0 {
				latest = dates[len(dates)-1]
			}
			n := 0
			for _, d := range dates {
				if withResults[string(ch)+"-"+d] {
					n++
				}
			}
			fmt.Fprintf(w, "%s\t%d\t%s\t%d\n", ch, len(dates), latest, n)
		}
		if err := w.Flush(); err != nil {
			return err
		}

		var customs []string
		for _, tc := range resp.WithResults {
			if strings.HasPrefix(tc, string(model.ChannelCustom)+"-") {
				customs = append(customs, tc)
			}
		}
		if len(customs) > 0 {
			fmt.Println(ui.RenderMuted("custom: " + strings.Join(customs, ", ")))
		}
		return nil
	},
}

var resultsCmd = &cobra.Command{
	Use:     "results <toolchain> [<crate> <version>]",
	Short:   "Show recorded build results",
	GroupID: "reports",
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 && len(args) != 3 {
			return fmt.Errorf("expected <toolchain> or <toolchain> <crate> <version>")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 3 {
			res, err := craterClient.GetResult(cmd.Context(), model.BuildResultKey{
				Toolchain: args[0], CrateName: args[1], CrateVers: args[2],
			})
			if err != nil {
				return fmt.Errorf("get result: %w", err)
			}
			if jsonOutput {
				return printJSON(res)
			}
			fmt.Printf("%s %s on %s: %s (%s)\n", res.CrateName, res.CrateVers, res.Toolchain, outcomeLabel(res.Outcome), res.TaskID)
			return nil
		}

		resp, err := craterClient.GetResults(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("get results: %w", err)
		}
		if jsonOutput {
			return printJSON(resp)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CRATE\tVERSION\tOUTCOME")
		for _, r := range resp.Results {
			fmt.Fprintf(w, "%s\t%s\t%s\n", r.CrateName, r.CrateVers, outcomeLabel(r.Outcome))
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Println(ui.RenderMuted(fmt.Sprintf("%d results", resp.Total)))
		return nil
	},
}

func outcomeLabel(o model.Outcome) string {
	switch o {
	case model.OutcomeSuccess:
		return ui.RenderFixed(string(o))
	case model.OutcomeFailure:
		return ui.RenderRegressed(string(o))
	}
	return ui.RenderMuted(string(o))
}
