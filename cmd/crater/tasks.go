package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/crater/internal/ui"
)

var tasksCmd = &cobra.Command{
	Use:     "tasks",
	Short:   "List build tasks still awaiting a result",
	GroupID: "builds",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := craterClient.ListTasks(cmd.Context())
		if err != nil {
			return fmt.Errorf("list tasks: %w", err)
		}
		if jsonOutput {
			return printJSON(resp)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TASK\tTOOLCHAIN\tCRATE\tAGE\tSTATE")
		for _, t := range resp.Tasks {
			state := "running"
			if t.Lost {
				state = ui.RenderRegressed("lost")
			}
			age := (time.Duration(t.AgeSecs) * time.Second).Round(time.Second)
			fmt.Fprintf(w, "%s\t%s\t%s %s\t%s\t%s\n", t.TaskID, t.Toolchain, t.CrateName, t.CrateVers, age, state)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Println(ui.RenderMuted(fmt.Sprintf("%d tasks, %d lost", resp.Total, resp.Lost)))
		return nil
	},
}
