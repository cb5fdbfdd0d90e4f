package cmd

import (
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show tracked jobs and the rest of the user's queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withConnection(func() error {
			listing, err := orch.ListAll()
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Kind", "Name", "Internal ID", "Job ID", "Status", "Elapsed", "Nodes"})
			for _, info := range listing.Tracked {
				t.AppendRow(table.Row{
					info.Kind, info.Name, info.InternalID, info.SchedulerJobID,
					string(info.Status), info.Elapsed, strings.Join(info.Nodes, ","),
				})
			}
			t.Render()

			if len(listing.Discovered) > 0 {
				d := table.NewWriter()
				d.SetOutputMirror(os.Stdout)
				d.SetStyle(table.StyleLight)
				d.SetTitle("Untracked queue entries")
				d.AppendHeader(table.Row{"Job ID", "Name", "State"})
				for _, entry := range listing.Discovered {
					d.AppendRow(table.Row{entry.JobID, entry.Name, entry.State})
				}
				d.Render()
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
