package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"hpcbench/internal/lifecycle"
)

var stopAll bool

var stopCmd = &cobra.Command{
	Use:   "stop [reference]",
	Short: "Stop a job by reference, or all services",
	Long: `Stop cancels the job the reference points at. The reference may be an
internal id, a scheduler job id, or a fragment of a job name; untracked
jobs are found through the live queue. With --all, every service in the
queue that this tool started is cancelled.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if stopAll {
			return withConnection(func() error {
				report := orch.StopAllServices()
				fmt.Printf("Stopped %d job(s)\n", report.Stopped)
				for _, reason := range report.Failed {
					fmt.Printf("  failed: %s\n", reason)
				}
				if len(report.Failed) > 0 {
					return fmt.Errorf("%d job(s) could not be stopped", len(report.Failed))
				}
				return nil
			})
		}

		if len(args) == 0 {
			return fmt.Errorf("a job reference is required unless --all is given")
		}
		reference := args[0]

		return withConnection(func() error {
			for _, m := range []*lifecycle.Manager{orch.Clients(), orch.Services(), orch.Monitors()} {
				found, err := m.Stop(reference)
				if err != nil {
					return err
				}
				if found {
					fmt.Printf("Stopped %s\n", reference)
					return nil
				}
			}
			return fmt.Errorf("nothing matches %q", reference)
		})
	},
}

func init() {
	stopCmd.Flags().BoolVar(&stopAll, "all", false, "stop every service job in the queue")
	rootCmd.AddCommand(stopCmd)
}
