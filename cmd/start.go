package cmd

import (
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"hpcbench/internal/recipe"
)

var startTargetService string

var startCmd = &cobra.Command{
	Use:   "start <recipe.yaml>",
	Short: "Start a benchmark session from a recipe",
	Long: `Start submits the recipe's service job, waits until the scheduler
assigns it a node, then submits the recipe's client job against that
node. Either block may be absent; a client-only recipe can target an
already running service via --target-service.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := recipe.Load(args[0])
		if err != nil {
			return err
		}

		return withConnection(func() error {
			spin := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
			spin.Suffix = " submitting jobs and waiting for node assignment..."
			spin.Start()
			sessionID, err := orch.StartSession(cmd.Context(), rec, startTargetService)
			spin.Stop()
			if err != nil {
				return err
			}

			fmt.Printf("Started %s\n", sessionID)
			for _, info := range append(orch.Services().Tracked(), orch.Clients().Tracked()...) {
				fmt.Printf("  %-8s %s  internal=%s  job=%s\n", info.Kind, info.Name, info.InternalID, info.SchedulerJobID)
			}
			return nil
		})
	},
}

func init() {
	startCmd.Flags().StringVar(&startTargetService, "target-service", "", "internal id of an already tracked service to aim the client at")
	rootCmd.AddCommand(startCmd)
}
