package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics <monitor> <query>",
	Short: "Run a PromQL query against a tracked prometheus monitor",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withConnection(func() error {
			out, err := orch.QueryMetrics(args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Println(out)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(metricsCmd)
}
