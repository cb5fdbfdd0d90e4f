package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var servicesCmd = &cobra.Command{
	Use:   "services",
	Short: "List the built-in service and client implementations",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("Services:")
		for _, name := range registry.ListServices() {
			fmt.Printf("  %s\n", name)
		}
		fmt.Println("Clients (by target service):")
		for _, name := range registry.ListClients() {
			fmt.Printf("  %s\n", name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(servicesCmd)
}
