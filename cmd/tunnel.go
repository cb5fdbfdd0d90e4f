package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
)

var tunnelCmd = &cobra.Command{
	Use:   "tunnel <service> <remote-port> <local-port>",
	Short: "Forward a local port to a running service's node",
	Long: `Tunnel resolves the compute node of a tracked service and forwards a
local port to it through the SSH connection. The tunnel stays open until
interrupted.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		remotePort, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid remote port %q", args[1])
		}
		localPort, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("invalid local port %q", args[2])
		}

		return withConnection(func() error {
			tunnel, err := orch.OpenServiceTunnel(args[0], remotePort, localPort)
			if err != nil {
				return err
			}
			fmt.Printf("Forwarding localhost:%d -> %s:%d (interrupt to close)\n",
				tunnel.LocalPort, tunnel.RemoteHost, tunnel.RemotePort)

			interrupt := make(chan os.Signal, 1)
			signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
			<-interrupt
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(tunnelCmd)
}
