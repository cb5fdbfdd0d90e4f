// Package cmd implements the hpcbench command line interface: thin cobra
// wrappers over the orchestrator core.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"hpcbench/internal/config"
	"hpcbench/internal/job"
	"hpcbench/internal/job/catalog"
	"hpcbench/internal/orchestrator"
	"hpcbench/internal/remote"
	"hpcbench/pkg/logging"
)

var (
	cfgFile  string
	logLevel string

	cfg      *config.Config
	registry *job.Registry
	orch     *orchestrator.Orchestrator
)

var rootCmd = &cobra.Command{
	Use:   "hpcbench",
	Short: "Run containerized benchmark workloads as SLURM jobs",
	Long: `hpcbench submits containerized services (inference servers, databases)
and the benchmark clients that exercise them as batch jobs on a remote
HPC cluster, over a single SSH connection to its login node.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		cfg = &loaded

		level := cfg.LogLevel
		if logLevel != "" {
			level = logLevel
		}
		logging.Init(logging.ParseLevel(level), os.Stderr)

		registry = job.NewRegistry()
		catalog.Register(registry)
		orch = orchestrator.New(cfg, remote.NewSSHExecutor(cfg.SSH), registry)
		return nil
	},
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")
}

// withConnection connects to the cluster for the duration of fn.
func withConnection(fn func() error) error {
	if err := orch.Connect(); err != nil {
		return err
	}
	defer orch.Close()
	return fn()
}
