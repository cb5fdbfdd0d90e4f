package config

import "time"

// Default returns the configuration used when no config file is present.
// The SLURM account is deliberately left empty: it has no sensible default
// and script rendering rejects configs without it.
func Default() Config {
	return Config{
		SSH: SSHConfig{
			Port: 22,
		},
		Slurm: SlurmConfig{
			Partition:         "cpu",
			QOS:               "default",
			Time:              "00:15:00",
			Nodes:             1,
			Ntasks:            1,
			NtasksPerNode:     1,
			VanishedJobPolicy: VanishedCompleted,
		},
		Containers: ContainerConfig{
			Module: "Apptainer",
		},
		Benchmark: BenchmarkConfig{
			ScriptsDir: "$HOME/benchmark_scripts",
			ResultsDir: "$SLURM_SUBMIT_DIR/results",
		},
		Discovery: DiscoveryConfig{
			MaxAttempts: 6,
			Delay:       5 * time.Second,
		},
		LogLevel: "info",
	}
}

// applyDefaults fills zero-valued fields of cfg from Default.
func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.SSH.Port == 0 {
		cfg.SSH.Port = def.SSH.Port
	}
	if cfg.Slurm.Partition == "" {
		cfg.Slurm.Partition = def.Slurm.Partition
	}
	if cfg.Slurm.QOS == "" {
		cfg.Slurm.QOS = def.Slurm.QOS
	}
	if cfg.Slurm.Time == "" {
		cfg.Slurm.Time = def.Slurm.Time
	}
	if cfg.Slurm.Nodes == 0 {
		cfg.Slurm.Nodes = def.Slurm.Nodes
	}
	if cfg.Slurm.Ntasks == 0 {
		cfg.Slurm.Ntasks = def.Slurm.Ntasks
	}
	if cfg.Slurm.NtasksPerNode == 0 {
		cfg.Slurm.NtasksPerNode = def.Slurm.NtasksPerNode
	}
	if cfg.Slurm.VanishedJobPolicy == "" {
		cfg.Slurm.VanishedJobPolicy = def.Slurm.VanishedJobPolicy
	}
	if cfg.Containers.Module == "" {
		cfg.Containers.Module = def.Containers.Module
	}
	if cfg.Benchmark.ScriptsDir == "" {
		cfg.Benchmark.ScriptsDir = def.Benchmark.ScriptsDir
	}
	if cfg.Benchmark.ResultsDir == "" {
		cfg.Benchmark.ResultsDir = def.Benchmark.ResultsDir
	}
	if cfg.Discovery.MaxAttempts == 0 {
		cfg.Discovery.MaxAttempts = def.Discovery.MaxAttempts
	}
	if cfg.Discovery.Delay == 0 {
		cfg.Discovery.Delay = def.Discovery.Delay
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
}
