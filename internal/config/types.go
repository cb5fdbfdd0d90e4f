package config

import "time"

// Config is the top-level configuration structure for hpcbench.
type Config struct {
	SSH        SSHConfig        `yaml:"ssh"`
	Slurm      SlurmConfig      `yaml:"slurm"`
	Containers ContainerConfig  `yaml:"containers"`
	Benchmark  BenchmarkConfig  `yaml:"benchmark"`
	Discovery  DiscoveryConfig  `yaml:"discovery"`
	LogLevel   string           `yaml:"log_level,omitempty"`
}

// SSHConfig describes the connection to the cluster login node.
type SSHConfig struct {
	Hostname string `yaml:"hostname"`
	Username string `yaml:"username"`
	Password string `yaml:"password,omitempty"` // used only when KeyFile is empty
	KeyFile  string `yaml:"key_file,omitempty"`
	Port     int    `yaml:"port,omitempty"` // default: 22
}

// VanishedJobPolicy controls how a job absent from both the live queue and
// the accounting view is interpreted while it was still tracked as
// pending/running. SLURM gives no guarantee here: on most clusters it means
// the job finished and left accounting, on others the views simply lag.
type VanishedJobPolicy string

const (
	// VanishedCompleted marks the job completed (the common case: it ran
	// and finished faster than the polling interval).
	VanishedCompleted VanishedJobPolicy = "completed"
	// VanishedKeep leaves the tracked status untouched until a later
	// refresh sees the job again.
	VanishedKeep VanishedJobPolicy = "keep"
)

// SlurmConfig carries the scheduler defaults merged into every job's
// resource set. Account is the only mandatory field: script rendering
// fails without it.
type SlurmConfig struct {
	Account       string `yaml:"account"`
	Partition     string `yaml:"partition,omitempty"`
	QOS           string `yaml:"qos,omitempty"`
	Time          string `yaml:"time,omitempty"`
	Nodes         int    `yaml:"nodes,omitempty"`
	Ntasks        int    `yaml:"ntasks,omitempty"`
	NtasksPerNode int    `yaml:"ntasks_per_node,omitempty"`

	VanishedJobPolicy VanishedJobPolicy `yaml:"vanished_job_policy,omitempty"`
}

// ContainerConfig controls container image resolution and on-cluster builds.
type ContainerConfig struct {
	// BasePath is prepended to relative image names.
	BasePath string `yaml:"base_path,omitempty"`
	// Module is the environment module providing the container runtime.
	Module string `yaml:"module,omitempty"`
	// AutoBuild enables the build guard emitted into batch scripts.
	AutoBuild bool `yaml:"auto_build,omitempty"`
	// ForceRebuild makes the build guard unconditional.
	ForceRebuild bool `yaml:"force_rebuild,omitempty"`
	// DockerSources maps a job name to the docker:// source its image is
	// built from when the recipe does not carry one.
	DockerSources map[string]string `yaml:"docker_sources,omitempty"`
}

// BenchmarkConfig locates benchmark client scripts on the cluster.
type BenchmarkConfig struct {
	// ScriptsDir is bind-mounted into client containers as /app.
	ScriptsDir string `yaml:"scripts_dir,omitempty"`
	// ResultsDir is where client scripts copy their output files.
	ResultsDir string `yaml:"results_dir,omitempty"`
}

// DiscoveryConfig bounds the host-resolution retry performed before a
// client is started against a freshly submitted service.
type DiscoveryConfig struct {
	MaxAttempts int           `yaml:"max_attempts,omitempty"`
	Delay       time.Duration `yaml:"delay,omitempty"`
}
