package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
ssh:
  hostname: login.cluster.example
  username: u100042
  key_file: ~/.ssh/id_ed25519
slurm:
  account: p200981
  partition: gpu
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "login.cluster.example", cfg.SSH.Hostname)
	assert.Equal(t, 22, cfg.SSH.Port)
	assert.Equal(t, "p200981", cfg.Slurm.Account)
	assert.Equal(t, "gpu", cfg.Slurm.Partition)
	// Untouched fields come from defaults.
	assert.Equal(t, "default", cfg.Slurm.QOS)
	assert.Equal(t, "Apptainer", cfg.Containers.Module)
	assert.Equal(t, VanishedCompleted, cfg.Slurm.VanishedJobPolicy)
	assert.Equal(t, 6, cfg.Discovery.MaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.Discovery.Delay)
}

func TestLoadRejectsBadPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
slurm:
  account: p200981
  vanished_job_policy: guess
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "vanished_job_policy")
}

func TestLoadRejectsInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("slurm: [broken"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
