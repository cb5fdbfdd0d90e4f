package job

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hpcbench/internal/config"
	"hpcbench/internal/recipe"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Slurm.Account = "p0001"
	cfg.Containers.BasePath = "$HOME/containers"
	cfg.Containers.AutoBuild = true
	cfg.Containers.DockerSources = map[string]string{
		"ollama":           "docker://ollama/ollama:latest",
		"benchmark_client": "docker://python:3.11-slim",
	}
	return &cfg
}

func TestServiceScriptSkeleton(t *testing.T) {
	svc := NewService(&recipe.ServiceSpec{
		Name:           "ollama",
		ContainerImage: "ollama.sif",
		Command:        "ollama",
		Args:           []string{"serve"},
		Environment:    map[string]string{"OLLAMA_HOST": "0.0.0.0"},
		Resources: recipe.StringMap{
			"time":       "02:00:00",
			"gres":       "gpu:1",
			"constraint": "amd",
		},
	}, testConfig())

	script, err := svc.GenerateScript("ab12cd34", "")
	require.NoError(t, err)

	lines := strings.Split(script, "\n")
	assert.Equal(t, "#!/bin/bash -l", lines[0])
	assert.Equal(t, "#SBATCH --job-name=ollama_ab12cd34", lines[1])
	assert.Equal(t, 1, strings.Count(script, "--job-name="), "job name directive must appear exactly once")

	// Job resources win over global defaults, key by key.
	assert.Contains(t, script, "#SBATCH --time=02:00:00")
	assert.NotContains(t, script, "00:15:00")
	assert.Contains(t, script, "#SBATCH --account=p0001")
	assert.Contains(t, script, "#SBATCH --partition=cpu")
	assert.Contains(t, script, "#SBATCH --nodes=1")

	// Every resource key lands in the script, known or not.
	assert.Contains(t, script, "#SBATCH --gres=gpu:1")
	assert.Contains(t, script, "#SBATCH --constraint=amd")

	assert.Contains(t, script, "module add Apptainer")
	assert.Contains(t, script, "export OLLAMA_HOST=0.0.0.0")

	// Idempotent build guard against the resolved image path.
	assert.Contains(t, script, "if [ ! -f $HOME/containers/ollama.sif ]; then")
	assert.Contains(t, script, "apptainer build $HOME/containers/ollama.sif docker://ollama/ollama:latest || { echo \"Container build failed\"; exit 1; }")

	// Services never export a target host.
	assert.NotContains(t, script, "TARGET_SERVICE_HOST")

	// Background start plus keep-alive loop.
	assert.Contains(t, script, "apptainer exec $HOME/containers/ollama.sif ollama serve &")
	assert.Contains(t, script, "while kill -0 $SERVICE_PID 2>/dev/null; do")
}

func TestServiceScriptMissingAccount(t *testing.T) {
	cfg := testConfig()
	cfg.Slurm.Account = ""
	svc := NewService(&recipe.ServiceSpec{Name: "ollama", ContainerImage: "ollama.sif"}, cfg)

	_, err := svc.GenerateScript("ab12cd34", "")
	assert.ErrorIs(t, err, ErrMissingAccount)
}

func TestServiceHooksAndBinds(t *testing.T) {
	svc := NewService(&recipe.ServiceSpec{
		Name:           "mysql",
		ContainerImage: "mysql.sif",
	}, testConfig())
	svc.Binds = []string{"$HOME/mysql/data:/var/lib/mysql"}
	svc.SetupFn = func(s *Service) []string {
		return []string{"mkdir -p $HOME/mysql/data"}
	}
	svc.CommandFn = func(s *Service) string {
		return "apptainer exec --bind $HOME/mysql/data:/var/lib/mysql " + s.ImagePath() + " mysqld"
	}

	script, err := svc.GenerateScript("ffee0011", "")
	require.NoError(t, err)

	setupIdx := strings.Index(script, "mkdir -p $HOME/mysql/data")
	startIdx := strings.Index(script, "mysqld &")
	require.NotEqual(t, -1, setupIdx)
	require.NotEqual(t, -1, startIdx)
	assert.Less(t, setupIdx, startIdx, "setup must run before the container starts")
}

func TestBuildGuardForceRebuild(t *testing.T) {
	cfg := testConfig()
	cfg.Containers.ForceRebuild = true
	svc := NewService(&recipe.ServiceSpec{Name: "ollama", ContainerImage: "ollama.sif"}, cfg)

	script, err := svc.GenerateScript("ab12cd34", "")
	require.NoError(t, err)
	assert.Contains(t, script, "apptainer build --force")
	assert.NotContains(t, script, "if [ ! -f")
}

func TestBuildGuardSkippedWithoutSource(t *testing.T) {
	cfg := testConfig()
	cfg.Containers.DockerSources = nil
	svc := NewService(&recipe.ServiceSpec{Name: "redis", ContainerImage: "redis.sif"}, cfg)

	script, err := svc.GenerateScript("ab12cd34", "")
	require.NoError(t, err)
	assert.NotContains(t, script, "apptainer build")
}

func TestImagePathResolution(t *testing.T) {
	cfg := testConfig()
	b := Base{Image: "ollama.sif", Config: cfg}
	assert.Equal(t, "$HOME/containers/ollama.sif", b.ImagePath())

	b.Image = "/scratch/images/ollama.sif"
	assert.Equal(t, "/scratch/images/ollama.sif", b.ImagePath())

	b.Container.ImagePath = "/other/pinned.sif"
	assert.Equal(t, "/other/pinned.sif", b.ImagePath(), "recipe image path wins")
}
