package recipe

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRecipe(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recipe.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadPairedRecipe(t *testing.T) {
	path := writeRecipe(t, `
service:
  name: ollama
  container_image: ollama_latest.sif
  resources:
    gres: gpu:1
    mem: 32G
    nodes: 1
  environment:
    OLLAMA_HOST: 0.0.0.0:11434
  ports: [11434]
  container:
    docker_source: docker://ollama/ollama:latest
    image_path: /project/containers/ollama_latest.sif
client:
  name: ollama_benchmark
  container_image: benchmark_client.sif
  target_service:
    name: ollama
    port: 11434
  duration: 600
  parameters:
    model: llama2
    num_requests: 50
  script:
    name: ollama_benchmark.py
    remote_path: $HOME/benchmark_scripts/
`)

	r, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, r.Service)
	require.NotNil(t, r.Client)

	assert.Equal(t, "ollama", r.Service.Name)
	assert.Equal(t, []int{11434}, r.Service.Ports)
	// Scalar yaml values of any type land as strings.
	assert.Equal(t, "1", r.Service.Resources["nodes"])
	assert.Equal(t, "gpu:1", r.Service.Resources["gres"])
	assert.Equal(t, "50", r.Client.Parameters["num_requests"])
	assert.Equal(t, "ollama", r.Client.TargetService.Name)
	assert.Equal(t, 11434, r.Client.TargetService.Port)
	assert.Equal(t, 600, r.Client.Duration)
}

func TestLoadServiceOnly(t *testing.T) {
	path := writeRecipe(t, `
service:
  name: redis
  container_image: redis.sif
  ports: [6379]
`)
	r, err := Load(path)
	require.NoError(t, err)
	assert.Nil(t, r.Client)
	assert.Equal(t, "redis", r.Service.Name)
}

func TestValidateRejectsEmptyRecipe(t *testing.T) {
	var r Recipe
	assert.ErrorContains(t, r.Validate(), "service or client")
}

func TestValidateRejectsClientWithoutTarget(t *testing.T) {
	r := Recipe{Client: &ClientSpec{Name: "bench"}}
	assert.ErrorContains(t, r.Validate(), "target_service.name")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
