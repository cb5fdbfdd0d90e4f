package catalog

import (
	"hpcbench/internal/config"
	"hpcbench/internal/job"
	"hpcbench/internal/recipe"
)

const ollamaPort = 11434

// ollamaService runs an Ollama inference server on a GPU node. Models are
// kept on shared storage so repeated runs skip the download.
func ollamaService(spec *recipe.ServiceSpec, cfg *config.Config) (*job.Service, error) {
	s := job.NewService(spec, cfg)
	s.GPU = true
	if len(s.Ports) == 0 {
		s.Ports = []int{ollamaPort}
	}
	ensureEnv(&s.Env, "OLLAMA_HOST", "0.0.0.0")
	ensureEnv(&s.Env, "OLLAMA_MODELS", "$HOME/ollama/models")
	defaultSource(s, "docker://ollama/ollama:latest")

	if s.Command == "" {
		s.Command = "ollama"
		s.Args = []string{"serve"}
	}
	s.SetupFn = func(s *job.Service) []string {
		return []string{"mkdir -p " + s.Env["OLLAMA_MODELS"]}
	}
	return s, nil
}

// ollamaClient benchmarks an Ollama server over its HTTP API.
func ollamaClient(spec *recipe.ClientSpec, cfg *config.Config) (*job.Client, error) {
	c := job.NewClient(spec, cfg)
	c.Protocol = "http"
	c.DefaultPort = ollamaPort
	c.Prelude = "pip install -q requests"
	return c, nil
}
