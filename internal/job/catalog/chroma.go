package catalog

import (
	"fmt"

	"hpcbench/internal/config"
	"hpcbench/internal/job"
	"hpcbench/internal/recipe"
)

const (
	chromaPort = 8000
	chromaHome = "$HOME/chroma"
)

// chromaService runs a Chroma vector database with its collection data on
// shared storage.
func chromaService(spec *recipe.ServiceSpec, cfg *config.Config) (*job.Service, error) {
	s := job.NewService(spec, cfg)
	if len(s.Ports) == 0 {
		s.Ports = []int{chromaPort}
	}
	ensureEnv(&s.Env, "ANONYMIZED_TELEMETRY", "False")
	defaultSource(s, "docker://chromadb/chroma:latest")

	s.Binds = append(s.Binds, chromaHome+":/data")
	s.SetupFn = func(*job.Service) []string {
		return []string{"mkdir -p " + chromaHome}
	}
	if s.Command == "" {
		s.Command = "chroma"
		s.Args = []string{"run", "--host", "0.0.0.0", "--port", fmt.Sprint(chromaPort), "--path", "/data"}
	}
	return s, nil
}

// chromaClient benchmarks a Chroma server over its HTTP API.
func chromaClient(spec *recipe.ClientSpec, cfg *config.Config) (*job.Client, error) {
	c := job.NewClient(spec, cfg)
	c.Protocol = "http"
	c.DefaultPort = chromaPort
	c.Prelude = "pip install -q chromadb requests"
	return c, nil
}
