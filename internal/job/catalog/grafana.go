package catalog

import (
	"hpcbench/internal/config"
	"hpcbench/internal/job"
	"hpcbench/internal/recipe"
)

const (
	grafanaPort = 3000
	grafanaHome = "$HOME/grafana"
)

// grafanaService runs a Grafana instance for inspecting collected metrics
// through a tunnel. Dashboards live on shared storage and survive the job.
func grafanaService(spec *recipe.ServiceSpec, cfg *config.Config) (*job.Service, error) {
	s := job.NewService(spec, cfg)
	if len(s.Ports) == 0 {
		s.Ports = []int{grafanaPort}
	}
	ensureEnv(&s.Env, "GF_PATHS_DATA", "/var/lib/grafana")
	ensureEnv(&s.Env, "GF_SERVER_HTTP_ADDR", "0.0.0.0")
	defaultSource(s, "docker://grafana/grafana-oss:latest")

	s.Binds = append(s.Binds, grafanaHome+":/var/lib/grafana")
	s.SetupFn = func(*job.Service) []string {
		return []string{"mkdir -p " + grafanaHome}
	}
	if s.Command == "" {
		s.Command = "grafana"
		s.Args = []string{"server", "--homepath=/usr/share/grafana"}
	}
	return s, nil
}
