package catalog

import (
	"fmt"

	"hpcbench/internal/config"
	"hpcbench/internal/job"
	"hpcbench/internal/recipe"
)

const (
	prometheusPort = 9090
	prometheusHome = "$HOME/prometheus"
)

// prometheusService runs a Prometheus server for scraping metrics during
// a benchmark session. The scrape target list comes from the
// PROMETHEUS_SCRAPE_TARGETS environment value; the config file is written
// fresh on every start so changed targets take effect.
func prometheusService(spec *recipe.ServiceSpec, cfg *config.Config) (*job.Service, error) {
	s := job.NewService(spec, cfg)
	if len(s.Ports) == 0 {
		s.Ports = []int{prometheusPort}
	}
	ensureEnv(&s.Env, "PROMETHEUS_SCRAPE_TARGETS", fmt.Sprintf("localhost:%d", prometheusPort))
	defaultSource(s, "docker://prom/prometheus:latest")

	s.Binds = append(s.Binds, prometheusHome+":/prometheus-data")
	s.SetupFn = func(s *job.Service) []string {
		return []string{
			fmt.Sprintf("mkdir -p %s/data", prometheusHome),
			fmt.Sprintf("cat > %s/prometheus.yml <<PROMCFG", prometheusHome),
			"global:",
			"  scrape_interval: 15s",
			"scrape_configs:",
			"  - job_name: benchmark",
			"    static_configs:",
			"      - targets: ['${PROMETHEUS_SCRAPE_TARGETS}']",
			"PROMCFG",
		}
	}
	s.CommandFn = func(s *job.Service) string {
		return fmt.Sprintf(
			"apptainer exec --bind %s:/prometheus-data %s prometheus --config.file=/prometheus-data/prometheus.yml --storage.tsdb.path=/prometheus-data/data --web.listen-address=0.0.0.0:%d",
			prometheusHome, s.ImagePath(), prometheusPort)
	}
	return s, nil
}
