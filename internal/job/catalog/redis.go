package catalog

import (
	"hpcbench/internal/config"
	"hpcbench/internal/job"
	"hpcbench/internal/recipe"
)

const redisPort = 6379

// redisService runs a Redis server reachable from other compute nodes.
// Protected mode is off: the cluster network is the trust boundary here.
func redisService(spec *recipe.ServiceSpec, cfg *config.Config) (*job.Service, error) {
	s := job.NewService(spec, cfg)
	if len(s.Ports) == 0 {
		s.Ports = []int{redisPort}
	}
	defaultSource(s, "docker://redis:7")

	if s.Command == "" {
		s.Command = "redis-server"
		s.Args = []string{"--bind", "0.0.0.0", "--protected-mode", "no"}
	}
	return s, nil
}

// redisClient benchmarks a Redis server over a bare host:port endpoint.
func redisClient(spec *recipe.ClientSpec, cfg *config.Config) (*job.Client, error) {
	c := job.NewClient(spec, cfg)
	c.DefaultPort = redisPort
	c.Prelude = "pip install -q redis"
	return c, nil
}
