// Package catalog holds the built-in service and client builders: the
// workloads this tool knows how to deploy out of the box. Each builder
// starts from the generic recipe shape and attaches the hooks that make
// the workload actually come up on a compute node.
package catalog

import "hpcbench/internal/job"

// Register installs every built-in builder into the given registry.
// Client builders are keyed by the service they benchmark.
func Register(reg *job.Registry) {
	reg.RegisterService("ollama", ollamaService)
	reg.RegisterClient("ollama", ollamaClient)

	reg.RegisterService("mysql", mysqlService)
	reg.RegisterClient("mysql", mysqlClient)

	reg.RegisterService("redis", redisService)
	reg.RegisterClient("redis", redisClient)

	reg.RegisterService("chroma", chromaService)
	reg.RegisterClient("chroma", chromaClient)

	reg.RegisterService("prometheus", prometheusService)
	reg.RegisterService("grafana", grafanaService)
}

// ensureEnv sets a default environment value without overriding what the
// recipe already carries.
func ensureEnv(env *map[string]string, key, value string) {
	if *env == nil {
		*env = make(map[string]string)
	}
	if _, ok := (*env)[key]; !ok {
		(*env)[key] = value
	}
}

// defaultSource fills the build source when neither the recipe nor the
// configured source map has one.
func defaultSource(s *job.Service, source string) {
	if s.Container.DockerSource == "" && s.Config.Containers.DockerSources[s.Name] == "" {
		s.Container.DockerSource = source
	}
}
