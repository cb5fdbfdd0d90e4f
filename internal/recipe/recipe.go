// Package recipe defines the declarative input consumed by the job
// registry: a service block, a client block, or both (a paired session).
package recipe

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"hpcbench/pkg/logging"
)

// StringMap is a string-keyed map that tolerates scalar YAML values of any
// type (ints, bools, durations) by rendering them as strings. Resource and
// parameter values end up in shell text either way.
type StringMap map[string]string

// UnmarshalYAML implements yaml.Unmarshaler.
func (m *StringMap) UnmarshalYAML(value *yaml.Node) error {
	var raw map[string]interface{}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	out := make(StringMap, len(raw))
	for k, v := range raw {
		out[k] = fmt.Sprint(v)
	}
	*m = out
	return nil
}

// ContainerSource describes where a job's container image lives and how to
// build it when absent.
type ContainerSource struct {
	DockerSource string `yaml:"docker_source,omitempty"` // e.g. docker://ollama/ollama:latest
	ImagePath    string `yaml:"image_path,omitempty"`    // resolved .sif path on the cluster
}

// TargetService identifies the service a client connects to. Name selects
// the client implementation in the registry.
type TargetService struct {
	Name string `yaml:"name"`
	Port int    `yaml:"port,omitempty"`
}

// Script locates the interpreted program a client container runs.
type Script struct {
	Name       string `yaml:"name,omitempty"`
	LocalPath  string `yaml:"local_path,omitempty"`
	RemotePath string `yaml:"remote_path,omitempty"`
}

// ServiceSpec is the recipe shape of a long-running deployable unit.
type ServiceSpec struct {
	Name           string            `yaml:"name"`
	ContainerImage string            `yaml:"container_image"`
	Resources      StringMap         `yaml:"resources,omitempty"`
	Environment    map[string]string `yaml:"environment,omitempty"`
	Ports          []int             `yaml:"ports,omitempty"`
	Container      ContainerSource   `yaml:"container,omitempty"`
	Command        string            `yaml:"command,omitempty"`
	Args           []string          `yaml:"args,omitempty"`
}

// ClientSpec is the recipe shape of a workload that targets a service.
type ClientSpec struct {
	Name           string            `yaml:"name"`
	ContainerImage string            `yaml:"container_image"`
	TargetService  TargetService     `yaml:"target_service"`
	Duration       int               `yaml:"duration,omitempty"` // seconds
	Resources      StringMap         `yaml:"resources,omitempty"`
	Environment    map[string]string `yaml:"environment,omitempty"`
	Parameters     StringMap         `yaml:"parameters,omitempty"`
	Script         Script            `yaml:"script,omitempty"`
	Container      ContainerSource   `yaml:"container,omitempty"`
	Command        string            `yaml:"command,omitempty"`
	Args           []string          `yaml:"args,omitempty"`
}

// Recipe is one deployable description: a service, a client, or both.
type Recipe struct {
	Service *ServiceSpec `yaml:"service,omitempty"`
	Client  *ClientSpec  `yaml:"client,omitempty"`
}

// Load reads and validates a recipe file.
func Load(path string) (*Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read recipe %s: %w", path, err)
	}

	var r Recipe
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse recipe %s: %w", path, err)
	}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("invalid recipe %s: %w", path, err)
	}
	logging.Info("Recipe", "Loaded recipe from %s", path)
	return &r, nil
}

// Validate checks the structural constraints that factory creation relies
// on. Unknown service/client names are a registry concern, not a recipe
// concern, and are rejected later with their own error type.
func (r *Recipe) Validate() error {
	if r.Service == nil && r.Client == nil {
		return fmt.Errorf("recipe must contain a service or client section")
	}
	if r.Service != nil && r.Service.Name == "" {
		return fmt.Errorf("service section requires a name")
	}
	if r.Client != nil {
		if r.Client.Name == "" {
			return fmt.Errorf("client section requires a name")
		}
		if r.Client.TargetService.Name == "" {
			return fmt.Errorf("client %s requires target_service.name", r.Client.Name)
		}
	}
	return nil
}
