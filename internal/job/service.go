package job

import (
	"fmt"
	"strings"

	"hpcbench/internal/config"
	"hpcbench/internal/recipe"
)

// Service is a long-running deployable unit: it starts its container in
// the background and then holds the allocation open as long as the process
// lives. Behavior differences between concrete services (data directories,
// health probes, GPU use) are expressed through the hook fields, set by
// the catalog builders.
type Service struct {
	Base

	Ports []int
	Binds []string // extra bind mounts, host:container
	GPU   bool     // pass --nv to the container runtime

	// SetupFn emits preparation lines before the container starts
	// (data directories, generated config files).
	SetupFn func(*Service) []string
	// CommandFn overrides the whole container start line. The default
	// execs the recipe command inside the resolved image.
	CommandFn func(*Service) string
	// MonitorFn overrides the keep-alive loop that follows the start.
	MonitorFn func(*Service) []string
}

// NewService builds a plain service from its recipe shape. Catalog
// builders start from this and attach their hooks.
func NewService(spec *recipe.ServiceSpec, cfg *config.Config) *Service {
	return &Service{
		Base: Base{
			Name:      spec.Name,
			Image:     spec.ContainerImage,
			Container: spec.Container,
			Resources: spec.Resources,
			Env:       spec.Environment,
			Command:   spec.Command,
			Args:      spec.Args,
			Config:    cfg,
		},
		Ports: spec.Ports,
	}
}

// GenerateScript implements Spec. Services never receive a target host.
func (s *Service) GenerateScript(internalID, _ string) (string, error) {
	var body []string
	if s.SetupFn != nil {
		body = append(body, s.SetupFn(s)...)
	}
	body = append(body,
		fmt.Sprintf("echo \"Starting %s on $(hostname)\"", s.Name),
		s.containerCommand()+" &",
		"SERVICE_PID=$!",
	)
	if s.MonitorFn != nil {
		body = append(body, s.MonitorFn(s)...)
	} else {
		body = append(body,
			"sleep 30",
			"while kill -0 $SERVICE_PID 2>/dev/null; do",
			"    sleep 60",
			"done",
			fmt.Sprintf("echo \"%s exited\"", s.Name),
		)
	}
	return s.render(internalID, "", s.dockerSource(), body)
}

// containerCommand is the foreground start line, without the trailing
// backgrounding ampersand. Environment reaches the container through the
// exports above it; the runtime inherits the job environment.
func (s *Service) containerCommand() string {
	if s.CommandFn != nil {
		return s.CommandFn(s)
	}
	parts := []string{"apptainer", "exec"}
	if s.GPU {
		parts = append(parts, "--nv")
	}
	for _, b := range s.Binds {
		parts = append(parts, "--bind", b)
	}
	parts = append(parts, s.ImagePath())
	if s.Command != "" {
		parts = append(parts, s.Command)
	}
	parts = append(parts, s.Args...)
	return strings.Join(parts, " ")
}

// dockerSource resolves where the image is built from when absent: the
// recipe's own source first, then the configured per-service source map.
func (s *Service) dockerSource() string {
	if s.Container.DockerSource != "" {
		return s.Container.DockerSource
	}
	return s.Config.Containers.DockerSources[s.Name]
}
