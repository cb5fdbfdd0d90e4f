package job

import (
	"fmt"
	"sort"
	"sync"

	"hpcbench/internal/config"
	"hpcbench/internal/recipe"
	"hpcbench/pkg/logging"
)

// UnknownServiceError reports a recipe naming a service nobody registered.
type UnknownServiceError struct {
	Name string
}

func (e *UnknownServiceError) Error() string {
	return fmt.Sprintf("no service registered under name %q", e.Name)
}

// UnknownClientError reports a recipe targeting a service no client
// implementation exists for.
type UnknownClientError struct {
	Target string
}

func (e *UnknownClientError) Error() string {
	return fmt.Sprintf("no client registered for target service %q", e.Target)
}

// ServiceBuilder constructs a service from its recipe shape.
type ServiceBuilder func(*recipe.ServiceSpec, *config.Config) (*Service, error)

// ClientBuilder constructs a client from its recipe shape. Builders are
// keyed by the name of the service they benchmark, not by the client's
// own name.
type ClientBuilder func(*recipe.ClientSpec, *config.Config) (*Client, error)

// Registry maps logical names to builders. It is an explicit value passed
// to whoever needs it; nothing registers into package state.
type Registry struct {
	mu       sync.RWMutex
	services map[string]ServiceBuilder
	clients  map[string]ClientBuilder
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		services: make(map[string]ServiceBuilder),
		clients:  make(map[string]ClientBuilder),
	}
}

// RegisterService binds a builder to a service name. Re-registering a
// name replaces the previous builder; the last registration wins.
func (r *Registry) RegisterService(name string, b ServiceBuilder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.services[name]; exists {
		logging.Debug("Registry", "Replacing service builder %q", name)
	}
	r.services[name] = b
}

// RegisterClient binds a builder to the target service name it benchmarks.
func (r *Registry) RegisterClient(targetName string, b ClientBuilder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.clients[targetName]; exists {
		logging.Debug("Registry", "Replacing client builder for target %q", targetName)
	}
	r.clients[targetName] = b
}

// CreateService dispatches to the builder registered for the spec's name.
func (r *Registry) CreateService(spec *recipe.ServiceSpec, cfg *config.Config) (*Service, error) {
	r.mu.RLock()
	b, ok := r.services[spec.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, &UnknownServiceError{Name: spec.Name}
	}
	return b(spec, cfg)
}

// CreateClient dispatches to the builder registered for the spec's target
// service.
func (r *Registry) CreateClient(spec *recipe.ClientSpec, cfg *config.Config) (*Client, error) {
	r.mu.RLock()
	b, ok := r.clients[spec.TargetService.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, &UnknownClientError{Target: spec.TargetService.Name}
	}
	return b(spec, cfg)
}

// ListServices returns the registered service names, sorted.
func (r *Registry) ListServices() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.services))
	for name := range r.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListClients returns the target service names clients exist for, sorted.
func (r *Registry) ListClients() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
