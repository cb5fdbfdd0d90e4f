package job

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hpcbench/internal/config"
	"hpcbench/internal/recipe"
)

func TestRegistryDispatch(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterService("ollama", func(spec *recipe.ServiceSpec, cfg *config.Config) (*Service, error) {
		s := NewService(spec, cfg)
		s.Ports = []int{11434}
		return s, nil
	})
	reg.RegisterClient("ollama", func(spec *recipe.ClientSpec, cfg *config.Config) (*Client, error) {
		c := NewClient(spec, cfg)
		c.Protocol = "http"
		c.DefaultPort = 11434
		return c, nil
	})

	cfg := testConfig()

	svc, err := reg.CreateService(&recipe.ServiceSpec{Name: "ollama", ContainerImage: "ollama.sif"}, cfg)
	require.NoError(t, err)
	assert.Equal(t, []int{11434}, svc.Ports)

	cl, err := reg.CreateClient(&recipe.ClientSpec{
		Name:          "bench",
		TargetService: recipe.TargetService{Name: "ollama"},
	}, cfg)
	require.NoError(t, err)
	assert.Equal(t, 11434, cl.DefaultPort)
}

func TestRegistryUnknownNames(t *testing.T) {
	reg := NewRegistry()
	cfg := testConfig()

	_, err := reg.CreateService(&recipe.ServiceSpec{Name: "etcd"}, cfg)
	var unknownSvc *UnknownServiceError
	require.ErrorAs(t, err, &unknownSvc)
	assert.Equal(t, "etcd", unknownSvc.Name)
	assert.Contains(t, err.Error(), "etcd")

	_, err = reg.CreateClient(&recipe.ClientSpec{
		Name:          "bench",
		TargetService: recipe.TargetService{Name: "etcd"},
	}, cfg)
	var unknownCl *UnknownClientError
	require.ErrorAs(t, err, &unknownCl)
	assert.Equal(t, "etcd", unknownCl.Target)
}

func TestRegistryLastRegistrationWins(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterService("ollama", func(spec *recipe.ServiceSpec, cfg *config.Config) (*Service, error) {
		s := NewService(spec, cfg)
		s.GPU = false
		return s, nil
	})
	reg.RegisterService("ollama", func(spec *recipe.ServiceSpec, cfg *config.Config) (*Service, error) {
		s := NewService(spec, cfg)
		s.GPU = true
		return s, nil
	})

	svc, err := reg.CreateService(&recipe.ServiceSpec{Name: "ollama"}, testConfig())
	require.NoError(t, err)
	assert.True(t, svc.GPU)
	assert.Equal(t, []string{"ollama"}, reg.ListServices())
}

func TestRegistryListSorted(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"redis", "chroma", "ollama", "mysql"} {
		reg.RegisterService(name, func(spec *recipe.ServiceSpec, cfg *config.Config) (*Service, error) {
			return NewService(spec, cfg), nil
		})
	}
	assert.Equal(t, []string{"chroma", "mysql", "ollama", "redis"}, reg.ListServices())
	assert.Empty(t, reg.ListClients())
}
