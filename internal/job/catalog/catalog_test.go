package catalog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hpcbench/internal/config"
	"hpcbench/internal/job"
	"hpcbench/internal/recipe"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Slurm.Account = "p0001"
	cfg.Containers.BasePath = "$HOME/containers"
	cfg.Containers.AutoBuild = true
	return &cfg
}

func testRegistry() *job.Registry {
	reg := job.NewRegistry()
	Register(reg)
	return reg
}

func TestRegisterCoversBuiltins(t *testing.T) {
	reg := testRegistry()
	assert.Equal(t, []string{"chroma", "grafana", "mysql", "ollama", "prometheus", "redis"}, reg.ListServices())
	assert.Equal(t, []string{"chroma", "mysql", "ollama", "redis"}, reg.ListClients())
}

func TestOllamaServiceScript(t *testing.T) {
	reg := testRegistry()
	svc, err := reg.CreateService(&recipe.ServiceSpec{
		Name:           "ollama",
		ContainerImage: "ollama.sif",
	}, testConfig())
	require.NoError(t, err)
	assert.Equal(t, []int{11434}, svc.Ports)

	script, err := svc.GenerateScript("ab12cd34", "")
	require.NoError(t, err)

	assert.Contains(t, script, "export OLLAMA_HOST=0.0.0.0")
	assert.Contains(t, script, "mkdir -p $HOME/ollama/models")
	assert.Contains(t, script, "apptainer build $HOME/containers/ollama.sif docker://ollama/ollama:latest")
	assert.Contains(t, script, "apptainer exec --nv $HOME/containers/ollama.sif ollama serve &")
}

func TestOllamaClientScript(t *testing.T) {
	reg := testRegistry()
	cl, err := reg.CreateClient(&recipe.ClientSpec{
		Name:           "ollama_benchmark",
		ContainerImage: "benchmark.sif",
		TargetService:  recipe.TargetService{Name: "ollama"},
		Duration:       120,
		Parameters:     recipe.StringMap{"model": "llama3"},
	}, testConfig())
	require.NoError(t, err)

	script, err := cl.GenerateScript("ab12cd34", "mel2042")
	require.NoError(t, err)

	assert.Contains(t, script, "export TARGET_SERVICE_HOST=mel2042")
	assert.Contains(t, script, "--endpoint=http://mel2042:11434")
	assert.Contains(t, script, "--duration=120 --model=llama3")
	assert.Contains(t, script, "pip install -q requests && python /app/ollama_benchmark.py")
}

func TestMysqlServiceInitializesDatadirOnce(t *testing.T) {
	reg := testRegistry()
	svc, err := reg.CreateService(&recipe.ServiceSpec{
		Name:           "mysql",
		ContainerImage: "mysql.sif",
	}, testConfig())
	require.NoError(t, err)

	script, err := svc.GenerateScript("ffee0011", "")
	require.NoError(t, err)

	initIdx := strings.Index(script, "mysqld --initialize-insecure")
	startIdx := strings.Index(script, "mysqld --datadir=/var/lib/mysql")
	require.NotEqual(t, -1, initIdx)
	require.NotEqual(t, -1, startIdx)
	assert.Less(t, initIdx, startIdx, "initialization guard precedes the server start")
	assert.Contains(t, script, "if [ ! -d $HOME/mysql/data/mysql ]; then")
}

func TestMysqlClientBareEndpoint(t *testing.T) {
	reg := testRegistry()
	cl, err := reg.CreateClient(&recipe.ClientSpec{
		Name:           "mysql_benchmark",
		ContainerImage: "benchmark.sif",
		TargetService:  recipe.TargetService{Name: "mysql"},
	}, testConfig())
	require.NoError(t, err)

	assert.Equal(t, "mel2042:3306", cl.Endpoint("mel2042"), "database endpoints carry no scheme")
}

func TestPrometheusScrapeConfigGenerated(t *testing.T) {
	reg := testRegistry()
	svc, err := reg.CreateService(&recipe.ServiceSpec{
		Name:           "prometheus",
		ContainerImage: "prometheus.sif",
		Environment:    map[string]string{"PROMETHEUS_SCRAPE_TARGETS": "mel2042:9100"},
	}, testConfig())
	require.NoError(t, err)

	script, err := svc.GenerateScript("cd34ab12", "")
	require.NoError(t, err)

	assert.Contains(t, script, "export PROMETHEUS_SCRAPE_TARGETS=mel2042:9100")
	assert.Contains(t, script, "cat > $HOME/prometheus/prometheus.yml <<PROMCFG")
	assert.Contains(t, script, "--config.file=/prometheus-data/prometheus.yml")
	assert.Contains(t, script, "--web.listen-address=0.0.0.0:9090")
}

func TestRecipeOverridesCatalogDefaults(t *testing.T) {
	reg := testRegistry()
	svc, err := reg.CreateService(&recipe.ServiceSpec{
		Name:           "ollama",
		ContainerImage: "ollama.sif",
		Ports:          []int{11500},
		Environment:    map[string]string{"OLLAMA_HOST": "0.0.0.0:11500"},
		Container:      recipe.ContainerSource{DockerSource: "docker://ollama/ollama:0.5"},
	}, testConfig())
	require.NoError(t, err)

	assert.Equal(t, []int{11500}, svc.Ports)

	script, err := svc.GenerateScript("ab12cd34", "")
	require.NoError(t, err)
	assert.Contains(t, script, "export OLLAMA_HOST=0.0.0.0:11500")
	assert.Contains(t, script, "docker://ollama/ollama:0.5")
	assert.NotContains(t, script, "docker://ollama/ollama:latest")
}
