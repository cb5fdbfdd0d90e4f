package job

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hpcbench/internal/recipe"
)

func testClient(t *testing.T) *Client {
	t.Helper()
	c := NewClient(&recipe.ClientSpec{
		Name:           "ollama_benchmark",
		ContainerImage: "benchmark.sif",
		TargetService:  recipe.TargetService{Name: "ollama"},
		Duration:       60,
		Parameters: recipe.StringMap{
			"model":               "llama3",
			"concurrent_requests": "4",
		},
		Script: recipe.Script{Name: "ollama_benchmark.py"},
	}, testConfig())
	c.Protocol = "http"
	c.DefaultPort = 11434
	return c
}

func TestClientEndpointPrecedence(t *testing.T) {
	c := testClient(t)

	// Explicit parameter wins over everything.
	c.Parameters["endpoint"] = "http://override:9999"
	assert.Equal(t, "http://override:9999", c.Endpoint("mel2042"))
	delete(c.Parameters, "endpoint")

	// Recipe port beats the client default.
	c.Target.Port = 8080
	assert.Equal(t, "http://mel2042:8080", c.Endpoint("mel2042"))
	c.Target.Port = 0

	// Client default port.
	assert.Equal(t, "http://mel2042:11434", c.Endpoint("mel2042"))

	// No protocol yields bare host:port.
	c.Protocol = ""
	assert.Equal(t, "mel2042:11434", c.Endpoint("mel2042"))

	// Unresolved host with no explicit endpoint resolves to nothing.
	assert.Equal(t, "", c.Endpoint(""))
}

func TestClientScriptWithResolvedHost(t *testing.T) {
	c := testClient(t)

	script, err := c.GenerateScript("ab12cd34", "mel2042")
	require.NoError(t, err)

	assert.Contains(t, script, "#SBATCH --job-name=ollama_benchmark_ab12cd34")
	assert.Contains(t, script, "export TARGET_SERVICE_HOST=mel2042")
	assert.Contains(t, script, "--endpoint=http://mel2042:11434")
	assert.Contains(t, script, "--duration=60")

	// Parameters become long flags, sorted, underscores dashed.
	assert.Contains(t, script, "--concurrent-requests=4 --model=llama3")

	// Scripts dir is mounted into the container as /app.
	assert.Contains(t, script, "apptainer exec --bind $HOME/benchmark_scripts:/app")
	assert.Contains(t, script, "python /app/ollama_benchmark.py")

	// Results are collected and the script exit code is preserved.
	assert.Contains(t, script, "mkdir -p $SLURM_SUBMIT_DIR/results")
	assert.Contains(t, script, "exit $CLIENT_EXIT")
}

func TestClientScriptWithoutResolvedHost(t *testing.T) {
	c := testClient(t)

	script, err := c.GenerateScript("ab12cd34", "")
	require.NoError(t, err)

	assert.NotContains(t, script, "TARGET_SERVICE_HOST")
	assert.NotContains(t, script, "--endpoint=")
}

func TestClientScriptExplicitEndpointWithoutHost(t *testing.T) {
	c := testClient(t)
	c.Parameters["endpoint"] = "http://fixed.example:11434"

	script, err := c.GenerateScript("ab12cd34", "")
	require.NoError(t, err)

	assert.NotContains(t, script, "TARGET_SERVICE_HOST")
	assert.Contains(t, script, "--endpoint=http://fixed.example:11434")
	assert.Equal(t, 1, strings.Count(script, "--endpoint="), "endpoint parameter must not be passed twice")
}

func TestClientScriptChecksScriptPresence(t *testing.T) {
	c := testClient(t)

	script, err := c.GenerateScript("ab12cd34", "mel2042")
	require.NoError(t, err)

	check := "if [ ! -f $HOME/benchmark_scripts/ollama_benchmark.py ]; then"
	assert.Contains(t, script, check)
	assert.Contains(t, script, "exit 1")
	assert.Less(t, strings.Index(script, check), strings.Index(script, "apptainer exec"),
		"a missing script must fail before the container starts")

	// Command overrides run no benchmark script and need no check.
	c.CommandFn = func(*Client, string) string { return "sysbench run" }
	script, err = c.GenerateScript("ab12cd34", "mel2042")
	require.NoError(t, err)
	assert.NotContains(t, script, "benchmark_scripts/ollama_benchmark.py ]")
}

func TestClientPreludeAndCommandOverride(t *testing.T) {
	c := testClient(t)
	c.Prelude = "pip install -q requests"

	script, err := c.GenerateScript("ab12cd34", "mel2042")
	require.NoError(t, err)
	assert.Contains(t, script, "pip install -q requests && python /app/ollama_benchmark.py")

	c.CommandFn = func(c *Client, endpoint string) string {
		return "sysbench oltp_read_write --mysql-host=" + endpoint + " run"
	}
	c.Protocol = ""
	c.DefaultPort = 3306
	script, err = c.GenerateScript("ab12cd34", "mel2042")
	require.NoError(t, err)
	assert.Contains(t, script, "sysbench oltp_read_write --mysql-host=mel2042:3306 run")
	assert.NotContains(t, script, "python /app/")
}
