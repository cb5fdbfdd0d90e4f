package job

import (
	"fmt"
	"path"
	"strings"

	"hpcbench/internal/config"
	"hpcbench/internal/recipe"
	"hpcbench/pkg/logging"
)

// clientImageKey selects the fallback docker source for client containers
// in the configured source map. Clients share one benchmark image unless
// their recipe says otherwise.
const clientImageKey = "benchmark_client"

// Client is a finite workload aimed at one service. It runs its benchmark
// script in the foreground and collects result files before the
// allocation ends.
type Client struct {
	Base

	Target     recipe.TargetService
	Duration   int // seconds, passed through as --duration
	Parameters recipe.StringMap
	Script     recipe.Script

	// Protocol and DefaultPort shape the synthesized endpoint. An empty
	// protocol yields a bare host:port, which is what database clients
	// want.
	Protocol    string
	DefaultPort int
	// Prelude runs inside the container before the benchmark script,
	// typically to install the script's interpreter dependencies.
	Prelude string

	SetupFn func(*Client) []string
	// CommandFn overrides the whole container invocation; it receives the
	// resolved endpoint, which may be empty.
	CommandFn func(*Client, string) string
	// ResultFn overrides result collection after the script exits.
	ResultFn func(*Client) []string
}

// NewClient builds a plain client from its recipe shape.
func NewClient(spec *recipe.ClientSpec, cfg *config.Config) *Client {
	return &Client{
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
		Target:     spec.TargetService,
		Duration:   spec.Duration,
		Parameters: spec.Parameters,
		Script:     spec.Script,
	}
}

// Endpoint resolves the address handed to the benchmark script. An
// explicit endpoint parameter always wins; otherwise the endpoint is
// synthesized from the resolved host and the target port (recipe port
// first, client default second). With neither, the client runs without an
// endpoint and only a warning is logged; some scripts discover their
// target themselves.
func (c *Client) Endpoint(targetHost string) string {
	if ep := c.Parameters["endpoint"]; ep != "" {
		return ep
	}
	if targetHost == "" {
		logging.Warn("Job", "Client %s has no resolved host for target %s and no explicit endpoint parameter", c.Name, c.Target.Name)
		return ""
	}
	hostPort := targetHost
	port := c.Target.Port
	if port == 0 {
		port = c.DefaultPort
	}
	if port != 0 {
		hostPort = fmt.Sprintf("%s:%d", targetHost, port)
	}
	if c.Protocol != "" {
		return fmt.Sprintf("%s://%s", c.Protocol, hostPort)
	}
	return hostPort
}

// GenerateScript implements Spec.
func (c *Client) GenerateScript(internalID, targetHost string) (string, error) {
	endpoint := c.Endpoint(targetHost)

	var body []string
	if c.SetupFn != nil {
		body = append(body, c.SetupFn(c)...)
	}
	body = append(body, fmt.Sprintf("echo \"Running %s against %s\"", c.Name, c.Target.Name))
	if endpoint != "" {
		body = append(body, fmt.Sprintf("echo \"Endpoint: %s\"", endpoint))
	}
	if c.CommandFn == nil {
		// Fail fast when the benchmark script never made it to the
		// shared scripts directory.
		scriptsDir := c.Config.Benchmark.ScriptsDir
		body = append(body,
			fmt.Sprintf("if [ ! -f %s/%s ]; then", scriptsDir, c.ScriptName()),
			fmt.Sprintf("    echo \"Benchmark script %s missing from %s\"", c.ScriptName(), scriptsDir),
			"    exit 1",
			"fi",
		)
	}
	body = append(body,
		c.containerCommand(endpoint),
		"CLIENT_EXIT=$?",
	)
	if c.ResultFn != nil {
		body = append(body, c.ResultFn(c)...)
	} else {
		results := c.Config.Benchmark.ResultsDir
		body = append(body,
			"mkdir -p "+results,
			fmt.Sprintf("cp -v *.json *.csv %s/ 2>/dev/null || true", results),
		)
	}
	body = append(body, "exit $CLIENT_EXIT")

	return c.render(internalID, targetHost, c.dockerSource(), body)
}

// flagArgs turns parameters into long CLI flags, keys sorted and
// underscores normalized to dashes. The endpoint parameter is consumed by
// endpoint resolution and never passed twice.
func (c *Client) flagArgs(endpoint string) []string {
	var flags []string
	if endpoint != "" {
		flags = append(flags, "--endpoint="+endpoint)
	}
	if c.Duration > 0 {
		flags = append(flags, fmt.Sprintf("--duration=%d", c.Duration))
	}
	for _, k := range sortedKeys(c.Parameters) {
		if k == "endpoint" {
			continue
		}
		flags = append(flags, fmt.Sprintf("--%s=%s", strings.ReplaceAll(k, "_", "-"), c.Parameters[k]))
	}
	return flags
}

func (c *Client) containerCommand(endpoint string) string {
	if c.CommandFn != nil {
		return c.CommandFn(c, endpoint)
	}
	inner := fmt.Sprintf("python /app/%s %s",
		c.ScriptName(), strings.Join(c.flagArgs(endpoint), " "))
	if c.Prelude != "" {
		inner = c.Prelude + " && " + inner
	}
	return fmt.Sprintf("apptainer exec --bind %s:/app %s bash -c '%s'",
		c.Config.Benchmark.ScriptsDir, c.ImagePath(), inner)
}

// ScriptName is the file name of the benchmark script inside the shared
// scripts directory, derived from the recipe or the client name.
func (c *Client) ScriptName() string {
	if c.Script.Name != "" {
		return c.Script.Name
	}
	if c.Script.RemotePath != "" {
		return path.Base(c.Script.RemotePath)
	}
	return c.Name + ".py"
}

func (c *Client) dockerSource() string {
	if c.Container.DockerSource != "" {
		return c.Container.DockerSource
	}
	return c.Config.Containers.DockerSources[clientImageKey]
}
