package job

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	"hpcbench/internal/config"
	"hpcbench/internal/recipe"
)

// ErrMissingAccount is returned by script rendering when no scheduler
// account is configured. Submissions without an account are rejected by
// the cluster anyway, so this fails before anything reaches it.
var ErrMissingAccount = errors.New("slurm account is not configured")

// Spec is a deployable unit able to render its own batch script.
type Spec interface {
	// JobName is the logical name; the scheduler job name is derived from
	// it by appending the tracking id.
	JobName() string
	// GenerateScript renders the complete batch script. targetHost is the
	// resolved compute node of the target service and is empty for
	// services and for clients whose target could not be resolved.
	GenerateScript(internalID, targetHost string) (string, error)
}

// Base carries the fields every deployable unit shares.
type Base struct {
	Name      string
	Image     string // .sif path, absolute or relative to the configured base path
	Container recipe.ContainerSource
	Resources recipe.StringMap
	Env       map[string]string
	Command   string
	Args      []string

	Config *config.Config
}

// JobName implements Spec.
func (b *Base) JobName() string { return b.Name }

// sbatchFlagOrder fixes the emission order of known resource keys. Keys
// outside this list are still emitted, sorted, after the known ones.
var sbatchFlagOrder = []string{
	"time", "qos", "partition", "account",
	"nodes", "ntasks", "ntasks-per-node",
	"gres", "mem", "cpus-per-task",
}

// sbatchDirectives merges the global scheduler defaults with the unit's
// resource overrides, job key winning key-by-key. Keys use dashes; recipe
// underscores are normalized.
func (b *Base) sbatchDirectives() (map[string]string, error) {
	sl := b.Config.Slurm
	if sl.Account == "" {
		return nil, ErrMissingAccount
	}

	dirs := map[string]string{
		"time":            sl.Time,
		"qos":             sl.QOS,
		"partition":       sl.Partition,
		"account":         sl.Account,
		"nodes":           positiveInt(sl.Nodes),
		"ntasks":          positiveInt(sl.Ntasks),
		"ntasks-per-node": positiveInt(sl.NtasksPerNode),
	}
	for k, v := range b.Resources {
		dirs[strings.ReplaceAll(k, "_", "-")] = v
	}
	delete(dirs, "job-name") // owned by the renderer
	return dirs, nil
}

// ImagePath resolves the container image location on the cluster.
func (b *Base) ImagePath() string {
	if b.Container.ImagePath != "" {
		return b.Container.ImagePath
	}
	img := b.Image
	base := b.Config.Containers.BasePath
	if img == "" || strings.HasPrefix(img, "/") || base == "" {
		return img
	}
	return path.Join(base, img)
}

// buildGuard emits the idempotent on-cluster image build. With force
// rebuild enabled the existence check is skipped.
func (b *Base) buildGuard(dockerSource string) []string {
	c := b.Config.Containers
	if !c.AutoBuild || dockerSource == "" {
		return nil
	}
	img := b.ImagePath()

	lines := []string{"# Build the container image when it is not already present"}
	if dir := path.Dir(img); dir != "." && dir != "/" {
		lines = append(lines, "mkdir -p "+dir)
	}
	build := fmt.Sprintf("apptainer build %s %s || { echo \"Container build failed\"; exit 1; }", img, dockerSource)
	if c.ForceRebuild {
		return append(lines,
			fmt.Sprintf("echo \"Rebuilding container %s from %s\"", img, dockerSource),
			strings.Replace(build, "apptainer build", "apptainer build --force", 1))
	}
	return append(lines,
		fmt.Sprintf("if [ ! -f %s ]; then", img),
		fmt.Sprintf("    echo \"Building container %s from %s\"", img, dockerSource),
		"    "+build,
		"else",
		fmt.Sprintf("    echo \"Container %s already exists\"", img),
		"fi")
}

// render assembles the full batch script around the given body.
func (b *Base) render(internalID, targetHost, dockerSource string, body []string) (string, error) {
	dirs, err := b.sbatchDirectives()
	if err != nil {
		return "", err
	}

	sb := NewScriptBuilder()
	sb.Directive("job-name", fmt.Sprintf("%s_%s", b.Name, internalID))
	emitted := map[string]bool{}
	for _, flag := range sbatchFlagOrder {
		if v := dirs[flag]; v != "" {
			sb.Directive(flag, v)
		}
		emitted[flag] = true
	}
	var extras []string
	for flag := range dirs {
		if !emitted[flag] && dirs[flag] != "" {
			extras = append(extras, flag)
		}
	}
	sort.Strings(extras)
	for _, flag := range extras {
		sb.Directive(flag, dirs[flag])
	}

	sb.Module(b.Config.Containers.Module)
	for _, k := range sortedKeys(b.Env) {
		sb.Export(k, b.Env[k])
	}
	sb.Guard(b.buildGuard(dockerSource)...)
	if targetHost != "" {
		sb.TargetExport(targetHost)
	}
	sb.Body(body...)
	return sb.String(), nil
}

func positiveInt(n int) string {
	if n <= 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
