package job

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScriptBuilderFixedSectionOrder(t *testing.T) {
	b := NewScriptBuilder()

	// Deliberately out of render order.
	b.Body("echo run")
	b.TargetExport("mel2042")
	b.Export("FOO", "bar")
	b.Module("Apptainer")
	b.Directive("job-name", "svc_ab12cd34")
	b.Directive("time", "00:15:00")
	b.Guard("# Build the container image when it is not already present")

	script := b.String()
	lines := strings.Split(strings.TrimRight(script, "\n"), "\n")

	assert.Equal(t, "#!/bin/bash -l", lines[0])
	assert.Equal(t, "#SBATCH --job-name=svc_ab12cd34", lines[1])
	assert.Equal(t, "#SBATCH --time=00:15:00", lines[2])

	order := []string{
		"module add Apptainer",
		"export FOO=bar",
		"# Build the container image",
		"export TARGET_SERVICE_HOST=mel2042",
		"echo run",
	}
	last := -1
	for _, want := range order {
		idx := strings.Index(script, want)
		assert.Greater(t, idx, last, "%q must come after the previous section", want)
		last = idx
	}
}

func TestScriptBuilderSkipsEmptySections(t *testing.T) {
	b := NewScriptBuilder()
	b.Directive("job-name", "x_1")
	b.Body("echo hi")

	script := b.String()
	assert.NotContains(t, script, "module add")
	assert.NotContains(t, script, "TARGET_SERVICE_HOST")
	assert.Equal(t, "#!/bin/bash -l\n#SBATCH --job-name=x_1\n\necho hi\n", script)
}
