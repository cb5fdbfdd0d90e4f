package job

import "strings"

// Script sections in render order. Content is appended per section and
// emitted in this fixed order no matter when it was added, so an optional
// directive registered late still lands in the directive block.
const (
	secDirectives = iota
	secModules
	secEnv
	secBuildGuard
	secTargetExport
	secBody
	sectionCount
)

// ScriptBuilder assembles a batch script out of ordered sections.
type ScriptBuilder struct {
	sections [sectionCount][]string
}

// NewScriptBuilder returns an empty builder.
func NewScriptBuilder() *ScriptBuilder {
	return &ScriptBuilder{}
}

// Directive adds one #SBATCH long-option line.
func (b *ScriptBuilder) Directive(flag, value string) {
	b.sections[secDirectives] = append(b.sections[secDirectives],
		"#SBATCH --"+flag+"="+value)
}

// Module adds an environment-module load line.
func (b *ScriptBuilder) Module(name string) {
	if name == "" {
		return
	}
	b.sections[secModules] = append(b.sections[secModules], "module add "+name)
}

// Export adds an environment variable export.
func (b *ScriptBuilder) Export(key, value string) {
	b.sections[secEnv] = append(b.sections[secEnv], "export "+key+"="+value)
}

// Guard adds the container build-guard lines.
func (b *ScriptBuilder) Guard(lines ...string) {
	b.sections[secBuildGuard] = append(b.sections[secBuildGuard], lines...)
}

// TargetExport records the resolved host of the target service for the
// benchmark process to pick up.
func (b *ScriptBuilder) TargetExport(host string) {
	b.sections[secTargetExport] = append(b.sections[secTargetExport],
		"export TARGET_SERVICE_HOST="+host)
}

// Body adds job-specific command lines.
func (b *ScriptBuilder) Body(lines ...string) {
	b.sections[secBody] = append(b.sections[secBody], lines...)
}

// String renders the complete script. The shebang requests a login shell
// so the module command is available.
func (b *ScriptBuilder) String() string {
	out := make([]string, 0, 64)
	out = append(out, "#!/bin/bash -l")
	out = append(out, b.sections[secDirectives]...)
	for sec := secModules; sec < sectionCount; sec++ {
		if len(b.sections[sec]) == 0 {
			continue
		}
		out = append(out, "")
		out = append(out, b.sections[sec]...)
	}
	return strings.Join(out, "\n") + "\n"
}
