// Package job implements the self-contained job model: declarative
// descriptors of deployable units (Service and Client) that render
// themselves into complete SLURM batch scripts, and the registry that maps
// logical names to their builders.
//
// Script rendering follows a fixed skeleton: scheduler directives, module
// loading, environment exports, an idempotent container build guard, the
// optional target-host export for clients, and finally the job-specific
// body supplied through hooks on the concrete type. The skeleton is
// assembled through a section-ordered builder so optional directives
// cannot land in the wrong part of the script.
package job
