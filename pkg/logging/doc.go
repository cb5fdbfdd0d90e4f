// Package logging provides subsystem-tagged logging helpers for hpcbench.
//
// All components log through Debug/Info/Warn/Error with a short subsystem
// name ("Remote", "Lifecycle", "Orchestrator", ...) so that output from a
// single orchestration run can be filtered per component. The backend is a
// log/slog text handler configured once at startup via Init.
package logging
