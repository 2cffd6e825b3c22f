// Package constants centralizes defaults shared across the CLI, the API and the
// audit pipeline.
//
// Timeouts, redirect caps, file permissions and score thresholds live here so
// cmd/, internal/checker and internal/report agree on them without import cycles.
package constants
