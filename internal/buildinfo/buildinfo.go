// Package buildinfo holds build-time stamped metadata, in the shape
// `_examples/rbright-sotto/apps/sotto/internal/version` uses for its
// own CLI's `--version` output: package vars meant to be overridden via
// `-ldflags "-X ...=..."` at link time, plus a renderer.
package buildinfo

import "runtime"

// Version, Commit, and BuildTime are set via -ldflags at release build
// time; the defaults below are what a `go build` run straight from
// source produces, per spec.md §6.2's "prints build metadata" on
// `-v`/`--version`.
var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)

// String renders the build metadata the way iec61850simd prints it on
// --version.
func String() string {
	return "iec61850simd " + Version + " (commit=" + Commit + ", built=" + BuildTime + ", go=" + runtime.Version() + ")"
}
