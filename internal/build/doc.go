// Package build provides the canonical page build entry point.
//
// Every execution path (the build and watch commands, tests) goes through
// BuildService. A run resolves the page under the apps root, activates the
// requested version, builds it and then records the outcome: metrics, a
// history entry and, when configured, a Prometheus textfile.
//
// Sentinel errors of the build lifecycle live in the errors subpackage; the
// queue subpackage serializes builds requested by long running commands.
package build
