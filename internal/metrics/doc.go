// Package metrics provides build metrics for pagebuilder.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so metrics never need nil checks at call sites:
//
//	svc := build.NewBuildService().WithRecorder(metrics.NewPrometheusRecorder(nil))
//
// PrometheusRecorder keeps its own registry. Since pagebuilder is a short
// lived CLI, the registry is exported with WriteTextfile for the node
// exporter textfile collector instead of being served over HTTP.
package metrics
