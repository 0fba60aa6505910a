// Package metrics provides observability hooks for planning runs.
//
// Components receive a Recorder and default to NoopRecorder, so metrics stay
// optional and callers never nil-check:
//
//	recorder := metrics.NewPrometheusRecorder(registry)
//	engine := incremental.NewEngine(cfg, store).WithRecorder(recorder)
//
// HTTPHandler exposes a registry for scraping; the watch daemon mounts it
// when metrics are enabled.
package metrics
