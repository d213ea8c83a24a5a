// Package metrics provides build and watch metrics for pagebrew.
//
// Components receive a Recorder and default to NoopRecorder, so no nil checks
// are needed at call sites. The dev server exposes a PrometheusRecorder's
// registry on /metrics when metrics are enabled.
package metrics
