// Package metrics exposes Prometheus collectors for frame traffic and
// session lifecycle.
package metrics
