// Package metrics exposes controller measurements to Prometheus.
package metrics
