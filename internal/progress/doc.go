// Package progress defines the events the coordinator emits while a sync run
// advances and fans them out to pluggable sinks such as Prometheus metrics.
package progress
