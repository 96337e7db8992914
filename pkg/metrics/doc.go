// Package metrics exposes the scheduling core's Prometheus instrumentation:
// instance counts by status, lock contention, reconciliation and
// deployment durations, and health-check dispatch counts, all registered
// against the default Prometheus registry and served via Handler.
package metrics
