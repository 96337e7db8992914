// Package health implements the Health Check Manager: per
// (appId, version) registered health checks (HTTP, TCP, or exec), status
// tracking with consecutive-failure/success thresholds, and reconciliation
// against the live instance set so registrations track deployments
// without operator intervention.
package health
