// Package actions implements the Scheduler Actions: the scale-up/down
// target computation, broker-side task reconciliation and orphan
// detection, kill-ordering policy, and stopApp, invoked by the Scheduler
// Actor under its per-app lock.
package actions
