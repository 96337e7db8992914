// Package actor implements the Scheduler Actor: the single serialized
// entry point for every scheduling command, the per-app lock table that
// keeps conflicting deploys and scale operations from racing each other,
// and the suspended/started/awaitingCancellation lifecycle driven by
// raft leadership.
package actor
