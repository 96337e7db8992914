// Package cluster provides the leader-election collaborator the
// Scheduler Actor observes: a raft.Raft-backed elected/standby signal and
// an FSM that replicates writes to the persistent store across the raft
// group.
package cluster
