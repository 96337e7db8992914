package types

import "time"

// QueuedInstanceInfo is the launch queue's snapshot of pending work for a
// single run spec. It lives only while the queue has work outstanding for
// that run spec.
type QueuedInstanceInfo struct {
	RunSpec              RunSpec
	InstancesLeftToLaunch int
	InProgress            bool
	FinalInstanceCount    int
	UnreachableInstances  int
	BackoffUntil          time.Time
}

// Valid reports the invariant finalInstanceCount ≥ unreachableInstances.
func (q QueuedInstanceInfo) Valid() bool {
	return q.FinalInstanceCount >= q.UnreachableInstances
}
