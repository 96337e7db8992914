package actions

import (
	"github.com/orbitsched/orbit/pkg/events"
	"github.com/orbitsched/orbit/pkg/types"
)

const (
	ReasonScalingApp  = "ScalingApp"
	ReasonOrphaned    = "Orphaned"
	ReasonDeletingApp = "DeletingApp"
)

// InstanceKiller is the narrow collaborator Scheduler Actions uses to kill
// instances; the broker-facing kill service lives outside this package.
type InstanceKiller interface {
	KillInstance(instanceId types.InstanceId, reason string) error
}

// LaunchQueue is the external offer-matcher surface: pending launch
// demand for a runSpec, keyed by app id.
type LaunchQueue interface {
	Add(appId types.PathId, count int)
	Purge(appId types.PathId)
	ResetDelay(appId types.PathId)
	Get(appId types.PathId) (types.QueuedInstanceInfo, bool)
}

// Driver is the narrow broker-driver surface Scheduler Actions consumes
// for reconciliation.
type Driver interface {
	ReconcileTasks(knownStatuses []string) error
}

// HealthRemover is the subset of the Health Check Manager StopApp needs.
type HealthRemover interface {
	RemoveAllFor(appId types.PathId)
}

// Actions bundles the collaborators Scheduler Actions needs; its methods
// are pure given the snapshots passed to them plus these side-effecting
// collaborators.
type Actions struct {
	Killer InstanceKiller
	Queue  LaunchQueue
	Health HealthRemover
	Broker *events.Broker
}

func (a *Actions) publish(eventType events.EventType, appID types.PathId) {
	if a.Broker == nil {
		return
	}
	a.Broker.Publish(&events.Event{Type: eventType, RunSpecID: string(appID)})
}

// launchedCount counts instances in a status isCountedAsLaunched
// considers "already launched" for the scale algorithm.
func launchedCount(instances []types.Instance) int {
	n := 0
	for _, inst := range instances {
		if isCountedAsLaunched(inst.State.Status) {
			n++
		}
	}
	return n
}

// isCountedAsLaunched reports whether status counts toward "already
// launched" for the scale algorithm: Created, Running, Staging, Starting,
// Killing.
func isCountedAsLaunched(status types.InstanceStatus) bool {
	switch status {
	case types.StatusCreated, types.StatusRunning, types.StatusStaging, types.StatusStarting, types.StatusKilling:
		return true
	default:
		return false
	}
}

func max0(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
