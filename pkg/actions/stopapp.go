package actions

import (
	"github.com/orbitsched/orbit/pkg/events"
	"github.com/orbitsched/orbit/pkg/types"
)

// StopApp removes all health checks for appId, kills every launched
// current instance with reason DeletingApp, purges and resets the launch
// queue's rate-limit delay for appId, and publishes AppTerminated.
// Instance rows are removed from the tracker only upon the broker's
// confirmed terminal status, not here.
func (a *Actions) StopApp(appId types.PathId, current []types.Instance) error {
	if a.Health != nil {
		a.Health.RemoveAllFor(appId)
	}

	for _, inst := range current {
		if !inst.IsLaunched() {
			continue
		}
		if err := a.Killer.KillInstance(inst.InstanceId, ReasonDeletingApp); err != nil {
			return err
		}
	}

	a.Queue.Purge(appId)
	a.Queue.ResetDelay(appId)
	a.publish(events.AppTerminated, appId)
	return nil
}
