package broker

import (
	"context"
	"time"

	"github.com/orbitsched/orbit/pkg/tracker"
	"github.com/orbitsched/orbit/pkg/types"
)

// killTimeout bounds how long Killer waits for a task's container to
// exit gracefully before escalating to SIGKILL.
const killTimeout = 10 * time.Second

// Killer adapts Driver to the two narrow kill surfaces Scheduler Actions
// and the Health Check Manager each depend on: actions.InstanceKiller
// (kill every task of an instance) and health.KillService (kill one
// task directly).
type Killer struct {
	driver  *Driver
	tracker *tracker.Tracker
}

// NewKiller wires driver to trk for instance/task lookups.
func NewKiller(driver *Driver, trk *tracker.Tracker) *Killer {
	return &Killer{driver: driver, tracker: trk}
}

// KillInstance satisfies actions.InstanceKiller: every task belonging to
// instanceId is killed with reason.
func (k *Killer) KillInstance(instanceId types.InstanceId, reason string) error {
	instance, ok := k.tracker.Instance(instanceId)
	if !ok {
		return nil
	}

	ctx := context.Background()
	var firstErr error
	for taskID := range instance.Tasks {
		if err := k.driver.Kill(ctx, taskID, reason, killTimeout); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// KillTask satisfies health.KillService: only taskId's container is
// killed, the rest of its instance is left alone.
func (k *Killer) KillTask(taskID types.TaskId, reason string) error {
	return k.driver.Kill(context.Background(), taskID, reason, killTimeout)
}
