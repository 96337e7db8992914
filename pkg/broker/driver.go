package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/orbitsched/orbit/pkg/log"
	"github.com/orbitsched/orbit/pkg/tracker"
	"github.com/orbitsched/orbit/pkg/types"
)

// pollInterval is how often the driver polls containerd for task status
// changes, the way the teacher's health monitor polls container health.
const pollInterval = 5 * time.Second

// Driver is the reference actions.Driver implementation: every task it
// launches is a containerd container named after the task id, and a
// background poll loop keeps the tracker's aggregate state in sync with
// what containerd reports.
type Driver struct {
	runtime ContainerRuntime
	tracker *tracker.Tracker
	logger  zerolog.Logger

	mu       sync.Mutex
	watching map[string]types.TaskId // containerID -> taskId

	stopCh chan struct{}
}

// NewDriver wires rt to trk. rt may be a *containerdRuntime or a fake.
func NewDriver(rt ContainerRuntime, trk *tracker.Tracker) *Driver {
	return &Driver{
		runtime:  rt,
		tracker:  trk,
		logger:   log.WithComponent("broker"),
		watching: make(map[string]types.TaskId),
		stopCh:   make(chan struct{}),
	}
}

func containerID(taskID types.TaskId) string {
	return fmt.Sprintf("%s-%d", taskID.InstanceId, taskID.Idx)
}

// Start launches the background poll loop that reconciles watched
// containers against containerd's live state.
func (d *Driver) Start() {
	go d.pollLoop()
}

// Stop halts the poll loop.
func (d *Driver) Stop() {
	close(d.stopCh)
}

// Launch creates and starts a container for taskID and begins polling
// it. image is the RunSpec's Cmd field, this reference driver's stand-in
// for a container image reference since the scheduling core's data model
// (§3, out of scope: container image addressing) does not itself carry
// one. The tracker must already carry an instance owning taskID (via
// Tracker.LaunchEphemeral) before Launch is called.
func (d *Driver) Launch(ctx context.Context, taskID types.TaskId, image string, resources types.Resources, volumes []string) error {
	id := containerID(taskID)

	if err := d.runtime.PullImage(ctx, image); err != nil {
		return err
	}
	if err := d.runtime.CreateContainer(ctx, id, image, nil, resources, volumes); err != nil {
		return err
	}
	d.tracker.MesosUpdate(taskID.InstanceId, taskID, types.StatusStaging, id, nil, types.Version(time.Now()))

	if err := d.runtime.StartContainer(ctx, id); err != nil {
		d.tracker.MesosUpdate(taskID.InstanceId, taskID, types.StatusFailed, id, nil, types.Version(time.Now()))
		return err
	}
	d.tracker.MesosUpdate(taskID.InstanceId, taskID, types.StatusRunning, id, nil, types.Version(time.Now()))

	d.mu.Lock()
	d.watching[id] = taskID
	d.mu.Unlock()
	return nil
}

// Kill stops and removes taskID's container. reason is only written to
// the log; neither the driver nor its callers record it anywhere else.
func (d *Driver) Kill(ctx context.Context, taskID types.TaskId, reason string, timeout time.Duration) error {
	id := containerID(taskID)
	d.logger.Info().Str("task_id", id).Str("reason", reason).Msg("broker: killing task")

	d.mu.Lock()
	delete(d.watching, id)
	d.mu.Unlock()

	if err := d.runtime.StopContainer(ctx, id, timeout); err != nil {
		return err
	}
	return d.runtime.DeleteContainer(ctx, id)
}

// ReconcileTasks implements actions.Driver. knownStatuses carries the
// opaque mesosStatus strings (here, container ids) Scheduler Actions
// still believes are live; every one is checked against containerd's
// live state and any discrepancy is reported to the tracker. An empty
// knownStatuses is the "implicit" reconcile: any containerd container
// this driver is not watching is an orphan from a prior process
// lifetime and is torn down.
func (d *Driver) ReconcileTasks(knownStatuses []string) error {
	ctx := context.Background()

	if len(knownStatuses) == 0 {
		return d.reconcileOrphans(ctx)
	}
	for _, id := range knownStatuses {
		d.reconcileOne(ctx, id)
	}
	return nil
}

func (d *Driver) reconcileOne(ctx context.Context, id string) {
	d.mu.Lock()
	taskID, watched := d.watching[id]
	d.mu.Unlock()
	if !watched {
		return
	}

	status, err := d.runtime.ContainerStatus(ctx, id)
	if err != nil {
		d.logger.Warn().Err(err).Str("container_id", id).Msg("broker: reconcile status check failed")
		return
	}
	d.report(taskID, id, status)
}

func (d *Driver) reconcileOrphans(ctx context.Context) error {
	live, err := d.runtime.ListContainers(ctx)
	if err != nil {
		return err
	}

	d.mu.Lock()
	watched := make(map[string]bool, len(d.watching))
	for id := range d.watching {
		watched[id] = true
	}
	d.mu.Unlock()

	for _, id := range live {
		if watched[id] {
			continue
		}
		d.logger.Warn().Str("container_id", id).Msg("broker: tearing down orphaned container")
		if err := d.runtime.DeleteContainer(ctx, id); err != nil {
			d.logger.Error().Err(err).Str("container_id", id).Msg("broker: failed to tear down orphan")
		}
	}
	return nil
}

func (d *Driver) pollLoop() {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			d.pollOnce()
		case <-d.stopCh:
			return
		}
	}
}

func (d *Driver) pollOnce() {
	ctx := context.Background()
	d.mu.Lock()
	snapshot := make(map[string]types.TaskId, len(d.watching))
	for id, taskID := range d.watching {
		snapshot[id] = taskID
	}
	d.mu.Unlock()

	for id, taskID := range snapshot {
		status, err := d.runtime.ContainerStatus(ctx, id)
		if err != nil {
			d.logger.Warn().Err(err).Str("container_id", id).Msg("broker: poll status check failed")
			continue
		}
		d.report(taskID, id, status)
		if status.Terminal() {
			d.mu.Lock()
			delete(d.watching, id)
			d.mu.Unlock()
		}
	}
}

func (d *Driver) report(taskID types.TaskId, containerID string, status types.InstanceStatus) {
	effect := d.tracker.MesosUpdate(taskID.InstanceId, taskID, status, containerID, nil, types.Version(time.Now()))
	if effect.Kind == tracker.EffectFailure {
		d.logger.Warn().Str("container_id", containerID).Err(effect.Err).Msg("broker: tracker rejected status report")
	}
}
