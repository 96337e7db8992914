package tracker

import (
	"fmt"
	"sync"

	"github.com/orbitsched/orbit/pkg/log"
	"github.com/orbitsched/orbit/pkg/orberr"
	"github.com/orbitsched/orbit/pkg/types"
)

// Tracker exclusively owns the in-memory map of instances. All mutation
// goes through the InstanceUpdateOperation methods below; reads are
// available both as point-in-time sync snapshots (for the scale
// algorithm) and as wider async-style queries.
type Tracker struct {
	mu        sync.RWMutex
	instances map[types.InstanceId]types.Instance
}

// New creates an empty tracker.
func New() *Tracker {
	return &Tracker{instances: make(map[types.InstanceId]types.Instance)}
}

// LaunchEphemeral applies to a non-existent instanceId: Effect =
// Update(newInstance, None). Applied to an existing instance id it is a
// Failure.
func (t *Tracker) LaunchEphemeral(instance types.Instance) Effect {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.instances[instance.InstanceId]; exists {
		return t.fail(instance.InstanceId, "LaunchEphemeral: instance already exists")
	}
	t.instances[instance.InstanceId] = instance
	return Effect{Kind: EffectUpdate, InstanceID: instance.InstanceId, New: instance, Old: nil}
}

// MesosUpdate locates the task by taskId, delegates to the task-level
// update, and recomputes the instance's aggregate state. If the
// task transitions to a terminal state, the task-level effect is an
// Expunge which the instance translates into InstanceUpdateEffect.Expunge.
func (t *Tracker) MesosUpdate(instanceId types.InstanceId, taskId types.TaskId, status types.InstanceStatus, mesosStatus string, healthy *bool, now types.Version) Effect {
	t.mu.Lock()
	defer t.mu.Unlock()

	instance, exists := t.instances[instanceId]
	if !exists {
		return t.fail(instanceId, "MesosUpdate: unknown instance")
	}
	task, exists := instance.Tasks[taskId]
	if !exists {
		return t.fail(instanceId, fmt.Sprintf("MesosUpdate: unknown task %v", taskId))
	}

	prior := instance
	task.Status = status
	task.MesosStatus = mesosStatus
	task.Launched = status.Launched() || task.Launched
	if healthy != nil {
		task.Healthy = healthy
	}

	if status.Terminal() {
		delete(instance.Tasks, taskId)
		if len(instance.Tasks) == 0 {
			delete(t.instances, instanceId)
			return Effect{Kind: EffectExpunge, InstanceID: instanceId, New: instance, Old: &prior}
		}
	} else {
		instance.Tasks[taskId] = task
	}

	instance.State = instance.RecomputeAggregate(now)
	if instance.State == prior.State {
		t.instances[instanceId] = instance
		return Effect{Kind: EffectNoop, InstanceID: instanceId, New: instance, Old: &prior}
	}

	t.instances[instanceId] = instance
	return Effect{Kind: EffectUpdate, InstanceID: instanceId, New: instance, Old: &prior}
}

// LaunchOnReservation is legal only when the instance is Reserved;
// otherwise Failure.
func (t *Tracker) LaunchOnReservation(instanceId types.InstanceId, now types.Version) Effect {
	t.mu.Lock()
	defer t.mu.Unlock()

	instance, exists := t.instances[instanceId]
	if !exists || instance.State.Status != types.StatusReserved {
		return t.fail(instanceId, "LaunchOnReservation: instance is not Reserved")
	}
	prior := instance
	instance.State = types.InstanceState{Status: types.StatusStaging, Since: now, Version: instance.State.Version}
	t.instances[instanceId] = instance
	return Effect{Kind: EffectUpdate, InstanceID: instanceId, New: instance, Old: &prior}
}

// ReservationTimeout is legal only when the instance is Reserved; result
// is always Expunge.
func (t *Tracker) ReservationTimeout(instanceId types.InstanceId) Effect {
	t.mu.Lock()
	defer t.mu.Unlock()

	instance, exists := t.instances[instanceId]
	if !exists || instance.State.Status != types.StatusReserved {
		return t.fail(instanceId, "ReservationTimeout: instance is not Reserved")
	}
	delete(t.instances, instanceId)
	return Effect{Kind: EffectExpunge, InstanceID: instanceId, New: instance, Old: &instance}
}

// ForceExpunge always Expunges the instance, regardless of its current
// state.
func (t *Tracker) ForceExpunge(instanceId types.InstanceId) Effect {
	t.mu.Lock()
	defer t.mu.Unlock()

	instance, exists := t.instances[instanceId]
	if !exists {
		return t.fail(instanceId, "ForceExpunge: unknown instance")
	}
	delete(t.instances, instanceId)
	return Effect{Kind: EffectExpunge, InstanceID: instanceId, New: instance, Old: &instance}
}

// Reserve on an existing instance is always a Failure: reservations are
// only created via LaunchEphemeral.
func (t *Tracker) Reserve(instanceId types.InstanceId) Effect {
	return t.fail(instanceId, "Reserve: not a legal operation on an existing instance")
}

// Revert is always a Failure.
func (t *Tracker) Revert(instanceId types.InstanceId) Effect {
	return t.fail(instanceId, "Revert: not a legal operation")
}

func (t *Tracker) fail(instanceId types.InstanceId, reason string) Effect {
	err := &orberr.InstanceUpdateFailure{InstanceID: string(instanceId), Reason: reason}
	log.Logger.Warn().Str("instance_id", string(instanceId)).Str("reason", reason).Msg("instance update refused")
	return Effect{Kind: EffectFailure, InstanceID: instanceId, Err: err}
}

// SpecInstancesSync is a synchronous, point-in-time snapshot of every
// instance of runSpecId, for the scale algorithm ("synchronous
// snapshot reads... for the scale algorithm").
func (t *Tracker) SpecInstancesSync(runSpecId types.PathId) []types.Instance {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []types.Instance
	for _, inst := range t.instances {
		if inst.RunSpecId == runSpecId {
			out = append(out, inst)
		}
	}
	return out
}

// CountSpecInstancesSync is SpecInstancesSync without the allocation.
func (t *Tracker) CountSpecInstancesSync(runSpecId types.PathId) int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	count := 0
	for _, inst := range t.instances {
		if inst.RunSpecId == runSpecId {
			count++
		}
	}
	return count
}

// AllInstances returns every tracked instance, for wider (non-scale-path)
// queries such as reconciliation.
func (t *Tracker) AllInstances() []types.Instance {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]types.Instance, 0, len(t.instances))
	for _, inst := range t.instances {
		out = append(out, inst)
	}
	return out
}

// Instance returns a single tracked instance by id.
func (t *Tracker) Instance(id types.InstanceId) (types.Instance, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	inst, ok := t.instances[id]
	return inst, ok
}

// SpecIds returns the set of run spec ids that currently have at least
// one tracked instance, used by the orphan-detection step of
// reconcileTasks.
func (t *Tracker) SpecIds() []types.PathId {
	t.mu.RLock()
	defer t.mu.RUnlock()

	seen := make(map[types.PathId]bool)
	for _, inst := range t.instances {
		seen[inst.RunSpecId] = true
	}
	ids := make([]types.PathId, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	return ids
}

// CountByStatus satisfies metrics.InstanceSnapshotter.
func (t *Tracker) CountByStatus() map[types.InstanceStatus]int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	counts := make(map[types.InstanceStatus]int)
	for _, inst := range t.instances {
		counts[inst.State.Status]++
	}
	return counts
}
