package tracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitsched/orbit/pkg/types"
)

func mkInstance(id types.InstanceId, runSpec types.PathId, statuses ...types.InstanceStatus) types.Instance {
	tasks := make(map[types.TaskId]types.Task, len(statuses))
	for i, s := range statuses {
		tid := types.TaskId{InstanceId: string(id), Idx: i}
		tasks[tid] = types.Task{ID: tid, Status: s, Launched: s.Launched()}
	}
	inst := types.Instance{InstanceId: id, RunSpecId: runSpec, Tasks: tasks}
	inst.State = inst.RecomputeAggregate(types.Version(time.Unix(0, 0)))
	return inst
}

func TestLaunchEphemeralRejectsDuplicate(t *testing.T) {
	tr := New()
	inst := mkInstance("app.1", "/app", types.StatusStaging)

	eff := tr.LaunchEphemeral(inst)
	require.Equal(t, EffectUpdate, eff.Kind)
	assert.Nil(t, eff.Old)

	eff = tr.LaunchEphemeral(inst)
	assert.Equal(t, EffectFailure, eff.Kind)
}

func TestMesosUpdateTerminalExpungesTask(t *testing.T) {
	tr := New()
	inst := mkInstance("app.1", "/app", types.StatusRunning)
	tr.LaunchEphemeral(inst)

	var tid types.TaskId
	for id := range inst.Tasks {
		tid = id
	}

	eff := tr.MesosUpdate("app.1", tid, types.StatusFinished, "TASK_FINISHED", nil, types.Version(time.Unix(1, 0)))
	assert.Equal(t, EffectExpunge, eff.Kind)

	_, exists := tr.Instance("app.1")
	assert.False(t, exists)
}

func TestMesosUpdateOnUnknownInstanceFails(t *testing.T) {
	tr := New()
	eff := tr.MesosUpdate("missing", types.TaskId{InstanceId: "missing"}, types.StatusRunning, "TASK_RUNNING", nil, types.Version(time.Unix(0, 0)))
	assert.Equal(t, EffectFailure, eff.Kind)
	require.Error(t, eff.Err)
}

func TestReservationTimeoutOnlyLegalWhenReserved(t *testing.T) {
	tr := New()
	inst := mkInstance("app.1", "/app", types.StatusRunning)
	tr.LaunchEphemeral(inst)

	eff := tr.ReservationTimeout("app.1")
	assert.Equal(t, EffectFailure, eff.Kind)

	reserved := mkInstance("app.2", "/app", types.StatusReserved)
	tr.LaunchEphemeral(reserved)
	eff = tr.ReservationTimeout("app.2")
	assert.Equal(t, EffectExpunge, eff.Kind)
}

func TestForceExpungeAlwaysExpunges(t *testing.T) {
	tr := New()
	inst := mkInstance("app.1", "/app", types.StatusStaging)
	tr.LaunchEphemeral(inst)

	eff := tr.ForceExpunge("app.1")
	assert.Equal(t, EffectExpunge, eff.Kind)
}

func TestReserveAndRevertAreAlwaysFailures(t *testing.T) {
	tr := New()
	assert.Equal(t, EffectFailure, tr.Reserve("anything").Kind)
	assert.Equal(t, EffectFailure, tr.Revert("anything").Kind)
}

func TestSpecInstancesSyncFiltersByRunSpec(t *testing.T) {
	tr := New()
	tr.LaunchEphemeral(mkInstance("a.1", "/a", types.StatusRunning))
	tr.LaunchEphemeral(mkInstance("a.2", "/a", types.StatusStaging))
	tr.LaunchEphemeral(mkInstance("b.1", "/b", types.StatusRunning))

	assert.Equal(t, 2, tr.CountSpecInstancesSync("/a"))
	assert.Equal(t, 1, tr.CountSpecInstancesSync("/b"))
	assert.ElementsMatch(t, []types.PathId{"/a", "/b"}, tr.SpecIds())
}

func TestInstanceAggregatePriorityOrderIsStable(t *testing.T) {
	// Mixed-status priority puts Starting ahead of Staging.
	inst := mkInstance("a.1", "/a", types.StatusStaging, types.StatusStarting, types.StatusRunning)
	assert.Equal(t, types.StatusStarting, inst.State.Status)

	recomputed := inst.RecomputeAggregate(types.Version(time.Unix(5, 0)))
	assert.Equal(t, inst.State, recomputed, "recomputing from the same tasks must be stable")
}
