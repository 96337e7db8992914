package health

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitsched/orbit/pkg/events"
	"github.com/orbitsched/orbit/pkg/types"
)

type fakeKiller struct {
	killed []types.TaskId
}

func (k *fakeKiller) KillTask(taskID types.TaskId, reason string) error {
	k.killed = append(k.killed, taskID)
	return nil
}

type fakeChecker struct {
	healthy bool
}

func (c *fakeChecker) Check(ctx context.Context) Result {
	return Result{Healthy: c.healthy}
}

func (c *fakeChecker) Type() CheckType { return CheckTypeHTTP }

func TestManagerAddEmitsAddEvent(t *testing.T) {
	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()
	sub := broker.Subscribe()

	m := NewManager(nil, broker)
	v := types.Version(time.Unix(1, 0))
	m.Add("/app", v, []types.HealthCheckSpec{{Protocol: "http", Path: "/health"}})

	versions := m.List("/app")
	require.Len(t, versions, 1)
	assert.Equal(t, v, versions[0])

	select {
	case ev := <-sub:
		assert.Equal(t, events.AddHealthCheckEvent, ev.Type)
		assert.Equal(t, "/app", ev.RunSpecID)
	case <-time.After(time.Second):
		t.Fatal("no add_health_check_event published")
	}
}

func TestManagerRemoveAllForRetainsTaskStatusForCarryOver(t *testing.T) {
	m := NewManager(nil, nil)
	v := types.Version(time.Unix(1, 0))
	m.Add("/app", v, nil)

	task := types.TaskId{InstanceId: "app.1", Idx: 0}
	cfg := DefaultConfig()
	m.Update(task, Result{Healthy: true}, cfg, types.StatusRunning)

	m.RemoveAllFor("/app")
	assert.Empty(t, m.List("/app"))

	status, ok := m.Status(task)
	require.True(t, ok, "task status must carry over past registration removal")
	assert.True(t, status.Healthy)
}

func TestManagerUpdateKillsOnExceededFailures(t *testing.T) {
	killer := &fakeKiller{}
	m := NewManager(killer, nil)
	cfg := Config{MaxConsecutiveFail: 2, Timeout: time.Second}
	task := types.TaskId{InstanceId: "app.1", Idx: 0}

	m.Update(task, Result{Healthy: false}, cfg, types.StatusRunning)
	assert.Empty(t, killer.killed)

	m.Update(task, Result{Healthy: false}, cfg, types.StatusRunning)
	require.Len(t, killer.killed, 1)
	assert.Equal(t, task, killer.killed[0])
}

func TestManagerUpdateDoesNotKillUnreachableInstance(t *testing.T) {
	killer := &fakeKiller{}
	m := NewManager(killer, nil)
	cfg := Config{MaxConsecutiveFail: 1, Timeout: time.Second}
	task := types.TaskId{InstanceId: "app.1", Idx: 0}

	m.Update(task, Result{Healthy: false}, cfg, types.StatusUnreachable)
	assert.Empty(t, killer.killed, "health check kills must never fire against an Unreachable instance")
}

func TestDispatchableExcludesStagingUnreachableGoneDropped(t *testing.T) {
	excluded := []types.InstanceStatus{types.StatusStaging, types.StatusUnreachable, types.StatusGone, types.StatusDropped}
	for _, s := range excluded {
		assert.False(t, Dispatchable(s), "status %s must not be dispatchable", s)
	}
	assert.True(t, Dispatchable(types.StatusRunning))
}

func TestReconcileWithAddsAndRemovesByLiveVersions(t *testing.T) {
	m := NewManager(nil, nil)
	oldVersion := types.Version(time.Unix(1, 0))
	newVersion := types.Version(time.Unix(2, 0))
	m.Add("/app", oldVersion, nil)

	app := types.RunSpec{ID: "/app", HealthChecks: []types.HealthCheckSpec{{Protocol: "http"}}}
	specFor := func(id types.PathId, v types.Version) (types.RunSpec, bool) {
		if id == "/app" && v == newVersion {
			return app, true
		}
		return types.RunSpec{}, false
	}

	live := []types.Instance{
		{RunSpecId: "/app", State: types.InstanceState{Version: newVersion}},
	}
	m.ReconcileWith("/app", live, specFor)

	versions := m.List("/app")
	require.Len(t, versions, 1)
	assert.Equal(t, newVersion, versions[0])
}

func TestCheckTaskRunsCheckerAndFoldsResult(t *testing.T) {
	m := NewManager(nil, nil)
	task := types.TaskId{InstanceId: "app.1", Idx: 0}
	cfg := DefaultConfig()

	result := m.CheckTask(context.Background(), task, &fakeChecker{healthy: true}, cfg, types.StatusRunning)
	assert.True(t, result.Healthy)

	status, ok := m.Status(task)
	require.True(t, ok)
	assert.Equal(t, 1, status.ConsecutiveSuccesses)
}
