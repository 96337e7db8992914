package actions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitsched/orbit/pkg/types"
)

type fakeKiller struct {
	kills []killCall
}

type killCall struct {
	InstanceId types.InstanceId
	Reason     string
}

func (k *fakeKiller) KillInstance(instanceId types.InstanceId, reason string) error {
	k.kills = append(k.kills, killCall{instanceId, reason})
	return nil
}

type fakeQueue struct {
	added      map[types.PathId]int
	purged     []types.PathId
	resetDelay []types.PathId
	queued     map[types.PathId]types.QueuedInstanceInfo
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{added: make(map[types.PathId]int), queued: make(map[types.PathId]types.QueuedInstanceInfo)}
}

func (q *fakeQueue) Add(appId types.PathId, count int) { q.added[appId] += count }
func (q *fakeQueue) Purge(appId types.PathId)          { q.purged = append(q.purged, appId) }
func (q *fakeQueue) ResetDelay(appId types.PathId)      { q.resetDelay = append(q.resetDelay, appId) }
func (q *fakeQueue) Get(appId types.PathId) (types.QueuedInstanceInfo, bool) {
	info, ok := q.queued[appId]
	return info, ok
}

type fakeHealth struct {
	removed []types.PathId
}

func (h *fakeHealth) RemoveAllFor(appId types.PathId) { h.removed = append(h.removed, appId) }

type fakeDriver struct {
	calls [][]string
}

func (d *fakeDriver) ReconcileTasks(knownStatuses []string) error {
	d.calls = append(d.calls, knownStatuses)
	return nil
}

func instAt(id, runSpec string, status types.InstanceStatus, since int64) types.Instance {
	return types.Instance{
		InstanceId: types.InstanceId(id),
		RunSpecId:  types.PathId(runSpec),
		State:      types.InstanceState{Status: status, Since: types.Version(time.Unix(since, 0))},
	}
}

func TestScaleUpReplacesUnreachable(t *testing.T) {
	queue := newFakeQueue()
	queue.queued["/app"] = types.QueuedInstanceInfo{FinalInstanceCount: 15, UnreachableInstances: 5}
	killer := &fakeKiller{}
	a := &Actions{Killer: killer, Queue: queue}

	var current []types.Instance
	for i := 0; i < 10; i++ {
		current = append(current, instAt("app.x", "/app", types.StatusRunning, int64(i)))
	}

	err := a.Scale(types.RunSpec{ID: "/app", Instances: 15}, current)
	require.NoError(t, err)
	assert.Equal(t, 5, queue.added["/app"])
	assert.Empty(t, killer.kills)
}

func TestScaleDownKillsYoungestStagedThenRunning(t *testing.T) {
	queue := newFakeQueue()
	killer := &fakeKiller{}
	a := &Actions{Killer: killer, Queue: queue}

	current := []types.Instance{
		instAt("running_1", "/app", types.StatusRunning, 1),
		instAt("running_2", "/app", types.StatusRunning, 2),
		instAt("running_3", "/app", types.StatusRunning, 3),
		instAt("staged_1", "/app", types.StatusStaging, 1),
		instAt("running_4", "/app", types.StatusRunning, 4),
	}

	err := a.Scale(types.RunSpec{ID: "/app", Instances: 3}, current)
	require.NoError(t, err)

	require.Len(t, queue.purged, 1)
	assert.Equal(t, types.PathId("/app"), queue.purged[0])

	require.Len(t, killer.kills, 2)
	assert.Equal(t, types.InstanceId("staged_1"), killer.kills[0].InstanceId)
	assert.Equal(t, types.InstanceId("running_4"), killer.kills[1].InstanceId)
	for _, k := range killer.kills {
		assert.Equal(t, ReasonScalingApp, k.Reason)
	}
}

func TestScaleEqualIsNoop(t *testing.T) {
	queue := newFakeQueue()
	killer := &fakeKiller{}
	a := &Actions{Killer: killer, Queue: queue}

	current := []types.Instance{instAt("a.1", "/app", types.StatusRunning, 1)}
	err := a.Scale(types.RunSpec{ID: "/app", Instances: 1}, current)
	require.NoError(t, err)
	assert.Empty(t, killer.kills)
	assert.Empty(t, queue.added)
	assert.Empty(t, queue.purged)
}

func TestStopAppWithZeroInstancesResetsRateLimiter(t *testing.T) {
	queue := newFakeQueue()
	killer := &fakeKiller{}
	health := &fakeHealth{}
	a := &Actions{Killer: killer, Queue: queue, Health: health}

	err := a.StopApp("/myapp", nil)
	require.NoError(t, err)

	assert.Empty(t, killer.kills)
	require.Len(t, queue.purged, 1)
	assert.Equal(t, types.PathId("/myapp"), queue.purged[0])
	require.Len(t, queue.resetDelay, 1)
	assert.Equal(t, types.PathId("/myapp"), queue.resetDelay[0])
	require.Len(t, health.removed, 1)
}

func TestReconcileTasksKillsOrphansAndIssuesTwoReconciles(t *testing.T) {
	killer := &fakeKiller{}
	a := &Actions{Killer: killer, Queue: newFakeQueue()}
	driver := &fakeDriver{}

	appInst := types.Instance{
		InstanceId: "app.1",
		RunSpecId:  "/app",
		Tasks: map[types.TaskId]types.Task{
			{InstanceId: "app.1", Idx: 0}: {MesosStatus: "TASK_RUNNING"},
		},
	}
	orphanInst := types.Instance{InstanceId: "orphan.1", RunSpecId: "/orphan"}

	err := a.ReconcileTasks(driver, []types.PathId{"/app"}, []types.Instance{appInst, orphanInst})
	require.NoError(t, err)

	require.Len(t, killer.kills, 1)
	assert.Equal(t, types.InstanceId("orphan.1"), killer.kills[0].InstanceId)
	assert.Equal(t, ReasonOrphaned, killer.kills[0].Reason)

	require.Len(t, driver.calls, 2)
	assert.Equal(t, []string{"TASK_RUNNING"}, driver.calls[0])
	assert.Empty(t, driver.calls[1])
}

func TestReconcileTasksSkipsFirstCallWhenNoKnownStatuses(t *testing.T) {
	killer := &fakeKiller{}
	a := &Actions{Killer: killer, Queue: newFakeQueue()}
	driver := &fakeDriver{}

	err := a.ReconcileTasks(driver, []types.PathId{"/app"}, nil)
	require.NoError(t, err)

	require.Len(t, driver.calls, 1)
	assert.Nil(t, driver.calls[0])
}
