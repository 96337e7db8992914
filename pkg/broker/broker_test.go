package broker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitsched/orbit/pkg/repository"
	"github.com/orbitsched/orbit/pkg/storage"
	"github.com/orbitsched/orbit/pkg/tracker"
	"github.com/orbitsched/orbit/pkg/types"
)

// fakeRuntime is an in-memory ContainerRuntime fake so these tests never
// need a reachable containerd socket.
type fakeRuntime struct {
	mu       sync.Mutex
	statuses map[string]types.InstanceStatus
	failNext map[string]bool
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{statuses: make(map[string]types.InstanceStatus), failNext: make(map[string]bool)}
}

func (f *fakeRuntime) PullImage(ctx context.Context, image string) error { return nil }

func (f *fakeRuntime) CreateContainer(ctx context.Context, id, image string, env []string, resources types.Resources, volumes []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = types.StatusCreated
	return nil
}

func (f *fakeRuntime) StartContainer(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext[id] {
		return assertErr("start failed")
	}
	f.statuses[id] = types.StatusRunning
	return nil
}

func (f *fakeRuntime) StopContainer(ctx context.Context, id string, timeout time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = types.StatusKilled
	return nil
}

func (f *fakeRuntime) DeleteContainer(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.statuses, id)
	return nil
}

func (f *fakeRuntime) ContainerStatus(ctx context.Context, id string) (types.InstanceStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	status, ok := f.statuses[id]
	if !ok {
		return types.StatusGone, nil
	}
	return status, nil
}

func (f *fakeRuntime) ListContainers(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.statuses))
	for id := range f.statuses {
		ids = append(ids, id)
	}
	return ids, nil
}

type assertErr string

func (e assertErr) Error() string { return string(e) }

func TestDriverLaunchReportsStagingThenRunning(t *testing.T) {
	rt := newFakeRuntime()
	trk := tracker.New()
	driver := NewDriver(rt, trk)

	instanceID := types.InstanceId("/app.inst-1")
	taskID := types.TaskId{InstanceId: string(instanceID), Idx: 0}
	trk.LaunchEphemeral(types.Instance{
		InstanceId: instanceID,
		RunSpecId:  "/app",
		State:      types.InstanceState{Status: types.StatusCreated},
		Tasks:      map[types.TaskId]types.Task{taskID: {ID: taskID, Status: types.StatusCreated}},
	})

	require.NoError(t, driver.Launch(context.Background(), taskID, "nginx:latest", types.Resources{CPU: 1}, nil))

	instance, ok := trk.Instance(instanceID)
	require.True(t, ok)
	assert.Equal(t, types.StatusRunning, instance.State.Status)
}

func TestDriverLaunchFailurePropagatesAndReportsFailed(t *testing.T) {
	rt := newFakeRuntime()
	trk := tracker.New()
	driver := NewDriver(rt, trk)

	instanceID := types.InstanceId("/app.inst-2")
	taskID := types.TaskId{InstanceId: string(instanceID), Idx: 0}
	trk.LaunchEphemeral(types.Instance{
		InstanceId: instanceID,
		RunSpecId:  "/app",
		State:      types.InstanceState{Status: types.StatusCreated},
		Tasks:      map[types.TaskId]types.Task{taskID: {ID: taskID, Status: types.StatusCreated}},
	})
	rt.failNext[containerID(taskID)] = true

	err := driver.Launch(context.Background(), taskID, "nginx:latest", types.Resources{}, nil)
	require.Error(t, err)

	_, ok := trk.Instance(instanceID)
	assert.False(t, ok, "a Failed report is terminal, so the tracker expunges the instance")
	assert.Empty(t, trk.SpecInstancesSync("/app"))
}

func TestKillerKillInstanceKillsEveryTask(t *testing.T) {
	rt := newFakeRuntime()
	trk := tracker.New()
	driver := NewDriver(rt, trk)
	killer := NewKiller(driver, trk)

	instanceID := types.InstanceId("/app.inst-3")
	task0 := types.TaskId{InstanceId: string(instanceID), Idx: 0}
	task1 := types.TaskId{InstanceId: string(instanceID), Idx: 1}
	trk.LaunchEphemeral(types.Instance{
		InstanceId: instanceID,
		RunSpecId:  "/app",
		State:      types.InstanceState{Status: types.StatusRunning},
		Tasks: map[types.TaskId]types.Task{
			task0: {ID: task0, Status: types.StatusRunning},
			task1: {ID: task1, Status: types.StatusRunning},
		},
	})
	rt.statuses[containerID(task0)] = types.StatusRunning
	rt.statuses[containerID(task1)] = types.StatusRunning

	require.NoError(t, killer.KillInstance(instanceID, "UserRequested"))

	_, _ = rt.ContainerStatus(context.Background(), containerID(task0))
	status0, _ := rt.ContainerStatus(context.Background(), containerID(task0))
	status1, _ := rt.ContainerStatus(context.Background(), containerID(task1))
	assert.Equal(t, types.StatusGone, status0)
	assert.Equal(t, types.StatusGone, status1)
}

func TestQueueAddGetPurge(t *testing.T) {
	q := NewQueue()
	q.Add("/app", 3)

	info, ok := q.Get("/app")
	require.True(t, ok)
	assert.Equal(t, 3, info.InstancesLeftToLaunch)
	assert.Equal(t, 3, info.FinalInstanceCount)
	assert.True(t, info.InProgress)

	q.Purge("/app")
	_, ok = q.Get("/app")
	assert.False(t, ok)
}

func TestQueueBackoffDoublesOnFailure(t *testing.T) {
	q := NewQueue()
	q.Add("/app", 1)

	now := time.Now()
	q.markFailed("/app", now)
	info, ok := q.Get("/app")
	require.True(t, ok)
	firstBackoff := info.BackoffUntil.Sub(now)
	assert.True(t, firstBackoff >= initialBackoff)

	q.markFailed("/app", now)
	info2, _ := q.Get("/app")
	secondBackoff := info2.BackoffUntil.Sub(now)
	assert.True(t, secondBackoff > firstBackoff)
}

func TestMatcherLaunchesQueuedDemand(t *testing.T) {
	rt := newFakeRuntime()
	trk := tracker.New()
	driver := NewDriver(rt, trk)
	repo := repository.New(storage.NewMemStore())
	require.NoError(t, repo.Store(types.RunSpec{
		ID:          "/app",
		Cmd:         "nginx:latest",
		Instances:   1,
		IPAddress:   true,
		VersionInfo: types.OnlyVersion(types.Version(time.Now())),
	}))

	queue := NewQueue()
	queue.Add("/app", 1)

	matcher := NewMatcher(queue, repo, trk, driver)
	matcher.drainOnce()

	_, ok := queue.Get("/app")
	assert.False(t, ok, "queue should be drained after a successful launch")
	assert.Len(t, trk.SpecInstancesSync("/app"), 1)
}
