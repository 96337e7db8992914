package actor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitsched/orbit/pkg/actions"
	"github.com/orbitsched/orbit/pkg/deploy"
	"github.com/orbitsched/orbit/pkg/events"
	"github.com/orbitsched/orbit/pkg/repository"
	"github.com/orbitsched/orbit/pkg/storage"
	"github.com/orbitsched/orbit/pkg/tracker"
	"github.com/orbitsched/orbit/pkg/types"
)

type fakeKiller struct{ killed []types.InstanceId }

func (f *fakeKiller) KillInstance(id types.InstanceId, reason string) error {
	f.killed = append(f.killed, id)
	return nil
}

type fakeQueue struct{}

func (fakeQueue) Add(types.PathId, int)                                 {}
func (fakeQueue) Purge(types.PathId)                                    {}
func (fakeQueue) ResetDelay(types.PathId)                               {}
func (fakeQueue) Get(types.PathId) (types.QueuedInstanceInfo, bool) { return types.QueuedInstanceInfo{}, false }

type fakeDriver struct{ calls int }

func (f *fakeDriver) ReconcileTasks(statuses []string) error {
	f.calls++
	return nil
}

// blockingExecutor blocks every step's Execute until released, letting
// tests hold a deployment open to exercise lock conflicts. A step returns
// early when its ctx is canceled, unless ignoreCancel is set.
type blockingExecutor struct {
	release      chan struct{}
	ignoreCancel bool
}

func (e *blockingExecutor) Execute(ctx context.Context, action types.DeploymentAction) error {
	if e.ignoreCancel {
		<-e.release
		return nil
	}
	select {
	case <-e.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type instantExecutor struct{}

func (instantExecutor) Execute(ctx context.Context, action types.DeploymentAction) error {
	return nil
}

type fakePlanStore struct {
	saved map[string]types.DeploymentPlan
}

func newFakePlanStore() *fakePlanStore { return &fakePlanStore{saved: make(map[string]types.DeploymentPlan)} }

func (s *fakePlanStore) SavePlan(plan types.DeploymentPlan) error {
	s.saved[plan.ID] = plan
	return nil
}
func (s *fakePlanStore) DeletePlan(planID string) error {
	delete(s.saved, planID)
	return nil
}
func (s *fakePlanStore) LoadAllPlans() ([]types.DeploymentPlan, error) {
	plans := make([]types.DeploymentPlan, 0, len(s.saved))
	for _, p := range s.saved {
		plans = append(plans, p)
	}
	return plans, nil
}

func planFor(id string, appID types.PathId) types.DeploymentPlan {
	group := types.Group{Apps: map[types.PathId]types.RunSpec{appID: {ID: appID, Instances: 1}}}
	return types.DeploymentPlan{
		ID:     id,
		Target: group,
		Steps: []types.DeploymentStep{
			{Actions: []types.DeploymentAction{{Kind: types.StepScaleApp, RunSpecID: appID}}},
		},
	}
}

func newTestActor(t *testing.T, executor deploy.StepExecutor, driver actions.Driver, plans PlanStore) (*Actor, *fakeKiller) {
	t.Helper()
	killer := &fakeKiller{}
	broker := events.NewBroker()
	broker.Start()
	t.Cleanup(broker.Stop)

	act := &actions.Actions{Killer: killer, Queue: fakeQueue{}, Broker: broker}
	repo := repository.New(storage.NewMemStore())
	trk := tracker.New()
	deployMgr := deploy.NewManager(executor, broker, 300*time.Millisecond)

	a := New(Config{
		Repo:                repo,
		Tracker:             trk,
		Actions:             act,
		DeployMgr:           deployMgr,
		Broker:              broker,
		Driver:              driver,
		Plans:               plans,
		CancellationTimeout: 300 * time.Millisecond,
	})
	a.Start()
	t.Cleanup(a.Stop)
	a.ElectedAsLeader()
	// give the actor goroutine time to process the leadership transition
	time.Sleep(20 * time.Millisecond)
	return a, killer
}

func TestDeployConflictWithoutForceFailsImmediately(t *testing.T) {
	executor := &blockingExecutor{release: make(chan struct{})}
	defer close(executor.release)
	a, _ := newTestActor(t, executor, &fakeDriver{}, newFakePlanStore())

	plan1 := planFor("plan-1", "/app")
	require.NoError(t, a.Deploy(plan1, false))

	plan2 := planFor("plan-2", "/app")
	err := a.Deploy(plan2, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "plan-1")
}

func TestForcedDeployCancelsConflictAndProceeds(t *testing.T) {
	executor := &blockingExecutor{release: make(chan struct{})}
	a, _ := newTestActor(t, executor, &fakeDriver{}, newFakePlanStore())

	plan1 := planFor("plan-1", "/app")
	require.NoError(t, a.Deploy(plan1, false))

	// plan-1's step returns as soon as the forced deploy cancels it; the
	// executor is released shortly after so plan-2's step completes too.
	go func() {
		time.Sleep(30 * time.Millisecond)
		close(executor.release)
	}()

	plan2 := planFor("plan-2", "/app")
	err := a.Deploy(plan2, true)
	assert.NoError(t, err)
}

func TestForcedDeployTimesOutIfConflictNeverSettles(t *testing.T) {
	executor := &blockingExecutor{release: make(chan struct{}), ignoreCancel: true}
	defer close(executor.release)
	a, _ := newTestActor(t, executor, &fakeDriver{}, newFakePlanStore())

	plan1 := planFor("plan-1", "/app")
	require.NoError(t, a.Deploy(plan1, false))

	plan2 := planFor("plan-2", "/app")
	err := a.Deploy(plan2, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestScaleAppNotFound(t *testing.T) {
	a, _ := newTestActor(t, instantExecutor{}, &fakeDriver{}, newFakePlanStore())
	err := a.ScaleApp("/missing")
	require.Error(t, err)
}

func TestScaleAppScalesUpViaQueue(t *testing.T) {
	a, killer := newTestActor(t, instantExecutor{}, &fakeDriver{}, newFakePlanStore())
	require.NoError(t, a.repo.Store(types.RunSpec{ID: "/app", Instances: 2, VersionInfo: types.OnlyVersion(types.Version(time.Now()))}))

	err := a.ScaleApp("/app")
	require.NoError(t, err)
	assert.Empty(t, killer.killed)
}

func TestReconcileTasksCoalescesConcurrentCallers(t *testing.T) {
	driver := &fakeDriver{}
	a, _ := newTestActor(t, instantExecutor{}, driver, newFakePlanStore())

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = a.ReconcileTasks()
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}
}

func TestKillTasksHonorsAppLock(t *testing.T) {
	executor := &blockingExecutor{release: make(chan struct{})}
	defer close(executor.release)
	a, killer := newTestActor(t, executor, &fakeDriver{}, newFakePlanStore())

	plan := planFor("plan-1", "/app")
	require.NoError(t, a.Deploy(plan, false))

	err := a.KillTasks("/app", []types.InstanceId{"/app.inst-1"})
	require.Error(t, err)
	assert.Empty(t, killer.killed)
}

func TestSuspendedCommandsStashUntilElected(t *testing.T) {
	killer := &fakeKiller{}
	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	act := &actions.Actions{Killer: killer, Queue: fakeQueue{}, Broker: broker}
	repo := repository.New(storage.NewMemStore())
	require.NoError(t, repo.Store(types.RunSpec{ID: "/app", Instances: 1, VersionInfo: types.OnlyVersion(types.Version(time.Now()))}))
	trk := tracker.New()
	deployMgr := deploy.NewManager(instantExecutor{}, broker, time.Second)

	a := New(Config{
		Repo:      repo,
		Tracker:   trk,
		Actions:   act,
		DeployMgr: deployMgr,
		Broker:    broker,
		Driver:    &fakeDriver{},
		Plans:     newFakePlanStore(),
	})
	a.Start()
	defer a.Stop()

	done := make(chan error, 1)
	go func() { done <- a.ScaleApp("/app") }()

	select {
	case <-done:
		t.Fatal("command completed before the actor became leader")
	case <-time.After(50 * time.Millisecond):
	}

	a.ElectedAsLeader()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("stashed command was never processed after election")
	}
}

func TestResumesPersistedPlansOnElection(t *testing.T) {
	plans := newFakePlanStore()
	plans.saved["plan-1"] = planFor("plan-1", "/app")

	executor := &blockingExecutor{release: make(chan struct{})}
	defer close(executor.release)

	killer := &fakeKiller{}
	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	act := &actions.Actions{Killer: killer, Queue: fakeQueue{}, Broker: broker}
	repo := repository.New(storage.NewMemStore())
	trk := tracker.New()
	deployMgr := deploy.NewManager(executor, broker, time.Second)

	a := New(Config{
		Repo: repo, Tracker: trk, Actions: act, DeployMgr: deployMgr,
		Broker: broker, Driver: &fakeDriver{}, Plans: plans,
	})
	a.Start()
	defer a.Stop()
	a.ElectedAsLeader()

	// A second Deploy for the same app must conflict immediately: proof
	// the resumed plan's lock was re-acquired on election.
	time.Sleep(20 * time.Millisecond)
	err := a.Deploy(planFor("plan-2", "/app"), false)
	assert.Error(t, err)
}
