package deploy

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitsched/orbit/pkg/orberr"
	"github.com/orbitsched/orbit/pkg/types"
)

type blockingExecutor struct {
	mu      sync.Mutex
	started chan struct{}
	release chan struct{}
	once    sync.Once
	// ignoreCancel makes Execute wait for release even after ctx is
	// canceled, standing in for a worker that hangs.
	ignoreCancel bool
}

func newBlockingExecutor() *blockingExecutor {
	return &blockingExecutor{started: make(chan struct{}), release: make(chan struct{})}
}

func (e *blockingExecutor) Execute(ctx context.Context, action types.DeploymentAction) error {
	e.once.Do(func() { close(e.started) })
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

type instantExecutor struct {
	err error
}

func (e *instantExecutor) Execute(ctx context.Context, action types.DeploymentAction) error {
	return e.err
}

func onePlan(id string) types.DeploymentPlan {
	return types.DeploymentPlan{
		ID: id,
		Steps: []types.DeploymentStep{
			{Actions: []types.DeploymentAction{{Kind: types.StepScaleApp, RunSpecID: "/app"}}},
		},
	}
}

func TestPerformDeploymentSucceedsThroughAllSteps(t *testing.T) {
	m := NewManager(&instantExecutor{}, nil, time.Second)
	plan := onePlan("plan-1")

	m.PerformDeployment(context.Background(), plan)
	err := m.Wait("plan-1")
	require.NoError(t, err)
	assert.False(t, m.IsRunning("plan-1"))
}

func TestCancelDeploymentStopsWorkerWithinTimeout(t *testing.T) {
	executor := newBlockingExecutor()
	m := NewManager(executor, nil, time.Second)
	plan := onePlan("plan-1")

	m.PerformDeployment(context.Background(), plan)
	<-executor.started

	err := m.CancelDeployment("plan-1")
	var canceled *orberr.DeploymentCanceled
	require.ErrorAs(t, err, &canceled)
	close(executor.release)
}

func TestCancelDeploymentTimesOutIfWorkerHangs(t *testing.T) {
	executor := newBlockingExecutor()
	executor.ignoreCancel = true
	m := NewManager(executor, nil, 20*time.Millisecond)
	plan := onePlan("plan-1")

	m.PerformDeployment(context.Background(), plan)
	<-executor.started
	// deliberately never close(executor.release): worker ignores cancellation

	err := m.CancelDeployment("plan-1")
	var timeout *orberr.TimeoutException
	require.ErrorAs(t, err, &timeout)
	close(executor.release)
}

func TestCancelConflictingDeploymentsThenForcedDeployStarts(t *testing.T) {
	executor := newBlockingExecutor()
	m := NewManager(executor, nil, time.Second)

	firstPlan := types.DeploymentPlan{
		ID: "first",
		Original: types.Group{Apps: map[types.PathId]types.RunSpec{"/app": {ID: "/app"}}},
	}
	secondPlan := types.DeploymentPlan{
		ID: "second",
		Original: types.Group{Apps: map[types.PathId]types.RunSpec{"/app": {ID: "/app"}}},
		Target:   types.Group{},
	}

	m.PerformDeployment(context.Background(), firstPlan)
	<-executor.started

	conflicting := m.CancelConflictingDeployments(secondPlan)
	assert.Equal(t, []string{"first"}, conflicting)

	err := m.Wait("first")
	var canceled *orberr.DeploymentCanceled
	require.ErrorAs(t, err, &canceled)
	close(executor.release)

	m2 := NewManager(&instantExecutor{}, nil, time.Second)
	m2.PerformDeployment(context.Background(), secondPlan)
	require.NoError(t, m2.Wait("second"))
}

func TestPerformDeploymentPropagatesStepFailure(t *testing.T) {
	wantErr := errors.New("executor exploded")
	m := NewManager(&instantExecutor{err: wantErr}, nil, time.Second)
	plan := onePlan("plan-1")

	m.PerformDeployment(context.Background(), plan)
	err := m.Wait("plan-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, wantErr)
}

func TestRetrieveRunningDeploymentsReportsProgress(t *testing.T) {
	executor := newBlockingExecutor()
	m := NewManager(executor, nil, time.Second)
	plan := onePlan("plan-1")

	m.PerformDeployment(context.Background(), plan)
	<-executor.started

	infos := m.RetrieveRunningDeployments()
	require.Len(t, infos, 1)
	assert.Equal(t, "plan-1", infos[0].Plan.ID)
	assert.Equal(t, 1, infos[0].TotalSteps)

	close(executor.release)
	m.Wait("plan-1")
}

func TestStopAllDeploymentsClearsTable(t *testing.T) {
	executor := newBlockingExecutor()
	m := NewManager(executor, nil, time.Second)
	m.PerformDeployment(context.Background(), onePlan("plan-1"))
	<-executor.started
	close(executor.release)

	m.StopAllDeployments()
	assert.Empty(t, m.RetrieveRunningDeployments())
}
