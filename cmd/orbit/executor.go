package main

import (
	"context"
	"fmt"
	"time"

	"github.com/orbitsched/orbit/pkg/actions"
	"github.com/orbitsched/orbit/pkg/repository"
	"github.com/orbitsched/orbit/pkg/tracker"
	"github.com/orbitsched/orbit/pkg/types"
)

// stepPollInterval is how often the executor re-checks whether a step's
// target instance count has been reached.
const stepPollInterval = 2 * time.Second

// orbitExecutor is the deploy.StepExecutor this binary wires into the
// Deployment Manager: it translates one DeploymentAction into a call
// against Scheduler Actions and then blocks until the tracker reports
// the app has reached (or failed to reach) the action's target state.
type orbitExecutor struct {
	repo    *repository.Repository
	tracker *tracker.Tracker
	actions *actions.Actions
}

func newOrbitExecutor(repo *repository.Repository, trk *tracker.Tracker, a *actions.Actions) *orbitExecutor {
	return &orbitExecutor{repo: repo, tracker: trk, actions: a}
}

func (e *orbitExecutor) Execute(ctx context.Context, action types.DeploymentAction) error {
	switch action.Kind {
	case types.StepStopApp:
		return e.stop(action.RunSpecID)
	case types.StepStartApp, types.StepScaleApp:
		return e.scaleToTarget(ctx, action.RunSpecID)
	case types.StepRestartApp:
		return e.restart(ctx, action.RunSpecID)
	default:
		return fmt.Errorf("executor: unknown deployment action kind %q", action.Kind)
	}
}

func (e *orbitExecutor) stop(appID types.PathId) error {
	current := e.tracker.SpecInstancesSync(appID)
	return e.actions.StopApp(appID, current)
}

// restart kills every currently launched instance of appID with reason
// ScalingApp and then relaunches to the RunSpec's target count, the
// simplest rolling-equivalent available without a dedicated "replace one
// at a time" primitive in Scheduler Actions.
func (e *orbitExecutor) restart(ctx context.Context, appID types.PathId) error {
	current := e.tracker.SpecInstancesSync(appID)
	for _, inst := range current {
		if !inst.IsLaunched() {
			continue
		}
		if err := e.actions.Killer.KillInstance(inst.InstanceId, actions.ReasonScalingApp); err != nil {
			return err
		}
	}
	return e.scaleToTarget(ctx, appID)
}

func (e *orbitExecutor) scaleToTarget(ctx context.Context, appID types.PathId) error {
	runSpec, found, err := e.repo.Get(appID)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("executor: app %s not found", appID)
	}

	if err := e.actions.Scale(runSpec, e.tracker.SpecInstancesSync(appID)); err != nil {
		return err
	}
	return e.awaitTarget(ctx, appID, runSpec.Instances)
}

// awaitTarget blocks until appID has exactly target instances in a
// running, non-terminal state, or ctx is done.
func (e *orbitExecutor) awaitTarget(ctx context.Context, appID types.PathId, target int) error {
	ticker := time.NewTicker(stepPollInterval)
	defer ticker.Stop()

	for {
		if e.runningCount(appID) == target {
			return nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (e *orbitExecutor) runningCount(appID types.PathId) int {
	n := 0
	for _, inst := range e.tracker.SpecInstancesSync(appID) {
		if inst.State.Status == types.StatusRunning {
			n++
		}
	}
	return n
}
