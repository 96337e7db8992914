package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/orbitsched/orbit/pkg/deploy"
	"github.com/orbitsched/orbit/pkg/orberr"
	"github.com/orbitsched/orbit/pkg/types"
)

// ReasonUserRequested marks a kill issued directly through the KillTasks
// command, as opposed to one Scheduler Actions issued on its own
// initiative (scaling down, orphan cleanup, app deletion).
const ReasonUserRequested = "UserRequested"

// ReconcileTasks asks the broker driver to reconcile its known task
// statuses against the tracker's current instance set. Concurrent calls
// coalesce onto a single in-flight reconciliation; every caller receives
// the same result.
func (a *Actor) ReconcileTasks() error {
	_, err := a.send(command{kind: cmdReconcileTasks})
	return err
}

// ScaleApps issues ScaleApp for every known app id.
func (a *Actor) ScaleApps() error {
	_, err := a.send(command{kind: cmdScaleApps})
	return err
}

// ScaleApp reconciles one app's launched instance count against its
// RunSpec's target.
func (a *Actor) ScaleApp(appID types.PathId) error {
	_, err := a.send(command{kind: cmdScaleApp, appID: appID})
	return err
}

// Deploy starts plan. If force is false and any affected app is already
// locked by another plan, it fails immediately with AppLockedException.
// If force is true, conflicting deployments are canceled first and the
// deploy proceeds once every affected app is free, or fails with
// TimeoutException if that takes longer than the cancellation timeout.
func (a *Actor) Deploy(plan types.DeploymentPlan, force bool) error {
	_, err := a.send(command{kind: cmdDeploy, plan: plan, force: force})
	return err
}

// CancelDeployment cancels the named running plan.
func (a *Actor) CancelDeployment(planID string) error {
	_, err := a.send(command{kind: cmdCancelDeployment, planID: planID})
	return err
}

// KillTasks kills the named instances of appID.
func (a *Actor) KillTasks(appID types.PathId, instanceIDs []types.InstanceId) error {
	_, err := a.send(command{kind: cmdKillTasks, appID: appID, instanceIDs: instanceIDs})
	return err
}

// RetrieveRunningDeployments reports progress for every plan currently
// running.
func (a *Actor) RetrieveRunningDeployments() ([]deploy.RunningDeploymentInfo, error) {
	v, err := a.send(command{kind: cmdRetrieveRunningDeployments})
	if err != nil {
		return nil, err
	}
	infos, _ := v.([]deploy.RunningDeploymentInfo)
	return infos, nil
}

func (a *Actor) onScaleApp(cmd command) {
	owner := "scale:" + string(cmd.appID)
	ok, conflicts := a.withLockFor([]types.PathId{cmd.appID}, owner)
	if !ok {
		a.reply(cmd, nil, &orberr.AppLockedException{ConflictIDs: conflicts})
		return
	}
	defer a.unlock([]types.PathId{cmd.appID})

	runSpec, found, err := a.repo.Get(cmd.appID)
	if err != nil {
		a.reply(cmd, nil, err)
		return
	}
	if !found {
		a.reply(cmd, nil, fmt.Errorf("actor: app %s not found", cmd.appID))
		return
	}

	instances := a.tracker.SpecInstancesSync(cmd.appID)
	a.reply(cmd, nil, a.actions.Scale(runSpec, instances))
}

func (a *Actor) onScaleApps(cmd command) {
	ids, err := a.repo.Ids()
	if err != nil {
		a.reply(cmd, nil, err)
		return
	}
	for _, id := range ids {
		appID := id
		go func() { _ = a.ScaleApp(appID) }()
	}
	a.reply(cmd, nil, nil)
}

func (a *Actor) onKillTasks(cmd command) {
	owner := "kill:" + string(cmd.appID)
	ok, conflicts := a.withLockFor([]types.PathId{cmd.appID}, owner)
	if !ok {
		a.reply(cmd, nil, &orberr.AppLockedException{ConflictIDs: conflicts})
		return
	}
	defer a.unlock([]types.PathId{cmd.appID})

	var firstErr error
	for _, instanceID := range cmd.instanceIDs {
		if err := a.actions.Killer.KillInstance(instanceID, ReasonUserRequested); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.reply(cmd, nil, firstErr)
}

func (a *Actor) onRetrieveRunningDeployments(cmd command) {
	a.reply(cmd, a.deployMgr.RetrieveRunningDeployments(), nil)
}

func (a *Actor) onCancelDeployment(cmd command) {
	a.reply(cmd, nil, a.deployMgr.CancelDeployment(cmd.planID))
}

func (a *Actor) onReconcileTasks(cmd command) {
	a.reconcileWaiters = append(a.reconcileWaiters, cmd.reply)
	if a.reconcileActive {
		return
	}
	a.reconcileActive = true

	ids, err := a.repo.Ids()
	if err != nil {
		a.finishReconcile(err)
		return
	}
	instances := a.tracker.AllInstances()

	go func() {
		err := a.actions.ReconcileTasks(a.driver, ids, instances)
		a.submitInternal(command{kind: cmdReconcileDone, reconcileErr: err})
	}()
}

func (a *Actor) onReconcileDone(cmd command) {
	a.finishReconcile(cmd.reconcileErr)
}

func (a *Actor) finishReconcile(err error) {
	waiters := a.reconcileWaiters
	a.reconcileWaiters = nil
	a.reconcileActive = false
	for _, w := range waiters {
		a.replyTo(w, nil, err)
	}
}

func (a *Actor) onDeploy(cmd command) {
	ids := cmd.plan.AffectedRunSpecIds()
	ok, conflicts := a.withLockFor(ids, cmd.plan.ID)
	if ok {
		a.startDeploy(cmd.plan, ids)
		a.reply(cmd, cmd.plan.ID, nil)
		return
	}

	if !cmd.force {
		a.reply(cmd, nil, &orberr.AppLockedException{ConflictIDs: conflicts})
		return
	}

	canceledIDs := a.deployMgr.CancelConflictingDeployments(cmd.plan)
	timer := time.AfterFunc(a.cancellationTimeout, func() {
		a.submitInternal(command{kind: cmdCancellationTimeo, planID: cmd.plan.ID})
	})

	a.state = stateAwaitingCancellation
	a.awaitingCancel = &pendingDeploy{plan: cmd.plan, reply: cmd.reply, conflictIDs: canceledIDs, timer: timer}

	go func() {
		for _, id := range canceledIDs {
			_ = a.deployMgr.Wait(id)
		}
		a.submitInternal(command{kind: cmdCancellationDone, planID: cmd.plan.ID})
	}()
}

func (a *Actor) onCancellationSettled(cmd command) {
	pd := a.awaitingCancel
	if pd == nil || pd.plan.ID != cmd.planID {
		return
	}
	pd.timer.Stop()
	a.awaitingCancel = nil
	a.state = stateStarted

	// Wait (called before this event was self-sent) guarantees every
	// conflicting plan's worker has already terminated, so release their
	// locks here directly rather than waiting on the deployment-finished
	// broker event, which could otherwise arrive after this command.
	for _, conflictID := range pd.conflictIDs {
		if lockedIds, ok := a.activeDeployLocks[conflictID]; ok {
			delete(a.activeDeployLocks, conflictID)
			a.unlock(lockedIds)
		}
	}

	ids := pd.plan.AffectedRunSpecIds()
	if ok, conflicts := a.withLockFor(ids, pd.plan.ID); ok {
		a.startDeploy(pd.plan, ids)
		a.replyTo(pd.reply, pd.plan.ID, nil)
	} else {
		a.replyTo(pd.reply, nil, &orberr.AppLockedException{ConflictIDs: conflicts})
	}
	a.unstash()
}

func (a *Actor) onCancellationTimeout(cmd command) {
	pd := a.awaitingCancel
	if pd == nil || pd.plan.ID != cmd.planID {
		return
	}
	a.awaitingCancel = nil
	a.state = stateStarted
	a.replyTo(pd.reply, nil, &orberr.TimeoutException{PlanID: pd.plan.ID})
	a.unstash()
}

func (a *Actor) onDeploymentDone(cmd command) {
	ids, ok := a.activeDeployLocks[cmd.planID]
	if !ok {
		return
	}
	delete(a.activeDeployLocks, cmd.planID)
	a.unlock(ids)
	if a.plans != nil {
		if err := a.plans.DeletePlan(cmd.planID); err != nil {
			a.logger.Error().Err(err).Str("plan_id", cmd.planID).Msg("actor: failed to delete completed plan")
		}
	}
}

func (a *Actor) startDeploy(plan types.DeploymentPlan, lockedIds []types.PathId) {
	a.activeDeployLocks[plan.ID] = lockedIds
	if a.plans != nil {
		if err := a.plans.SavePlan(plan); err != nil {
			a.logger.Error().Err(err).Str("plan_id", plan.ID).Msg("actor: failed to persist deployment plan")
		}
	}
	a.deployMgr.PerformDeployment(context.Background(), plan)
}
