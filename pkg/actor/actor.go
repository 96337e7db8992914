package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/orbitsched/orbit/pkg/actions"
	"github.com/orbitsched/orbit/pkg/deploy"
	"github.com/orbitsched/orbit/pkg/events"
	"github.com/orbitsched/orbit/pkg/log"
	"github.com/orbitsched/orbit/pkg/repository"
	"github.com/orbitsched/orbit/pkg/tracker"
	"github.com/orbitsched/orbit/pkg/types"
)

// PlanStore persists deployment plans across restarts so a newly elected
// leader can resume any plan still in flight when the prior leader lost
// its seat.
type PlanStore interface {
	SavePlan(plan types.DeploymentPlan) error
	DeletePlan(planID string) error
	LoadAllPlans() ([]types.DeploymentPlan, error)
}

type commandKind string

const (
	cmdReconcileTasks             commandKind = "ReconcileTasks"
	cmdScaleApps                  commandKind = "ScaleApps"
	cmdScaleApp                   commandKind = "ScaleApp"
	cmdDeploy                     commandKind = "Deploy"
	cmdCancelDeployment           commandKind = "CancelDeployment"
	cmdKillTasks                  commandKind = "KillTasks"
	cmdRetrieveRunningDeployments commandKind = "RetrieveRunningDeployments"

	cmdElectedAsLeader   commandKind = "internal.ElectedAsLeader"
	cmdStandby           commandKind = "internal.Standby"
	cmdCancellationDone  commandKind = "internal.CancellationSettled"
	cmdCancellationTimeo commandKind = "internal.CancellationTimeout"
	cmdReconcileDone     commandKind = "internal.ReconcileDone"
	cmdDeploymentDone    commandKind = "internal.DeploymentDone"
)

func isInternal(k commandKind) bool {
	switch k {
	case cmdElectedAsLeader, cmdStandby, cmdCancellationDone, cmdCancellationTimeo, cmdReconcileDone, cmdDeploymentDone:
		return true
	default:
		return false
	}
}

// Answer is the result of one serialized command.
type Answer struct {
	Value interface{}
	Err   error
}

type command struct {
	kind         commandKind
	appID        types.PathId
	instanceIDs  []types.InstanceId
	plan         types.DeploymentPlan
	force        bool
	planID       string
	reconcileErr error
	reply        chan Answer
}

type actorState int

const (
	stateSuspended actorState = iota
	stateStarted
	stateAwaitingCancellation
)

func (s actorState) String() string {
	switch s {
	case stateSuspended:
		return "suspended"
	case stateStarted:
		return "started"
	case stateAwaitingCancellation:
		return "awaitingCancellation"
	default:
		return "unknown"
	}
}

type pendingDeploy struct {
	plan        types.DeploymentPlan
	reply       chan Answer
	conflictIDs []string
	timer       *time.Timer
}

// Config bundles the Scheduler Actor's collaborators.
type Config struct {
	Repo                *repository.Repository
	Tracker             *tracker.Tracker
	Actions             *actions.Actions
	DeployMgr           *deploy.Manager
	Broker              *events.Broker
	Driver              actions.Driver
	Plans               PlanStore
	LeadershipChanges   <-chan bool
	CancellationTimeout time.Duration
}

// Actor is the Scheduler Actor: every command table method enqueues a
// command onto a single buffered channel drained by one goroutine, so
// commands are handled one at a time in arrival order (per spec.md's
// "one worker per component consuming a bounded message queue"
// description of the real implementation's actor model).
type Actor struct {
	cmdCh    chan command
	leaderCh <-chan bool
	stopCh   chan struct{}
	logger   zerolog.Logger

	state actorState
	stash []command

	locks             map[types.PathId]string
	activeDeployLocks map[string][]types.PathId

	reconcileActive  bool
	reconcileWaiters []chan Answer

	awaitingCancel *pendingDeploy

	repo      *repository.Repository
	tracker   *tracker.Tracker
	actions   *actions.Actions
	deployMgr *deploy.Manager
	broker    *events.Broker
	driver    actions.Driver
	plans     PlanStore

	cancellationTimeout time.Duration
}

// New constructs an Actor in the suspended state; it starts handling
// commands only once ElectedAsLeader fires.
func New(cfg Config) *Actor {
	timeout := cfg.CancellationTimeout
	if timeout <= 0 {
		timeout = deploy.DefaultCancellationTimeout
	}
	return &Actor{
		cmdCh:               make(chan command, 64),
		leaderCh:            cfg.LeadershipChanges,
		stopCh:              make(chan struct{}),
		logger:              log.WithComponent("actor"),
		state:               stateSuspended,
		locks:               make(map[types.PathId]string),
		activeDeployLocks:   make(map[string][]types.PathId),
		repo:                cfg.Repo,
		tracker:             cfg.Tracker,
		actions:             cfg.Actions,
		deployMgr:           cfg.DeployMgr,
		broker:              cfg.Broker,
		driver:              cfg.Driver,
		plans:               cfg.Plans,
		cancellationTimeout: timeout,
	}
}

// Start launches the command loop and the deployment-completion
// subscriber.
func (a *Actor) Start() {
	go a.run()
	if a.broker != nil {
		go a.watchDeploymentCompletion()
	}
}

// Stop halts the command loop. Callers blocked in a command's send will
// receive an error.
func (a *Actor) Stop() {
	close(a.stopCh)
}

// ElectedAsLeader transitions the actor from suspended to started,
// resuming any deployment plans still persisted from a prior term.
func (a *Actor) ElectedAsLeader() {
	a.submitInternal(command{kind: cmdElectedAsLeader})
}

// Standby transitions the actor back to suspended; new commands queue
// until the next ElectedAsLeader.
func (a *Actor) Standby() {
	a.submitInternal(command{kind: cmdStandby})
}

func (a *Actor) run() {
	for {
		select {
		case leader, ok := <-a.leaderCh:
			if !ok {
				a.leaderCh = nil
				continue
			}
			if leader {
				a.handle(command{kind: cmdElectedAsLeader})
			} else {
				a.handle(command{kind: cmdStandby})
			}
		case cmd := <-a.cmdCh:
			a.handle(cmd)
		case <-a.stopCh:
			return
		}
	}
}

func (a *Actor) watchDeploymentCompletion() {
	sub := a.broker.Subscribe()
	defer a.broker.Unsubscribe(sub)
	for {
		select {
		case ev, ok := <-sub:
			if !ok {
				return
			}
			if ev.Type == events.DeploymentSuccess || ev.Type == events.DeploymentFailed {
				a.submitInternal(command{kind: cmdDeploymentDone, planID: ev.PlanID})
			}
		case <-a.stopCh:
			return
		}
	}
}

func (a *Actor) send(cmd command) (interface{}, error) {
	cmd.reply = make(chan Answer, 1)
	select {
	case a.cmdCh <- cmd:
	case <-a.stopCh:
		return nil, fmt.Errorf("actor: stopped")
	}
	select {
	case ans := <-cmd.reply:
		return ans.Value, ans.Err
	case <-a.stopCh:
		return nil, fmt.Errorf("actor: stopped")
	}
}

func (a *Actor) submitInternal(cmd command) {
	select {
	case a.cmdCh <- cmd:
	case <-a.stopCh:
	}
}

func (a *Actor) reply(cmd command, value interface{}, err error) {
	a.replyTo(cmd.reply, value, err)
}

func (a *Actor) replyTo(ch chan Answer, value interface{}, err error) {
	if ch == nil {
		return
	}
	ch <- Answer{Value: value, Err: err}
}

// handle is the single dispatch point every queued command passes
// through, in arrival order.
func (a *Actor) handle(cmd command) {
	if isInternal(cmd.kind) {
		a.dispatchInternal(cmd)
		return
	}

	switch a.state {
	case stateSuspended, stateAwaitingCancellation:
		a.stash = append(a.stash, cmd)
	case stateStarted:
		a.dispatch(cmd)
	}
}

func (a *Actor) unstash() {
	pending := a.stash
	a.stash = nil
	for _, cmd := range pending {
		a.handle(cmd)
	}
}

func (a *Actor) dispatchInternal(cmd command) {
	switch cmd.kind {
	case cmdElectedAsLeader:
		a.onElectedAsLeader()
	case cmdStandby:
		a.onStandby()
	case cmdCancellationDone:
		a.onCancellationSettled(cmd)
	case cmdCancellationTimeo:
		a.onCancellationTimeout(cmd)
	case cmdReconcileDone:
		a.onReconcileDone(cmd)
	case cmdDeploymentDone:
		a.onDeploymentDone(cmd)
	}
}

func (a *Actor) dispatch(cmd command) {
	switch cmd.kind {
	case cmdReconcileTasks:
		a.onReconcileTasks(cmd)
	case cmdScaleApps:
		a.onScaleApps(cmd)
	case cmdScaleApp:
		a.onScaleApp(cmd)
	case cmdDeploy:
		a.onDeploy(cmd)
	case cmdCancelDeployment:
		a.onCancelDeployment(cmd)
	case cmdKillTasks:
		a.onKillTasks(cmd)
	case cmdRetrieveRunningDeployments:
		a.onRetrieveRunningDeployments(cmd)
	default:
		a.reply(cmd, nil, fmt.Errorf("actor: unknown command %q", cmd.kind))
	}
}

func (a *Actor) onElectedAsLeader() {
	if a.state != stateSuspended {
		return
	}
	a.state = stateStarted
	a.loadPersistedPlans()
	a.unstash()
}

func (a *Actor) onStandby() {
	if a.awaitingCancel != nil {
		a.awaitingCancel.timer.Stop()
		a.replyTo(a.awaitingCancel.reply, nil, fmt.Errorf("actor: lost leadership while canceling deployment %s", a.awaitingCancel.plan.ID))
		a.awaitingCancel = nil
	}
	a.state = stateSuspended
}

func (a *Actor) loadPersistedPlans() {
	if a.plans == nil {
		return
	}
	plans, err := a.plans.LoadAllPlans()
	if err != nil {
		a.logger.Error().Err(err).Msg("actor: failed to load persisted deployment plans")
		return
	}
	for _, plan := range plans {
		ids := plan.AffectedRunSpecIds()
		ok, conflicts := a.withLockFor(ids, plan.ID)
		if !ok {
			a.logger.Warn().Str("plan_id", plan.ID).Strs("conflicts", conflicts).Msg("actor: skipping resumed plan, apps already locked")
			continue
		}
		a.activeDeployLocks[plan.ID] = ids
		a.deployMgr.PerformDeployment(context.Background(), plan)
	}
}

// withLockFor acquires ids atomically for owner, unless any is already
// held by a different owner, in which case no locks are taken and the
// conflicting owners are returned.
func (a *Actor) withLockFor(ids []types.PathId, owner string) (bool, []string) {
	var conflicts []string
	for _, id := range ids {
		if o, locked := a.locks[id]; locked && o != owner {
			conflicts = append(conflicts, o)
		}
	}
	if len(conflicts) > 0 {
		return false, conflicts
	}
	for _, id := range ids {
		a.locks[id] = owner
	}
	return true, nil
}

func (a *Actor) unlock(ids []types.PathId) {
	for _, id := range ids {
		delete(a.locks, id)
	}
}
