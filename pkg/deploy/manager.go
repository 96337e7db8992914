package deploy

import (
	"context"
	"sync"
	"time"

	"github.com/orbitsched/orbit/pkg/events"
	"github.com/orbitsched/orbit/pkg/log"
	"github.com/orbitsched/orbit/pkg/orberr"
	"github.com/orbitsched/orbit/pkg/types"
)

// DefaultCancellationTimeout is used when Manager is constructed with a
// zero timeout.
const DefaultCancellationTimeout = time.Minute

// StepExecutor runs one DeploymentAction and blocks until the app has
// reached a state the Deployment Manager can advance past (for Scale and
// Restart steps, this includes awaiting the readiness/health signal
// spec.md requires before advancing). ctx is canceled if the owning
// deployment is canceled or times out.
type StepExecutor interface {
	Execute(ctx context.Context, action types.DeploymentAction) error
}

// RunningDeploymentInfo is a read-only progress snapshot for
// RetrieveRunningDeployments.
type RunningDeploymentInfo struct {
	Plan       types.DeploymentPlan
	StepIndex  int
	TotalSteps int
}

type runningDeployment struct {
	plan      types.DeploymentPlan
	cancel    context.CancelFunc
	done      chan struct{}
	err       error
	stepIndex int
	mu        sync.Mutex
}

func (r *runningDeployment) setStep(i int) {
	r.mu.Lock()
	r.stepIndex = i
	r.mu.Unlock()
}

func (r *runningDeployment) currentStep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stepIndex
}

// Manager is the Deployment Manager of spec.md §4.3: a table of running
// plans, each walked by its own goroutine ("worker").
type Manager struct {
	mu                  sync.Mutex
	running             map[string]*runningDeployment
	executor            StepExecutor
	broker              *events.Broker
	cancellationTimeout time.Duration
}

// NewManager creates a Deployment Manager. cancellationTimeout of zero
// uses DefaultCancellationTimeout.
func NewManager(executor StepExecutor, broker *events.Broker, cancellationTimeout time.Duration) *Manager {
	if cancellationTimeout <= 0 {
		cancellationTimeout = DefaultCancellationTimeout
	}
	return &Manager{
		running:             make(map[string]*runningDeployment),
		executor:            executor,
		broker:              broker,
		cancellationTimeout: cancellationTimeout,
	}
}

// PerformDeployment registers plan and spawns a worker that walks its
// steps in order. The caller is notified of the outcome via the event bus
// (DeploymentSuccess or DeploymentFailed) rather than by blocking; use
// Wait to block synchronously (tests, and the Scheduler Actor's
// awaitingCancellation handling do this).
func (m *Manager) PerformDeployment(ctx context.Context, plan types.DeploymentPlan) {
	runCtx, cancel := context.WithCancel(ctx)
	rd := &runningDeployment{plan: plan, cancel: cancel, done: make(chan struct{})}

	m.mu.Lock()
	m.running[plan.ID] = rd
	m.mu.Unlock()

	go m.runPlan(runCtx, rd)
}

func (m *Manager) runPlan(ctx context.Context, rd *runningDeployment) {
	defer close(rd.done)

	var runErr error
stepLoop:
	for i, step := range rd.plan.Steps {
		rd.setStep(i)
		select {
		case <-ctx.Done():
			runErr = &orberr.DeploymentCanceled{PlanID: rd.plan.ID, Cause: ctx.Err()}
			break stepLoop
		default:
		}

		for _, action := range step.Actions {
			if err := m.executor.Execute(ctx, action); err != nil {
				if ctx.Err() != nil {
					runErr = &orberr.DeploymentCanceled{PlanID: rd.plan.ID, Cause: err}
				} else {
					runErr = err
				}
				break stepLoop
			}
		}
	}

	rd.err = runErr
	m.mu.Lock()
	delete(m.running, rd.plan.ID)
	m.mu.Unlock()

	if runErr != nil {
		log.Logger.Warn().Str("plan_id", rd.plan.ID).Err(runErr).Msg("deployment failed")
		m.publish(events.DeploymentFailed, rd.plan.ID)
	} else {
		m.publish(events.DeploymentSuccess, rd.plan.ID)
	}
}

func (m *Manager) publish(eventType events.EventType, planID string) {
	if m.broker == nil {
		return
	}
	m.broker.Publish(&events.Event{Type: eventType, PlanID: planID})
}

// CancelDeployment sends Cancel to id's worker and awaits its termination
// within the cancellation timeout. Returns nil if id is not running. If
// the worker does not terminate within the timeout, returns
// TimeoutException and abandons the wait (the worker may continue
// transiently).
func (m *Manager) CancelDeployment(id string) error {
	m.mu.Lock()
	rd, ok := m.running[id]
	m.mu.Unlock()
	if !ok {
		return nil
	}

	rd.cancel()
	select {
	case <-rd.done:
		return rd.err
	case <-time.After(m.cancellationTimeout):
		return &orberr.TimeoutException{PlanID: id}
	}
}

// CancelConflictingDeployments cancels every running plan whose affected
// run spec ids overlap newPlan's, without waiting for their termination,
// and returns their ids.
func (m *Manager) CancelConflictingDeployments(newPlan types.DeploymentPlan) []string {
	affected := make(map[types.PathId]bool)
	for _, id := range newPlan.AffectedRunSpecIds() {
		affected[id] = true
	}

	m.mu.Lock()
	var conflicting []*runningDeployment
	var ids []string
	for _, rd := range m.running {
		for _, id := range rd.plan.AffectedRunSpecIds() {
			if affected[id] {
				conflicting = append(conflicting, rd)
				ids = append(ids, rd.plan.ID)
				break
			}
		}
	}
	m.mu.Unlock()

	for _, rd := range conflicting {
		rd.cancel()
	}
	return ids
}

// StopAllDeployments cancels every running plan and waits up to the
// cancellation timeout for all of them to terminate, then clears the
// table.
func (m *Manager) StopAllDeployments() {
	m.mu.Lock()
	all := make([]*runningDeployment, 0, len(m.running))
	for _, rd := range m.running {
		all = append(all, rd)
	}
	m.mu.Unlock()

	deadline := time.After(m.cancellationTimeout)
	for _, rd := range all {
		rd.cancel()
	}
	for _, rd := range all {
		select {
		case <-rd.done:
		case <-deadline:
		}
	}

	m.mu.Lock()
	m.running = make(map[string]*runningDeployment)
	m.mu.Unlock()
}

// RetrieveRunningDeployments reports every currently running plan with
// its per-step progress.
func (m *Manager) RetrieveRunningDeployments() []RunningDeploymentInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]RunningDeploymentInfo, 0, len(m.running))
	for _, rd := range m.running {
		out = append(out, RunningDeploymentInfo{
			Plan:       rd.plan,
			StepIndex:  rd.currentStep(),
			TotalSteps: len(rd.plan.Steps),
		})
	}
	return out
}

// IsRunning reports whether planID currently has an active worker.
func (m *Manager) IsRunning(planID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.running[planID]
	return ok
}

// Wait blocks until planID's worker terminates (or was never running) and
// returns its outcome error, for test and awaitingCancellation use.
func (m *Manager) Wait(planID string) error {
	m.mu.Lock()
	rd, ok := m.running[planID]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	<-rd.done
	return rd.err
}
