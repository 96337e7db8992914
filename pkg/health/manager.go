package health

import (
	"context"
	"sync"
	"time"

	"github.com/orbitsched/orbit/pkg/events"
	"github.com/orbitsched/orbit/pkg/log"
	"github.com/orbitsched/orbit/pkg/types"
)

// KillService is the narrow collaborator the Health Check Manager calls
// into when a task exceeds maxConsecutiveFailures.
type KillService interface {
	KillTask(taskID types.TaskId, reason string) error
}

const ReasonFailedHealthChecks = "FailedHealthChecks"

// versionKey identifies one registered (appId, version) health check set.
type versionKey struct {
	AppID   types.PathId
	Version types.Version
}

// registration is the live state for one (appId, version): the declared
// checks and the config derived from them.
type registration struct {
	specs []types.HealthCheckSpec
}

// Manager is the Health Check Manager. A mutex guards all of its
// maps; checker dispatch (CheckTask) releases the lock before doing I/O,
// the way the teacher's health monitor runs checks outside its lock.
type Manager struct {
	mu            sync.RWMutex
	registrations map[versionKey]*registration
	// taskStatuses is keyed only by taskId (not by registration) so a
	// result survives a remove/re-add cycle across reconcileWith, per
	// a result survives a remove/re-add cycle across reconcileWith.
	taskStatuses map[types.TaskId]*Status
	killer       KillService
	broker       *events.Broker
}

// NewManager creates a Health Check Manager. broker may be nil in tests
// that don't care about emitted events.
func NewManager(killer KillService, broker *events.Broker) *Manager {
	return &Manager{
		registrations: make(map[versionKey]*registration),
		taskStatuses:  make(map[types.TaskId]*Status),
		killer:        killer,
		broker:        broker,
	}
}

// Add registers the health checks for a single (appId, version).
func (m *Manager) Add(appID types.PathId, version types.Version, specs []types.HealthCheckSpec) {
	m.mu.Lock()
	key := versionKey{appID, version}
	_, existed := m.registrations[key]
	m.registrations[key] = &registration{specs: specs}
	m.mu.Unlock()

	if !existed {
		m.publish(events.AddHealthCheckEvent, appID, version)
	}
}

// AddAllFor registers every health check declared on app's current
// version.
func (m *Manager) AddAllFor(app types.RunSpec) {
	if len(app.HealthChecks) == 0 {
		return
	}
	m.Add(app.ID, app.VersionInfo.Version, app.HealthChecks)
}

// RemoveAllFor removes every version's registration for appId. Per-task
// Status entries are retained for carry-over.
func (m *Manager) RemoveAllFor(appID types.PathId) {
	m.mu.Lock()
	var removedVersions []types.Version
	for key := range m.registrations {
		if key.AppID == appID {
			removedVersions = append(removedVersions, key.Version)
			delete(m.registrations, key)
		}
	}
	m.mu.Unlock()

	for _, v := range removedVersions {
		m.publish(events.RemoveHealthCheckEvent, appID, v)
	}
}

// RemoveAll clears every registration and every retained task status.
func (m *Manager) RemoveAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registrations = make(map[versionKey]*registration)
	m.taskStatuses = make(map[types.TaskId]*Status)
}

// List returns the versions currently registered for appId.
func (m *Manager) List(appID types.PathId) []types.Version {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var versions []types.Version
	for key := range m.registrations {
		if key.AppID == appID {
			versions = append(versions, key.Version)
		}
	}
	return versions
}

// Status returns the retained Status for a task, if any check has ever
// reported on it.
func (m *Manager) Status(taskID types.TaskId) (*Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.taskStatuses[taskID]
	return s, ok
}

// Statuses returns every retained task status belonging to instanceID.
func (m *Manager) Statuses(instanceID string) map[types.TaskId]*Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[types.TaskId]*Status)
	for taskID, status := range m.taskStatuses {
		if taskID.InstanceId == instanceID {
			out[taskID] = status
		}
	}
	return out
}

// Update folds a new check result into taskId's retained status, using
// cfg's threshold, and invokes the kill service if the task has now
// exceeded maxConsecutiveFailures and is not Unreachable.
func (m *Manager) Update(taskID types.TaskId, result Result, cfg Config, instanceStatus types.InstanceStatus) {
	m.mu.Lock()
	status, ok := m.taskStatuses[taskID]
	if !ok {
		status = NewStatus()
		m.taskStatuses[taskID] = status
	}
	status.Update(result, cfg)
	exceeded := status.ExceedsMaxFailures(cfg)
	m.mu.Unlock()

	if exceeded && instanceStatus != types.StatusUnreachable && m.killer != nil {
		if err := m.killer.KillTask(taskID, ReasonFailedHealthChecks); err != nil {
			log.Logger.Warn().Str("task", taskID.InstanceId).Err(err).Msg("health: kill on exceeded failures failed")
		}
	}
}

// Dispatchable reports whether instanceStatus is a status health checks
// are dispatched to. Health checks are never dispatched to instances in
// Staging, Unreachable, or a lost/gone bucket.
func Dispatchable(instanceStatus types.InstanceStatus) bool {
	switch instanceStatus {
	case types.StatusStaging, types.StatusUnreachable, types.StatusGone, types.StatusDropped:
		return false
	default:
		return true
	}
}

// ReconcileWith reconciles appId's registrations against its current set
// of live instances: every distinct runSpecVersion among them gets a
// registration (emitting add_health_check_event per addition); versions
// with no more live instances are removed (emitting
// remove_health_check_event). specFor resolves a RunSpec at a version so
// the newly-added registration knows which checks to run.
func (m *Manager) ReconcileWith(appID types.PathId, liveInstances []types.Instance, specFor func(types.PathId, types.Version) (types.RunSpec, bool)) {
	needed := make(map[types.Version]bool)
	for _, inst := range liveInstances {
		if inst.RunSpecId != appID {
			continue
		}
		needed[inst.State.Version] = true
	}

	m.mu.RLock()
	current := make(map[types.Version]bool)
	for key := range m.registrations {
		if key.AppID == appID {
			current[key.Version] = true
		}
	}
	m.mu.RUnlock()

	for v := range needed {
		if current[v] {
			continue
		}
		if app, ok := specFor(appID, v); ok {
			m.Add(appID, v, app.HealthChecks)
		}
	}

	for v := range current {
		if needed[v] {
			continue
		}
		m.mu.Lock()
		delete(m.registrations, versionKey{appID, v})
		m.mu.Unlock()
		m.publish(events.RemoveHealthCheckEvent, appID, v)
	}
}

func (m *Manager) publish(eventType events.EventType, appID types.PathId, version types.Version) {
	if m.broker == nil {
		return
	}
	m.broker.Publish(&events.Event{
		Type:      eventType,
		RunSpecID: string(appID),
		Version:   version.String(),
	})
}

// CheckTask runs checker against task outside of any lock and folds the
// result via Update; ctx bounds the single check attempt.
func (m *Manager) CheckTask(ctx context.Context, taskID types.TaskId, checker Checker, cfg Config, instanceStatus types.InstanceStatus) Result {
	checkCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	result := checker.Check(checkCtx)
	result.CheckedAt = time.Now()
	m.Update(taskID, result, cfg, instanceStatus)
	return result
}
