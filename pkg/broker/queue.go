package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/orbitsched/orbit/pkg/log"
	"github.com/orbitsched/orbit/pkg/repository"
	"github.com/orbitsched/orbit/pkg/tracker"
	"github.com/orbitsched/orbit/pkg/types"
)

// initialBackoff and maxBackoff bound the delay the queue imposes on a
// run spec's entry after a launch attempt fails, doubling on each
// consecutive failure.
const (
	initialBackoff = time.Second
	maxBackoff     = 60 * time.Second
)

// Queue is the reference actions.LaunchQueue implementation: an
// in-memory table of pending launch demand per app id, with exponential
// backoff after launch failures.
type Queue struct {
	mu      sync.Mutex
	entries map[types.PathId]*entry
}

type entry struct {
	info    types.QueuedInstanceInfo
	backoff time.Duration
}

// NewQueue creates an empty launch queue.
func NewQueue() *Queue {
	return &Queue{entries: make(map[types.PathId]*entry)}
}

// Add records count additional instances to launch for appId, merging
// with any existing pending demand.
func (q *Queue) Add(appId types.PathId, count int) {
	if count <= 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.entries[appId]
	if !ok {
		e = &entry{backoff: initialBackoff}
		q.entries[appId] = e
	}
	e.info.InstancesLeftToLaunch += count
	e.info.FinalInstanceCount += count
	e.info.InProgress = true
}

// Purge drops all pending demand for appId, e.g. on scale-down.
func (q *Queue) Purge(appId types.PathId) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.entries, appId)
}

// ResetDelay clears any backoff window currently in effect for appId, so
// the matcher retries it on the next drain pass.
func (q *Queue) ResetDelay(appId types.PathId) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if e, ok := q.entries[appId]; ok {
		e.backoff = initialBackoff
		e.info.BackoffUntil = time.Time{}
	}
}

// Get returns the current snapshot for appId, if any work is pending.
func (q *Queue) Get(appId types.PathId) (types.QueuedInstanceInfo, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.entries[appId]
	if !ok {
		return types.QueuedInstanceInfo{}, false
	}
	return e.info, true
}

// dueAppIds returns app ids with launch demand outstanding whose backoff
// window (if any) has elapsed.
func (q *Queue) dueAppIds(now time.Time) []types.PathId {
	q.mu.Lock()
	defer q.mu.Unlock()

	var ids []types.PathId
	for appID, e := range q.entries {
		if e.info.InstancesLeftToLaunch <= 0 {
			continue
		}
		if e.info.BackoffUntil.After(now) {
			continue
		}
		ids = append(ids, appID)
	}
	return ids
}

func (q *Queue) markLaunched(appId types.PathId) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.entries[appId]
	if !ok {
		return
	}
	e.info.InstancesLeftToLaunch--
	e.backoff = initialBackoff
	if e.info.InstancesLeftToLaunch <= 0 {
		delete(q.entries, appId)
	}
}

func (q *Queue) markFailed(appId types.PathId, now time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.entries[appId]
	if !ok {
		return
	}
	e.info.UnreachableInstances++
	e.info.BackoffUntil = now.Add(e.backoff)
	e.backoff *= 2
	if e.backoff > maxBackoff {
		e.backoff = maxBackoff
	}
}

// drainInterval is how often the matcher scans the queue for due work.
const drainInterval = time.Second

// Matcher drains Queue onto a Driver: each due app id gets one instance
// launched per pass, backing off on failure per Queue's own policy.
type Matcher struct {
	queue  *Queue
	repo   *repository.Repository
	trk    *tracker.Tracker
	driver *Driver
	logger zerolog.Logger

	stopCh chan struct{}
}

// NewMatcher wires queue's pending demand to driver's Launch, consulting
// repo for each app id's current RunSpec.
func NewMatcher(queue *Queue, repo *repository.Repository, trk *tracker.Tracker, driver *Driver) *Matcher {
	return &Matcher{
		queue:  queue,
		repo:   repo,
		trk:    trk,
		driver: driver,
		logger: log.WithComponent("broker.matcher"),
		stopCh: make(chan struct{}),
	}
}

// Start launches the background drain loop.
func (m *Matcher) Start() {
	go m.run()
}

// Stop halts the drain loop.
func (m *Matcher) Stop() {
	close(m.stopCh)
}

func (m *Matcher) run() {
	ticker := time.NewTicker(drainInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.drainOnce()
		case <-m.stopCh:
			return
		}
	}
}

func (m *Matcher) drainOnce() {
	now := time.Now()
	for _, appID := range m.queue.dueAppIds(now) {
		m.launchOne(appID, now)
	}
}

func (m *Matcher) launchOne(appID types.PathId, now time.Time) {
	runSpec, found, err := m.repo.Get(appID)
	if err != nil || !found {
		m.queue.Purge(appID)
		return
	}

	instanceID := types.InstanceId(fmt.Sprintf("%s.%s", appID, uuid.New().String()))
	taskID := types.TaskId{InstanceId: string(instanceID), Idx: 0}

	m.trk.LaunchEphemeral(types.Instance{
		InstanceId: instanceID,
		RunSpecId:  appID,
		State:      types.InstanceState{Status: types.StatusCreated, Since: types.Version(now)},
		Tasks: map[types.TaskId]types.Task{
			taskID: {ID: taskID, Status: types.StatusCreated},
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := m.driver.Launch(ctx, taskID, runSpec.Cmd, runSpec.Resources, runSpec.Volumes); err != nil {
		m.logger.Error().Err(err).Str("app_id", string(appID)).Msg("broker: launch failed")
		m.queue.markFailed(appID, now)
		return
	}
	m.queue.markLaunched(appID)
}
