package types

import "github.com/orbitsched/orbit/pkg/log"

// InstanceStatus is one of the fourteen lifecycle statuses an instance or
// task can occupy.
type InstanceStatus string

const (
	StatusCreated     InstanceStatus = "Created"
	StatusReserved    InstanceStatus = "Reserved"
	StatusStaging     InstanceStatus = "Staging"
	StatusStarting    InstanceStatus = "Starting"
	StatusRunning     InstanceStatus = "Running"
	StatusKilling     InstanceStatus = "Killing"
	StatusKilled      InstanceStatus = "Killed"
	StatusFinished    InstanceStatus = "Finished"
	StatusFailed      InstanceStatus = "Failed"
	StatusError       InstanceStatus = "Error"
	StatusGone        InstanceStatus = "Gone"
	StatusDropped     InstanceStatus = "Dropped"
	StatusUnreachable InstanceStatus = "Unreachable"
	StatusUnknown     InstanceStatus = "Unknown"
)

// mixedPriority is the priority order applied first whenever an instance's
// tasks disagree: the first of these statuses present among them wins.
var mixedPriority = []InstanceStatus{
	StatusError, StatusFailed, StatusGone, StatusDropped, StatusUnreachable,
	StatusKilling, StatusStarting, StatusStaging, StatusUnknown,
}

// benignPriority is the fallback order applied when the tasks disagree and
// none of the mixedPriority statuses is present among them.
var benignPriority = []InstanceStatus{
	StatusCreated, StatusReserved, StatusRunning, StatusFinished, StatusKilled,
}

// Launched reports whether status represents a task the broker has
// actually placed on an agent (as opposed to merely reserved or queued).
func (s InstanceStatus) Launched() bool {
	switch s {
	case StatusCreated, StatusStaging, StatusStarting, StatusRunning, StatusKilling:
		return true
	default:
		return false
	}
}

// Terminal reports whether status is a final state the instance will not
// leave without relaunch.
func (s InstanceStatus) Terminal() bool {
	switch s {
	case StatusKilled, StatusFinished, StatusFailed, StatusError, StatusGone, StatusDropped:
		return true
	default:
		return false
	}
}

// InstanceState is the aggregate, recomputed-on-update view of an
// instance: its status, health, the version it was launched at, and the
// timestamp the aggregate last changed.
type InstanceState struct {
	Status  InstanceStatus
	Since   Version
	Version Version
	Healthy *bool // nil = unknown
}

// AgentInfo identifies the broker agent (and optionally the host ports)
// a task or instance is placed on.
type AgentInfo struct {
	Host      string
	AgentID   string
	HostPorts []int
}

// TaskId identifies a single broker-tracked task within an instance.
// InstanceId must equal the owning instance's id.
type TaskId struct {
	InstanceId string
	Idx        int
}

// Task is a single broker-tracked process on a specific agent. TaskId's
// InstanceId must match the owning Instance's InstanceId.
type Task struct {
	ID          TaskId
	Launched    bool
	Status      InstanceStatus
	MesosStatus string // opaque broker status string, when defined
	AgentInfo   AgentInfo
	Healthy     *bool
}

// InstanceId is runSpecId + a uuid suffix, guaranteeing every task's
// runSpecId equals its owning instance's runSpecId.
type InstanceId string

// Instance is a scheduled unit comprising one or more tasks that share
// lifecycle and placement. RunSpecId is derived from the InstanceId
// prefix.
type Instance struct {
	InstanceId InstanceId
	RunSpecId  PathId
	AgentInfo  AgentInfo
	State      InstanceState
	Tasks      map[TaskId]Task
}

// IsLaunched holds iff every task of the instance is launched.
func (i Instance) IsLaunched() bool {
	if len(i.Tasks) == 0 {
		return false
	}
	for _, t := range i.Tasks {
		if !t.Launched {
			return false
		}
	}
	return true
}

// RecomputeAggregate applies the aggregation rules across i's tasks and
// returns the new InstanceState. If the resulting status and health match
// i.State unchanged, the prior state (including its Since timestamp) is
// returned as-is so "since" only moves on an actual transition.
func (i Instance) RecomputeAggregate(now Version) InstanceState {
	status := aggregateStatus(i.Tasks)
	healthy := aggregateHealth(i.Tasks)

	if status == i.State.Status && healthyEqual(healthy, i.State.Healthy) {
		return i.State
	}
	return InstanceState{Status: status, Since: now, Version: i.State.Version, Healthy: healthy}
}

func aggregateStatus(tasks map[TaskId]Task) InstanceStatus {
	if len(tasks) == 0 {
		return StatusUnknown
	}

	first := true
	var common InstanceStatus
	counts := make(map[InstanceStatus]bool, len(tasks))
	for _, t := range tasks {
		if first {
			common = t.Status
			first = false
		}
		counts[t.Status] = true
	}
	if len(counts) == 1 {
		return common
	}

	for _, candidate := range mixedPriority {
		if counts[candidate] {
			return candidate
		}
	}
	for _, candidate := range benignPriority {
		if counts[candidate] {
			return candidate
		}
	}

	log.Warn("instance aggregation: no status matched priority tables, falling back to Unknown")
	return StatusUnknown
}

func aggregateHealth(tasks map[TaskId]Task) *bool {
	if len(tasks) == 0 {
		return nil
	}
	allKnown := true
	allHealthy := true
	for _, t := range tasks {
		if t.Healthy == nil {
			allKnown = false
			continue
		}
		if !*t.Healthy {
			f := false
			return &f
		}
	}
	if !allKnown {
		return nil
	}
	if allHealthy {
		tt := true
		return &tt
	}
	return nil
}

func healthyEqual(a, b *bool) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
