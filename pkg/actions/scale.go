package actions

import (
	"sort"

	"github.com/orbitsched/orbit/pkg/types"
)

// victimBucket orders the scale-down candidate statuses; lower sorts
// first (killed first). Instances in any other status are not
// candidates.
var victimBucket = map[types.InstanceStatus]int{
	types.StatusStaging:  0,
	types.StatusStarting: 1,
	types.StatusRunning:  2,
}

// Scale is the pure scale algorithm given snapshots: current's launched
// count against runSpec.Instances, adjusted for the launch queue's view
// of in-flight and unreachable instances.
func (a *Actions) Scale(runSpec types.RunSpec, current []types.Instance) error {
	launched := launchedCount(current)
	target := runSpec.Instances

	switch {
	case target > launched:
		queuedOrRunning := launched
		if queued, ok := a.Queue.Get(runSpec.ID); ok {
			queuedOrRunning = queued.FinalInstanceCount - queued.UnreachableInstances
		}
		toQueue := max0(target - queuedOrRunning)
		if toQueue > 0 {
			a.Queue.Add(runSpec.ID, toQueue)
		}
	case target < launched:
		a.Queue.Purge(runSpec.ID)
		victims := selectVictims(current, launched-target)
		for _, v := range victims {
			if err := a.Killer.KillInstance(v.InstanceId, ReasonScalingApp); err != nil {
				return err
			}
		}
	}
	return nil
}

// selectVictims returns the first n instances under the scale-down
// ordering: Staging before Starting before Running, ties broken by the
// most recently changed (highest Since) first. Instances outside those
// three statuses are never candidates.
func selectVictims(instances []types.Instance, n int) []types.Instance {
	candidates := make([]types.Instance, 0, len(instances))
	for _, inst := range instances {
		if _, ok := victimBucket[inst.State.Status]; ok {
			candidates = append(candidates, inst)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		bi, bj := victimBucket[candidates[i].State.Status], victimBucket[candidates[j].State.Status]
		if bi != bj {
			return bi < bj
		}
		return candidates[i].State.Since.After(candidates[j].State.Since)
	})

	if n > len(candidates) {
		n = len(candidates)
	}
	if n < 0 {
		n = 0
	}
	return candidates[:n]
}
