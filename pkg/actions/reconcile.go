package actions

import (
	"github.com/orbitsched/orbit/pkg/types"
)

// ReconcileTasks implements reconcileTasks(driver): known app ids come
// from a repository snapshot, instances from a tracker snapshot. Every
// instance of an app id absent from knownAppIds is an orphan and is
// killed with reason Orphaned. If any known task carries a mesosStatus,
// the driver is asked to reconcile that set; the driver is always asked,
// afterward, to reconcile the empty set (the "implicit" reconcile).
func (a *Actions) ReconcileTasks(driver Driver, knownAppIds []types.PathId, instances []types.Instance) error {
	known := make(map[types.PathId]bool, len(knownAppIds))
	for _, id := range knownAppIds {
		known[id] = true
	}

	var knownTaskStatuses []string
	for _, inst := range instances {
		if !known[inst.RunSpecId] {
			if err := a.Killer.KillInstance(inst.InstanceId, ReasonOrphaned); err != nil {
				return err
			}
			continue
		}
		for _, task := range inst.Tasks {
			if task.MesosStatus != "" {
				knownTaskStatuses = append(knownTaskStatuses, task.MesosStatus)
			}
		}
	}

	if len(knownTaskStatuses) > 0 {
		if err := driver.ReconcileTasks(knownTaskStatuses); err != nil {
			return err
		}
	}
	return driver.ReconcileTasks(nil)
}
