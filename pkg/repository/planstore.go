package repository

import (
	"encoding/json"

	"github.com/orbitsched/orbit/pkg/storage"
	"github.com/orbitsched/orbit/pkg/types"
)

// PlanStore persists in-flight deployment plans under storage.KindPlan so
// a newly elected leader can resume them via actor.Actor's
// loadPersistedPlans, the same durability actor.PlanStore requires.
type PlanStore struct {
	store storage.Store
}

// NewPlanStore wraps store for plan persistence.
func NewPlanStore(store storage.Store) *PlanStore {
	return &PlanStore{store: store}
}

// SavePlan persists plan as the current version for its id.
func (p *PlanStore) SavePlan(plan types.DeploymentPlan) error {
	data, err := json.Marshal(plan)
	if err != nil {
		return err
	}
	return p.store.Store(storage.KindPlan, plan.ID, plan.Created.String(), data)
}

// DeletePlan drops planID's current pointer once its deployment settles
// (succeeds, fails, or is canceled).
func (p *PlanStore) DeletePlan(planID string) error {
	return p.store.DeleteCurrent(storage.KindPlan, planID)
}

// LoadAllPlans returns every plan still current, for resuming on
// election.
func (p *PlanStore) LoadAllPlans() ([]types.DeploymentPlan, error) {
	ids, err := p.store.Ids(storage.KindPlan)
	if err != nil {
		return nil, err
	}
	plans := make([]types.DeploymentPlan, 0, len(ids))
	for _, id := range ids {
		data, ok, err := p.store.GetCurrent(storage.KindPlan, id)
		if err != nil || !ok {
			continue
		}
		var plan types.DeploymentPlan
		if err := json.Unmarshal(data, &plan); err != nil {
			continue
		}
		plans = append(plans, plan)
	}
	return plans, nil
}
