package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitsched/orbit/pkg/storage"
	"github.com/orbitsched/orbit/pkg/types"
)

func TestPlanStoreSaveLoadDelete(t *testing.T) {
	ps := NewPlanStore(storage.NewMemStore())

	plan := types.DeploymentPlan{ID: "/plan-1", Created: types.Version(time.Now())}
	require.NoError(t, ps.SavePlan(plan))

	plans, err := ps.LoadAllPlans()
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, plan.ID, plans[0].ID)

	require.NoError(t, ps.DeletePlan(plan.ID))
	plans, err = ps.LoadAllPlans()
	require.NoError(t, err)
	assert.Empty(t, plans)
}
