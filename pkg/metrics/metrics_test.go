package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/orbitsched/orbit/pkg/types"
)

func TestTimerObserveDuration(t *testing.T) {
	timer := NewTimer()
	time.Sleep(time.Millisecond)
	assert.Greater(t, timer.Duration(), time.Duration(0))
	timer.ObserveDuration(ReconciliationDuration)
}

type fakeTracker struct {
	counts map[types.InstanceStatus]int
}

func (f fakeTracker) CountByStatus() map[types.InstanceStatus]int { return f.counts }

type fakeCluster struct {
	leader bool
	index  uint64
}

func (f fakeCluster) IsLeader() bool       { return f.leader }
func (f fakeCluster) AppliedIndex() uint64 { return f.index }

func TestCollectorSamplesTrackerAndCluster(t *testing.T) {
	tracker := fakeTracker{counts: map[types.InstanceStatus]int{types.StatusRunning: 3, types.StatusStaging: 1}}
	cluster := fakeCluster{leader: true, index: 42}

	c := NewCollector(tracker, cluster, time.Hour)
	c.collect()

	assert.Equal(t, float64(3), testutil.ToFloat64(InstancesTotal.WithLabelValues(string(types.StatusRunning))))
	assert.Equal(t, float64(1), testutil.ToFloat64(InstancesTotal.WithLabelValues(string(types.StatusStaging))))
	assert.Equal(t, float64(1), testutil.ToFloat64(ClusterIsLeader))
	assert.Equal(t, float64(42), testutil.ToFloat64(ClusterRaftAppliedIndex))
}
