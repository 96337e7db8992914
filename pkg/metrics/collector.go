package metrics

import (
	"time"

	"github.com/orbitsched/orbit/pkg/types"
)

// InstanceSnapshotter is satisfied by the instance tracker: anything that
// can report a point-in-time count of instances bucketed by status.
type InstanceSnapshotter interface {
	CountByStatus() map[types.InstanceStatus]int
}

// LeadershipObserver is satisfied by the cluster package: reports the
// current leadership flag and the last applied Raft log index.
type LeadershipObserver interface {
	IsLeader() bool
	AppliedIndex() uint64
}

// Collector periodically samples the tracker and cluster collaborators
// into the gauges above, mirroring the teacher's periodic-ticker
// collector shape.
type Collector struct {
	tracker  InstanceSnapshotter
	cluster  LeadershipObserver
	interval time.Duration
	stopCh   chan struct{}
}

// NewCollector creates a metrics collector sampling every interval.
func NewCollector(tracker InstanceSnapshotter, cluster LeadershipObserver, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Collector{tracker: tracker, cluster: cluster, interval: interval, stopCh: make(chan struct{})}
}

// Start begins the background sampling loop.
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop halts the sampling loop.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	if c.tracker != nil {
		InstancesTotal.Reset()
		for status, count := range c.tracker.CountByStatus() {
			InstancesTotal.WithLabelValues(string(status)).Set(float64(count))
		}
	}
	if c.cluster != nil {
		if c.cluster.IsLeader() {
			ClusterIsLeader.Set(1)
		} else {
			ClusterIsLeader.Set(0)
		}
		ClusterRaftAppliedIndex.Set(float64(c.cluster.AppliedIndex()))
	}
}
