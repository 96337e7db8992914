package cluster

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"

	"github.com/orbitsched/orbit/pkg/log"
	"github.com/orbitsched/orbit/pkg/storage"
)

// Config holds the parameters needed to bring up this node's raft
// participation.
type Config struct {
	NodeID   string
	BindAddr string
	DataDir  string
}

// Cluster wraps a raft.Raft instance, exposing the elected/standby signal
// the Scheduler Actor observes (ElectedAsLeader / Standby, §4.1) and the
// Apply path every replicated store mutation goes through.
type Cluster struct {
	nodeID   string
	bindAddr string
	dataDir  string

	raft *raft.Raft
	fsm  *FSM

	mu           sync.Mutex
	wasLeader    bool
	leaderEvents chan bool
	stopObserve  chan struct{}
}

// New creates a Cluster bound to store but does not yet join or bootstrap
// a raft group.
func New(cfg Config, store storage.Store) *Cluster {
	return &Cluster{
		nodeID:       cfg.NodeID,
		bindAddr:     cfg.BindAddr,
		dataDir:      cfg.DataDir,
		fsm:          NewFSM(store),
		leaderEvents: make(chan bool, 8),
		stopObserve:  make(chan struct{}),
	}
}

func (c *Cluster) raftConfig() *raft.Config {
	config := raft.DefaultConfig()
	config.LocalID = raft.ServerID(c.nodeID)

	// Tuned for LAN/edge deployments targeting sub-10s failover, well
	// below hashicorp/raft's WAN-oriented defaults.
	config.HeartbeatTimeout = 500 * time.Millisecond
	config.ElectionTimeout = 500 * time.Millisecond
	config.CommitTimeout = 50 * time.Millisecond
	config.LeaderLeaseTimeout = 250 * time.Millisecond
	return config
}

func (c *Cluster) newRaft() (*raft.Raft, error) {
	if err := os.MkdirAll(c.dataDir, 0755); err != nil {
		return nil, fmt.Errorf("cluster: create data dir: %w", err)
	}

	addr, err := net.ResolveTCPAddr("tcp", c.bindAddr)
	if err != nil {
		return nil, fmt.Errorf("cluster: resolve bind address: %w", err)
	}
	transport, err := raft.NewTCPTransport(c.bindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("cluster: create transport: %w", err)
	}

	snapshotStore, err := raft.NewFileSnapshotStore(c.dataDir, 2, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("cluster: create snapshot store: %w", err)
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(c.dataDir, "raft-log.db"))
	if err != nil {
		return nil, fmt.Errorf("cluster: create log store: %w", err)
	}
	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(c.dataDir, "raft-stable.db"))
	if err != nil {
		return nil, fmt.Errorf("cluster: create stable store: %w", err)
	}

	r, err := raft.NewRaft(c.raftConfig(), c.fsm, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		return nil, fmt.Errorf("cluster: create raft: %w", err)
	}
	return r, nil
}

// Bootstrap initializes a new single-node raft cluster with this node as
// its only voter.
func (c *Cluster) Bootstrap() error {
	r, err := c.newRaft()
	if err != nil {
		return err
	}
	c.raft = r

	config := raft.Configuration{
		Servers: []raft.Server{{ID: raft.ServerID(c.nodeID), Address: raft.ServerAddress(c.bindAddr)}},
	}
	if err := r.BootstrapCluster(config).Error(); err != nil {
		return fmt.Errorf("cluster: bootstrap: %w", err)
	}

	c.startObserving()
	return nil
}

// Join starts this node's raft participation without bootstrapping; it is
// expected the cluster's current leader calls AddVoter for this node's id
// and bind address.
func (c *Cluster) Join() error {
	r, err := c.newRaft()
	if err != nil {
		return err
	}
	c.raft = r
	c.startObserving()
	return nil
}

// AddVoter adds a new raft member; legal only on the current leader.
func (c *Cluster) AddVoter(nodeID, address string) error {
	if c.raft == nil {
		return fmt.Errorf("cluster: raft not initialized")
	}
	if !c.IsLeader() {
		return fmt.Errorf("cluster: not the leader, current leader is %s", c.LeaderAddr())
	}
	return c.raft.AddVoter(raft.ServerID(nodeID), raft.ServerAddress(address), 0, 10*time.Second).Error()
}

// RemoveServer removes a raft member; legal only on the current leader.
func (c *Cluster) RemoveServer(nodeID string) error {
	if c.raft == nil {
		return fmt.Errorf("cluster: raft not initialized")
	}
	if !c.IsLeader() {
		return fmt.Errorf("cluster: not the leader")
	}
	return c.raft.RemoveServer(raft.ServerID(nodeID), 0, 10*time.Second).Error()
}

// IsLeader reports whether this node currently holds raft leadership.
// Satisfies metrics.LeadershipObserver.
func (c *Cluster) IsLeader() bool {
	return c.raft != nil && c.raft.State() == raft.Leader
}

// AppliedIndex returns the raft log index last applied to the FSM.
// Satisfies metrics.LeadershipObserver.
func (c *Cluster) AppliedIndex() uint64 {
	if c.raft == nil {
		return 0
	}
	return c.raft.AppliedIndex()
}

// LeaderAddr returns the address of the current raft leader, if known.
func (c *Cluster) LeaderAddr() string {
	if c.raft == nil {
		return ""
	}
	return string(c.raft.Leader())
}

// LeadershipChanges returns a channel the Scheduler Actor reads
// true/false transitions from to drive ElectedAsLeader/Standby.
func (c *Cluster) LeadershipChanges() <-chan bool {
	return c.leaderEvents
}

// startObserving spawns the goroutine that watches raft's leadership
// observations and translates them into the simpler elected/standby
// channel the Scheduler Actor consumes.
func (c *Cluster) startObserving() {
	obsCh := make(chan raft.Observation, 8)
	observer := raft.NewObserver(obsCh, true, func(o *raft.Observation) bool {
		_, ok := o.Data.(raft.LeaderObservation)
		return ok
	})
	c.raft.RegisterObserver(observer)

	go func() {
		defer c.raft.DeregisterObserver(observer)
		for {
			select {
			case <-obsCh:
				c.checkLeadershipChanged()
			case <-time.After(time.Second):
				c.checkLeadershipChanged()
			case <-c.stopObserve:
				return
			}
		}
	}()
}

func (c *Cluster) checkLeadershipChanged() {
	c.mu.Lock()
	defer c.mu.Unlock()

	isLeader := c.IsLeader()
	if isLeader == c.wasLeader {
		return
	}
	c.wasLeader = isLeader

	select {
	case c.leaderEvents <- isLeader:
	default:
		log.Logger.Warn().Bool("is_leader", isLeader).Msg("cluster: leadership event channel full, dropping")
	}
}

// Apply marshals cmd and submits it to the raft log, returning once it is
// committed and applied to this node's FSM.
func (c *Cluster) Apply(cmd Command) error {
	if c.raft == nil {
		return fmt.Errorf("cluster: raft not initialized")
	}
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("cluster: marshal command: %w", err)
	}

	future := c.raft.Apply(data, 5*time.Second)
	if err := future.Error(); err != nil {
		return fmt.Errorf("cluster: apply command: %w", err)
	}
	if resp := future.Response(); resp != nil {
		if err, ok := resp.(error); ok && err != nil {
			return err
		}
	}
	return nil
}

// Shutdown stops raft and the leadership observer goroutine.
func (c *Cluster) Shutdown() error {
	close(c.stopObserve)
	if c.raft == nil {
		return nil
	}
	return c.raft.Shutdown().Error()
}
