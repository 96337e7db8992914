package cluster

import "github.com/orbitsched/orbit/pkg/storage"

// ReplicatedStore adapts a Cluster to storage.Store: every mutation goes
// through Cluster.Apply so it only takes effect once committed to a
// majority of the raft group, while reads are served from this node's
// local FSM store directly (already consistent on any voter that has
// applied up to its own AppliedIndex).
type ReplicatedStore struct {
	cluster *Cluster
}

// NewReplicatedStore wraps c as a storage.Store.
func NewReplicatedStore(c *Cluster) *ReplicatedStore {
	return &ReplicatedStore{cluster: c}
}

func (r *ReplicatedStore) Get(kind storage.EntityKind, path string, version string) ([]byte, bool, error) {
	return r.cluster.fsm.Store().Get(kind, path, version)
}

func (r *ReplicatedStore) GetCurrent(kind storage.EntityKind, path string) ([]byte, bool, error) {
	return r.cluster.fsm.Store().GetCurrent(kind, path)
}

func (r *ReplicatedStore) Store(kind storage.EntityKind, path string, version string, data []byte) error {
	return r.cluster.Apply(Command{Op: opStore, Kind: kind, Path: path, Version: version, Data: data})
}

func (r *ReplicatedStore) DeleteCurrent(kind storage.EntityKind, path string) error {
	return r.cluster.Apply(Command{Op: opDeleteCurrent, Kind: kind, Path: path})
}

func (r *ReplicatedStore) DeleteVersion(kind storage.EntityKind, path string, version string) error {
	return r.cluster.Apply(Command{Op: opDeleteVersion, Kind: kind, Path: path, Version: version})
}

func (r *ReplicatedStore) Versions(kind storage.EntityKind, path string) ([]string, error) {
	return r.cluster.fsm.Store().Versions(kind, path)
}

func (r *ReplicatedStore) Ids(kind storage.EntityKind) ([]string, error) {
	return r.cluster.fsm.Store().Ids(kind)
}

func (r *ReplicatedStore) Close() error {
	return r.cluster.fsm.Store().Close()
}
