package facade

import (
	"context"
	"testing"
	"time"

	"github.com/golang/protobuf/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitsched/orbit/pkg/actions"
	"github.com/orbitsched/orbit/pkg/actor"
	"github.com/orbitsched/orbit/pkg/deploy"
	"github.com/orbitsched/orbit/pkg/events"
	"github.com/orbitsched/orbit/pkg/repository"
	"github.com/orbitsched/orbit/pkg/storage"
	"github.com/orbitsched/orbit/pkg/tracker"
	"github.com/orbitsched/orbit/pkg/types"
)

func TestLegacyCodecRoundTrip(t *testing.T) {
	codec := legacyCodec{}
	in := &DeployRequest{PlanJson: []byte(`{"ID":"/plan-1"}`), Force: true}

	data, err := codec.Marshal(in)
	require.NoError(t, err)

	out := new(DeployRequest)
	require.NoError(t, codec.Unmarshal(data, out))
	assert.Equal(t, in.PlanJson, out.PlanJson)
	assert.Equal(t, in.Force, out.Force)
}

func TestLegacyCodecRejectsNonProtoValues(t *testing.T) {
	codec := legacyCodec{}
	_, err := codec.Marshal("not a proto message")
	assert.Error(t, err)
}

func TestServerDeployRejectsInvalidPlanJSON(t *testing.T) {
	s := &Server{}
	resp, err := s.Deploy(context.Background(), &DeployRequest{PlanJson: []byte("not json")})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Error)
}

// fakeExecutor completes every deployment step immediately.
type fakeExecutor struct{}

func (fakeExecutor) Execute(ctx context.Context, action types.DeploymentAction) error { return nil }

// fakeDriver is a no-op actions.Driver for tests that never reach the
// broker, only Scheduler Actions' bookkeeping.
type fakeDriver struct{}

func (fakeDriver) ReconcileTasks(knownStatuses []string) error { return nil }

// fakeKiller records kills without needing a real broker.Driver.
type fakeKiller struct{}

func (fakeKiller) KillInstance(instanceID types.InstanceId, reason string) error { return nil }

func newTestServer(t *testing.T) (*Server, *actor.Actor) {
	t.Helper()
	broker := events.NewBroker()
	repo := repository.New(storage.NewMemStore())
	trk := tracker.New()

	a := actor.New(actor.Config{
		Repo:    repo,
		Tracker: trk,
		Actions: &actions.Actions{Broker: broker, Killer: fakeKiller{}},
		DeployMgr: deploy.NewManager(fakeExecutor{}, broker, time.Second),
		Broker:    broker,
		Driver:    fakeDriver{},
	})
	a.Start()
	t.Cleanup(a.Stop)
	a.ElectedAsLeader()
	return NewServer(a), a
}

func TestServerScaleAppsDelegatesToActor(t *testing.T) {
	s, _ := newTestServer(t)
	resp, err := s.ScaleApps(context.Background(), &ScaleAppsRequest{})
	require.NoError(t, err)
	assert.Empty(t, resp.Error)
}

func TestServerRetrieveRunningDeploymentsReturnsEmptyJSON(t *testing.T) {
	s, _ := newTestServer(t)
	resp, err := s.RetrieveRunningDeployments(context.Background(), &RetrieveRunningDeploymentsRequest{})
	require.NoError(t, err)
	assert.Equal(t, "[]", string(resp.DeploymentsJson))
}

func TestServerKillTasksTranslatesInstanceIDs(t *testing.T) {
	s, _ := newTestServer(t)
	resp, err := s.KillTasks(context.Background(), &KillTasksRequest{AppId: "/app", InstanceIds: []string{"/app.inst-1"}})
	require.NoError(t, err)
	assert.Empty(t, resp.Error)
}

var _ proto.Message = (*DeployRequest)(nil)
