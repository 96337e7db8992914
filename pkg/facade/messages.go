package facade

import "fmt"

// These types carry the same field shapes protoc-gen-go would emit from
// a facade.proto schema, but are hand-declared: see doc.go. Each
// implements the three-method legacy proto.Message contract
// (Reset/String/ProtoMessage) and is marshaled by legacyCodec using
// golang/protobuf's struct-tag reflection rather than a compiled
// file descriptor.

// DeployRequest carries a JSON-encoded types.DeploymentPlan, since the
// plan's nested RunSpec/GroupSpec trees are awkward to flatten into
// scalar proto fields for what is meant to stay a thin transport.
type DeployRequest struct {
	PlanJson []byte `protobuf:"bytes,1,opt,name=plan_json,json=planJson,proto3" json:"plan_json,omitempty"`
	Force    bool   `protobuf:"varint,2,opt,name=force,proto3" json:"force,omitempty"`
}

func (m *DeployRequest) Reset()         { *m = DeployRequest{} }
func (m *DeployRequest) String() string { return fmt.Sprintf("%+v", *m) }
func (*DeployRequest) ProtoMessage()    {}

// ScaleAppsRequest asks the actor to re-evaluate every app's instance
// count against its current queued demand; it carries no fields.
type ScaleAppsRequest struct{}

func (m *ScaleAppsRequest) Reset()         { *m = ScaleAppsRequest{} }
func (m *ScaleAppsRequest) String() string { return "ScaleAppsRequest{}" }
func (*ScaleAppsRequest) ProtoMessage()    {}

// ScaleAppRequest asks the actor to re-evaluate a single app.
type ScaleAppRequest struct {
	AppId string `protobuf:"bytes,1,opt,name=app_id,json=appId,proto3" json:"app_id,omitempty"`
}

func (m *ScaleAppRequest) Reset()         { *m = ScaleAppRequest{} }
func (m *ScaleAppRequest) String() string { return fmt.Sprintf("%+v", *m) }
func (*ScaleAppRequest) ProtoMessage()    {}

// KillTasksRequest asks the actor to kill the named instances of AppId.
// An empty InstanceIds kills nothing.
type KillTasksRequest struct {
	AppId       string   `protobuf:"bytes,1,opt,name=app_id,json=appId,proto3" json:"app_id,omitempty"`
	InstanceIds []string `protobuf:"bytes,2,rep,name=instance_ids,json=instanceIds,proto3" json:"instance_ids,omitempty"`
}

func (m *KillTasksRequest) Reset()         { *m = KillTasksRequest{} }
func (m *KillTasksRequest) String() string { return fmt.Sprintf("%+v", *m) }
func (*KillTasksRequest) ProtoMessage()    {}

// CancelDeploymentRequest asks the actor to cancel the in-flight
// deployment identified by PlanId. Steps already carried out are not
// rolled back.
type CancelDeploymentRequest struct {
	PlanId string `protobuf:"bytes,1,opt,name=plan_id,json=planId,proto3" json:"plan_id,omitempty"`
}

func (m *CancelDeploymentRequest) Reset()         { *m = CancelDeploymentRequest{} }
func (m *CancelDeploymentRequest) String() string { return fmt.Sprintf("%+v", *m) }
func (*CancelDeploymentRequest) ProtoMessage()    {}

// ReconcileTasksRequest triggers an out-of-band reconcile pass; it
// carries no fields.
type ReconcileTasksRequest struct{}

func (m *ReconcileTasksRequest) Reset()         { *m = ReconcileTasksRequest{} }
func (m *ReconcileTasksRequest) String() string { return "ReconcileTasksRequest{}" }
func (*ReconcileTasksRequest) ProtoMessage()    {}

// RetrieveRunningDeploymentsRequest carries no fields.
type RetrieveRunningDeploymentsRequest struct{}

func (m *RetrieveRunningDeploymentsRequest) Reset() { *m = RetrieveRunningDeploymentsRequest{} }
func (m *RetrieveRunningDeploymentsRequest) String() string {
	return "RetrieveRunningDeploymentsRequest{}"
}
func (*RetrieveRunningDeploymentsRequest) ProtoMessage() {}

// RetrieveRunningDeploymentsResponse carries a JSON-encoded
// []deploy.RunningDeploymentInfo, for the same reason DeployRequest
// carries a JSON-encoded plan.
type RetrieveRunningDeploymentsResponse struct {
	DeploymentsJson []byte `protobuf:"bytes,1,opt,name=deployments_json,json=deploymentsJson,proto3" json:"deployments_json,omitempty"`
}

func (m *RetrieveRunningDeploymentsResponse) Reset() {
	*m = RetrieveRunningDeploymentsResponse{}
}
func (m *RetrieveRunningDeploymentsResponse) String() string { return fmt.Sprintf("%+v", *m) }
func (*RetrieveRunningDeploymentsResponse) ProtoMessage()    {}

// DeployResponse reports the plan id the actor accepted and, if the
// command failed validation or locking, a non-empty Error.
type DeployResponse struct {
	PlanId string `protobuf:"bytes,1,opt,name=plan_id,json=planId,proto3" json:"plan_id,omitempty"`
	Error  string `protobuf:"bytes,2,opt,name=error,proto3" json:"error,omitempty"`
}

func (m *DeployResponse) Reset()         { *m = DeployResponse{} }
func (m *DeployResponse) String() string { return fmt.Sprintf("%+v", *m) }
func (*DeployResponse) ProtoMessage()    {}

// CommandResponse is the generic response for commands that either
// succeed or fail with no other payload.
type CommandResponse struct {
	Error string `protobuf:"bytes,1,opt,name=error,proto3" json:"error,omitempty"`
}

func (m *CommandResponse) Reset()         { *m = CommandResponse{} }
func (m *CommandResponse) String() string { return fmt.Sprintf("%+v", *m) }
func (*CommandResponse) ProtoMessage()    {}
