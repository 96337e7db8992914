package facade

import (
	"context"
	"encoding/json"
	"fmt"
	"net"

	"google.golang.org/grpc"

	"github.com/orbitsched/orbit/pkg/actor"
	"github.com/orbitsched/orbit/pkg/log"
	"github.com/orbitsched/orbit/pkg/types"
)

// Server implements CommandServiceServer against a live Scheduler Actor.
// Unlike the teacher's mTLS-secured API server, this is the thin
// reference/test transport SPEC_FULL.md calls for: no certificate
// material, a single unauthenticated listener, since container-level
// network isolation (or an operator-supplied grpc.ServerOption) is
// assumed to bound who can reach it.
type Server struct {
	actor *actor.Actor
	grpc  *grpc.Server
}

// NewServer wraps a so every facade command maps onto a's command table.
func NewServer(a *actor.Actor) *Server {
	grpcServer := grpc.NewServer(grpc.ForceServerCodec(legacyCodec{}))
	s := &Server{actor: a, grpc: grpcServer}
	RegisterCommandServiceServer(grpcServer, s)
	return s
}

// Serve blocks accepting connections on lis until Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	return s.grpc.Serve(lis)
}

// ListenAndServe is a convenience wrapper that binds addr before serving.
func (s *Server) ListenAndServe(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("facade: listen %s: %w", addr, err)
	}
	log.WithComponent("facade").Info().Str("addr", addr).Msg("facade: gRPC command service listening")
	return s.Serve(lis)
}

// Stop gracefully stops the gRPC server, letting in-flight RPCs finish.
func (s *Server) Stop() {
	s.grpc.GracefulStop()
}

func (s *Server) Deploy(ctx context.Context, req *DeployRequest) (*DeployResponse, error) {
	var plan types.DeploymentPlan
	if err := json.Unmarshal(req.PlanJson, &plan); err != nil {
		return &DeployResponse{Error: fmt.Sprintf("facade: invalid plan_json: %v", err)}, nil
	}
	if err := s.actor.Deploy(plan, req.Force); err != nil {
		return &DeployResponse{PlanId: plan.ID, Error: err.Error()}, nil
	}
	return &DeployResponse{PlanId: plan.ID}, nil
}

func (s *Server) ScaleApps(ctx context.Context, req *ScaleAppsRequest) (*CommandResponse, error) {
	if err := s.actor.ScaleApps(); err != nil {
		return &CommandResponse{Error: err.Error()}, nil
	}
	return &CommandResponse{}, nil
}

func (s *Server) ScaleApp(ctx context.Context, req *ScaleAppRequest) (*CommandResponse, error) {
	if err := s.actor.ScaleApp(types.PathId(req.AppId)); err != nil {
		return &CommandResponse{Error: err.Error()}, nil
	}
	return &CommandResponse{}, nil
}

func (s *Server) KillTasks(ctx context.Context, req *KillTasksRequest) (*CommandResponse, error) {
	instanceIDs := make([]types.InstanceId, len(req.InstanceIds))
	for i, id := range req.InstanceIds {
		instanceIDs[i] = types.InstanceId(id)
	}
	if err := s.actor.KillTasks(types.PathId(req.AppId), instanceIDs); err != nil {
		return &CommandResponse{Error: err.Error()}, nil
	}
	return &CommandResponse{}, nil
}

func (s *Server) CancelDeployment(ctx context.Context, req *CancelDeploymentRequest) (*CommandResponse, error) {
	if err := s.actor.CancelDeployment(req.PlanId); err != nil {
		return &CommandResponse{Error: err.Error()}, nil
	}
	return &CommandResponse{}, nil
}

func (s *Server) ReconcileTasks(ctx context.Context, req *ReconcileTasksRequest) (*CommandResponse, error) {
	if err := s.actor.ReconcileTasks(); err != nil {
		return &CommandResponse{Error: err.Error()}, nil
	}
	return &CommandResponse{}, nil
}

func (s *Server) RetrieveRunningDeployments(ctx context.Context, req *RetrieveRunningDeploymentsRequest) (*RetrieveRunningDeploymentsResponse, error) {
	infos, err := s.actor.RetrieveRunningDeployments()
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(infos)
	if err != nil {
		return nil, fmt.Errorf("facade: marshal running deployments: %w", err)
	}
	return &RetrieveRunningDeploymentsResponse{DeploymentsJson: payload}, nil
}
