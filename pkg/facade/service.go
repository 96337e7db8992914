package facade

import (
	"context"

	"google.golang.org/grpc"
)

const serviceName = "orbit.facade.v1.CommandService"

// CommandServiceServer is the command table the facade exposes, one
// method per Scheduler Actor command.
type CommandServiceServer interface {
	Deploy(context.Context, *DeployRequest) (*DeployResponse, error)
	ScaleApps(context.Context, *ScaleAppsRequest) (*CommandResponse, error)
	ScaleApp(context.Context, *ScaleAppRequest) (*CommandResponse, error)
	KillTasks(context.Context, *KillTasksRequest) (*CommandResponse, error)
	CancelDeployment(context.Context, *CancelDeploymentRequest) (*CommandResponse, error)
	ReconcileTasks(context.Context, *ReconcileTasksRequest) (*CommandResponse, error)
	RetrieveRunningDeployments(context.Context, *RetrieveRunningDeploymentsRequest) (*RetrieveRunningDeploymentsResponse, error)
}

// CommandServiceClient is the client-side stub for CommandServiceServer.
type CommandServiceClient interface {
	Deploy(ctx context.Context, in *DeployRequest, opts ...grpc.CallOption) (*DeployResponse, error)
	ScaleApps(ctx context.Context, in *ScaleAppsRequest, opts ...grpc.CallOption) (*CommandResponse, error)
	ScaleApp(ctx context.Context, in *ScaleAppRequest, opts ...grpc.CallOption) (*CommandResponse, error)
	KillTasks(ctx context.Context, in *KillTasksRequest, opts ...grpc.CallOption) (*CommandResponse, error)
	CancelDeployment(ctx context.Context, in *CancelDeploymentRequest, opts ...grpc.CallOption) (*CommandResponse, error)
	ReconcileTasks(ctx context.Context, in *ReconcileTasksRequest, opts ...grpc.CallOption) (*CommandResponse, error)
	RetrieveRunningDeployments(ctx context.Context, in *RetrieveRunningDeploymentsRequest, opts ...grpc.CallOption) (*RetrieveRunningDeploymentsResponse, error)
}

type commandServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewCommandServiceClient wraps cc. The wire format matches the server's
// legacyCodec only if cc was dialed with grpc.ForceCodec(legacyCodec{}),
// as Dial does.
func NewCommandServiceClient(cc grpc.ClientConnInterface) CommandServiceClient {
	return &commandServiceClient{cc}
}

func (c *commandServiceClient) Deploy(ctx context.Context, in *DeployRequest, opts ...grpc.CallOption) (*DeployResponse, error) {
	out := new(DeployResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Deploy", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *commandServiceClient) ScaleApps(ctx context.Context, in *ScaleAppsRequest, opts ...grpc.CallOption) (*CommandResponse, error) {
	out := new(CommandResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/ScaleApps", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *commandServiceClient) ScaleApp(ctx context.Context, in *ScaleAppRequest, opts ...grpc.CallOption) (*CommandResponse, error) {
	out := new(CommandResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/ScaleApp", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *commandServiceClient) KillTasks(ctx context.Context, in *KillTasksRequest, opts ...grpc.CallOption) (*CommandResponse, error) {
	out := new(CommandResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/KillTasks", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *commandServiceClient) CancelDeployment(ctx context.Context, in *CancelDeploymentRequest, opts ...grpc.CallOption) (*CommandResponse, error) {
	out := new(CommandResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/CancelDeployment", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *commandServiceClient) ReconcileTasks(ctx context.Context, in *ReconcileTasksRequest, opts ...grpc.CallOption) (*CommandResponse, error) {
	out := new(CommandResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/ReconcileTasks", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *commandServiceClient) RetrieveRunningDeployments(ctx context.Context, in *RetrieveRunningDeploymentsRequest, opts ...grpc.CallOption) (*RetrieveRunningDeploymentsResponse, error) {
	out := new(RetrieveRunningDeploymentsResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/RetrieveRunningDeployments", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// RegisterCommandServiceServer registers srv on s.
func RegisterCommandServiceServer(s grpc.ServiceRegistrar, srv CommandServiceServer) {
	s.RegisterService(&commandServiceServiceDesc, srv)
}

func commandServiceDeployHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(DeployRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CommandServiceServer).Deploy(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Deploy"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CommandServiceServer).Deploy(ctx, req.(*DeployRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func commandServiceScaleAppsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ScaleAppsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CommandServiceServer).ScaleApps(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/ScaleApps"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CommandServiceServer).ScaleApps(ctx, req.(*ScaleAppsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func commandServiceScaleAppHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ScaleAppRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CommandServiceServer).ScaleApp(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/ScaleApp"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CommandServiceServer).ScaleApp(ctx, req.(*ScaleAppRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func commandServiceKillTasksHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(KillTasksRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CommandServiceServer).KillTasks(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/KillTasks"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CommandServiceServer).KillTasks(ctx, req.(*KillTasksRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func commandServiceCancelDeploymentHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(CancelDeploymentRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CommandServiceServer).CancelDeployment(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/CancelDeployment"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CommandServiceServer).CancelDeployment(ctx, req.(*CancelDeploymentRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func commandServiceReconcileTasksHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ReconcileTasksRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CommandServiceServer).ReconcileTasks(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/ReconcileTasks"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CommandServiceServer).ReconcileTasks(ctx, req.(*ReconcileTasksRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func commandServiceRetrieveRunningDeploymentsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(RetrieveRunningDeploymentsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CommandServiceServer).RetrieveRunningDeployments(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/RetrieveRunningDeployments"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CommandServiceServer).RetrieveRunningDeployments(ctx, req.(*RetrieveRunningDeploymentsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var commandServiceServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*CommandServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Deploy", Handler: commandServiceDeployHandler},
		{MethodName: "ScaleApps", Handler: commandServiceScaleAppsHandler},
		{MethodName: "ScaleApp", Handler: commandServiceScaleAppHandler},
		{MethodName: "KillTasks", Handler: commandServiceKillTasksHandler},
		{MethodName: "CancelDeployment", Handler: commandServiceCancelDeploymentHandler},
		{MethodName: "ReconcileTasks", Handler: commandServiceReconcileTasksHandler},
		{MethodName: "RetrieveRunningDeployments", Handler: commandServiceRetrieveRunningDeploymentsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "facade.proto",
}
