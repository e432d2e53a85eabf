package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// RiskEngine method names.
const (
	ServiceName         = "mirador.risk.v1.RiskEngine"
	ScoreFleetMethod    = "/" + ServiceName + "/ScoreFleet"
	RetrainMethod       = "/" + ServiceName + "/Retrain"
	ModelStatusMethod   = "/" + ServiceName + "/ModelStatus"
	riskEngineProtoFile = "mirador/risk/v1/risk_engine.proto"
)

// RiskEngineServer is the server API for the RiskEngine service. Requests are
// google.protobuf.Empty and responses google.protobuf.Struct, so the service needs no
// generated code.
type RiskEngineServer interface {
	ScoreFleet(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Retrain(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	ModelStatus(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// RegisterRiskEngineServer registers srv with s.
func RegisterRiskEngineServer(s grpc.ServiceRegistrar, srv RiskEngineServer) {
	s.RegisterService(&RiskEngineServiceDesc, srv)
}

// RiskEngineServiceDesc describes the RiskEngine service.
var RiskEngineServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RiskEngineServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ScoreFleet", Handler: unaryHandler(ScoreFleetMethod, RiskEngineServer.ScoreFleet)},
		{MethodName: "Retrain", Handler: unaryHandler(RetrainMethod, RiskEngineServer.Retrain)},
		{MethodName: "ModelStatus", Handler: unaryHandler(ModelStatusMethod, RiskEngineServer.ModelStatus)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: riskEngineProtoFile,
}

type emptyMethod func(RiskEngineServer, context.Context, *emptypb.Empty) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call emptyMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(emptypb.Empty)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(RiskEngineServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(RiskEngineServer), ctx, req.(*emptypb.Empty))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// RiskEngineClient calls the RiskEngine service.
type RiskEngineClient struct {
	cc grpc.ClientConnInterface
}

// NewRiskEngineClient wraps a client connection.
func NewRiskEngineClient(cc grpc.ClientConnInterface) *RiskEngineClient {
	return &RiskEngineClient{cc: cc}
}

func (c *RiskEngineClient) invoke(ctx context.Context, method string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ScoreFleet requests a ranked fleet risk table.
func (c *RiskEngineClient) ScoreFleet(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, ScoreFleetMethod, opts...)
}

// Retrain requests a training run.
func (c *RiskEngineClient) Retrain(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, RetrainMethod, opts...)
}

// ModelStatus reports the model lifecycle state.
func (c *RiskEngineClient) ModelStatus(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, ModelStatusMethod, opts...)
}
