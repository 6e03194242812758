package alarm

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified bridge service name.
const ServiceName = "alarm.v1.NativeAlarmBridge"

// Full method names.
const (
	MethodScheduleNativeAlarm       = "/" + ServiceName + "/ScheduleNativeAlarm"
	MethodCancelNativeAlarm         = "/" + ServiceName + "/CancelNativeAlarm"
	MethodScheduleDailyNotification = "/" + ServiceName + "/ScheduleDailyNotification"
	MethodListPendingAlarms         = "/" + ServiceName + "/ListPendingAlarms"
)

// BridgeServer is the server API of the bridge.
type BridgeServer interface {
	ScheduleNativeAlarm(ctx context.Context, args *structpb.Struct) (*wrapperspb.StringValue, error)
	CancelNativeAlarm(ctx context.Context, args *structpb.Struct) (*wrapperspb.StringValue, error)
	ScheduleDailyNotification(ctx context.Context, args *structpb.Struct) (*wrapperspb.StringValue, error)
	ListPendingAlarms(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
}

// RegisterBridgeServer registers srv with registrar.
func RegisterBridgeServer(registrar grpc.ServiceRegistrar, srv BridgeServer) {
	registrar.RegisterService(&BridgeServiceDesc, srv)
}

// BridgeServiceDesc describes the bridge for grpc.Server.
var BridgeServiceDesc = grpc.ServiceDesc{ //nolint:gochecknoglobals // Service descriptors are package-level by convention.
	ServiceName: ServiceName,
	HandlerType: (*BridgeServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ScheduleNativeAlarm",
			Handler: unaryHandler(MethodScheduleNativeAlarm, func(srv BridgeServer) func(context.Context, *structpb.Struct) (*wrapperspb.StringValue, error) {
				return srv.ScheduleNativeAlarm
			}),
		},
		{
			MethodName: "CancelNativeAlarm",
			Handler: unaryHandler(MethodCancelNativeAlarm, func(srv BridgeServer) func(context.Context, *structpb.Struct) (*wrapperspb.StringValue, error) {
				return srv.CancelNativeAlarm
			}),
		},
		{
			MethodName: "ScheduleDailyNotification",
			Handler: unaryHandler(MethodScheduleDailyNotification, func(srv BridgeServer) func(context.Context, *structpb.Struct) (*wrapperspb.StringValue, error) {
				return srv.ScheduleDailyNotification
			}),
		},
		{
			MethodName: "ListPendingAlarms",
			Handler: unaryHandler(MethodListPendingAlarms, func(srv BridgeServer) func(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
				return srv.ListPendingAlarms
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "alarm/v1/bridge.proto",
}

// unaryHandler builds the grpc.MethodHandler for one bridge method.
func unaryHandler[Req, Resp any, PReq interface {
	*Req
}](
	fullMethod string,
	pick func(BridgeServer) func(context.Context, PReq) (Resp, error),
) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := PReq(new(Req))
		if err := dec(in); err != nil {
			return nil, err
		}

		call := pick(srv.(BridgeServer))
		if interceptor == nil {
			return call(ctx, in)
		}

		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}

		handler := func(ctx context.Context, req any) (any, error) {
			return call(ctx, req.(PReq))
		}

		return interceptor(ctx, in, info, handler)
	}
}

// BridgeClient calls the bridge over a client connection.
type BridgeClient struct {
	cc grpc.ClientConnInterface
}

// NewBridgeClient creates a client over cc.
func NewBridgeClient(cc grpc.ClientConnInterface) *BridgeClient {
	return &BridgeClient{cc: cc}
}

// ScheduleNativeAlarm schedules a one-shot alarm.
func (c *BridgeClient) ScheduleNativeAlarm(ctx context.Context, args *structpb.Struct, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, MethodScheduleNativeAlarm, args, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

// CancelNativeAlarm cancels a pending alarm.
func (c *BridgeClient) CancelNativeAlarm(ctx context.Context, args *structpb.Struct, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, MethodCancelNativeAlarm, args, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

// ScheduleDailyNotification schedules a daily alarm.
func (c *BridgeClient) ScheduleDailyNotification(ctx context.Context, args *structpb.Struct, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, MethodScheduleDailyNotification, args, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

// ListPendingAlarms lists the pending alarms.
func (c *BridgeClient) ListPendingAlarms(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodListPendingAlarms, new(emptypb.Empty), out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}
