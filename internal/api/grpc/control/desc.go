package control

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// ServiceName is the fully-qualified gRPC service name.
	ServiceName = "agrosmart.v1.ControllerService"

	// GetStatusMethod reads a fresh status.
	GetStatusMethod = "/" + ServiceName + "/GetStatus"
	// ResetAlertMethod clears the alert and reads a fresh status.
	ResetAlertMethod = "/" + ServiceName + "/ResetAlert"
)

// ControllerServiceServer is the server API of the control service.
type ControllerServiceServer interface {
	GetStatus(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	ResetAlert(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
}

// Register adds the control service to a gRPC server.
func Register(registrar grpc.ServiceRegistrar, server ControllerServiceServer) {
	registrar.RegisterService(&serviceDesc, server)
}

//nolint:gochecknoglobals // grpc.ServiceDesc is registered by address.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ControllerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetStatus",
			Handler:    getStatusHandler,
		},
		{
			MethodName: "ResetAlert",
			Handler:    resetAlertHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "agrosmart/v1/controller.proto",
}

func getStatusHandler(
	srv any,
	ctx context.Context,
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}

	server, _ := srv.(ControllerServiceServer)

	if interceptor == nil {
		return server.GetStatus(ctx, in)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: GetStatusMethod,
	}

	handler := func(ctx context.Context, req any) (any, error) {
		empty, _ := req.(*emptypb.Empty)

		return server.GetStatus(ctx, empty)
	}

	return interceptor(ctx, in, info, handler)
}

func resetAlertHandler(
	srv any,
	ctx context.Context,
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}

	server, _ := srv.(ControllerServiceServer)

	if interceptor == nil {
		return server.ResetAlert(ctx, in)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: ResetAlertMethod,
	}

	handler := func(ctx context.Context, req any) (any, error) {
		empty, _ := req.(*emptypb.Empty)

		return server.ResetAlert(ctx, empty)
	}

	return interceptor(ctx, in, info, handler)
}
