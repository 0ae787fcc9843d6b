package handler

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "auth.v1.AuthService"

// Full method names, as seen by interceptors in grpc.UnaryServerInfo.
const (
	AuthService_Register_FullMethodName     = "/" + ServiceName + "/Register"
	AuthService_Authenticate_FullMethodName = "/" + ServiceName + "/Authenticate"
	AuthService_Refresh_FullMethodName      = "/" + ServiceName + "/Refresh"
	AuthService_Revoke_FullMethodName       = "/" + ServiceName + "/Revoke"
	AuthService_Profile_FullMethodName      = "/" + ServiceName + "/Profile"
	AuthService_RevokeAll_FullMethodName    = "/" + ServiceName + "/RevokeAll"
	AuthService_ListRoles_FullMethodName    = "/" + ServiceName + "/ListRoles"
)

// AuthServiceServer is the server API for auth.v1.AuthService. Requests and responses
// are google.protobuf.Struct messages so the default proto codec carries them.
type AuthServiceServer interface {
	Register(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Authenticate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Refresh(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Revoke(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Profile(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RevokeAll(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListRoles(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(AuthServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func methodDesc(name string, call unaryMethod) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(AuthServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(AuthServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// AuthService_ServiceDesc is the grpc.ServiceDesc for auth.v1.AuthService.
var AuthService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AuthServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		methodDesc("Register", AuthServiceServer.Register),
		methodDesc("Authenticate", AuthServiceServer.Authenticate),
		methodDesc("Refresh", AuthServiceServer.Refresh),
		methodDesc("Revoke", AuthServiceServer.Revoke),
		methodDesc("Profile", AuthServiceServer.Profile),
		methodDesc("RevokeAll", AuthServiceServer.RevokeAll),
		methodDesc("ListRoles", AuthServiceServer.ListRoles),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "auth/v1/auth.proto",
}

// RegisterAuthServiceServer registers srv with s.
func RegisterAuthServiceServer(s grpc.ServiceRegistrar, srv AuthServiceServer) {
	s.RegisterService(&AuthService_ServiceDesc, srv)
}
