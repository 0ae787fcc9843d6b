package server

import (
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	identityhandler "credential-session-service/backend/internal/identity/handler"
	"credential-session-service/backend/internal/identity/service"
)

// Deps holds the services exposed over gRPC.
type Deps struct {
	// Health is the readiness server. If nil, a server that always reports SERVING is registered.
	Health *grpchealth.Server
	// Auth backs auth.v1.AuthService. If nil, its methods return Unimplemented.
	Auth *service.AuthService
}

// RegisterServices registers the gRPC services with s.
//
// Service → implementation:
//   - grpc.health.v1.Health → internal/health (database readiness)
//   - auth.v1.AuthService → internal/identity/handler
func RegisterServices(s grpc.ServiceRegistrar, deps Deps) {
	hs := deps.Health
	if hs == nil {
		hs = grpchealth.NewServer()
	}
	healthpb.RegisterHealthServer(s, hs)
	identityhandler.RegisterAuthServiceServer(s, identityhandler.NewAuthServer(deps.Auth))
}

// HealthMethods lists the health check methods. They are public and not audited.
func HealthMethods() map[string]bool {
	return map[string]bool{
		healthpb.Health_Check_FullMethodName: true,
		healthpb.Health_Watch_FullMethodName: true,
		healthpb.Health_List_FullMethodName:  true,
	}
}

// PublicMethods lists the full method names callable without an access token.
// Every other registered method requires a valid Bearer token.
func PublicMethods() map[string]bool {
	m := HealthMethods()
	m[identityhandler.AuthService_Register_FullMethodName] = true
	m[identityhandler.AuthService_Authenticate_FullMethodName] = true
	m[identityhandler.AuthService_Refresh_FullMethodName] = true
	m[identityhandler.AuthService_Revoke_FullMethodName] = true
	return m
}
