package interceptors

import (
	"context"
	"log/slog"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"credential-session-service/backend/internal/identity/service"
)

const bearerPrefix = "bearer "

// AccessValidator verifies an access token. *service.AuthService satisfies it.
type AccessValidator interface {
	Validate(ctx context.Context, accessToken string) service.Result[*service.Principal]
}

// AuthUnary returns a unary server interceptor that validates the Bearer (access) token
// from gRPC metadata and sets the caller's Identity in context for protected RPCs.
// publicMethods is the set of full method names that do not require a Bearer token
// (e.g. the health check). A nil logger discards rejection logs.
func AuthUnary(validator AccessValidator, publicMethods map[string]bool, logger *slog.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		token := extractBearer(ctx)
		public := publicMethods[info.FullMethod]

		if token == "" {
			if public {
				return handler(ctx, req)
			}
			return nil, status.Error(codes.Unauthenticated, "missing or invalid authorization")
		}

		res := validator.Validate(ctx, token)
		if !res.Success {
			if public {
				return handler(ctx, req)
			}
			logger.WarnContext(ctx, "access token rejected", "method", info.FullMethod, "client_ip", ClientIP(ctx))
			return nil, status.Error(codes.Unauthenticated, "missing or invalid authorization")
		}

		p := res.Data
		ctx = WithIdentity(ctx, Identity{
			AccountID: p.AccountID,
			Username:  p.Username,
			Roles:     p.Roles,
			TokenID:   p.TokenID,
		})
		return handler(ctx, req)
	}
}

// extractBearer returns the Bearer token from ctx metadata, or "" if missing or malformed.
func extractBearer(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	vals := md.Get("authorization")
	if len(vals) == 0 {
		return ""
	}
	v := strings.TrimSpace(vals[0])
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
