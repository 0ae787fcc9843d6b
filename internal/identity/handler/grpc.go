package handler

import (
	"context"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"credential-session-service/backend/internal/identity/service"
	"credential-session-service/backend/internal/server/interceptors"
)

// AuthServer implements AuthServiceServer on top of the session manager.
// Register, Authenticate, Refresh and Revoke are public; Profile, RevokeAll and
// ListRoles need the caller identity set by interceptors.AuthUnary.
type AuthServer struct {
	auth *service.AuthService
}

var _ AuthServiceServer = (*AuthServer)(nil)

// NewAuthServer returns a new Auth gRPC server. With a nil auth every method
// returns Unimplemented.
func NewAuthServer(auth *service.AuthService) *AuthServer {
	return &AuthServer{auth: auth}
}

// Register creates an account. Request fields: username, email, password, role_id.
func (s *AuthServer) Register(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.auth == nil {
		return nil, status.Error(codes.Unimplemented, "method Register not implemented")
	}
	res := s.auth.Register(ctx, service.RegisterInput{
		Username: field(req, "username"),
		Email:    field(req, "email"),
		Password: field(req, "password"),
		RoleID:   field(req, "role_id"),
	})
	if !res.Success {
		return nil, statusOf(res.Kind, res.Message)
	}
	return reply(map[string]any{"profile": profileValue(*res.Data)})
}

// Authenticate opens a session. Request fields: username, password.
func (s *AuthServer) Authenticate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.auth == nil {
		return nil, status.Error(codes.Unimplemented, "method Authenticate not implemented")
	}
	res := s.auth.Authenticate(ctx, field(req, "username"), field(req, "password"))
	if !res.Success {
		return nil, statusOf(res.Kind, res.Message)
	}
	return reply(tokensValue(res.Data))
}

// Refresh rotates a renewal token. Request field: refresh_token.
func (s *AuthServer) Refresh(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.auth == nil {
		return nil, status.Error(codes.Unimplemented, "method Refresh not implemented")
	}
	res := s.auth.Refresh(ctx, field(req, "refresh_token"))
	if !res.Success {
		return nil, statusOf(res.Kind, res.Message)
	}
	return reply(tokensValue(res.Data))
}

// Revoke ends the session behind a renewal token. Request field: refresh_token.
func (s *AuthServer) Revoke(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.auth == nil {
		return nil, status.Error(codes.Unimplemented, "method Revoke not implemented")
	}
	res := s.auth.Revoke(ctx, field(req, "refresh_token"))
	if !res.Success {
		return nil, statusOf(res.Kind, res.Message)
	}
	return reply(map[string]any{"message": res.Message})
}

// Profile returns the caller's account.
func (s *AuthServer) Profile(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if s.auth == nil {
		return nil, status.Error(codes.Unimplemented, "method Profile not implemented")
	}
	accountID, ok := interceptors.GetAccountID(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing or invalid authorization")
	}
	res := s.auth.Profile(ctx, accountID)
	if !res.Success {
		return nil, statusOf(res.Kind, res.Message)
	}
	return reply(map[string]any{"profile": profileValue(*res.Data)})
}

// RevokeAll ends every session of the caller's account.
func (s *AuthServer) RevokeAll(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if s.auth == nil {
		return nil, status.Error(codes.Unimplemented, "method RevokeAll not implemented")
	}
	accountID, ok := interceptors.GetAccountID(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing or invalid authorization")
	}
	res := s.auth.RevokeAll(ctx, accountID)
	if !res.Success {
		return nil, statusOf(res.Kind, res.Message)
	}
	return reply(map[string]any{"revoked": res.Data})
}

// ListRoles returns every role.
func (s *AuthServer) ListRoles(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if s.auth == nil {
		return nil, status.Error(codes.Unimplemented, "method ListRoles not implemented")
	}
	if _, ok := interceptors.GetAccountID(ctx); !ok {
		return nil, status.Error(codes.Unauthenticated, "missing or invalid authorization")
	}
	res := s.auth.ListRoles(ctx)
	if !res.Success {
		return nil, statusOf(res.Kind, res.Message)
	}
	roles := make([]any, 0, len(res.Data))
	for _, r := range res.Data {
		roles = append(roles, roleValue(r))
	}
	return reply(map[string]any{"roles": roles})
}

// statusOf maps a failure kind to a gRPC status. Internal failures keep their generic message.
func statusOf(kind service.FailureKind, message string) error {
	var code codes.Code
	switch kind {
	case service.KindInvalidCredentials, service.KindInvalidOrExpiredSession, service.KindInvalidToken:
		code = codes.Unauthenticated
	case service.KindAccountInactive:
		code = codes.PermissionDenied
	case service.KindInvalidInput:
		code = codes.InvalidArgument
	case service.KindAlreadyExists:
		code = codes.AlreadyExists
	case service.KindNotFound:
		code = codes.NotFound
	default:
		code = codes.Internal
	}
	return status.Error(code, message)
}

func field(req *structpb.Struct, name string) string {
	return req.GetFields()[name].GetStringValue()
}

func reply(m map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	return out, nil
}

func tokensValue(t *service.Tokens) map[string]any {
	return map[string]any{
		"access_token":       t.AccessToken,
		"access_expires_at":  timestamp(t.AccessExpiresAt),
		"refresh_token":      t.RefreshToken,
		"refresh_expires_at": timestamp(t.RefreshExpiresAt),
		"session_id":         t.SessionID,
		"profile":            profileValue(t.Profile),
	}
}

func profileValue(p service.Profile) map[string]any {
	roles := make([]any, 0, len(p.Roles))
	for _, r := range p.Roles {
		roles = append(roles, roleValue(r))
	}
	return map[string]any{
		"id":         p.ID,
		"username":   p.Username,
		"email":      p.Email,
		"active":     p.Active,
		"created_at": timestamp(p.CreatedAt),
		"roles":      roles,
	}
}

func roleValue(r service.RoleInfo) map[string]any {
	return map[string]any{
		"id":          r.ID,
		"name":        r.Name,
		"description": r.Description,
		"active":      r.Active,
	}
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
