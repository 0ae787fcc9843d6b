package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	accountdomain "credential-session-service/backend/internal/account/domain"
	accountrepo "credential-session-service/backend/internal/account/repository"
	"credential-session-service/backend/internal/security"
	sessiondomain "credential-session-service/backend/internal/session/domain"
	sessionrepo "credential-session-service/backend/internal/session/repository"
	"credential-session-service/backend/internal/telemetry"
)

const instrumentationName = "credential-session-service/identity"

// AuthService is the session manager: it authenticates accounts, issues and renews
// access tokens, and revokes renewal tokens. Every store access runs inside one
// unit of work per call; the service itself holds no mutable state.
type AuthService struct {
	uow          UnitOfWork
	verifier     *Verifier
	hasher       *security.Hasher
	tokens       *security.TokenProvider
	refreshTTL   time.Duration
	refreshBytes int
	rotate       bool
	storeTimeout time.Duration
	now          func() time.Time
	logger       *slog.Logger
	events       telemetry.EventEmitter

	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	tracer         trace.Tracer
	operations     metric.Int64Counter
	duration       metric.Float64Histogram
}

// Option configures an AuthService.
type Option func(*AuthService)

// WithRotation controls whether Refresh replaces the renewal token. Defaults to true.
func WithRotation(rotate bool) Option { return func(s *AuthService) { s.rotate = rotate } }

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(s *AuthService) { s.now = now } }

// WithStoreTimeout bounds each operation's store work. Zero means only the caller's context applies.
func WithStoreTimeout(d time.Duration) Option { return func(s *AuthService) { s.storeTimeout = d } }

// WithLogger sets the structured logger used by the service and its verifier.
func WithLogger(l *slog.Logger) Option { return func(s *AuthService) { s.logger = l } }

// WithEventEmitter sets where auth events are sent.
func WithEventEmitter(e telemetry.EventEmitter) Option { return func(s *AuthService) { s.events = e } }

// WithRefreshTokenBytes sets the entropy of renewal tokens. Defaults to 32.
func WithRefreshTokenBytes(n int) Option { return func(s *AuthService) { s.refreshBytes = n } }

// WithTracerProvider overrides the global OTel tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *AuthService) { s.tracerProvider = tp }
}

// WithMeterProvider overrides the global OTel meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *AuthService) { s.meterProvider = mp }
}

// NewAuthService returns an AuthService. refreshTTL is the renewal token lifetime.
func NewAuthService(uow UnitOfWork, hasher *security.Hasher, tokens *security.TokenProvider, refreshTTL time.Duration, opts ...Option) (*AuthService, error) {
	if uow == nil || hasher == nil || tokens == nil {
		return nil, errors.New("auth service: unit of work, hasher and token provider are required")
	}
	if refreshTTL <= 0 {
		return nil, errors.New("auth service: refresh TTL must be positive")
	}
	s := &AuthService{
		uow:          uow,
		hasher:       hasher,
		tokens:       tokens,
		refreshTTL:   refreshTTL,
		refreshBytes: 32,
		rotate:       true,
		now:          time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	if s.refreshBytes < security.MinRenewalTokenBytes {
		return nil, fmt.Errorf("auth service: refresh tokens need at least %d bytes", security.MinRenewalTokenBytes)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	if s.tracerProvider == nil {
		s.tracerProvider = otel.GetTracerProvider()
	}
	if s.meterProvider == nil {
		s.meterProvider = otel.GetMeterProvider()
	}
	verifier, err := NewVerifier(hasher, s.logger)
	if err != nil {
		return nil, err
	}
	s.verifier = verifier
	if err := s.initInstruments(); err != nil {
		return nil, err
	}
	return s, nil
}

// Authenticate verifies username and password and opens a new session. The account
// read and the session insert commit together or not at all.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) Result[*Tokens] {
	res := run(ctx, s, "authenticate", "login successful", func(ctx context.Context) (*Tokens, error) {
		now := s.now().UTC()
		var out *Tokens
		err := s.uow.Do(ctx, func(ctx context.Context, st Stores) error {
			acct, err := s.verifier.Verify(ctx, st.Accounts, username, password)
			if err != nil {
				return err
			}
			roles, err := st.Accounts.ListRolesForAccount(ctx, acct.ID)
			if err != nil {
				return err
			}
			access, err := s.tokens.IssueAccess(accessSubject(acct, roles), now)
			if err != nil {
				return err
			}
			token, sess, err := s.newSession(acct.ID, now)
			if err != nil {
				return err
			}
			if err := st.Sessions.Create(ctx, sess); err != nil {
				return err
			}
			out = &Tokens{
				AccessToken:      access.Token,
				AccessExpiresAt:  access.ExpiresAt,
				RefreshToken:     token,
				RefreshExpiresAt: sess.ExpiresAt,
				SessionID:        sess.ID,
				Profile:          profileOf(acct, roles),
			}
			return nil
		})
		return out, err
	})

	ev := telemetry.AuthEvent{Type: telemetry.EventAuthenticated, Username: username, Outcome: outcome(res.Kind), Time: s.now()}
	if res.Success {
		ev.AccountID, ev.SessionID = res.Data.Profile.ID, res.Data.SessionID
		s.logger.InfoContext(ctx, "session opened", "account_id", ev.AccountID, "session_id", ev.SessionID)
	} else {
		ev.Type = telemetry.EventAuthFailed
	}
	telemetry.Emit(ctx, s.events, s.logger, ev)
	return res
}

// Refresh redeems a renewal token for a new access token carrying the account's current
// roles. With rotation enabled the renewal token is replaced in the same transaction.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) Result[*Tokens] {
	res := run(ctx, s, "refresh", "token refreshed successfully", func(ctx context.Context) (*Tokens, error) {
		if refreshToken == "" {
			return nil, fail(KindInvalidOrExpiredSession)
		}
		now := s.now().UTC()
		var out *Tokens
		err := s.uow.Do(ctx, func(ctx context.Context, st Stores) error {
			sess, lookup, err := st.Sessions.FindByToken(ctx, refreshToken, now)
			if err != nil {
				return err
			}
			if lookup != sessionrepo.LookupFound || !security.RefreshTokenHashEqual(refreshToken, sess.TokenHash) {
				attrs := []any{"lookup", lookup.String()}
				if sess != nil {
					attrs = append(attrs, "session_id", sess.ID, "account_id", sess.AccountID)
				}
				s.logger.WarnContext(ctx, "refresh rejected", attrs...)
				return fail(KindInvalidOrExpiredSession)
			}
			acct, err := st.Accounts.GetByID(ctx, sess.AccountID)
			if err != nil {
				return err
			}
			if acct == nil {
				s.logger.WarnContext(ctx, "refresh rejected", "lookup", "account_missing", "session_id", sess.ID)
				return fail(KindInvalidOrExpiredSession)
			}
			if !acct.Active {
				s.logger.WarnContext(ctx, "refresh rejected", "lookup", "account_inactive", "session_id", sess.ID, "account_id", acct.ID)
				return fail(KindAccountInactive)
			}
			roles, err := st.Accounts.ListRolesForAccount(ctx, acct.ID)
			if err != nil {
				return err
			}
			access, err := s.tokens.IssueAccess(accessSubject(acct, roles), now)
			if err != nil {
				return err
			}
			out = &Tokens{
				AccessToken:      access.Token,
				AccessExpiresAt:  access.ExpiresAt,
				RefreshToken:     refreshToken,
				RefreshExpiresAt: sess.ExpiresAt,
				SessionID:        sess.ID,
				Profile:          profileOf(acct, roles),
			}
			if !s.rotate {
				return nil
			}
			token, next, err := s.newSession(acct.ID, now)
			if err != nil {
				return err
			}
			if err := st.Sessions.Replace(ctx, sess.ID, next, now); err != nil {
				if errors.Is(err, sessionrepo.ErrNotUsable) {
					// Revoked by a concurrent writer after our read.
					return fail(KindInvalidOrExpiredSession)
				}
				return err
			}
			out.RefreshToken, out.RefreshExpiresAt, out.SessionID = token, next.ExpiresAt, next.ID
			return nil
		})
		return out, err
	})

	ev := telemetry.AuthEvent{Type: telemetry.EventRefreshed, Outcome: outcome(res.Kind), Time: s.now()}
	if res.Success {
		ev.AccountID, ev.Username, ev.SessionID = res.Data.Profile.ID, res.Data.Profile.Username, res.Data.SessionID
	} else {
		ev.Type = telemetry.EventRefreshFailed
	}
	telemetry.Emit(ctx, s.events, s.logger, ev)
	return res
}

// Revoke ends the session behind refreshToken. It succeeds whether or not the token
// exists, so callers learn nothing about token validity.
func (s *AuthService) Revoke(ctx context.Context, refreshToken string) Result[struct{}] {
	var sessionID, accountID string
	res := run(ctx, s, "revoke", "logout successful", func(ctx context.Context) (struct{}, error) {
		if refreshToken == "" {
			return struct{}{}, nil
		}
		now := s.now().UTC()
		err := s.uow.Do(ctx, func(ctx context.Context, st Stores) error {
			sess, lookup, err := st.Sessions.FindByToken(ctx, refreshToken, now)
			if err != nil {
				return err
			}
			switch lookup {
			case sessionrepo.LookupNotFound:
				s.logger.DebugContext(ctx, "revoke of unknown token")
				return nil
			case sessionrepo.LookupRevoked:
				s.logger.DebugContext(ctx, "revoke of already revoked session", "session_id", sess.ID)
				return nil
			}
			sessionID, accountID = sess.ID, sess.AccountID
			return st.Sessions.Revoke(ctx, refreshToken, now)
		})
		return struct{}{}, err
	})

	if res.Success && sessionID != "" {
		s.logger.InfoContext(ctx, "session revoked", "session_id", sessionID, "account_id", accountID)
	}
	telemetry.Emit(ctx, s.events, s.logger, telemetry.AuthEvent{
		Type: telemetry.EventRevoked, AccountID: accountID, SessionID: sessionID, Outcome: outcome(res.Kind), Time: s.now(),
	})
	return res
}

// Validate checks an access token and returns the principal it asserts. It does not
// touch the store: access tokens stay valid until expiry even after their session is revoked.
func (s *AuthService) Validate(ctx context.Context, accessToken string) Result[*Principal] {
	return run(ctx, s, "validate", "token is valid", func(ctx context.Context) (*Principal, error) {
		claims, err := s.tokens.ValidateAccess(accessToken, s.now())
		if err != nil {
			return nil, fail(KindInvalidToken)
		}
		p := &Principal{AccountID: claims.Subject, Username: claims.Username, Roles: claims.Roles, TokenID: claims.ID}
		if claims.ExpiresAt != nil {
			p.ExpiresAt = claims.ExpiresAt.Time
		}
		return p, nil
	})
}

// RegisterInput is the data needed to create an account.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	RoleID   string
}

// Register creates an active account holding one role. The role must exist and be active.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) Result[*Profile] {
	res := run(ctx, s, "register", "user registered successfully", func(ctx context.Context) (*Profile, error) {
		username := strings.TrimSpace(in.Username)
		email := strings.ToLower(strings.TrimSpace(in.Email))
		if err := validateUsername(username); err != nil {
			return nil, failf(KindInvalidInput, err.Error())
		}
		if err := validateEmail(email); err != nil {
			return nil, failf(KindInvalidInput, err.Error())
		}
		if err := ValidatePassword(in.Password); err != nil {
			return nil, failf(KindInvalidInput, err.Error())
		}
		if strings.TrimSpace(in.RoleID) == "" {
			return nil, failf(KindInvalidInput, "role is required")
		}
		hashed, err := s.hasher.Hash([]byte(in.Password))
		if err != nil {
			return nil, err
		}
		now := s.now().UTC()
		var out *Profile
		err = s.uow.Do(ctx, func(ctx context.Context, st Stores) error {
			exists, err := st.Accounts.ExistsByUsernameOrEmail(ctx, username, email)
			if err != nil {
				return err
			}
			if exists {
				return failf(KindAlreadyExists, "username or email already registered")
			}
			role, err := st.Accounts.GetRoleByID(ctx, in.RoleID)
			if err != nil {
				return err
			}
			if role == nil || !role.Active {
				return failf(KindInvalidInput, "role does not exist or is inactive")
			}
			acct := &accountdomain.Account{
				ID:           uuid.NewString(),
				Username:     username,
				Email:        email,
				PasswordHash: hashed,
				Active:       true,
				CreatedAt:    now,
				RoleIDs:      []string{role.ID},
			}
			if err := st.Accounts.Create(ctx, acct); err != nil {
				if errors.Is(err, accountrepo.ErrDuplicate) {
					// A concurrent registration won between the check and the insert.
					return failf(KindAlreadyExists, "username or email already registered")
				}
				return err
			}
			p := profileOf(acct, []*accountdomain.Role{role})
			out = &p
			return nil
		})
		return out, err
	})
	if res.Success {
		s.logger.InfoContext(ctx, "account registered", "account_id", res.Data.ID, "username", res.Data.Username)
		telemetry.Emit(ctx, s.events, s.logger, telemetry.AuthEvent{
			Type: telemetry.EventRegistered, AccountID: res.Data.ID, Username: res.Data.Username, Outcome: outcome(res.Kind), Time: s.now(),
		})
	}
	return res
}

// Profile returns the public view of an account with all its roles.
func (s *AuthService) Profile(ctx context.Context, accountID string) Result[*Profile] {
	return run(ctx, s, "profile", "user retrieved successfully", func(ctx context.Context) (*Profile, error) {
		var out *Profile
		err := s.uow.Do(ctx, func(ctx context.Context, st Stores) error {
			acct, err := st.Accounts.GetByID(ctx, accountID)
			if err != nil {
				return err
			}
			if acct == nil {
				return failf(KindNotFound, "user not found")
			}
			roles, err := st.Accounts.ListRolesForAccount(ctx, acct.ID)
			if err != nil {
				return err
			}
			p := profileOf(acct, roles)
			out = &p
			return nil
		})
		return out, err
	})
}

// ListRoles returns every role, active or not.
func (s *AuthService) ListRoles(ctx context.Context) Result[[]RoleInfo] {
	return run(ctx, s, "list_roles", "roles retrieved successfully", func(ctx context.Context) ([]RoleInfo, error) {
		var out []RoleInfo
		err := s.uow.Do(ctx, func(ctx context.Context, st Stores) error {
			roles, err := st.Accounts.ListRoles(ctx)
			if err != nil {
				return err
			}
			out = roleInfos(roles)
			return nil
		})
		return out, err
	})
}

// RevokeAll ends every live session of an account and reports how many were revoked.
func (s *AuthService) RevokeAll(ctx context.Context, accountID string) Result[int64] {
	res := run(ctx, s, "revoke_all", "all sessions revoked", func(ctx context.Context) (int64, error) {
		if accountID == "" {
			return 0, failf(KindInvalidInput, "account id is required")
		}
		now := s.now().UTC()
		var n int64
		err := s.uow.Do(ctx, func(ctx context.Context, st Stores) error {
			var err error
			n, err = st.Sessions.RevokeAllByAccount(ctx, accountID, now)
			return err
		})
		return n, err
	})
	if res.Success {
		s.logger.InfoContext(ctx, "all sessions revoked", "account_id", accountID, "count", res.Data)
		telemetry.Emit(ctx, s.events, s.logger, telemetry.AuthEvent{
			Type: telemetry.EventRevokedAll, AccountID: accountID, Count: res.Data, Outcome: outcome(res.Kind), Time: s.now(),
		})
	}
	return res
}

// PurgeExpired deletes expired sessions. It is a maintenance entry point; lookups
// reject expired sessions whether or not they were purged.
func (s *AuthService) PurgeExpired(ctx context.Context) Result[int64] {
	res := run(ctx, s, "purge_expired", "expired sessions purged", func(ctx context.Context) (int64, error) {
		now := s.now().UTC()
		var n int64
		err := s.uow.Do(ctx, func(ctx context.Context, st Stores) error {
			var err error
			n, err = st.Sessions.PurgeExpired(ctx, now)
			return err
		})
		return n, err
	})
	if res.Success {
		s.logger.InfoContext(ctx, "expired sessions purged", "count", res.Data)
		telemetry.Emit(ctx, s.events, s.logger, telemetry.AuthEvent{
			Type: telemetry.EventSessionsPurged, Count: res.Data, Outcome: outcome(res.Kind), Time: s.now(),
		})
	}
	return res
}

func (s *AuthService) newSession(accountID string, now time.Time) (string, *sessiondomain.Session, error) {
	token, err := security.NewRenewalToken(s.refreshBytes)
	if err != nil {
		return "", nil, err
	}
	return token, &sessiondomain.Session{
		ID:        uuid.NewString(),
		AccountID: accountID,
		TokenHash: security.HashRefreshToken(token),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.refreshTTL),
	}, nil
}

func accessSubject(acct *accountdomain.Account, roles []*accountdomain.Role) security.AccessSubject {
	return security.AccessSubject{
		AccountID: acct.ID,
		Username:  acct.Username,
		Roles:     accountdomain.ActiveRoleNames(roles),
	}
}

func profileOf(acct *accountdomain.Account, roles []*accountdomain.Role) Profile {
	return Profile{
		ID:        acct.ID,
		Username:  acct.Username,
		Email:     acct.Email,
		Active:    acct.Active,
		CreatedAt: acct.CreatedAt,
		Roles:     roleInfos(roles),
	}
}

func roleInfos(roles []*accountdomain.Role) []RoleInfo {
	out := make([]RoleInfo, 0, len(roles))
	for _, r := range roles {
		out = append(out, RoleInfo{ID: r.ID, Name: r.Name, Description: r.Description, Active: r.Active})
	}
	return out
}

func outcome(kind FailureKind) string {
	if kind == "" {
		return "ok"
	}
	return string(kind)
}
