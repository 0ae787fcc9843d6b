package security

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token is malformed, expired, wrongly signed, or scoped to another issuer/audience.
	ErrInvalidToken = errors.New("invalid token")
	// ErrMinter is returned when a token cannot be produced (bad key, entropy failure).
	ErrMinter = errors.New("token minter failure")
)

// MinRenewalTokenBytes is the least entropy accepted for an opaque renewal token.
const MinRenewalTokenBytes = 16

// AccessClaims holds JWT claims for the access token.
type AccessClaims struct {
	jwt.RegisteredClaims
	Username string   `json:"username"`
	Roles    []string `json:"roles,omitempty"`
}

// AccessSubject is the identity carried in an access token.
type AccessSubject struct {
	AccountID string
	Username  string
	Roles     []string
}

// AccessToken is a signed access token plus its expiry.
type AccessToken struct {
	Token     string
	ID        string
	ExpiresAt time.Time
}

// Option configures a TokenProvider.
type Option func(*TokenProvider)

// WithClockSkew sets the leeway applied to exp/nbf/iat checks during validation.
func WithClockSkew(d time.Duration) Option {
	return func(p *TokenProvider) {
		if d > 0 {
			p.skew = d
		}
	}
}

// TokenProvider issues and validates access JWTs and mints opaque renewal tokens.
// It holds no mutable state and is safe for concurrent use.
type TokenProvider struct {
	key       SigningKey
	issuer    string
	audience  string
	accessTTL time.Duration
	skew      time.Duration
}

// NewTokenProvider returns a TokenProvider signing with key.
// issuer and audience are set on every token and required on validation.
func NewTokenProvider(key SigningKey, issuer, audience string, accessTTL time.Duration, opts ...Option) (*TokenProvider, error) {
	if key.method == nil {
		return nil, fmt.Errorf("%w: %w", ErrMinter, ErrInvalidKey)
	}
	if accessTTL <= 0 {
		return nil, fmt.Errorf("%w: access TTL must be positive", ErrMinter)
	}
	p := &TokenProvider{
		key:       key,
		issuer:    issuer,
		audience:  audience,
		accessTTL: accessTTL,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// AccessTTL returns the lifetime of issued access tokens.
func (p *TokenProvider) AccessTTL() time.Duration { return p.accessTTL }

// IssueAccess issues an access JWT for subject, valid from now for the configured TTL.
func (p *TokenProvider) IssueAccess(subject AccessSubject, now time.Time) (AccessToken, error) {
	if subject.AccountID == "" {
		return AccessToken{}, fmt.Errorf("%w: empty subject", ErrMinter)
	}
	jti, err := generateJTI()
	if err != nil {
		return AccessToken{}, fmt.Errorf("%w: %w", ErrMinter, err)
	}
	now = now.UTC()
	expiresAt := now.Add(p.accessTTL)
	roles := make([]string, len(subject.Roles))
	copy(roles, subject.Roles)
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   subject.AccountID,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Username: subject.Username,
		Roles:    roles,
	}
	token, err := jwt.NewWithClaims(p.key.method, claims).SignedString(p.key.sign)
	if err != nil {
		return AccessToken{}, fmt.Errorf("%w: %w", ErrMinter, err)
	}
	// NumericDate truncates to seconds; report what the token actually carries.
	return AccessToken{Token: token, ID: jti, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// ValidateAccess verifies signature, algorithm, issuer, audience and expiry of tokenString at now.
// Any failure yields ErrInvalidToken.
func (p *TokenProvider) ValidateAccess(tokenString string, now time.Time) (*AccessClaims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{p.key.method.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithAudience(p.audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(p.skew),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	claims := &AccessClaims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return p.key.verify, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// NewRenewalToken returns n bytes of crypto/rand entropy, base64url-encoded without padding.
func NewRenewalToken(n int) (string, error) {
	if n < MinRenewalTokenBytes {
		return "", fmt.Errorf("%w: renewal token needs at least %d bytes", ErrMinter, MinRenewalTokenBytes)
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("%w: %w", ErrMinter, err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
