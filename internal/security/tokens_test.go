package security

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestTokenProvider_IssueAndValidate(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	subject := AccessSubject{AccountID: "u1", Username: "alice", Roles: []string{"ADMIN", "USER"}}

	access, err := p.IssueAccess(subject, testNow)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if access.Token == "" || access.ID == "" {
		t.Fatal("access token or jti empty")
	}
	if !access.ExpiresAt.Equal(testNow.Add(time.Hour)) {
		t.Errorf("ExpiresAt = %v, want %v", access.ExpiresAt, testNow.Add(time.Hour))
	}

	claims, err := p.ValidateAccess(access.Token, testNow.Add(time.Minute))
	if err != nil {
		t.Fatalf("ValidateAccess: %v", err)
	}
	if claims.Subject != "u1" || claims.Username != "alice" {
		t.Errorf("claims: subject=%q username=%q", claims.Subject, claims.Username)
	}
	if strings.Join(claims.Roles, ",") != "ADMIN,USER" {
		t.Errorf("Roles = %v, want [ADMIN USER]", claims.Roles)
	}
}

func TestTokenProvider_ExpiryBoundary(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	access, err := p.IssueAccess(AccessSubject{AccountID: "u1"}, testNow)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := p.ValidateAccess(access.Token, access.ExpiresAt.Add(-time.Second)); err != nil {
		t.Errorf("1s before expiry: %v", err)
	}
	if _, err := p.ValidateAccess(access.Token, access.ExpiresAt.Add(time.Second)); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("1s after expiry: want ErrInvalidToken, got %v", err)
	}
}

func TestTokenProvider_ClockSkew(t *testing.T) {
	p, err := NewTestTokenProvider(WithClockSkew(30 * time.Second))
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	access, err := p.IssueAccess(AccessSubject{AccountID: "u1"}, testNow)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := p.ValidateAccess(access.Token, access.ExpiresAt.Add(10*time.Second)); err != nil {
		t.Errorf("within skew: %v", err)
	}
	if _, err := p.ValidateAccess(access.Token, access.ExpiresAt.Add(time.Minute)); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("beyond skew: want ErrInvalidToken, got %v", err)
	}
}

func TestTokenProvider_Rejects(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	access, err := p.IssueAccess(AccessSubject{AccountID: "u1"}, testNow)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	otherKey, _ := NewHMACKey("HS256", []byte("another-secret-0123456789abcdefg"))
	otherSecret, _ := NewTokenProvider(otherKey, "test-issuer", "test-audience", time.Hour)
	foreignSigned, _ := otherSecret.IssueAccess(AccessSubject{AccountID: "u1"}, testNow)

	sameKey, _ := NewHMACKey("HS256", []byte(TestHMACSecret))
	otherIssuer, _ := NewTokenProvider(sameKey, "someone-else", "test-audience", time.Hour)
	wrongIss, _ := otherIssuer.IssueAccess(AccessSubject{AccountID: "u1"}, testNow)
	otherAud, _ := NewTokenProvider(sameKey, "test-issuer", "other-api", time.Hour)
	wrongAud, _ := otherAud.IssueAccess(AccessSubject{AccountID: "u1"}, testNow)

	// alg=none with the same claims must never validate.
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			Issuer:    "test-issuer",
			Audience:  jwt.ClaimStrings{"test-audience"},
			ExpiresAt: jwt.NewNumericDate(testNow.Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}

	parts := strings.Split(access.Token, ".")
	tampered := parts[0] + "." + base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"admin"}`)) + "." + parts[2]

	testCases := []struct {
		name  string
		token string
	}{
		{"garbage", "invalid-token"},
		{"empty", ""},
		{"foreign secret", foreignSigned.Token},
		{"wrong issuer", wrongIss.Token},
		{"wrong audience", wrongAud.Token},
		{"alg none", unsigned},
		{"tampered payload", tampered},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := p.ValidateAccess(tc.token, testNow); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("want ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestTokenProvider_AsymmetricKeys(t *testing.T) {
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa.GenerateKey: %v", err)
	}
	ecKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("ecdsa.GenerateKey: %v", err)
	}
	rsaSigning, err := NewKeyPair(rsaKey, &rsaKey.PublicKey)
	if err != nil {
		t.Fatalf("NewKeyPair RSA: %v", err)
	}
	ecSigning, err := NewKeyPair(ecKey, &ecKey.PublicKey)
	if err != nil {
		t.Fatalf("NewKeyPair EC: %v", err)
	}

	rsaProvider, _ := NewTokenProvider(rsaSigning, "iss", "aud", time.Hour)
	ecProvider, _ := NewTokenProvider(ecSigning, "iss", "aud", time.Hour)

	for name, p := range map[string]*TokenProvider{"RS256": rsaProvider, "ES256": ecProvider} {
		t.Run(name, func(t *testing.T) {
			access, err := p.IssueAccess(AccessSubject{AccountID: "u1", Username: "alice"}, testNow)
			if err != nil {
				t.Fatalf("IssueAccess: %v", err)
			}
			claims, err := p.ValidateAccess(access.Token, testNow)
			if err != nil {
				t.Fatalf("ValidateAccess: %v", err)
			}
			if claims.Username != "alice" {
				t.Errorf("Username = %q, want alice", claims.Username)
			}
		})
	}

	// A token signed by one algorithm is not accepted by a provider pinned to another.
	rsaToken, _ := rsaProvider.IssueAccess(AccessSubject{AccountID: "u1"}, testNow)
	if _, err := ecProvider.ValidateAccess(rsaToken.Token, testNow); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("cross-algorithm: want ErrInvalidToken, got %v", err)
	}
}

func TestNewTokenProvider_Invalid(t *testing.T) {
	if _, err := NewTokenProvider(SigningKey{}, "iss", "aud", time.Hour); !errors.Is(err, ErrMinter) {
		t.Errorf("zero key: want ErrMinter, got %v", err)
	}
	key, _ := NewHMACKey("HS256", []byte(TestHMACSecret))
	if _, err := NewTokenProvider(key, "iss", "aud", 0); !errors.Is(err, ErrMinter) {
		t.Errorf("zero TTL: want ErrMinter, got %v", err)
	}
	p, _ := NewTokenProvider(key, "iss", "aud", time.Hour)
	if _, err := p.IssueAccess(AccessSubject{}, testNow); !errors.Is(err, ErrMinter) {
		t.Errorf("empty subject: want ErrMinter, got %v", err)
	}
}

func TestNewRenewalToken(t *testing.T) {
	tok, err := NewRenewalToken(32)
	if err != nil {
		t.Fatalf("NewRenewalToken: %v", err)
	}
	if len(tok) != 43 {
		t.Errorf("len = %d, want 43", len(tok))
	}
	raw, err := base64.RawURLEncoding.DecodeString(tok)
	if err != nil || len(raw) != 32 {
		t.Errorf("decode: %d bytes, err=%v", len(raw), err)
	}

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tok, err := NewRenewalToken(32)
		if err != nil {
			t.Fatalf("NewRenewalToken: %v", err)
		}
		if seen[tok] {
			t.Fatal("NewRenewalToken repeated a value")
		}
		seen[tok] = true
	}

	if _, err := NewRenewalToken(8); !errors.Is(err, ErrMinter) {
		t.Errorf("8 bytes: want ErrMinter, got %v", err)
	}
}
