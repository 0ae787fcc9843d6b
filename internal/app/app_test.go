package app

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"credential-session-service/backend/internal/config"
	"credential-session-service/backend/internal/db"
	"credential-session-service/backend/internal/db/migrate"
	"credential-session-service/backend/internal/logging"
	"credential-session-service/backend/internal/security"
)

func baseConfig() *config.Config {
	return &config.Config{
		DatabaseDriver:      config.DriverSQLite,
		DBConnectAttempts:   2,
		StoreTimeout:        "5s",
		JWTSigningAlg:       "HS256",
		JWTSecret:           security.TestHMACSecret,
		JWTIssuer:           "iss",
		JWTAudience:         "aud",
		JWTAccessTTL:        "15m",
		JWTRefreshTTL:       "24h",
		JWTClockSkew:        "0s",
		RefreshTokenBytes:   32,
		RotateRefreshTokens: true,
		BcryptCost:          4,
	}
}

func TestTokenProvider_HMAC(t *testing.T) {
	tp, err := TokenProvider(baseConfig())
	if err != nil {
		t.Fatalf("TokenProvider: %v", err)
	}
	if tp.AccessTTL() != 15*time.Minute {
		t.Errorf("AccessTTL = %v", tp.AccessTTL())
	}
	cfg := baseConfig()
	cfg.JWTSecret = "short"
	if _, err := TokenProvider(cfg); err == nil {
		t.Error("short secret should fail")
	}
}

func TestTokenProvider_ECDSAFromFiles(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		t.Fatal(err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	privPath := filepath.Join(dir, "jwt.key")
	pubPath := filepath.Join(dir, "jwt.pub")
	if err := os.WriteFile(privPath, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER}), 0o600); err != nil {
		t.Fatal(err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	if err := os.WriteFile(pubPath, pubPEM, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := baseConfig()
	cfg.JWTSigningAlg = "ES256"
	cfg.JWTPrivateKey = privPath
	cfg.JWTPublicKey = string(pubPEM)
	tp, err := TokenProvider(cfg)
	if err != nil {
		t.Fatalf("TokenProvider: %v", err)
	}
	tok, err := tp.IssueAccess(security.AccessSubject{AccountID: "a"}, time.Now())
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := tp.ValidateAccess(tok.Token, time.Now()); err != nil {
		t.Errorf("ValidateAccess: %v", err)
	}

	cfg.JWTPrivateKey = filepath.Join(dir, "missing.key")
	if _, err := TokenProvider(cfg); err == nil {
		t.Error("missing key file should fail")
	}
	cfg.JWTPrivateKey = ""
	if _, err := TokenProvider(cfg); err == nil {
		t.Error("unset private key should fail")
	}
}

func TestOpenDB(t *testing.T) {
	cfg := baseConfig()
	cfg.DatabaseURL = filepath.Join(t.TempDir(), "app.db")
	conn, dialect, err := OpenDB(context.Background(), cfg, logging.Discard())
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	defer conn.Close()
	if dialect != db.SQLite {
		t.Errorf("dialect = %v", dialect)
	}

	cfg.DatabaseURL = ""
	if _, _, err := OpenDB(context.Background(), cfg, logging.Discard()); err == nil {
		t.Error("empty DATABASE_URL should fail")
	}
	cfg.DatabaseDriver = "mysql"
	cfg.DatabaseURL = "x"
	if _, _, err := OpenDB(context.Background(), cfg, logging.Discard()); err == nil {
		t.Error("unknown driver should fail")
	}
}

func TestOpenDB_RetriesThenFails(t *testing.T) {
	old := connectDelay
	connectDelay = time.Millisecond
	defer func() { connectDelay = old }()

	cfg := baseConfig()
	cfg.DBConnectAttempts = 3
	// A directory that does not exist cannot hold the database file.
	cfg.DatabaseURL = filepath.Join(t.TempDir(), "missing", "dir", "app.db")
	if _, _, err := OpenDB(context.Background(), cfg, logging.Discard()); err == nil {
		t.Error("OpenDB should fail")
	}
}

func TestAuthService_Wiring(t *testing.T) {
	cfg := baseConfig()
	cfg.DatabaseURL = filepath.Join(t.TempDir(), "app.db")
	conn, dialect, err := OpenDB(context.Background(), cfg, logging.Discard())
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	defer conn.Close()
	if err := migrate.Apply(conn, dialect, "up"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	svc, err := AuthService(cfg, conn, dialect, logging.Discard(), nil)
	if err != nil {
		t.Fatalf("AuthService: %v", err)
	}
	if res := svc.ListRoles(context.Background()); !res.Success || len(res.Data) != 0 {
		t.Errorf("ListRoles = %+v", res)
	}
	if res := svc.Revoke(context.Background(), "unknown"); !res.Success {
		t.Errorf("Revoke = %+v", res)
	}
}
