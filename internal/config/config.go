// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Supported DATABASE_DRIVER values.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// GRPCAddr is the address the gRPC server listens on (e.g. :8080).
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// DatabaseDriver selects the SQL backend: "postgres" (pgx) or "sqlite" (modernc).
	DatabaseDriver string `mapstructure:"DATABASE_DRIVER"`
	// DatabaseURL is the Postgres DSN, or the SQLite file path when DatabaseDriver is sqlite.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// DBConnectAttempts is how many times commands retry the initial database connection.
	DBConnectAttempts int `mapstructure:"DB_CONNECT_ATTEMPTS"`
	// StoreTimeout bounds every store-touching auth operation (e.g. "5s"). Zero disables the bound.
	StoreTimeout string `mapstructure:"STORE_TIMEOUT"`

	// JWTSigningAlg is the access token algorithm: HS256, HS384, HS512, RS256 or ES256.
	JWTSigningAlg string `mapstructure:"JWT_SIGNING_ALG"`
	// JWTSecret is the HMAC secret for HS* algorithms; at least 32 bytes.
	JWTSecret string `mapstructure:"JWT_SECRET"`
	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file; used with JWT_PUBLIC_KEY for RS256/ES256.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file; used with JWT_PRIVATE_KEY.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTIssuer is the iss claim set on and required from access tokens.
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim set on and required from access tokens.
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the access token lifetime (e.g. "1h").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// JWTRefreshTTL is the renewal token lifetime (e.g. "168h").
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`
	// JWTClockSkew is the leeway applied to exp/nbf checks. Defaults to 0s (strict).
	JWTClockSkew string `mapstructure:"JWT_CLOCK_SKEW"`
	// RefreshTokenBytes is the number of random bytes in a renewal token (minimum 16).
	RefreshTokenBytes int `mapstructure:"REFRESH_TOKEN_BYTES"`
	// RotateRefreshTokens replaces the renewal token on every refresh when true.
	RotateRefreshTokens bool `mapstructure:"ROTATE_REFRESH_TOKENS"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// LogFormat is json or text.
	LogFormat string `mapstructure:"LOG_FORMAT"`
	// LogFile, when set, sends logs to a size-rotated file instead of stdout.
	LogFile string `mapstructure:"LOG_FILE"`

	// OTLPEndpoint is the OTLP gRPC collector endpoint; empty disables export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces a plaintext connection to the collector.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	// ServiceName is reported as service.name on all telemetry.
	ServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// PurgeIntervalRaw is how often the worker deletes expired sessions (e.g. "1h").
	PurgeIntervalRaw string `mapstructure:"PURGE_INTERVAL"`

	// Seed-only settings for the bootstrap administrator.
	SeedAdminUsername string `mapstructure:"SEED_ADMIN_USERNAME"`
	SeedAdminEmail    string `mapstructure:"SEED_ADMIN_EMAIL"`
	// SeedAdminPassword is generated by cmd/seed when empty.
	SeedAdminPassword string `mapstructure:"SEED_ADMIN_PASSWORD"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("GRPC_ADDR", ":8080")
	v.SetDefault("DATABASE_DRIVER", DriverPostgres)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_CONNECT_ATTEMPTS", 5)
	v.SetDefault("STORE_TIMEOUT", "5s")
	v.SetDefault("JWT_SIGNING_ALG", "HS256")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_PRIVATE_KEY", "")
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("JWT_ISSUER", "session-auth")
	v.SetDefault("JWT_AUDIENCE", "session-api")
	v.SetDefault("JWT_ACCESS_TTL", "1h")
	v.SetDefault("JWT_REFRESH_TTL", "168h") // 7d
	v.SetDefault("JWT_CLOCK_SKEW", "0s")
	v.SetDefault("REFRESH_TOKEN_BYTES", 32)
	v.SetDefault("ROTATE_REFRESH_TOKENS", true)
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("LOG_FILE", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "session-auth")
	v.SetDefault("PURGE_INTERVAL", "1h")
	v.SetDefault("SEED_ADMIN_USERNAME", "admin")
	v.SetDefault("SEED_ADMIN_EMAIL", "admin@example.com")
	v.SetDefault("SEED_ADMIN_PASSWORD", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.GRPCAddr == "" {
		return nil, errors.New("config: GRPC_ADDR must be set")
	}

	cfg.DatabaseDriver = strings.ToLower(strings.TrimSpace(cfg.DatabaseDriver))
	if cfg.DatabaseDriver != DriverPostgres && cfg.DatabaseDriver != DriverSQLite {
		return nil, errors.New("config: DATABASE_DRIVER must be postgres or sqlite")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	if cfg.RefreshTokenBytes == 0 {
		cfg.RefreshTokenBytes = 32
	}
	if cfg.RefreshTokenBytes < 16 {
		return nil, errors.New("config: REFRESH_TOKEN_BYTES must be at least 16")
	}

	cfg.JWTSigningAlg = strings.ToUpper(strings.TrimSpace(cfg.JWTSigningAlg))
	switch cfg.JWTSigningAlg {
	case "HS256", "HS384", "HS512", "RS256", "ES256":
	default:
		return nil, errors.New("config: JWT_SIGNING_ALG must be one of HS256, HS384, HS512, RS256, ES256")
	}

	if d, err := time.ParseDuration(cfg.JWTClockSkew); err != nil || d < 0 {
		return nil, errors.New("config: JWT_CLOCK_SKEW must be a non-negative duration")
	}

	if cfg.DBConnectAttempts <= 0 {
		cfg.DBConnectAttempts = 1
	}

	return &cfg, nil
}

// UsesHMAC reports whether the configured signing algorithm is an HMAC (shared secret) scheme.
func (c *Config) UsesHMAC() bool {
	return strings.HasPrefix(c.JWTSigningAlg, "HS")
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 1h if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	return parsePositive(c.JWTAccessTTL, time.Hour)
}

// RefreshTTL parses JWTRefreshTTL as a time.Duration. Returns 168h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	return parsePositive(c.JWTRefreshTTL, 168*time.Hour)
}

// ClockSkew parses JWTClockSkew. Returns 0 if unset or invalid.
func (c *Config) ClockSkew() time.Duration {
	d, err := time.ParseDuration(c.JWTClockSkew)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// StoreTimeoutDuration parses StoreTimeout. Returns 0 (no bound) if unset or invalid.
func (c *Config) StoreTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.StoreTimeout)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// PurgeInterval parses PurgeIntervalRaw. Returns 1h if unset or invalid.
func (c *Config) PurgeInterval() time.Duration {
	return parsePositive(c.PurgeIntervalRaw, time.Hour)
}

func parsePositive(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
